// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fusion

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/support/sets"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"k8s.io/klog/v2"
)

// DumpEnv is the environment variable controlling the dump of subgraphs: values above 1 enable it.
const DumpEnv = "FUSEGRAPH_DUMP"

// DumpLevel returns the integer value of DumpEnv, or 0 if it is not set or invalid.
func DumpLevel() int {
	value := os.Getenv(DumpEnv)
	if value == "" {
		return 0
	}
	level, err := strconv.Atoi(value)
	if err != nil {
		klog.Warningf("invalid value for $%s=%q, expected an integer: dumps disabled", DumpEnv, value)
		return 0
	}
	return level
}

// SubgraphVisualizer dumps the subgraph of a partition in Graphviz DOT format, for debugging.
// Each dump is named partition_<id>_<index>_<suffix>, where index counts the dumps of the visualizer.
type SubgraphVisualizer struct {
	partitionID ir.PartitionId
	enabled     bool
	index       int
	writer      io.Writer
}

// NewSubgraphVisualizer creates a visualizer for the given partition, enabled if DumpLevel() > 1.
// By default, dumps are logged with klog.
func NewSubgraphVisualizer(partitionID ir.PartitionId) *SubgraphVisualizer {
	return &SubgraphVisualizer{partitionID: partitionID, enabled: DumpLevel() > 1}
}

// WithWriter sets where to write the dumps, instead of logging them. It returns the visualizer itself.
func (v *SubgraphVisualizer) WithWriter(w io.Writer) *SubgraphVisualizer {
	v.writer = w
	return v
}

// Enable overrides the environment setting. It returns the visualizer itself.
func (v *SubgraphVisualizer) Enable(enabled bool) *SubgraphVisualizer {
	v.enabled = enabled
	return v
}

// Enabled returns whether Run dumps anything.
func (v *SubgraphVisualizer) Enabled() bool { return v.enabled }

var nonIdentifierRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// Name returns the name the next dump will have.
func (v *SubgraphVisualizer) Name(nameSuffix string) string {
	return fmt.Sprintf("partition_%d_%d_%s", v.partitionID, v.index, nonIdentifierRegexp.ReplaceAllString(nameSuffix, "_"))
}

// Run dumps the subgraph formed by nodes, if the visualizer is enabled. Shapes are always rendered,
// layouts only if layoutSensitive.
func (v *SubgraphVisualizer) Run(nodes []*ir.Node, nameSuffix string, layoutSensitive bool) error {
	if !v.enabled {
		return nil
	}
	name := v.Name(nameSuffix)
	v.index++
	content, err := dot.Marshal(buildDotGraph(nodes, layoutSensitive), name, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal subgraph %s to DOT", name)
	}
	if v.writer == nil {
		klog.Infof("subgraph %s:\n%s", name, content)
		return nil
	}
	if _, err = v.writer.Write(append(content, '\n')); err != nil {
		return errors.Wrapf(err, "failed to write subgraph %s", name)
	}
	return nil
}

// dotNode is an operation, or a boundary value (input or output of the subgraph).
type dotNode struct {
	id    int64
	dotID string
	attrs []encoding.Attribute
}

func (n *dotNode) ID() int64                        { return n.id }
func (n *dotNode) DOTID() string                    { return n.dotID }
func (n *dotNode) Attributes() []encoding.Attribute { return n.attrs }

// dotEdge aggregates all the values flowing from one node to another.
type dotEdge struct {
	from, to *dotNode
	labels   []string
}

func (e *dotEdge) From() graph.Node         { return e.from }
func (e *dotEdge) To() graph.Node           { return e.to }
func (e *dotEdge) ReversedEdge() graph.Edge { return &dotEdge{from: e.to, to: e.from, labels: e.labels} }
func (e *dotEdge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: strconv.Quote(strings.Join(e.labels, "\n"))}}
}

// boundaryIdBase offsets the ids of the boundary value nodes, so they don't collide with node ids.
const boundaryIdBase = int64(1) << 48

func buildDotGraph(nodes []*ir.Node, layoutSensitive bool) *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	valueLabel := func(v *ir.Value) string {
		if layoutSensitive {
			return fmt.Sprintf("v%d %s", v.Id(), v.Desc())
		}
		return fmt.Sprintf("v%d %s", v.Id(), v.Shape())
	}
	opNodes := make(map[*ir.Node]*dotNode, len(nodes))
	for _, node := range nodes {
		label := fmt.Sprintf("#%d %s", node.Id(), node.Kind())
		if node.Name() != "" {
			label += "\n" + node.Name()
		}
		attrs := []encoding.Attribute{{Key: "label", Value: strconv.Quote(label)}, {Key: "shape", Value: "box"}}
		if node.IsMatched() {
			attrs = append(attrs, encoding.Attribute{Key: "style", Value: "bold"})
		}
		dn := &dotNode{id: int64(node.Id()), dotID: fmt.Sprintf("op%d", node.Id()), attrs: attrs}
		opNodes[node] = dn
		dg.AddNode(dn)
	}

	edges := make(map[[2]int64]*dotEdge)
	connect := func(from, to *dotNode, label string) {
		key := [2]int64{from.id, to.id}
		if e, found := edges[key]; found {
			e.labels = append(e.labels, label)
			return
		}
		e := &dotEdge{from: from, to: to, labels: []string{label}}
		edges[key] = e
		dg.SetEdge(e)
	}
	valueNode := func(v *ir.Value, prefix, shape string) *dotNode {
		dn := &dotNode{
			id:    boundaryIdBase + int64(v.Id()),
			dotID: fmt.Sprintf("%s_v%d", prefix, v.Id()),
			attrs: []encoding.Attribute{
				{Key: "label", Value: strconv.Quote(valueLabel(v))},
				{Key: "shape", Value: shape},
			},
		}
		if dg.Node(dn.id) == nil {
			dg.AddNode(dn)
		}
		return dg.Node(dn.id).(*dotNode)
	}

	set := sets.MakeWith(nodes...)
	for _, node := range nodes {
		for slot, v := range node.Inputs() {
			if v == nil {
				continue
			}
			label := fmt.Sprintf("%s -> [%d]", valueLabel(v), slot)
			if producer := v.Producer(); set.Has(producer) {
				connect(opNodes[producer], opNodes[node], label)
			} else {
				connect(valueNode(v, "in", "ellipse"), opNodes[node], label)
			}
		}
		for _, v := range node.Outputs() {
			if isBoundaryOutput(v, set) {
				connect(opNodes[node], valueNode(v, "out", "doublecircle"), valueLabel(v))
			}
		}
	}
	return dg
}
