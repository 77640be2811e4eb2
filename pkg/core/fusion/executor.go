// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fusion turns matched node sets into partitions, and provides the marking and binding utilities
// backends apply on the subgraph of a partition.
package fusion

import (
	"fmt"
	"slices"

	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/core/pattern"
	"github.com/gomlx/fusegraph/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// InputOrder defines the order of the boundary inputs of a fused node.
type InputOrder int

const (
	// InputOrderProducerFirst lists first the boundary inputs produced by a node outside the set, and then the
	// leaf values (graph inputs, weights, biases), each group in discovery order.
	// It is the external calling convention backends expect.
	InputOrderProducerFirst InputOrder = iota

	// InputOrderDiscovery lists boundary inputs in discovery order: members in node list order, input slots
	// in order. It only matches InputOrderProducerFirst when every member with an external producer comes
	// before the members consuming leaf values.
	InputOrderDiscovery
)

// String implements fmt.Stringer.
func (o InputOrder) String() string {
	switch o {
	case InputOrderProducerFirst:
		return "producer_first"
	case InputOrderDiscovery:
		return "discovery"
	}
	return fmt.Sprintf("InputOrder(%d)", int(o))
}

// Executor creates partitions from matched node sets.
type Executor struct {
	backend    string
	inputOrder InputOrder
}

// Option configures an Executor.
type Option func(e *Executor)

// WithInputOrder sets the order of the boundary inputs of the fused nodes. Default is InputOrderProducerFirst.
func WithInputOrder(order InputOrder) Option {
	return func(e *Executor) { e.inputOrder = order }
}

// NewExecutor creates an Executor that registers partitions owned by backend.
func NewExecutor(backend string, opts ...Option) *Executor {
	e := &Executor{backend: backend, inputOrder: InputOrderProducerFirst}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the name of the backend owning the partitions created.
func (e *Executor) Backend() string { return e.backend }

// InputOrder returns the configured boundary input order.
func (e *Executor) InputOrder() InputOrder { return e.inputOrder }

// Fuse creates a partition from the nodes of match.
//
// The match must come from a pattern.FindMatches call on g with no structural change since then, and none of its
// nodes may be owned by a partition already. The nodes must also form a convex set (see ir.IsConvex).
// Otherwise it returns an error wrapping ir.ErrInvalidArgument.
//
// The partition's fused node has one boundary input per edge entering the matched set, and one boundary
// output per member output consumed outside the set (or not consumed at all). The fused node is not added to
// the graph, and the members stay in the graph, marked as owned by the new partition.
func (e *Executor) Fuse(g *ir.Graph, match *pattern.Match) (*ir.Partition, error) {
	if match == nil || len(match.Nodes) == 0 {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "Fuse(graph %q): empty match", g.Name())
	}
	if match.Generation != g.Generation() {
		return nil, errors.Wrapf(ir.ErrInvalidArgument,
			"Fuse(graph %q): match %s is stale, found on generation %d but graph is at generation %d",
			g.Name(), match, match.Generation, g.Generation())
	}
	return e.fuse(g, match.Nodes, match.Pattern.Name())
}

// FuseAll fuses each of the matches, in order. The matches must come from the same pattern.FindMatches call
// (or pattern.Pass.Run), and therefore be disjoint.
//
// On error it returns the partitions created so far and the error.
func (e *Executor) FuseAll(g *ir.Graph, matches []*pattern.Match) ([]*ir.Partition, error) {
	partitions := make([]*ir.Partition, 0, len(matches))
	for _, match := range matches {
		p, err := e.Fuse(g, match)
		if err != nil {
			return partitions, err
		}
		partitions = append(partitions, p)
	}
	klog.V(1).Infof("backend %q: fused %d matches in graph %q", e.backend, len(partitions), g.Name())
	return partitions, nil
}

// FuseSingle creates a partition with a single node.
func (e *Executor) FuseSingle(g *ir.Graph, node *ir.Node) (*ir.Partition, error) {
	if node == nil {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "FuseSingle(graph %q): nil node", g.Name())
	}
	return e.fuse(g, []*ir.Node{node}, "single_"+node.Kind().String())
}

func (e *Executor) fuse(g *ir.Graph, nodes []*ir.Node, patternName string) (*ir.Partition, error) {
	members, err := e.sortedMembers(g, nodes)
	if err != nil {
		return nil, err
	}
	if !ir.IsConvex(members) {
		return nil, errors.Wrapf(ir.ErrInvalidArgument,
			"Fuse(graph %q): nodes %s are connected through nodes outside the set, fusing them would create a cycle",
			g.Name(), members)
	}
	inputs, outputs := e.Boundary(members)
	origins := make([]ir.NodeId, 0, len(members))
	for _, node := range members {
		origins = append(origins, node.Id())
		origins = append(origins, node.Origins()...)
	}
	fused := ir.NewFusedNode(descs(inputs), descs(outputs), origins)
	fused.MustSetAttr(ir.AttrPattern, ir.String(patternName))
	fused.MustSetAttr(ir.AttrBackend, ir.String(e.backend))
	p, err := g.RegisterPartition(e.backend, fused, members)
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("fused %s", p)
	return p, nil
}

// sortedMembers checks the preconditions of fusion and returns the nodes sorted in node list order.
func (e *Executor) sortedMembers(g *ir.Graph, nodes []*ir.Node) ([]*ir.Node, error) {
	position := make(map[*ir.Node]int, g.NumNodes())
	for ii, node := range g.Nodes() {
		position[node] = ii
	}
	members := slices.Clone(nodes)
	seen := sets.Make[*ir.Node](len(nodes))
	for _, node := range members {
		if _, found := position[node]; !found {
			return nil, errors.Wrapf(ir.ErrInvalidArgument, "Fuse(graph %q): node %s is not part of the graph",
				g.Name(), node)
		}
		if p := node.Partition(); p != nil {
			return nil, errors.Wrapf(ir.ErrInvalidArgument, "Fuse(graph %q): node %s already owned by partition %d",
				g.Name(), node, p.Id())
		}
		if seen.Has(node) {
			return nil, errors.Wrapf(ir.ErrInvalidArgument, "Fuse(graph %q): node %s listed twice", g.Name(), node)
		}
		seen.Insert(node)
	}
	slices.SortFunc(members, func(a, b *ir.Node) int { return position[a] - position[b] })
	return members, nil
}

// Boundary returns the values crossing the boundary of the set of members, which must be sorted in node
// list order: inputs (one per crossing edge, sorted according to the executor's InputOrder) and outputs
// (each member output consumed outside the set or not consumed at all).
func (e *Executor) Boundary(members []*ir.Node) (inputs, outputs []*ir.Value) {
	set := sets.MakeWith(members...)
	var produced, leaves []*ir.Value
	for _, node := range members {
		for _, v := range node.Inputs() {
			if v == nil || set.Has(v.Producer()) {
				continue
			}
			if e.inputOrder == InputOrderDiscovery || v.HasProducer() {
				produced = append(produced, v)
			} else {
				leaves = append(leaves, v)
			}
		}
	}
	inputs = append(produced, leaves...)
	for _, node := range members {
		for _, v := range node.Outputs() {
			if isBoundaryOutput(v, set) {
				outputs = append(outputs, v)
			}
		}
	}
	return
}

func isBoundaryOutput(v *ir.Value, set sets.Set[*ir.Node]) bool {
	uses := v.Consumers()
	if len(uses) == 0 {
		return true
	}
	for _, use := range uses {
		if !set.Has(use.Node) {
			return true
		}
	}
	return false
}

func descs(values []*ir.Value) []ir.TensorDesc {
	result := make([]ir.TensorDesc, len(values))
	for ii, v := range values {
		result[ii] = v.Desc().Clone()
	}
	return result
}
