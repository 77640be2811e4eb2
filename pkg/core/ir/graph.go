// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fusegraph/pkg/support/sets"
)

// EngineKind is the device kind a graph (and its partitions) targets.
type EngineKind int

const (
	EngineAny EngineKind = iota
	EngineCPU
	EngineGPU
)

// String implements fmt.Stringer.
func (e EngineKind) String() string {
	switch e {
	case EngineAny:
		return "any"
	case EngineCPU:
		return "cpu"
	case EngineGPU:
		return "gpu"
	}
	return fmt.Sprintf("EngineKind(%d)", int(e))
}

// Graph owns an ordered list of nodes, kept in topological order, and the registry of partitions
// created over them.
//
// A Graph is not safe for concurrent use: it is owned by one compilation at a time.
type Graph struct {
	name   string
	engine EngineKind

	nodes  []*Node
	inputs []*Value

	// generation is bumped on every structural change (nodes or edges).
	generation int

	partitions []*Partition
}

// NewGraph creates an empty graph.
func NewGraph(name string, engine EngineKind) *Graph {
	return &Graph{name: name, engine: engine}
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// Engine the graph targets.
func (g *Graph) Engine() EngineKind { return g.engine }

// Generation is a counter of structural mutations: it changes whenever a node or an edge is added,
// removed or rewired. Attribute, layout and partition changes don't change it.
func (g *Graph) Generation() int { return g.generation }

func (g *Graph) bump() { g.generation++ }

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Nodes returns a copy of the list of nodes, in topological (construction) order.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.nodes) }

// Has returns whether node is part of the graph node list.
func (g *Graph) Has(node *Node) bool {
	return node != nil && node.graph == g && slices.Contains(g.nodes, node)
}

// Input creates a new leaf value (without producer) to be used as a graph input, a weight or a bias.
func (g *Graph) Input(desc TensorDesc) *Value {
	v := NewValue(desc)
	g.inputs = append(g.inputs, v)
	return v
}

// Inputs returns the leaf values created with Input, in creation order.
func (g *Graph) Inputs() []*Value { return slices.Clone(g.inputs) }

// AddNode creates a node of the given kind consuming the given inputs, and appends it to the graph.
// It returns the new node, whose outputs are created from the given descriptors.
//
// It panics if the arity doesn't comply with the kind's contract, or if an input is produced by a node
// of another graph.
func (g *Graph) AddNode(kind Kind, inputs []*Value, outputs ...TensorDesc) *Node {
	for ii, v := range inputs {
		if v == nil {
			exceptions.Panicf("Graph(%q).AddNode(%s): input #%d is nil", g.name, kind, ii)
		}
		if p := v.Producer(); p != nil && p.graph != g {
			exceptions.Panicf("Graph(%q).AddNode(%s): input #%d is produced by node %s, not in this graph",
				g.name, kind, ii, p)
		}
	}
	n := NewNode(kind, len(inputs), outputs...)
	for ii, v := range inputs {
		n.connectInput(ii, v)
	}
	n.graph = g
	g.nodes = append(g.nodes, n)
	g.bump()
	return n
}

// checkOwned panics if node is not in the graph.
func (g *Graph) checkOwned(node *Node, context string) {
	if node == nil {
		exceptions.Panicf("Graph(%q).%s: nil node", g.name, context)
	}
	if node.graph != g {
		exceptions.Panicf("Graph(%q).%s: node %s is not part of this graph", g.name, context, node)
	}
}

// position returns the index of node in the node list, or panics if not found.
func (g *Graph) position(node *Node) int {
	idx := slices.Index(g.nodes, node)
	if idx < 0 {
		exceptions.Panicf("Graph(%q): node %s not in node list", g.name, node)
	}
	return idx
}

// insertAt inserts the detached node at the given position of the node list.
func (g *Graph) insertAt(pos int, node *Node) {
	node.graph = g
	g.nodes = slices.Insert(g.nodes, pos, node)
}

// removeNode removes node from the node list, without touching its edges.
func (g *Graph) removeNode(node *Node) {
	pos := g.position(node)
	g.nodes = slices.Delete(g.nodes, pos, pos+1)
	node.graph = nil
}

// sortNodes reorders the node list so every node comes after the producers of its inputs, keeping the
// current order otherwise. The graph must be acyclic.
func (g *Graph) sortNodes() {
	sorted := make([]*Node, 0, len(g.nodes))
	done := sets.Make[*Node](len(g.nodes))
	var visit func(node *Node)
	visit = func(node *Node) {
		if done.Has(node) {
			return
		}
		done.Insert(node)
		for _, input := range node.inputs {
			if input != nil && input.producer != nil && input.producer.graph == g {
				visit(input.producer)
			}
		}
		sorted = append(sorted, node)
	}
	for _, node := range g.nodes {
		visit(node)
	}
	g.nodes = sorted
}

// reaches returns whether target can be reached from the outputs of from, following consumers and
// skipping the node skip.
func (g *Graph) reaches(from, target, skip *Node) bool {
	visited := sets.Make[*Node]()
	stack := []*Node{from}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, out := range node.outputs {
			for _, use := range out.consumers {
				if use.Node == target {
					return true
				}
				if use.Node != skip && !visited.Has(use.Node) {
					visited.Insert(use.Node)
					stack = append(stack, use.Node)
				}
			}
		}
	}
	return false
}

// OutputNodes returns the nodes none of whose outputs are consumed by a node of the graph, in node list order.
func (g *Graph) OutputNodes() []*Node {
	var outputs []*Node
	for _, node := range g.nodes {
		if !g.hasConsumerInGraph(node) {
			outputs = append(outputs, node)
		}
	}
	return outputs
}

func (g *Graph) hasConsumerInGraph(node *Node) bool {
	for _, output := range node.outputs {
		for _, use := range output.consumers {
			if use.Node.graph == g {
				return true
			}
		}
	}
	return false
}

// String pretty-prints the graph, one node per line.
func (g *Graph) String() string {
	if g == nil {
		return "Graph(nil)"
	}
	parts := []string{
		fmt.Sprintf("Graph %q (%s): %d nodes, %d inputs, %d partitions",
			g.name, g.engine, len(g.nodes), len(g.inputs), len(g.partitions)),
	}
	for ii, node := range g.nodes {
		parts = append(parts, fmt.Sprintf("\t#%d\t%s", ii, node))
	}
	return strings.Join(parts, "\n")
}
