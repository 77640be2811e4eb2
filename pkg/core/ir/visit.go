// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/fusegraph/pkg/support/sets"
	"github.com/gomlx/fusegraph/pkg/support/xslices"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// TopoOrderVisit visits every node reachable from the output nodes of the graph, depth-first, each node
// exactly once and always after all its producers in the graph.
//
// Output nodes are taken in node list order and inputs in slot order, so the visiting order is deterministic
// for a fixed graph. If fn returns an error the visit stops and the error is returned.
func (g *Graph) TopoOrderVisit(fn func(node *Node) error) error {
	visited := sets.Make[*Node](len(g.nodes))
	var visit func(node *Node) error
	visit = func(node *Node) error {
		if visited.Has(node) {
			return nil
		}
		visited.Insert(node)
		for _, input := range node.inputs {
			if input == nil {
				continue
			}
			if producer := input.producer; producer != nil && producer.graph == g {
				if err := visit(producer); err != nil {
					return err
				}
			}
		}
		return fn(node)
	}
	for _, output := range g.OutputNodes() {
		if err := visit(output); err != nil {
			return err
		}
	}
	return nil
}

// IsConvex returns whether every path between two of the nodes stays within the set.
//
// A non-convex set can't be collapsed into a single fused node: some node outside the set would both
// consume one of its outputs and feed one of its inputs, creating a cycle.
func IsConvex(nodes []*Node) bool {
	members := sets.MakeWith(nodes...)
	reached := sets.Make[*Node]()
	var stack []*Node
	pushConsumers := func(node *Node, skipMembers bool) {
		for _, v := range node.outputs {
			for _, use := range v.consumers {
				if reached.Has(use.Node) || (skipMembers && members.Has(use.Node)) {
					continue
				}
				reached.Insert(use.Node)
				stack = append(stack, use.Node)
			}
		}
	}
	for _, node := range nodes {
		pushConsumers(node, true)
	}
	for len(stack) > 0 {
		node := xslices.Last(stack)
		stack = stack[:len(stack)-1]
		if !members.Has(node) {
			pushConsumers(node, false)
		}
	}
	return !reached.Intersects(members)
}

// Validate checks the structural invariants of the graph: arity of every node, symmetry of the
// producer/consumer edges, node list in topological order and no cycles.
//
// It returns an error wrapping ErrInvalidArgument describing the first problem found.
func (g *Graph) Validate() error {
	dg := simple.NewDirectedGraph()
	position := make(map[*Node]int, len(g.nodes))
	for ii, node := range g.nodes {
		if node.graph != g {
			return errors.Wrapf(ErrInvalidArgument, "node %s in node list is not owned by graph %q", node, g.name)
		}
		position[node] = ii
		dg.AddNode(simple.Node(node.id))
	}
	for ii, node := range g.nodes {
		if err := node.validateArity(); err != nil {
			return err
		}
		for slot, input := range node.inputs {
			if input == nil {
				return errors.Wrapf(ErrInvalidArgument, "node %s: input slot %d is not connected", node, slot)
			}
			if !input.hasUse(node, slot) {
				return errors.Wrapf(ErrInvalidArgument,
					"node %s: input slot %d is %s, but the value doesn't list it as consumer", node, slot, input)
			}
			producer := input.producer
			if producer == nil {
				continue
			}
			if producer.outputs[input.producerOffset] != input {
				return errors.Wrapf(ErrInvalidArgument,
					"value %s claims to be output %d of %s, but it is not", input, input.producerOffset, producer)
			}
			if producer.graph != g {
				continue
			}
			if producer == node {
				return errors.Wrapf(ErrInvalidArgument, "node %s consumes its own output: graph has a cycle", node)
			}
			if position[producer] > ii {
				return errors.Wrapf(ErrInvalidArgument,
					"node %s is listed before its producer %s: node list not in topological order", node, producer)
			}
			dg.SetEdge(dg.NewEdge(simple.Node(producer.id), simple.Node(node.id)))
		}
		for offset, output := range node.outputs {
			if output == nil || output.producer != node || output.producerOffset != offset {
				return errors.Wrapf(ErrInvalidArgument, "node %s: output %d (%s) has inconsistent producer",
					node, offset, output)
			}
			for _, use := range output.consumers {
				if use.Offset >= len(use.Node.inputs) || use.Node.inputs[use.Offset] != output {
					return errors.Wrapf(ErrInvalidArgument,
						"value %s lists consumer %s at slot %d, but it is not connected there", output, use.Node, use.Offset)
				}
			}
		}
	}
	if _, err := topo.Sort(dg); err != nil {
		return errors.Wrapf(ErrInvalidArgument, "graph %q has a cycle: %v", g.name, err)
	}
	return nil
}

// validateArity is the non-panicking version of Kind.checkArity.
func (n *Node) validateArity() error {
	if n.kind <= KindWildcard || n.kind >= KindLast {
		return errors.Wrapf(ErrInvalidArgument, "node #%d has invalid kind %s", n.id, n.kind)
	}
	info := n.kind.Info()
	numInputs, numOutputs := len(n.inputs)-n.postOpInputs, len(n.outputs)
	if numInputs < info.MinInputs || (info.MaxInputs != Variadic && numInputs > info.MaxInputs) ||
		(info.NumOutputs != Variadic && numOutputs != info.NumOutputs) {
		return errors.Wrapf(ErrInvalidArgument, "node %s: %d inputs and %d outputs don't comply with kind %s",
			n, numInputs, numOutputs, n.kind)
	}
	return nil
}

func (v *Value) hasUse(node *Node, slot int) bool {
	for _, use := range v.consumers {
		if use.Node == node && use.Offset == slot {
			return true
		}
	}
	return false
}
