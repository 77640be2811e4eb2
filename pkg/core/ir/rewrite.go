// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"strings"

	"github.com/gomlx/exceptions"
)

// Structural rewrite primitives used by fusion passes.
//
// They all keep the node list in topological order and every value with at most one producer, and they
// bump the graph generation. Misuse (wrong arity, nodes from another graph, nodes owned by a partition)
// panics with an exception.

func (g *Graph) checkDetached(node *Node, context string) {
	if node == nil {
		exceptions.Panicf("Graph(%q).%s: nil node", g.name, context)
	}
	if node.graph != nil {
		exceptions.Panicf("Graph(%q).%s: node %s is already part of a graph", g.name, context, node)
	}
	if node.kind == KindFused {
		exceptions.Panicf("Graph(%q).%s: fused nodes can't be inserted in the graph", g.name, context)
	}
}

func (g *Graph) checkNotPartitioned(node *Node, context string) {
	if node.partition != nil {
		exceptions.Panicf("Graph(%q).%s: node %s is owned by partition %d", g.name, context, node, node.partition.id)
	}
}

func (g *Graph) checkSingleInOut(node *Node, context string) {
	if len(node.inputs) != 1 || len(node.outputs) != 1 {
		exceptions.Panicf("Graph(%q).%s: node %s must have exactly one input and one output", g.name, context, node)
	}
}

func (g *Graph) checkElementwise(node *Node, context string) {
	if !node.kind.IsElementwise() {
		exceptions.Panicf("Graph(%q).%s: only elementwise nodes can be absorbed, %s is not", g.name, context, node)
	}
}

// InsertBefore splices the detached newNode in front of the input slot inSlot of base: newNode's
// single input is connected to the value previously feeding that slot, and the slot is connected to newNode's
// output. newNode is placed right before base in the node list.
func (g *Graph) InsertBefore(newNode, base *Node, inSlot int) {
	const context = "InsertBefore"
	g.checkOwned(base, context)
	g.checkDetached(newNode, context)
	g.checkSingleInOut(newNode, context)
	g.checkNotPartitioned(base, context)
	prev := base.Input(inSlot)
	if prev == nil {
		exceptions.Panicf("Graph(%q).%s: input slot %d of %s is not connected", g.name, context, inSlot, base)
	}
	newNode.connectInput(0, prev)
	base.connectInput(inSlot, newNode.outputs[0])
	g.insertAt(g.position(base), newNode)
	g.bump()
}

// InsertAfter splices the detached newNode after the output outSlot of base: every consumer of that output
// is rewired to newNode's output, and newNode's single input is connected to base's output.
// newNode is placed right after base in the node list.
func (g *Graph) InsertAfter(newNode, base *Node, outSlot int) {
	const context = "InsertAfter"
	g.checkOwned(base, context)
	g.checkDetached(newNode, context)
	g.checkSingleInOut(newNode, context)
	g.checkNotPartitioned(base, context)
	out := base.Output(outSlot)
	newOut := newNode.outputs[0]
	for _, use := range out.Consumers() {
		use.Node.connectInput(use.Offset, newOut)
	}
	newNode.connectInput(0, out)
	g.insertAt(g.position(base)+1, newNode)
	g.bump()
}

// FuseToSuccessor absorbs node into its single consumer (the successor): the successor consumes node's input
// directly, node's kind is appended to the successor's AttrFusedPreOps attribute, and node's id to its origin
// ids. node is removed from the graph.
//
// node must be elementwise (see Kind.IsElementwise), have exactly one input and one output, and the output
// must have exactly one consumer. It returns the successor.
func (g *Graph) FuseToSuccessor(node *Node) *Node {
	const context = "FuseToSuccessor"
	g.checkOwned(node, context)
	g.checkElementwise(node, context)
	g.checkSingleInOut(node, context)
	g.checkNotPartitioned(node, context)
	uses := node.outputs[0].consumers
	if len(uses) != 1 {
		exceptions.Panicf("Graph(%q).%s: node %s must have exactly one consumer, it has %d",
			g.name, context, node, len(uses))
	}
	successor, slot := uses[0].Node, uses[0].Offset
	g.checkOwned(successor, context)
	g.checkNotPartitioned(successor, context)
	in := node.inputs[0]
	if in == nil {
		exceptions.Panicf("Graph(%q).%s: input of %s is not connected", g.name, context, node)
	}
	node.disconnectInputs()
	successor.connectInput(slot, in)
	appendFusedOp(successor, AttrFusedPreOps, node.kind)
	successor.addOrigins(append(node.Origins(), node.id)...)
	g.removeNode(node)
	g.bump()
	return successor
}

// FuseToPredecessor absorbs node into the node producing its input inSlot (the predecessor): the predecessor
// takes over node's output value (and its consumers), node's kind is appended to the predecessor's
// AttrFusedPostOps attribute and node's id to its origin ids. node is removed from the graph.
//
// node's other inputs, like the bias of an Add, are appended to the predecessor's inputs, in slot order (see
// Node.NumPostOpInputs). The node list is reordered if needed so the predecessor comes after their producers.
//
// node must be elementwise (see Kind.IsElementwise) with exactly one output, and the value at inSlot must be
// produced by a node of the graph and consumed only by node. The other inputs must not depend on the
// predecessor, since that would create a cycle. It returns the predecessor.
func (g *Graph) FuseToPredecessor(node *Node, inSlot int) *Node {
	const context = "FuseToPredecessor"
	g.checkOwned(node, context)
	g.checkElementwise(node, context)
	g.checkNotPartitioned(node, context)
	if len(node.outputs) != 1 {
		exceptions.Panicf("Graph(%q).%s: node %s must have exactly one output", g.name, context, node)
	}
	in := node.Input(inSlot)
	if in == nil || in.producer == nil {
		exceptions.Panicf("Graph(%q).%s: input slot %d of %s has no producer", g.name, context, inSlot, node)
	}
	predecessor, predOffset := in.producer, in.producerOffset
	g.checkOwned(predecessor, context)
	g.checkNotPartitioned(predecessor, context)
	if len(in.consumers) != 1 {
		exceptions.Panicf("Graph(%q).%s: value %s is consumed by %d nodes, it can only be consumed by %s",
			g.name, context, in, len(in.consumers), node)
	}
	var operands []*Value
	for slot, v := range node.inputs {
		if slot == inSlot {
			continue
		}
		if v == nil {
			exceptions.Panicf("Graph(%q).%s: input slot %d of %s is not connected", g.name, context, slot, node)
		}
		dependsOnPredecessor := v.producer == predecessor ||
			(v.producer != nil && v.producer.graph == g && g.reaches(predecessor, v.producer, node))
		if dependsOnPredecessor {
			exceptions.Panicf("Graph(%q).%s: input slot %d of %s depends on %s, fusing would create a cycle",
				g.name, context, slot, node, predecessor)
		}
		operands = append(operands, v)
	}
	node.disconnectInputs()
	predecessor.connectOutput(predOffset, node.outputs[0])
	for _, v := range operands {
		predecessor.appendPostOpInput(v)
	}
	appendFusedOp(predecessor, AttrFusedPostOps, node.kind)
	predecessor.addOrigins(append(node.Origins(), node.id)...)
	g.removeNode(node)
	if len(operands) > 0 {
		g.sortNodes()
	}
	g.bump()
	return predecessor
}

// ReplaceOp swaps oldNode for the detached newNode, which must have the same number of inputs and outputs:
// newNode consumes oldNode's inputs, takes over its output values (with their consumers) and its position in
// the node list. newNode keeps its own attributes, and merges oldNode's id and origin ids into its origin ids.
// oldNode is removed from the graph.
func (g *Graph) ReplaceOp(oldNode, newNode *Node) {
	const context = "ReplaceOp"
	g.checkOwned(oldNode, context)
	g.checkDetached(newNode, context)
	g.checkNotPartitioned(oldNode, context)
	if len(oldNode.inputs) != len(newNode.inputs) || len(oldNode.outputs) != len(newNode.outputs) {
		exceptions.Panicf("Graph(%q).%s: arity mismatch, %s has %d inputs and %d outputs, %s has %d and %d",
			g.name, context, oldNode, len(oldNode.inputs), len(oldNode.outputs),
			newNode, len(newNode.inputs), len(newNode.outputs))
	}
	for slot, in := range oldNode.Inputs() {
		oldNode.connectInput(slot, nil)
		newNode.connectInput(slot, in)
	}
	for offset, out := range oldNode.Outputs() {
		newNode.connectOutput(offset, out)
	}
	newNode.addOrigins(append(oldNode.Origins(), oldNode.id)...)
	pos := g.position(oldNode)
	g.removeNode(oldNode)
	g.insertAt(pos, newNode)
	g.bump()
}

// appendFusedOp appends kind to the comma separated list in the attribute key of node.
func appendFusedOp(node *Node, key string, kind Kind) {
	ops := node.attrs.StringOr(key, "")
	if ops == "" {
		ops = kind.String()
	} else {
		ops = strings.Join([]string{ops, kind.String()}, ",")
	}
	node.attrs[key] = String(ops)
}

// FusedOps returns the list of kinds recorded in the attribute key (AttrFusedPreOps or AttrFusedPostOps).
// Unknown kind names are skipped.
func (n *Node) FusedOps(key string) []Kind {
	ops := n.attrs.StringOr(key, "")
	if ops == "" {
		return nil
	}
	var kinds []Kind
	for _, name := range strings.Split(ops, ",") {
		if k, err := KindString(name); err == nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
