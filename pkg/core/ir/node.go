// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fusegraph/pkg/support/sets"
	"github.com/gomlx/fusegraph/pkg/support/xslices"
	"github.com/pkg/errors"
)

// NodeId is globally unique, across all graphs.
type NodeId int64

var (
	muNodeCount sync.Mutex
	nodeCount   NodeId
)

func nextNodeId() NodeId {
	muNodeCount.Lock()
	defer muNodeCount.Unlock()
	nodeCount++
	return nodeCount
}

// Node is an operation in the computation graph.
//
// The number of input slots and outputs is fixed at construction, and must comply with the arity
// contract of its Kind (see Kind.Info).
// The node owns its output values. Its inputs are non-owning references to values produced by other nodes
// (or leaf values).
type Node struct {
	id   NodeId
	kind Kind
	name string

	// graph is nil for detached nodes: fused nodes, or nodes about to be inserted in a graph.
	graph *Graph

	inputs  []*Value
	outputs []*Value

	// postOpInputs is the number of trailing input slots added by Graph.FuseToPredecessor. They are not
	// accounted by the arity of the kind.
	postOpInputs int

	// origins are the ids of the nodes this node was fused from, sorted.
	origins []NodeId

	attrs     Attrs
	partition *Partition
}

// NewNode creates a detached node (not in any graph) of the given kind, with numInputs unconnected input slots
// and one new output value per outputs descriptor.
//
// It panics if the arity doesn't comply with the kind's contract.
// Detached nodes are used with Graph.InsertBefore, Graph.InsertAfter and Graph.ReplaceOp.
func NewNode(kind Kind, numInputs int, outputs ...TensorDesc) *Node {
	kind.checkArity(numInputs, len(outputs))
	n := &Node{
		id:     nextNodeId(),
		kind:   kind,
		inputs: make([]*Value, numInputs),
		attrs:  make(Attrs),
	}
	n.outputs = make([]*Value, len(outputs))
	for ii, desc := range outputs {
		v := NewValue(desc)
		v.setProducer(n, ii)
		n.outputs[ii] = v
	}
	return n
}

// NewFusedNode creates a detached node of KindFused, whose inputs are new boundary values (without producers)
// with the given descriptors, and whose outputs are new values with the given descriptors.
//
// origins are the ids of the original nodes it was fused from.
func NewFusedNode(inputs, outputs []TensorDesc, origins []NodeId) *Node {
	n := NewNode(KindFused, len(inputs), outputs...)
	for ii, desc := range inputs {
		n.connectInput(ii, NewValue(desc))
	}
	n.origins = sets.Sorted(sets.MakeWith(origins...))
	return n
}

// Id is the globally unique id of the node.
func (n *Node) Id() NodeId { return n.id }

// Kind of the operation.
func (n *Node) Kind() Kind { return n.kind }

// Name of the node, if one was set. Names are not required to be unique.
func (n *Node) Name() string { return n.name }

// SetName sets the name of the node, and returns the node itself.
func (n *Node) SetName(name string) *Node {
	n.name = name
	return n
}

// Graph owning the node, or nil if the node is detached.
func (n *Node) Graph() *Graph { return n.graph }

// NumInputs returns the number of input slots.
func (n *Node) NumInputs() int { return len(n.inputs) }

// NumPostOpInputs returns how many of the inputs are trailing operands of post-ops absorbed with
// Graph.FuseToPredecessor, like the bias of an absorbed Add.
func (n *Node) NumPostOpInputs() int { return n.postOpInputs }

// NumOutputs returns the number of outputs.
func (n *Node) NumOutputs() int { return len(n.outputs) }

// Input returns the value connected to the input slot, or nil if not connected.
func (n *Node) Input(slot int) *Value {
	if slot < 0 || slot >= len(n.inputs) {
		exceptions.Panicf("node %s has %d inputs, input slot %d is out-of-bounds", n, len(n.inputs), slot)
	}
	return n.inputs[slot]
}

// Output returns the output value at the given offset.
func (n *Node) Output(offset int) *Value {
	if offset < 0 || offset >= len(n.outputs) {
		exceptions.Panicf("node %s has %d outputs, output offset %d is out-of-bounds", n, len(n.outputs), offset)
	}
	return n.outputs[offset]
}

// Inputs returns a copy of the list of input values.
func (n *Node) Inputs() []*Value { return slices.Clone(n.inputs) }

// Outputs returns a copy of the list of output values.
func (n *Node) Outputs() []*Value { return slices.Clone(n.outputs) }

// Origins returns the ids of the original nodes this node was fused from. It's empty for non-fused nodes.
func (n *Node) Origins() []NodeId { return slices.Clone(n.origins) }

// IsFused returns whether the node is a fused node.
func (n *Node) IsFused() bool { return n.kind == KindFused }

// Attrs returns the attributes of the node. The map can be read, but should be changed with SetAttr.
func (n *Node) Attrs() Attrs { return n.attrs }

// SetAttr sets an attribute on the node. If the key is part of the kind's attribute schema (or a reserved key),
// the type must match, otherwise it returns an error wrapping ErrTypeMismatch.
func (n *Node) SetAttr(key string, attr Attr) error {
	if !attr.Ok() {
		return errors.Wrapf(ErrInvalidArgument, "node %s: invalid value for attribute %q", n, key)
	}
	want, found := reservedAttrs[key]
	if !found {
		want, found = n.kind.Info().Attrs[key]
	}
	if found && want != attr.Type() {
		return errors.Wrapf(ErrTypeMismatch, "node %s: attribute %q must be %s, got %s", n, key, want, attr.Type())
	}
	n.attrs[key] = attr
	return nil
}

// MustSetAttr is like SetAttr, but panics on error. It returns the node itself.
func (n *Node) MustSetAttr(key string, attr Attr) *Node {
	if err := n.SetAttr(key, attr); err != nil {
		panic(err)
	}
	return n
}

// IsMatched returns whether the node was claimed by a pattern match (see AttrMatchedPattern).
func (n *Node) IsMatched() bool { return n.attrs.BoolOr(AttrMatchedPattern, false) }

// Partition owning the node, or nil.
func (n *Node) Partition() *Partition { return n.partition }

// InputProducer returns the node producing the input at slot, or nil if it is a leaf value or unconnected.
func (n *Node) InputProducer(slot int) *Node {
	v := n.Input(slot)
	if v == nil {
		return nil
	}
	return v.Producer()
}

// Consumers returns the distinct nodes consuming any of the outputs of n, in order of first use.
func (n *Node) Consumers() []*Node {
	var consumers []*Node
	seen := sets.Make[*Node]()
	for _, output := range n.outputs {
		for _, use := range output.consumers {
			if !seen.Has(use.Node) {
				seen.Insert(use.Node)
				consumers = append(consumers, use.Node)
			}
		}
	}
	return consumers
}

// String implements fmt.Stringer, it pretty-prints the node with its inputs and outputs.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d %s", n.id, n.kind)
	if n.name != "" {
		fmt.Fprintf(&sb, "(%s)", n.name)
	}
	fmt.Fprintf(&sb, "(%s) -> (%s)",
		strings.Join(xslices.Map(n.inputs, (*Value).String), ", "),
		strings.Join(xslices.Map(n.outputs, (*Value).String), ", "))
	if len(n.origins) > 0 {
		fmt.Fprintf(&sb, " origins=%v", n.origins)
	}
	if len(n.attrs) > 0 {
		fmt.Fprintf(&sb, " %s", n.attrs.Pretty())
	}
	return sb.String()
}

// connectInput connects v to the input slot, disconnecting any previously connected value.
func (n *Node) connectInput(slot int, v *Value) {
	if old := n.inputs[slot]; old != nil {
		old.removeConsumer(n, slot)
	}
	n.inputs[slot] = v
	if v != nil {
		v.addConsumer(n, slot)
	}
}

// connectOutput makes v the output of n at the given offset. The previous output loses its producer.
func (n *Node) connectOutput(offset int, v *Value) {
	if old := n.outputs[offset]; old != nil && old != v {
		old.setProducer(nil, 0)
	}
	if prev := v.producer; prev != nil && prev != n {
		prev.outputs[v.producerOffset] = nil
	}
	n.outputs[offset] = v
	v.setProducer(n, offset)
}

// appendPostOpInput adds a trailing input slot connected to v, used by an absorbed post-op.
func (n *Node) appendPostOpInput(v *Value) {
	n.inputs = append(n.inputs, nil)
	n.postOpInputs++
	n.connectInput(len(n.inputs)-1, v)
}

// disconnectInputs removes n from the consumers of all its inputs.
func (n *Node) disconnectInputs() {
	for slot := range n.inputs {
		n.connectInput(slot, nil)
	}
}

// addOrigins merges ids into the origin ids of n.
func (n *Node) addOrigins(ids ...NodeId) {
	merged := sets.MakeWith(n.origins...)
	merged.Insert(ids...)
	n.origins = sets.Sorted(merged)
}
