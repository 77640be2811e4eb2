// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/fusegraph/pkg/core/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Layout tags how a tensor is laid out in memory.
type Layout int

const (
	LayoutUndef Layout = iota
	LayoutStrided
	LayoutOpaque

	// LayoutAny means the layout is unconstrained: it is decided later by a backend.
	LayoutAny
)

// String implements fmt.Stringer.
func (l Layout) String() string {
	switch l {
	case LayoutUndef:
		return "undef"
	case LayoutStrided:
		return "strided"
	case LayoutOpaque:
		return "opaque"
	case LayoutAny:
		return "any"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// TensorDesc describes a tensor: its shape (dtype and dimensions) and layout.
type TensorDesc struct {
	Shape  shapes.Shape
	Layout Layout
}

// Strided returns a TensorDesc with a strided layout for a shape with the given dtype and dimensions.
func Strided(dtype dtypes.DType, dimensions ...int) TensorDesc {
	return TensorDesc{Shape: shapes.Make(dtype, dimensions...), Layout: LayoutStrided}
}

// String implements fmt.Stringer.
func (d TensorDesc) String() string {
	return fmt.Sprintf("%s/%s", d.Shape, d.Layout)
}

// Clone returns a deep copy of the descriptor.
func (d TensorDesc) Clone() TensorDesc {
	return TensorDesc{Shape: d.Shape.Clone(), Layout: d.Layout}
}

// ValueId is globally unique.
type ValueId int64

var (
	muValueCount sync.Mutex
	valueCount   ValueId
)

func nextValueId() ValueId {
	muValueCount.Lock()
	defer muValueCount.Unlock()
	valueCount++
	return valueCount
}

// Use is a (non-owning) reference to a consumer of a Value: the consuming node and the input slot.
type Use struct {
	Node   *Node
	Offset int
}

// Value is a tensor flowing between nodes.
//
// It has at most one producer (the node that owns it, and its output offset) and an ordered list of consumers.
// Values without a producer are leaves of the graph: inputs, weights, biases.
type Value struct {
	id   ValueId
	desc TensorDesc

	producer       *Node
	producerOffset int
	consumers      []Use

	attrs Attrs
}

// NewValue creates a leaf value (without producer) with the given descriptor.
func NewValue(desc TensorDesc) *Value {
	return &Value{id: nextValueId(), desc: desc.Clone(), attrs: make(Attrs)}
}

// Id is the globally unique id of the value.
func (v *Value) Id() ValueId { return v.id }

// Desc returns the tensor descriptor of the value.
func (v *Value) Desc() TensorDesc { return v.desc }

// Shape of the value.
func (v *Value) Shape() shapes.Shape { return v.desc.Shape }

// DType of the value.
func (v *Value) DType() dtypes.DType { return v.desc.Shape.DType }

// Layout of the value.
func (v *Value) Layout() Layout { return v.desc.Layout }

// SetLayout changes the layout tag of the value. Used by layout propagation passes.
func (v *Value) SetLayout(layout Layout) { v.desc.Layout = layout }

// HasProducer returns whether the value is produced by a node.
func (v *Value) HasProducer() bool { return v.producer != nil }

// Producer returns the node producing the value, or nil for leaf values.
func (v *Value) Producer() *Node { return v.producer }

// ProducerOffset returns the output offset of the value in its producer, or -1 for leaf values.
func (v *Value) ProducerOffset() int {
	if v.producer == nil {
		return -1
	}
	return v.producerOffset
}

// Consumers returns a copy of the list of uses of the value, in the order they were connected.
func (v *Value) Consumers() []Use { return slices.Clone(v.consumers) }

// NumConsumers returns the number of uses of the value.
func (v *Value) NumConsumers() int { return len(v.consumers) }

// Attrs returns the attributes of the value. The map can be read but should be changed with SetAttr.
func (v *Value) Attrs() Attrs { return v.attrs }

// SetAttr sets an attribute on the value.
func (v *Value) SetAttr(key string, attr Attr) error {
	if key == AttrConstant && attr.Type() != AttrBool {
		return errors.Wrapf(ErrTypeMismatch, "value attribute %q must be a bool, got %s", key, attr.Type())
	}
	v.attrs[key] = attr
	return nil
}

// IsConstant returns whether the value was marked as constant (see AttrConstant).
func (v *Value) IsConstant() bool { return v.attrs.BoolOr(AttrConstant, false) }

// CheckBind checks whether the given descriptor can be bound to v, see Bind.
// It returns an error wrapping ErrShapeMismatch if not.
func (v *Value) CheckBind(given TensorDesc) error {
	if err := v.desc.Shape.CheckCompatible(given.Shape); err != nil {
		return errors.Wrapf(ErrShapeMismatch, "value #%d: %v", v.id, err)
	}
	return nil
}

// Bind replaces the (placeholder) descriptor of the value by the given concrete one.
// The layout is only replaced if the given one is not LayoutUndef.
//
// It returns an error wrapping ErrShapeMismatch, and leaves v unchanged, if given is not compatible.
func (v *Value) Bind(given TensorDesc) error {
	if err := v.CheckBind(given); err != nil {
		return err
	}
	v.bind(given)
	return nil
}

// bind is Bind without the compatibility check.
func (v *Value) bind(given TensorDesc) {
	v.desc.Shape = given.Shape.Clone()
	if given.Layout != LayoutUndef {
		v.desc.Layout = given.Layout
	}
}

// String implements fmt.Stringer.
func (v *Value) String() string {
	if v == nil {
		return "Value(nil)"
	}
	return fmt.Sprintf("v%d%s", v.id, v.desc)
}

func (v *Value) addConsumer(node *Node, offset int) {
	v.consumers = append(v.consumers, Use{Node: node, Offset: offset})
}

func (v *Value) removeConsumer(node *Node, offset int) {
	v.consumers = slices.DeleteFunc(v.consumers, func(u Use) bool {
		return u.Node == node && u.Offset == offset
	})
}

func (v *Value) setProducer(node *Node, offset int) {
	v.producer = node
	v.producerOffset = offset
}
