// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/fusegraph/pkg/support/sets"
	"github.com/gomlx/fusegraph/pkg/support/xslices"
	"github.com/pkg/errors"
)

// PartitionId identifies a partition within its graph.
type PartitionId int

// Partition is a group of nodes of a graph assigned to one backend for compilation.
//
// The partition holds a fused node (not part of the graph node list) whose inputs and outputs are the
// boundary values of the group, in contract order: backends rely on this order to map the compiled kernel
// arguments to the original external inputs.
type Partition struct {
	id      PartitionId
	graph   *Graph
	backend string
	engine  EngineKind
	fused   *Node
	members []*Node
	frozen  bool
}

// RegisterPartition registers a new partition of the graph, owned by backend, made of the given member
// nodes and described by the (detached) fused node.
//
// Members are marked as owned by the new partition, but are kept in the graph node list.
// It returns an error wrapping ErrInvalidArgument if members is empty, if the fused node is not a detached
// KindFused node, or if any member is not in the graph or is already owned by a partition.
func (g *Graph) RegisterPartition(backend string, fused *Node, members []*Node) (*Partition, error) {
	if fused == nil || fused.kind != KindFused || fused.graph != nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "Graph(%q).RegisterPartition: %s is not a detached fused node",
			g.name, fused)
	}
	if len(members) == 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "Graph(%q).RegisterPartition: no member nodes", g.name)
	}
	seen := sets.Make[*Node](len(members))
	for _, node := range members {
		switch {
		case node == nil || node.graph != g:
			return nil, errors.Wrapf(ErrInvalidArgument, "Graph(%q).RegisterPartition: node %s is not part of the graph",
				g.name, node)
		case node.partition != nil:
			return nil, errors.Wrapf(ErrInvalidArgument,
				"Graph(%q).RegisterPartition: node %s already belongs to partition %d", g.name, node, node.partition.id)
		case seen.Has(node):
			return nil, errors.Wrapf(ErrInvalidArgument, "Graph(%q).RegisterPartition: node %s listed twice",
				g.name, node)
		}
		seen.Insert(node)
	}
	p := &Partition{
		id:      PartitionId(len(g.partitions)),
		graph:   g,
		backend: backend,
		engine:  g.engine,
		fused:   fused,
		members: slices.Clone(members),
	}
	for _, node := range members {
		node.partition = p
	}
	g.partitions = append(g.partitions, p)
	return p, nil
}

// Partitions returns the registered partitions, in registration order.
func (g *Graph) Partitions() []*Partition { return slices.Clone(g.partitions) }

// NumPartitions returns the number of registered partitions.
func (g *Graph) NumPartitions() int { return len(g.partitions) }

// Partition returns the partition with the given id, or nil if it doesn't exist.
func (g *Graph) Partition(id PartitionId) *Partition {
	if id < 0 || int(id) >= len(g.partitions) {
		return nil
	}
	return g.partitions[id]
}

// Id of the partition, unique within its graph.
func (p *Partition) Id() PartitionId { return p.id }

// Graph the partition was registered on.
func (p *Partition) Graph() *Graph { return p.graph }

// Backend name owning the partition.
func (p *Partition) Backend() string { return p.backend }

// Engine kind the partition targets.
func (p *Partition) Engine() EngineKind { return p.engine }

// FusedNode returns the node describing the partition. It is not part of the graph node list.
func (p *Partition) FusedNode() *Node { return p.fused }

// Members returns the member nodes, in the order they were registered.
func (p *Partition) Members() []*Node { return slices.Clone(p.members) }

// NodeIds returns the ids of the member nodes plus the origin ids of the fused node, sorted and unique.
func (p *Partition) NodeIds() []NodeId {
	ids := sets.MakeWith(p.fused.origins...)
	for _, node := range p.members {
		ids.Insert(node.id)
		ids.Insert(node.origins...)
	}
	return sets.Sorted(ids)
}

// Inputs returns the boundary input values, in contract order.
func (p *Partition) Inputs() []*Value { return p.fused.Inputs() }

// Outputs returns the boundary output values, in contract order.
func (p *Partition) Outputs() []*Value { return p.fused.Outputs() }

// Freeze marks the partition as consumed by a backend compiler: its boundary can no longer be changed.
func (p *Partition) Freeze() { p.frozen = true }

// IsFrozen returns whether Freeze was called.
func (p *Partition) IsFrozen() bool { return p.frozen }

// BindInputsOutputs binds the concrete descriptors given by the caller to the placeholder boundary values of the
// partition.
//
// Either every value is bound, or (on error) none is.
// It returns an error wrapping ErrShapeMismatch if counts or shapes are not compatible,
// and ErrInvalidArgument if the partition is frozen.
func (p *Partition) BindInputsOutputs(inputs, outputs []TensorDesc) error {
	if p.frozen {
		return errors.Wrapf(ErrInvalidArgument, "partition %d is frozen, its boundary can't be bound", p.id)
	}
	if err := BindBoundary(p.fused.inputs, p.fused.outputs, inputs, outputs); err != nil {
		return errors.WithMessagef(err, "partition %d", p.id)
	}
	return nil
}

// BoundaryMemory returns the total number of bytes of the boundary values, skipping the ones with
// dynamic shapes.
func (p *Partition) BoundaryMemory() uintptr {
	var total uintptr
	for _, v := range p.fused.inputs {
		total += v.Shape().Memory()
	}
	for _, v := range p.fused.outputs {
		total += v.Shape().Memory()
	}
	return total
}

// String implements fmt.Stringer.
func (p *Partition) String() string {
	kinds := xslices.Map(p.members, func(n *Node) string { return n.kind.String() })
	return fmt.Sprintf("Partition #%d [%s/%s]: {%s}, nodes=%v, %d inputs, %d outputs, boundary=%s",
		p.id, p.backend, p.engine, strings.Join(kinds, ", "), p.NodeIds(),
		len(p.fused.inputs), len(p.fused.outputs), humanize.Bytes(uint64(p.BoundaryMemory())))
}

// CheckBindAll checks that each of the given descriptors can be bound to the corresponding value,
// see Value.CheckBind. Counts must match.
func CheckBindAll(values []*Value, given []TensorDesc) error {
	if len(values) != len(given) {
		return errors.Wrapf(ErrShapeMismatch, "%d values, but %d descriptors given", len(values), len(given))
	}
	for ii, v := range values {
		if err := v.CheckBind(given[ii]); err != nil {
			return errors.WithMessagef(err, "#%d", ii)
		}
	}
	return nil
}

// BindBoundary binds the given descriptors to the corresponding input and output values.
//
// Either every value is bound, or none is: it returns an error wrapping ErrShapeMismatch if counts differ or
// a descriptor is not compatible with the value it is bound to (see Value.CheckBind).
func BindBoundary(inputs, outputs []*Value, givenInputs, givenOutputs []TensorDesc) error {
	if err := CheckBindAll(inputs, givenInputs); err != nil {
		return errors.WithMessage(err, "binding given inputs")
	}
	if err := CheckBindAll(outputs, givenOutputs); err != nil {
		return errors.WithMessage(err, "binding given outputs")
	}
	for ii, v := range inputs {
		v.bind(givenInputs[ii])
	}
	for ii, v := range outputs {
		v.bind(givenOutputs[ii])
	}
	return nil
}
