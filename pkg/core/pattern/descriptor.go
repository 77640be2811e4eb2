// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pattern describes small template graphs (patterns) and finds where they occur in an ir.Graph.
//
// Patterns are built with a Builder, validated once at Build time, and are immutable afterwards: a
// Descriptor can be shared among goroutines matching different graphs.
package pattern

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/support/sets"
	"github.com/gomlx/fusegraph/pkg/support/xslices"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Edge of a pattern: output OutSlot of the pattern node Producer feeds the input InSlot of the pattern node
// Consumer. Producer and Consumer are indices in Descriptor.Nodes.
type Edge struct {
	Producer, OutSlot int
	Consumer, InSlot  int
}

// Node of a pattern: it accepts real nodes of one of its kinds that satisfy all its predicates.
type Node struct {
	Name       string
	kinds      sets.Set[ir.Kind]
	kindList   []ir.Kind
	predicates []Predicate
}

// AcceptsAnyKind returns whether the pattern node accepts any node kind.
func (pn *Node) AcceptsAnyKind() bool { return len(pn.kinds) == 0 }

// Kinds returns the kinds accepted by the pattern node, empty if it accepts any kind.
func (pn *Node) Kinds() []ir.Kind { return slices.Clone(pn.kindList) }

// Accepts returns whether node has one of the accepted kinds and satisfies all the predicates.
// It doesn't check whether the node was already claimed.
func (pn *Node) Accepts(node *ir.Node) bool {
	if node == nil || node.Kind() == ir.KindFused {
		return false
	}
	if len(pn.kinds) > 0 && !pn.kinds.Has(node.Kind()) {
		return false
	}
	for _, pred := range pn.predicates {
		if !pred(node) {
			return false
		}
	}
	return true
}

// Descriptor is a validated, immutable pattern.
type Descriptor struct {
	name   string
	nodes  []*Node
	edges  []Edge
	anchor int

	// steps is the order in which pattern nodes are bound, starting from the anchor.
	steps []step
}

// step binds pattern node Target by following edge Edge from an already bound pattern node.
// If FromConsumer, Target is the producer side of Edge.
type step struct {
	Target       int
	Edge         Edge
	FromConsumer bool
}

// Name of the pattern.
func (p *Descriptor) Name() string { return p.name }

// NumNodes returns the number of pattern nodes.
func (p *Descriptor) NumNodes() int { return len(p.nodes) }

// Nodes returns the pattern nodes, in the order they were declared.
func (p *Descriptor) Nodes() []*Node { return slices.Clone(p.nodes) }

// Edges returns the pattern edges, in the order they were declared.
func (p *Descriptor) Edges() []Edge { return slices.Clone(p.edges) }

// Anchor returns the index of the anchor pattern node.
func (p *Descriptor) Anchor() int { return p.anchor }

// NodeIndex returns the index of the pattern node with the given name, or -1.
func (p *Descriptor) NodeIndex(name string) int {
	return xslices.Index(p.nodes, func(pn *Node) bool { return pn.Name == name })
}

// String implements fmt.Stringer.
func (p *Descriptor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pattern %q: anchor=%s", p.name, p.nodes[p.anchor].Name)
	for _, pn := range p.nodes {
		kinds := "*"
		if !pn.AcceptsAnyKind() {
			kinds = strings.Join(xslices.Map(pn.kindList, ir.Kind.String), "|")
		}
		fmt.Fprintf(&sb, "\n\t%s: %s", pn.Name, kinds)
	}
	for _, e := range p.edges {
		fmt.Fprintf(&sb, "\n\t%s[%d] -> %s[%d]", p.nodes[e.Producer].Name, e.OutSlot, p.nodes[e.Consumer].Name, e.InSlot)
	}
	return sb.String()
}

// Builder of pattern Descriptors. Errors are reported by Build.
type Builder struct {
	name       string
	nodes      []*Node
	edgeNames  []edgeByName
	anchorName string
	err        error
}

type edgeByName struct {
	producer, consumer string
	outSlot, inSlot    int
}

// NewBuilder starts the description of a pattern with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Node adds a pattern node with a unique name, accepting any of the given kinds (any kind if kinds is empty or
// includes ir.KindWildcard), and satisfying all the given predicates.
func (b *Builder) Node(name string, kinds []ir.Kind, predicates ...Predicate) *Builder {
	if b.err != nil {
		return b
	}
	if slices.ContainsFunc(b.nodes, func(pn *Node) bool { return pn.Name == name }) {
		b.err = errors.Wrapf(ir.ErrInvalidArgument, "pattern %q: node %q defined twice", b.name, name)
		return b
	}
	pn := &Node{Name: name, kinds: sets.Make[ir.Kind](), predicates: slices.Clone(predicates)}
	if !slices.Contains(kinds, ir.KindWildcard) {
		for _, k := range kinds {
			if !pn.kinds.Has(k) {
				pn.kinds.Insert(k)
				pn.kindList = append(pn.kindList, k)
			}
		}
	}
	b.nodes = append(b.nodes, pn)
	return b
}

// Edge adds a pattern edge: the output outSlot of producer must feed the input inSlot of consumer.
func (b *Builder) Edge(producer string, outSlot int, consumer string, inSlot int) *Builder {
	b.edgeNames = append(b.edgeNames, edgeByName{producer: producer, outSlot: outSlot, consumer: consumer, inSlot: inSlot})
	return b
}

// Anchor sets the pattern node matching starts from.
func (b *Builder) Anchor(name string) *Builder {
	b.anchorName = name
	return b
}

// Build validates the pattern and returns the immutable Descriptor.
//
// It returns an error wrapping ir.ErrInvalidArgument if the pattern is malformed: no nodes, no anchor,
// edges referencing unknown nodes or negative slots, an input slot fed twice, cycles (including self-edges)
// or nodes not connected to the anchor.
func (b *Builder) Build() (*Descriptor, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.nodes) == 0 {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q has no nodes", b.name)
	}
	p := &Descriptor{name: b.name, nodes: slices.Clone(b.nodes)}
	if b.anchorName == "" {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q has no anchor", b.name)
	}
	p.anchor = p.NodeIndex(b.anchorName)
	if p.anchor < 0 {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q: anchor %q is not a node", b.name, b.anchorName)
	}

	type slotKey struct{ consumer, inSlot int }
	fed := sets.Make[slotKey]()
	for _, en := range b.edgeNames {
		e := Edge{Producer: p.NodeIndex(en.producer), OutSlot: en.outSlot, Consumer: p.NodeIndex(en.consumer), InSlot: en.inSlot}
		switch {
		case e.Producer < 0:
			return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q: edge from unknown node %q", b.name, en.producer)
		case e.Consumer < 0:
			return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q: edge to unknown node %q", b.name, en.consumer)
		case e.OutSlot < 0 || e.InSlot < 0:
			return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q: edge %s[%d] -> %s[%d] has a negative slot",
				b.name, en.producer, en.outSlot, en.consumer, en.inSlot)
		case e.Producer == e.Consumer:
			return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q: self-edge on node %q is a cycle",
				b.name, en.producer)
		case fed.Has(slotKey{e.Consumer, e.InSlot}):
			return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q: input %d of %q is fed by more than one edge",
				b.name, en.inSlot, en.consumer)
		}
		fed.Insert(slotKey{e.Consumer, e.InSlot})
		p.edges = append(p.edges, e)
	}

	dg := simple.NewDirectedGraph()
	for ii := range p.nodes {
		dg.AddNode(simple.Node(ii))
	}
	for _, e := range p.edges {
		dg.SetEdge(dg.NewEdge(simple.Node(e.Producer), simple.Node(e.Consumer)))
	}
	if _, err := topo.Sort(dg); err != nil {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q has a cycle: %v", b.name, err)
	}

	p.steps = p.bindingSteps()
	if len(p.steps)+1 != len(p.nodes) {
		for ii, pn := range p.nodes {
			if ii != p.anchor && !slices.ContainsFunc(p.steps, func(s step) bool { return s.Target == ii }) {
				return nil, errors.Wrapf(ir.ErrInvalidArgument, "pattern %q: node %q is not connected to the anchor %q",
					b.name, pn.Name, b.anchorName)
			}
		}
	}
	return p, nil
}

// MustBuild is like Build, but panics on error. Used for patterns defined statically.
func (b *Builder) MustBuild() *Descriptor {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// bindingSteps does a breadth-first walk of the pattern (ignoring edge direction) from the anchor,
// following edges in declaration order.
func (p *Descriptor) bindingSteps() []step {
	var steps []step
	bound := sets.MakeWith(p.anchor)
	queue := []int{p.anchor}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range p.edges {
			var s step
			switch {
			case e.Consumer == current && !bound.Has(e.Producer):
				s = step{Target: e.Producer, Edge: e, FromConsumer: true}
			case e.Producer == current && !bound.Has(e.Consumer):
				s = step{Target: e.Consumer, Edge: e}
			default:
				continue
			}
			bound.Insert(s.Target)
			steps = append(steps, s)
			queue = append(queue, s.Target)
		}
	}
	return steps
}
