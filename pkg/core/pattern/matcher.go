// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pattern

import (
	"fmt"
	"strings"

	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/support/sets"
	"k8s.io/klog/v2"
)

// Match is one occurrence of a pattern in a graph.
type Match struct {
	Pattern *Descriptor

	// Nodes holds the real node bound to each pattern node, indexed like Pattern.Nodes().
	Nodes []*ir.Node

	// Generation of the graph when the match was found. The match is only valid while the graph is not
	// structurally changed.
	Generation int
}

// Anchor returns the node bound to the anchor of the pattern.
func (m *Match) Anchor() *ir.Node { return m.Nodes[m.Pattern.anchor] }

// Node returns the node bound to the pattern node with the given name, or nil.
func (m *Match) Node(name string) *ir.Node {
	idx := m.Pattern.NodeIndex(name)
	if idx < 0 {
		return nil
	}
	return m.Nodes[idx]
}

// String implements fmt.Stringer.
func (m *Match) String() string {
	parts := make([]string, len(m.Nodes))
	for ii, node := range m.Nodes {
		parts[ii] = fmt.Sprintf("%s=#%d", m.Pattern.nodes[ii].Name, node.Id())
	}
	return fmt.Sprintf("%s{%s}", m.Pattern.name, strings.Join(parts, ", "))
}

// FindMatches finds the non-overlapping occurrences of the pattern in the graph.
//
// Candidate anchors are visited with ir.Graph.TopoOrderVisit, and each match is extended from the anchor
// following the pattern edges, with backtracking over consumers. Nodes marked with ir.AttrMatchedPattern,
// nodes owned by a partition and nodes claimed by an earlier match of the same call are never bound. Bindings
// whose nodes are connected through a node outside the match (see ir.IsConvex) are rejected.
//
// Match doesn't change the graph: for an unchanged graph it returns the same matches in the same order.
// An empty result is not an error, it only means there is no fusion opportunity.
func FindMatches(g *ir.Graph, p *Descriptor) []*Match {
	var matches []*Match
	claimed := sets.Make[*ir.Node]()
	_ = g.TopoOrderVisit(func(candidate *ir.Node) error {
		m := &matcher{g: g, p: p, claimed: claimed, bound: make([]*ir.Node, len(p.nodes)), used: sets.Make[*ir.Node]()}
		if !m.bindIfAccepted(p.anchor, candidate) {
			return nil
		}
		if !m.extend(0) {
			return nil
		}
		match := &Match{Pattern: p, Nodes: m.bound, Generation: g.Generation()}
		claimed.Insert(match.Nodes...)
		matches = append(matches, match)
		if klog.V(2).Enabled() {
			klog.Infof("pattern %q matched %s", p.name, match)
		}
		return nil
	})
	return matches
}

// MarkMatched marks every node of the matches with ir.AttrMatchedPattern, so later matches don't claim them.
func MarkMatched(matches []*Match) {
	for _, match := range matches {
		for _, node := range match.Nodes {
			node.MustSetAttr(ir.AttrMatchedPattern, ir.Bool(true))
		}
	}
}

// matcher holds the state of one match attempt.
type matcher struct {
	g       *ir.Graph
	p       *Descriptor
	claimed sets.Set[*ir.Node]
	bound   []*ir.Node
	used    sets.Set[*ir.Node]
}

// available returns whether node can be bound in this attempt.
func (m *matcher) available(node *ir.Node) bool {
	return node != nil && node.Graph() == m.g && !m.used.Has(node) && !m.claimed.Has(node) &&
		!node.IsMatched() && node.Partition() == nil
}

func (m *matcher) bindIfAccepted(patternIdx int, node *ir.Node) bool {
	if !m.available(node) || !m.p.nodes[patternIdx].Accepts(node) {
		return false
	}
	m.bound[patternIdx] = node
	m.used.Insert(node)
	return true
}

func (m *matcher) unbind(patternIdx int) {
	delete(m.used, m.bound[patternIdx])
	m.bound[patternIdx] = nil
}

// extend binds the pattern nodes from steps[stepIdx] onwards. On failure, it leaves the binding as it was.
func (m *matcher) extend(stepIdx int) bool {
	if stepIdx == len(m.p.steps) {
		return m.verifyEdges() && ir.IsConvex(m.bound)
	}
	s := m.p.steps[stepIdx]
	e := s.Edge
	if s.FromConsumer {
		// The target is the producer of the consumer's input.
		consumer := m.bound[e.Consumer]
		if e.InSlot >= consumer.NumInputs() {
			return false
		}
		v := consumer.Input(e.InSlot)
		if v == nil || v.ProducerOffset() != e.OutSlot {
			return false
		}
		if !m.bindIfAccepted(s.Target, v.Producer()) {
			return false
		}
		if m.extend(stepIdx + 1) {
			return true
		}
		m.unbind(s.Target)
		return false
	}

	// The target is one of the consumers of the producer's output.
	producer := m.bound[e.Producer]
	if e.OutSlot >= producer.NumOutputs() {
		return false
	}
	for _, use := range producer.Output(e.OutSlot).Consumers() {
		if use.Offset != e.InSlot || !m.bindIfAccepted(s.Target, use.Node) {
			continue
		}
		if m.extend(stepIdx + 1) {
			return true
		}
		m.unbind(s.Target)
	}
	return false
}

// verifyEdges checks every pattern edge against the bound nodes, including the ones not used to bind them.
func (m *matcher) verifyEdges() bool {
	for _, e := range m.p.edges {
		consumer, producer := m.bound[e.Consumer], m.bound[e.Producer]
		if e.InSlot >= consumer.NumInputs() {
			return false
		}
		v := consumer.Input(e.InSlot)
		if v == nil || v.Producer() != producer || v.ProducerOffset() != e.OutSlot {
			return false
		}
	}
	return true
}
