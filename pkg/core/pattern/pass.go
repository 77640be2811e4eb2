// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pattern

import (
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"k8s.io/klog/v2"
)

// Pass is a named, ordered list of patterns.
type Pass struct {
	Name     string
	Patterns []*Descriptor
}

// NewPass creates a pass with the given patterns, tried in order.
func NewPass(name string, patterns ...*Descriptor) *Pass {
	return &Pass{Name: name, Patterns: patterns}
}

// Run matches each pattern in order, marking the nodes of the matches found (see MarkMatched) before
// trying the next pattern, so a node is claimed by at most one match of the pass.
//
// It returns all matches, in the order they were found.
func (pass *Pass) Run(g *ir.Graph) []*Match {
	var all []*Match
	for _, p := range pass.Patterns {
		matches := FindMatches(g, p)
		MarkMatched(matches)
		all = append(all, matches...)
		klog.V(2).Infof("pass %q: pattern %q matched %d times", pass.Name, p.Name(), len(matches))
	}
	klog.V(1).Infof("pass %q on graph %q: %d matches", pass.Name, g.Name(), len(all))
	return all
}
