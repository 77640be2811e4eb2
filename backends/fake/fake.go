// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fake implements a backend that claims every node it supports as its own single-node partition,
// without any fusion. It is useful for testing, and as a fallback for nodes no other backend claims.
//
// It registers itself with the lowest priority when the package is imported.
package fake

import (
	"github.com/gomlx/fusegraph/backends"
	"github.com/gomlx/fusegraph/pkg/core/fusion"
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/core/pattern"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in backends.Get.
const BackendName = "fake"

// Priority of the fake backend: lower than any real backend.
const Priority float32 = 0

func init() {
	backends.Register(New(BackendName, Priority))
}

// SupportedDTypes are the dtypes supported by the fake backend.
var SupportedDTypes = []dtypes.DType{
	dtypes.Bool, dtypes.Int8, dtypes.Int32, dtypes.Int64, dtypes.Uint8,
	dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
}

// Backend claims each supported node as a single-node partition.
type Backend struct {
	name         string
	priority     float32
	capabilities backends.Capabilities
	patterns     []*pattern.Descriptor
	executor     *fusion.Executor
}

// Compile-time check that Backend implements backends.Backend.
var _ backends.Backend = (*Backend)(nil)

// New creates a fake backend supporting the given kinds. If no kinds are given, it supports all
// non-internal kinds.
func New(name string, priority float32, kinds ...ir.Kind) *Backend {
	if len(kinds) == 0 {
		for _, k := range ir.KindValues() {
			if k != ir.KindInvalid && k != ir.KindLast && !k.Info().Internal {
				kinds = append(kinds, k)
			}
		}
	}
	b := &Backend{
		name:     name,
		priority: priority,
		capabilities: backends.Capabilities{
			Kinds:    make(map[ir.Kind]bool, len(kinds)),
			DTypes:   make(map[dtypes.DType]bool, len(SupportedDTypes)),
			Policies: map[backends.Policy]bool{backends.PolicyFusion: true, backends.PolicyDebug: true},
		},
		executor: fusion.NewExecutor(name),
	}
	for _, k := range kinds {
		b.capabilities.Kinds[k] = true
	}
	for _, dtype := range SupportedDTypes {
		b.capabilities.DTypes[dtype] = true
	}
	return b
}

// Name implements backends.Backend.
func (b *Backend) Name() string { return b.name }

// Priority implements backends.Backend.
func (b *Backend) Priority() float32 { return b.priority }

// Capabilities implements backends.Backend.
func (b *Backend) Capabilities() backends.Capabilities { return b.capabilities.Clone() }

// RegisterPasses creates one single-node pattern per supported kind.
func (b *Backend) RegisterPasses() bool {
	b.patterns = b.patterns[:0]
	supports := func(node *ir.Node) bool { return b.capabilities.Supports(node) }
	for _, k := range ir.KindValues() {
		if !b.capabilities.Kinds[k] {
			continue
		}
		p, err := pattern.NewBuilder(b.name+"_"+k.String()).
			Node("op", []ir.Kind{k}, supports).
			Anchor("op").
			Build()
		if err != nil {
			klog.Errorf("backend %q: %+v", b.name, err)
			return false
		}
		b.patterns = append(b.patterns, p)
	}
	return true
}

// GetPartitions implements backends.Backend. Both policies create one partition per supported node.
func (b *Backend) GetPartitions(g *ir.Graph, policy backends.Policy) error {
	if err := backends.CheckPolicy(b, policy); err != nil {
		return err
	}
	var count int
	for _, p := range b.patterns {
		matches := pattern.FindMatches(g, p)
		pattern.MarkMatched(matches)
		partitions, err := b.executor.FuseAll(g, matches)
		count += len(partitions)
		if err != nil {
			return errors.WithMessagef(err, "backend %q", b.name)
		}
	}
	klog.V(1).Infof("backend %q: %d partitions in graph %q", b.name, count, g.Name())
	return nil
}
