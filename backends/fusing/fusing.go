// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fusing implements a backend that fuses common operation chains (convolution or matmul followed by
// bias and activation, binary ops followed by elementwise ops) into single partitions, and claims the
// remaining supported nodes as single-node partitions.
//
// It registers itself when the package is imported.
package fusing

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
const BackendName = "fusing"

// Priority of the fusing backend, higher than the fake backend.
const Priority float32 = 10

func init() {
	backends.Register(New())
}

// Backend fuses pattern matches into partitions.
type Backend struct {
	capabilities backends.Capabilities
	passes       []*pattern.Pass
	executor     *fusion.Executor
}

// Compile-time check that Backend implements backends.Backend.
var _ backends.Backend = (*Backend)(nil)

// SupportedKinds lists the kinds the fusing backend claims.
var SupportedKinds = []ir.Kind{
	ir.KindConvolution, ir.KindMatMul, ir.KindBiasAdd, ir.KindBatchNorm,
	ir.KindAdd, ir.KindSubtract, ir.KindMultiply, ir.KindDivide, ir.KindMaximum, ir.KindMinimum,
	ir.KindAbs, ir.KindClamp, ir.KindElu, ir.KindErf, ir.KindExp, ir.KindGELU, ir.KindLog, ir.KindReLU,
	ir.KindRound, ir.KindSigmoid, ir.KindSqrt, ir.KindTanh,
	ir.KindMaxPool, ir.KindAvgPool, ir.KindSoftMax, ir.KindToGroup,
}

// SupportedDTypes lists the dtypes the fusing backend supports.
var SupportedDTypes = []dtypes.DType{dtypes.Float32, dtypes.BFloat16, dtypes.Float16, dtypes.Int8, dtypes.Uint8}

// New creates a new fusing backend, with its passes not yet registered.
func New(opts ...fusion.Option) *Backend {
	b := &Backend{
		capabilities: backends.Capabilities{
			Kinds:    make(map[ir.Kind]bool, len(SupportedKinds)),
			DTypes:   make(map[dtypes.DType]bool, len(SupportedDTypes)),
			Policies: map[backends.Policy]bool{backends.PolicyFusion: true, backends.PolicyDebug: true},
		},
		executor: fusion.NewExecutor(BackendName, opts...),
	}
	for _, k := range SupportedKinds {
		b.capabilities.Kinds[k] = true
	}
	for _, dtype := range SupportedDTypes {
		b.capabilities.DTypes[dtype] = true
	}
	return b
}

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// Priority implements backends.Backend.
func (b *Backend) Priority() float32 { return Priority }

// Capabilities implements backends.Backend.
func (b *Backend) Capabilities() backends.Capabilities { return b.capabilities.Clone() }

// Passes returns the registered passes, in the order they run.
func (b *Backend) Passes() []*pattern.Pass { return b.passes }

// RegisterPasses implements backends.Backend.
func (b *Backend) RegisterPasses() bool {
	passes, err := buildPasses(b.capabilities.Supports)
	if err != nil {
		klog.Errorf("backend %q: %+v", BackendName, err)
		return false
	}
	b.passes = passes
	return true
}

// GetPartitions implements backends.Backend.
//
// With PolicyFusion it canonicalizes grouped convolutions, runs the fusion passes in order and then claims
// the remaining supported nodes one by one. With PolicyDebug it only claims single nodes.
func (b *Backend) GetPartitions(g *ir.Graph, policy backends.Policy) error {
	if err := backends.CheckPolicy(b, policy); err != nil {
		return err
	}
	if policy == backends.PolicyFusion {
		if n := InsertToGroup(g); n > 0 {
			klog.V(1).Infof("backend %q: inserted %d to_group nodes in graph %q", BackendName, n, g.Name())
		}
		for _, pass := range b.passes {
			partitions, err := b.executor.FuseAll(g, pass.Run(g))
			if err != nil {
				return errors.WithMessagef(err, "backend %q, pass %q", BackendName, pass.Name)
			}
			for _, p := range partitions {
				b.prepare(p, pass.Name)
			}
		}
	}
	for _, node := range g.Nodes() {
		if node.Partition() != nil || node.IsMatched() || !b.capabilities.Supports(node) {
			continue
		}
		p, err := b.executor.FuseSingle(g, node)
		if err != nil {
			return errors.WithMessagef(err, "backend %q", BackendName)
		}
		b.prepare(p, "single")
	}
	return nil
}

// prepare marks the layouts and constants of the partition's subgraph, and dumps it if enabled.
func (b *Backend) prepare(p *ir.Partition, passName string) {
	members := p.Members()
	visualizer := fusion.NewSubgraphVisualizer(p.Id())
	if err := visualizer.Run(members, passName+"_before", false); err != nil {
		klog.Warningf("backend %q: %v", BackendName, err)
	}
	fusion.SetAllLayoutToAny(members)
	fusion.SetWeightBiasConstant(members)
	if err := visualizer.Run(members, passName+"_after", true); err != nil {
		klog.Warningf("backend %q: %v", BackendName, err)
	}
}
