// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fusing

import (
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/core/pattern"
	"github.com/gomlx/fusegraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

var (
	binaryKinds  = []ir.Kind{ir.KindAdd, ir.KindSubtract, ir.KindMultiply, ir.KindDivide, ir.KindMaximum, ir.KindMinimum}
	eltwiseKinds = []ir.Kind{
		ir.KindAbs, ir.KindClamp, ir.KindElu, ir.KindErf, ir.KindExp, ir.KindGELU, ir.KindLog, ir.KindReLU,
		ir.KindRound, ir.KindSigmoid, ir.KindSqrt, ir.KindTanh,
	}
)

// buildPasses returns the fusion passes, in the order they run. Within a pass, longer patterns come first,
// so they claim their nodes before shorter ones.
func buildPasses(supports pattern.Predicate) ([]*pattern.Pass, error) {
	internal := []pattern.Predicate{supports, pattern.NumConsumers(1)}
	last := []pattern.Predicate{supports}
	bias := []pattern.Predicate{supports, pattern.NumConsumers(1), pattern.InputIsLeaf(1)}
	lastBias := []pattern.Predicate{supports, pattern.InputIsLeaf(1)}

	var firstErr error
	build := func(b *pattern.Builder) *pattern.Descriptor {
		p, err := b.Build()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return p
	}
	convBiasReLU := build(pattern.NewBuilder("conv_bias_relu").
		Node("conv", []ir.Kind{ir.KindConvolution}, internal...).
		Node("bias", []ir.Kind{ir.KindBiasAdd}, bias...).
		Node("relu", []ir.Kind{ir.KindReLU}, last...).
		Edge("conv", 0, "bias", 0).
		Edge("bias", 0, "relu", 0).
		Anchor("relu"))
	convReLU := build(pattern.NewBuilder("conv_relu").
		Node("conv", []ir.Kind{ir.KindConvolution}, internal...).
		Node("relu", []ir.Kind{ir.KindReLU}, last...).
		Edge("conv", 0, "relu", 0).
		Anchor("relu"))
	matmulBiasReLU := build(pattern.NewBuilder("matmul_bias_relu").
		Node("matmul", []ir.Kind{ir.KindMatMul}, internal...).
		Node("bias", []ir.Kind{ir.KindAdd, ir.KindBiasAdd}, bias...).
		Node("relu", []ir.Kind{ir.KindReLU}, last...).
		Edge("matmul", 0, "bias", 0).
		Edge("bias", 0, "relu", 0).
		Anchor("relu"))
	matmulBias := build(pattern.NewBuilder("matmul_bias").
		Node("matmul", []ir.Kind{ir.KindMatMul}, internal...).
		Node("bias", []ir.Kind{ir.KindAdd, ir.KindBiasAdd}, lastBias...).
		Edge("matmul", 0, "bias", 0).
		Anchor("bias"))
	binaryEltwise := build(pattern.NewBuilder("binary_eltwise").
		Node("binary", binaryKinds, internal...).
		Node("eltwise", eltwiseKinds, last...).
		Edge("binary", 0, "eltwise", 0).
		Anchor("eltwise"))
	if firstErr != nil {
		return nil, errors.WithMessage(firstErr, "failed to build fusion patterns")
	}
	return []*pattern.Pass{
		pattern.NewPass("conv_fusion", convBiasReLU, convReLU),
		pattern.NewPass("matmul_fusion", matmulBiasReLU, matmulBias),
		pattern.NewPass("binary_fusion", binaryEltwise),
	}, nil
}

// InsertToGroup inserts an ir.KindToGroup node in front of the weights of every grouped convolution
// (attribute "groups" > 1), reshaping the weights from [O, I, spatial...] to [groups, O/groups, I, spatial...].
// Convolutions whose weights already come from a to_group node, or whose number of output channels is not
// known or not divisible by the number of groups, are left untouched.
//
// It returns the number of nodes inserted.
func InsertToGroup(g *ir.Graph) int {
	var count int
	for _, conv := range g.Nodes() {
		if conv.Kind() != ir.KindConvolution || conv.Partition() != nil {
			continue
		}
		groups := int(conv.Attrs().IntOr("groups", 1))
		if groups <= 1 {
			continue
		}
		if p := conv.InputProducer(1); p != nil && p.Kind() == ir.KindToGroup {
			continue
		}
		weights := conv.Input(1).Desc()
		if weights.Shape.Rank() < 2 || weights.Shape.Dim(0) == shapes.DynamicDim || weights.Shape.Dim(0)%groups != 0 {
			continue
		}
		dims := append([]int{groups, weights.Shape.Dim(0) / groups}, weights.Shape.Dimensions[1:]...)
		grouped := ir.TensorDesc{Shape: shapes.Make(weights.Shape.DType, dims...), Layout: weights.Layout}
		toGroup := ir.NewNode(ir.KindToGroup, 1, grouped).MustSetAttr("groups", ir.Int(int64(groups)))
		g.InsertBefore(toGroup, conv, 1)
		count++
	}
	return count
}
