// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/gomlx/fusegraph/pkg/core/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPartition(t *testing.T) {
	g, conv, relu := convReLU(t)
	placeholder := TensorDesc{Shape: shapes.Make(dtypes.Float32, shapes.DynamicDim, 3, 8, 8), Layout: LayoutUndef}
	fused := NewFusedNode([]TensorDesc{placeholder, f32(4, 3, 3, 3)}, []TensorDesc{f32(1, 4, 6, 6)},
		[]NodeId{relu.Id(), conv.Id(), conv.Id()})
	assert.Equal(t, []NodeId{conv.Id(), relu.Id()}, fused.Origins())
	gen := g.Generation()

	p, err := g.RegisterPartition("test", fused, []*Node{conv, relu})
	require.NoError(t, err)
	assert.Equal(t, gen, g.Generation())
	assert.Equal(t, PartitionId(0), p.Id())
	assert.Equal(t, p, g.Partition(0))
	assert.Nil(t, g.Partition(1))
	assert.Equal(t, EngineCPU, p.Engine())
	assert.Equal(t, "test", p.Backend())
	assert.Equal(t, p, conv.Partition())
	assert.Equal(t, []NodeId{conv.Id(), relu.Id()}, p.NodeIds())
	assert.Len(t, p.Inputs(), 2)
	assert.Len(t, p.Outputs(), 1)
	assert.True(t, g.Has(conv), "members stay in the graph")
	assert.False(t, g.Has(fused), "fused node is not in the graph")
	assert.Contains(t, p.String(), "{Convolution, ReLU}")

	// A node belongs to at most one partition.
	other := NewFusedNode(nil, []TensorDesc{f32(1, 4, 6, 6)}, []NodeId{relu.Id()})
	_, err = g.RegisterPartition("test", other, []*Node{relu})
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = g.RegisterPartition("test", other, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = g.RegisterPartition("test", conv, []*Node{relu})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 1, g.NumPartitions())
}

func TestBindInputsOutputs(t *testing.T) {
	g, conv, relu := convReLU(t)
	placeholder := TensorDesc{Shape: shapes.Make(dtypes.Float32, shapes.DynamicDim, 3, 8, 8)}
	fused := NewFusedNode([]TensorDesc{placeholder, f32(4, 3, 3, 3)}, []TensorDesc{f32(1, 4, 6, 6)}, nil)
	p, err := g.RegisterPartition("test", fused, []*Node{conv, relu})
	require.NoError(t, err)

	// Wrong count.
	err = p.BindInputsOutputs([]TensorDesc{f32(2, 3, 8, 8)}, []TensorDesc{f32(1, 4, 6, 6)})
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Equal(t, StatusShapeMismatch, StatusOf(err))

	// Output incompatible: nothing is bound, not even the inputs.
	err = p.BindInputsOutputs([]TensorDesc{f32(2, 3, 8, 8), f32(4, 3, 3, 3)}, []TensorDesc{f32(1, 4, 6)})
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Equal(t, shapes.DynamicDim, p.Inputs()[0].Shape().Dim(0))

	// Wrong dtype.
	err = p.BindInputsOutputs(
		[]TensorDesc{Strided(dtypes.Int32, 2, 3, 8, 8), f32(4, 3, 3, 3)}, []TensorDesc{f32(1, 4, 6, 6)})
	require.ErrorIs(t, err, ErrShapeMismatch)

	require.NoError(t, p.BindInputsOutputs(
		[]TensorDesc{f32(2, 3, 8, 8), f32(4, 3, 3, 3)}, []TensorDesc{f32(1, 4, 6, 6)}))
	assert.Equal(t, 2, p.Inputs()[0].Shape().Dim(0))
	assert.Equal(t, LayoutStrided, p.Inputs()[0].Layout())
	assert.Equal(t, uintptr(4*(2*3*8*8+4*3*3*3+4*6*6)), p.BoundaryMemory())

	p.Freeze()
	assert.True(t, p.IsFrozen())
	err = p.BindInputsOutputs([]TensorDesc{f32(2, 3, 8, 8), f32(4, 3, 3, 3)}, []TensorDesc{f32(1, 4, 6, 6)})
	require.ErrorIs(t, err, ErrInvalidArgument)
}
