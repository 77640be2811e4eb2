// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Make(dtypes.Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.Equal(t, 0, shape0.Rank())
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	require.False(t, shape1.IsScalar())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))
	require.True(t, shape1.IsFullyDefined())

	dynamic := Make(dtypes.Float32, DynamicDim, 3)
	require.False(t, dynamic.IsFullyDefined())
	require.Equal(t, -1, dynamic.Size())
	require.Equal(t, 0, int(dynamic.Memory()))

	require.Panics(t, func() { _ = Make(dtypes.Float32, 0) })
	require.Panics(t, func() { _ = Make(dtypes.Float32, 2, -2) })
}

func TestDim(t *testing.T) {
	shape := Make(dtypes.Float32, 4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestEqualAndClone(t *testing.T) {
	s := Make(dtypes.Float32, 2, 3)
	s2 := s.Clone()
	require.True(t, s.Equal(s2))
	s2.Dimensions[0] = 5
	require.Equal(t, 2, s.Dimensions[0])
	require.False(t, s.Equal(s2))
	require.False(t, s.Equal(Make(dtypes.Int32, 2, 3)))
}

func TestCheckCompatible(t *testing.T) {
	placeholder := Make(dtypes.Float32, DynamicDim, 16)
	require.NoError(t, placeholder.CheckCompatible(Make(dtypes.Float32, 8, 16)))
	require.Error(t, placeholder.CheckCompatible(Make(dtypes.Float32, 8, 15)))
	require.Error(t, placeholder.CheckCompatible(Make(dtypes.Float32, 16)))
	require.Error(t, placeholder.CheckCompatible(Make(dtypes.Int8, 8, 16)))

	// Unknown dtype accepts any dtype.
	unknownDType := Shape{Dimensions: []int{DynamicDim}}
	require.NoError(t, unknownDType.CheckCompatible(Make(dtypes.Int8, 4)))
}

func TestString(t *testing.T) {
	require.Equal(t, "(Float32)[? 3]", Make(dtypes.Float32, DynamicDim, 3).String())
	require.Equal(t, "(Int32)", Make(dtypes.Int32).String())
}
