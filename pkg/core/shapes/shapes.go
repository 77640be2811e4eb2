// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the logical description (DType and dimensions) of a tensor
// flowing between operations of a fusegraph computation graph.
//
// DType is the enumeration defined in github.com/gomlx/gopjrt/dtypes.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: is the index of a dimension on a multidimensional tensor.
//   - Dimension: the size of a tensor in one of its axes. A dimension can be DynamicDim, in which
//     case it is only known later, when the real inputs are bound to a partition.
//   - Scalar: is a shape where there are no axes (or dimensions), only a single value
//     of the associated DType.
//
// Example: a shape created with `shapes.Make(dtypes.Float32, -1, 3)` has rank 2, its axis 0
// is dynamic and axis 1 has dimension 3.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// DynamicDim is the value of a dimension not known while building the graph.
const DynamicDim = -1

// Shape represents the shape of a tensor: its DType and dimensions.
//
// Use Make to create a new shape.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
//
// It panics if a dimension is 0 or smaller than DynamicDim.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim == 0 || dim < DynamicDim {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension %d", s, dim)
		}
	}
	return s
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// IsFullyDefined returns whether none of the dimensions is DynamicDim.
func (s Shape) IsFullyDefined() bool {
	return !slices.Contains(s.Dimensions, DynamicDim)
}

// String implements stringer, pretty-prints the shape.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, len(s.Dimensions))
	for ii, dim := range s.Dimensions {
		if dim == DynamicDim {
			parts[ii] = "?"
		} else {
			parts[ii] = fmt.Sprintf("%d", dim)
		}
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
// It returns -1 if any of the dimensions is dynamic.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		if d == DynamicDim {
			return -1
		}
		size *= d
	}
	return
}

// Memory returns the memory used to store an array of the given shape, the same as the size in bytes.
// It returns 0 for shapes that are not fully defined.
func (s Shape) Memory() uintptr {
	size := s.Size()
	if size < 0 || !s.Ok() {
		return 0
	}
	return s.DType.Memory() * uintptr(size)
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
// Dynamic dimensions are only equal to other dynamic dimensions.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}

// CheckCompatible checks whether a concrete shape `given` can be bound to s.
//
// The dtype must match, unless s has an invalid dtype (unknown). The ranks must match, and each
// dimension must be equal unless the dimension in s is DynamicDim.
func (s Shape) CheckCompatible(given Shape) error {
	if s.Ok() && s.DType != given.DType {
		return errors.Errorf("shape %s has incompatible dtype %s (given %s)", s, s.DType, given.DType)
	}
	if s.Rank() != given.Rank() {
		return errors.Errorf("shape %s has incompatible rank %d (given %s with rank %d)", s, s.Rank(), given, given.Rank())
	}
	for axis, dim := range s.Dimensions {
		if dim != DynamicDim && dim != given.Dimensions[axis] {
			return errors.Errorf("shape %s axis %d has dimension %d, given %s", s, axis, dim, given)
		}
	}
	return nil
}
