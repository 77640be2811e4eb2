// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/pkg/errors"
)

// Errors returned by the core operations. They are wrapped with context (see github.com/pkg/errors),
// use errors.Is or StatusOf to test for them.
var (
	// ErrInvalidArgument is returned for malformed patterns, node-sets or partitions.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShapeMismatch is returned when binding external inputs/outputs that don't match in count or shape.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnimplemented is returned when a backend doesn't support a policy or feature.
	ErrUnimplemented = errors.New("unimplemented")

	// ErrTypeMismatch is returned when accessing an attribute with the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrAttrNotFound is returned when accessing a missing attribute.
	ErrAttrNotFound = errors.New("attribute not found")
)

// Status is the coarse classification of the outcome of a core operation.
type Status int

const (
	StatusSuccess Status = iota
	StatusInvalidArgument
	StatusShapeMismatch
	StatusUnimplemented
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidArgument:
		return "invalid_argument"
	case StatusShapeMismatch:
		return "shape_mismatch"
	case StatusUnimplemented:
		return "unimplemented"
	}
	return "unknown_status"
}

// StatusOf classifies err. A nil error is StatusSuccess, and any error not derived from
// ErrShapeMismatch or ErrUnimplemented is considered StatusInvalidArgument.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrShapeMismatch):
		return StatusShapeMismatch
	case errors.Is(err, ErrUnimplemented):
		return StatusUnimplemented
	}
	return StatusInvalidArgument
}
