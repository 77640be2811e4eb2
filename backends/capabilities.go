// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"maps"

	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/gopjrt/dtypes"
)

// Capabilities holds mappings of what is supported by a backend.
type Capabilities struct {
	// Kinds of operations supported by a backend.
	// If not listed, it's assumed to be false, hence not supported.
	Kinds map[ir.Kind]bool

	// DTypes list the data types supported by a backend.
	// If not listed, it's assumed to be false, hence not supported.
	DTypes map[dtypes.DType]bool

	// Policies the backend's GetPartitions accepts.
	Policies map[Policy]bool
}

// Clone makes a deep copy of the Capabilities.
func (c Capabilities) Clone() Capabilities {
	var c2 Capabilities
	c2.Kinds = make(map[ir.Kind]bool, len(c.Kinds))
	maps.Copy(c2.Kinds, c.Kinds)
	c2.DTypes = make(map[dtypes.DType]bool, len(c.DTypes))
	maps.Copy(c2.DTypes, c.DTypes)
	c2.Policies = make(map[Policy]bool, len(c.Policies))
	maps.Copy(c2.Policies, c.Policies)
	return c2
}

// Supports returns whether the node's kind and the dtypes of all its inputs and outputs are supported.
func (c Capabilities) Supports(node *ir.Node) bool {
	if !c.Kinds[node.Kind()] {
		return false
	}
	for _, v := range node.Inputs() {
		if v != nil && !c.DTypes[v.DType()] {
			return false
		}
	}
	for _, v := range node.Outputs() {
		if !c.DTypes[v.DType()] {
			return false
		}
	}
	return true
}
