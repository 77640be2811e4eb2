// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pattern

import (
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/gopjrt/dtypes"
)

// Predicate is an extra condition a real node must satisfy to bind to a pattern node.
// Predicates must not mutate the node.
type Predicate func(node *ir.Node) bool

// AttrEquals accepts nodes whose attribute key is set to attr.
func AttrEquals(key string, attr ir.Attr) Predicate {
	return func(node *ir.Node) bool {
		got, found := node.Attrs().Get(key)
		return found && got.Equal(attr)
	}
}

// AttrMissingOrEquals accepts nodes where attribute key is not set, or is set to attr.
func AttrMissingOrEquals(key string, attr ir.Attr) Predicate {
	return func(node *ir.Node) bool {
		got, found := node.Attrs().Get(key)
		return !found || got.Equal(attr)
	}
}

// NumConsumers accepts nodes whose outputs are used exactly n times in total.
func NumConsumers(n int) Predicate {
	return func(node *ir.Node) bool {
		var count int
		for _, output := range node.Outputs() {
			count += output.NumConsumers()
		}
		return count == n
	}
}

// OutputDType accepts nodes whose first output has the given dtype.
func OutputDType(dtype dtypes.DType) Predicate {
	return func(node *ir.Node) bool {
		return node.NumOutputs() > 0 && node.Output(0).DType() == dtype
	}
}

// InputIsLeaf accepts nodes whose input slot is connected to a value without producer (graph input, weight
// or bias).
func InputIsLeaf(slot int) Predicate {
	return func(node *ir.Node) bool {
		if slot >= node.NumInputs() {
			return false
		}
		v := node.Input(slot)
		return v != nil && !v.HasProducer()
	}
}

// HasNoPartition accepts nodes not yet owned by a partition.
func HasNoPartition() Predicate {
	return func(node *ir.Node) bool { return node.Partition() == nil }
}

// Not negates pred.
func Not(pred Predicate) Predicate {
	return func(node *ir.Node) bool { return !pred(node) }
}
