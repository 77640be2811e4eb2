// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fusion

import (
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/support/sets"
	"k8s.io/klog/v2"
)

// SubgraphBoundary returns the distinct values entering the subgraph formed by nodes (values not produced by
// one of the nodes), and the output values of the nodes consumed outside the subgraph or not consumed at all.
// Both are in discovery order: nodes in the given order, slots in order.
func SubgraphBoundary(nodes []*ir.Node) (inputs, outputs []*ir.Value) {
	set := sets.MakeWith(nodes...)
	seen := sets.Make[*ir.Value]()
	for _, node := range nodes {
		for _, v := range node.Inputs() {
			if v == nil || set.Has(v.Producer()) || seen.Has(v) {
				continue
			}
			seen.Insert(v)
			inputs = append(inputs, v)
		}
	}
	for _, node := range nodes {
		for _, v := range node.Outputs() {
			if isBoundaryOutput(v, set) {
				outputs = append(outputs, v)
			}
		}
	}
	return
}

// SetGivenInputsOutputs binds the concrete descriptors supplied by the caller to the boundary values of the
// subgraph formed by nodes (see SubgraphBoundary).
//
// The values are bound in place: boundary values are owned by the graph (graph inputs, outputs of nodes outside
// the subgraph) and may be shared with other subgraphs or partitions. To bind the boundary of a partition
// without touching the graph, use ir.Partition.BindInputsOutputs, which binds the fused node's own values.
//
// It returns an error wrapping ir.ErrShapeMismatch if the counts differ or a descriptor is not compatible
// with the placeholder it replaces. On error no value is changed.
func SetGivenInputsOutputs(nodes []*ir.Node, inputs, outputs []ir.TensorDesc) error {
	boundaryIn, boundaryOut := SubgraphBoundary(nodes)
	return ir.BindBoundary(boundaryIn, boundaryOut, inputs, outputs)
}

// SetAllLayoutToAny sets the layout of every internal value of the subgraph formed by nodes to ir.LayoutAny:
// values produced by one of the nodes and consumed only by nodes of the subgraph.
// Boundary values are left untouched. It returns the number of values changed.
func SetAllLayoutToAny(nodes []*ir.Node) int {
	set := sets.MakeWith(nodes...)
	var count int
	for _, node := range nodes {
		for _, v := range node.Outputs() {
			if isBoundaryOutput(v, set) || v.Layout() == ir.LayoutAny {
				continue
			}
			v.SetLayout(ir.LayoutAny)
			count++
		}
	}
	klog.V(2).Infof("SetAllLayoutToAny: %d values changed", count)
	return count
}

// SetWeightBiasConstant marks with ir.AttrConstant the values that are known to be constant: values without
// producer used by the nodes, and only used as non-first inputs of parameterized kinds (see ir.Kind.IsParameterized),
// or of an ir.KindAdd whose first input is produced by a parameterized kind (a bias added after a MatMul or
// Convolution). Uses through preprocessing kinds (see ir.IsPreprocess) are followed.
//
// It returns the values marked.
func SetWeightBiasConstant(nodes []*ir.Node) []*ir.Value {
	var marked []*ir.Value
	seen := sets.Make[*ir.Value]()
	for _, node := range nodes {
		for _, v := range node.Inputs() {
			if v == nil || v.HasProducer() || seen.Has(v) {
				continue
			}
			seen.Insert(v)
			if !onlyParameterUses(v) {
				continue
			}
			if err := v.SetAttr(ir.AttrConstant, ir.Bool(true)); err != nil {
				panic(err)
			}
			marked = append(marked, v)
		}
	}
	return marked
}

func onlyParameterUses(v *ir.Value) bool {
	uses := v.Consumers()
	if len(uses) == 0 {
		return false
	}
	for _, use := range uses {
		kind := use.Node.Kind()
		if ir.IsPreprocess(kind) {
			if !onlyParameterUses(use.Node.Output(0)) {
				return false
			}
			continue
		}
		if use.Offset == 0 {
			return false
		}
		if kind.IsParameterized() {
			continue
		}
		if kind == ir.KindAdd {
			if producer := use.Node.InputProducer(0); producer != nil && producer.Kind().IsParameterized() {
				continue
			}
		}
		return false
	}
	return true
}
