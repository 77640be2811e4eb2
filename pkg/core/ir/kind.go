// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
)

// Kind is the closed enumeration of operation types a Node can have.
//
// The per-kind behavior (arity, attribute schema) is given by the capability table, see Kind.Info.
// The compute behavior of each kind is up to the backends.
type Kind int

//go:generate go tool enumer -type=Kind -trimprefix=Kind -output=gen_kind_enumer.go kind.go

const (
	KindInvalid Kind = iota

	// KindWildcard is only used by pattern descriptors, to accept any kind. It can't be used to create nodes.
	KindWildcard

	KindAbs
	KindAdd
	KindAvgPool
	KindBatchNorm
	KindBiasAdd
	KindClamp
	KindConcat
	KindConvolution
	KindDequantize
	KindDivide
	KindElu
	KindErf
	KindExp
	KindGELU
	KindLayerNorm
	KindLog
	KindMatMul
	KindMaxPool
	KindMaximum
	KindMinimum
	KindMultiply
	KindQuantize
	KindReLU
	KindReorder
	KindReshape
	KindRound
	KindSigmoid
	KindSoftMax
	KindSqrt
	KindSubtract
	KindTanh
	KindTranspose
	KindTypeCast

	// Internal kinds: created by passes, never by the user graph.

	KindPermute
	KindToGroup
	KindExpand

	// KindFused is the kind of the node created by the fusion executor to describe a partition.
	KindFused

	// KindLast should always be kept the last, it is used as a counter/marker for Kind.
	KindLast
)

// Variadic is used in KindInfo for an unbounded number of inputs or outputs.
const Variadic = -1

// KindInfo describes the capabilities of a Kind: its arity contract and the schema of its attributes.
type KindInfo struct {
	// MinInputs and MaxInputs bound the number of inputs. MaxInputs can be Variadic.
	MinInputs, MaxInputs int

	// NumOutputs is the exact number of outputs, or Variadic.
	NumOutputs int

	// Elementwise ops can be absorbed into a neighbor by FuseToSuccessor/FuseToPredecessor.
	Elementwise bool

	// Parameterized ops take weights (or bias, statistics) as non-first inputs.
	Parameterized bool

	// Internal kinds are reserved to passes.
	Internal bool

	// Attrs is the schema of the attributes: the type of each known key.
	// Keys not listed are accepted with any type.
	Attrs map[string]AttrType
}

// Reserved attribute keys, accepted on nodes of every kind.
const (
	AttrMatchedPattern = "matched_pattern"
	AttrBackend        = "backend"
	AttrFusedPreOps    = "fused_pre_ops"
	AttrFusedPostOps   = "fused_post_ops"
	AttrPattern        = "pattern"

	// AttrConstant is set on values known to be constant (weights, biases).
	AttrConstant = "constant"
)

var reservedAttrs = map[string]AttrType{
	AttrMatchedPattern: AttrBool,
	AttrBackend:        AttrString,
	AttrFusedPreOps:    AttrString,
	AttrFusedPostOps:   AttrString,
	AttrPattern:        AttrString,
}

func unary(attrs map[string]AttrType) KindInfo {
	return KindInfo{MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Elementwise: true, Attrs: attrs}
}

func binary() KindInfo {
	return KindInfo{MinInputs: 2, MaxInputs: 2, NumOutputs: 1, Elementwise: true}
}

func layoutOp(attrs map[string]AttrType) KindInfo {
	return KindInfo{MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Attrs: attrs}
}

var kindInfos = [KindLast]KindInfo{
	KindWildcard: {MinInputs: 0, MaxInputs: Variadic, NumOutputs: Variadic, Internal: true},

	KindAbs:   unary(nil),
	KindClamp: unary(map[string]AttrType{"min": AttrFloat, "max": AttrFloat}),
	KindElu:   unary(map[string]AttrType{"alpha": AttrFloat}),
	KindErf:   unary(nil),
	KindExp:   unary(nil),
	KindGELU:  unary(map[string]AttrType{"approximate": AttrBool}),
	KindLog:   unary(nil),
	KindReLU:  unary(nil),
	KindRound: unary(nil),
	// Sqrt returns rsqrt if "reciprocal" is set.
	KindSqrt:     unary(map[string]AttrType{"reciprocal": AttrBool}),
	KindSigmoid:  unary(nil),
	KindTanh:     unary(nil),
	KindTypeCast: unary(map[string]AttrType{"saturated": AttrBool}),

	KindAdd:      binary(),
	KindDivide:   binary(),
	KindMaximum:  binary(),
	KindMinimum:  binary(),
	KindMultiply: binary(),
	KindSubtract: binary(),

	KindBiasAdd: {MinInputs: 2, MaxInputs: 2, NumOutputs: 1, Parameterized: true,
		Attrs: map[string]AttrType{"data_format": AttrEnum}},
	KindConvolution: {MinInputs: 2, MaxInputs: 3, NumOutputs: 1, Parameterized: true,
		Attrs: map[string]AttrType{
			"strides":     AttrString,
			"pads_begin":  AttrString,
			"pads_end":    AttrString,
			"dilations":   AttrString,
			"groups":      AttrInt,
			"data_format": AttrEnum,
			"auto_pad":    AttrEnum,
		}},
	KindMatMul: {MinInputs: 2, MaxInputs: 3, NumOutputs: 1, Parameterized: true,
		Attrs: map[string]AttrType{"transpose_a": AttrBool, "transpose_b": AttrBool}},
	KindBatchNorm: {MinInputs: 3, MaxInputs: 5, NumOutputs: 1, Parameterized: true,
		Attrs: map[string]AttrType{"epsilon": AttrFloat, "data_format": AttrEnum}},
	KindLayerNorm: {MinInputs: 1, MaxInputs: 3, NumOutputs: 1, Parameterized: true,
		Attrs: map[string]AttrType{"epsilon": AttrFloat, "begin_norm_axis": AttrInt, "keep_stats": AttrBool}},
	KindSoftMax: {MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Attrs: map[string]AttrType{"axis": AttrInt}},
	KindMaxPool: {MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Attrs: map[string]AttrType{
		"kernel": AttrString, "strides": AttrString, "data_format": AttrEnum}},
	KindAvgPool: {MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Attrs: map[string]AttrType{
		"kernel": AttrString, "strides": AttrString, "exclude_pad": AttrBool, "data_format": AttrEnum}},
	KindConcat: {MinInputs: 1, MaxInputs: Variadic, NumOutputs: 1, Attrs: map[string]AttrType{"axis": AttrInt}},
	KindQuantize: {MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Attrs: map[string]AttrType{
		"scales": AttrString, "zps": AttrString, "qtype": AttrEnum, "axis": AttrInt}},
	KindDequantize: {MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Attrs: map[string]AttrType{
		"scales": AttrString, "zps": AttrString, "qtype": AttrEnum, "axis": AttrInt}},

	KindReorder:   layoutOp(nil),
	KindReshape:   layoutOp(map[string]AttrType{"shape": AttrString, "special_zero": AttrBool}),
	KindTranspose: layoutOp(map[string]AttrType{"order": AttrString}),

	KindPermute: {MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Internal: true,
		Attrs: map[string]AttrType{"permutation": AttrString}},
	KindToGroup: {MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Internal: true,
		Attrs: map[string]AttrType{"groups": AttrInt}},
	KindExpand: {MinInputs: 1, MaxInputs: 1, NumOutputs: 1, Internal: true,
		Attrs: map[string]AttrType{"expand_to": AttrInt}},
	KindFused: {MinInputs: 0, MaxInputs: Variadic, NumOutputs: Variadic, Internal: true},
}

// Info returns the capabilities of the kind.
// It panics for KindInvalid, KindLast or values out of the enumeration.
func (k Kind) Info() KindInfo {
	if k <= KindInvalid || k >= KindLast {
		exceptions.Panicf("no capabilities registered for invalid kind %s", k)
	}
	return kindInfos[k]
}

// IsElementwise returns whether the kind is an elementwise operation.
func (k Kind) IsElementwise() bool {
	return k > KindInvalid && k < KindLast && kindInfos[k].Elementwise
}

// IsParameterized returns whether the kind takes weights or biases as non-first inputs.
func (k Kind) IsParameterized() bool {
	return k > KindInvalid && k < KindLast && kindInfos[k].Parameterized
}

// IsPreprocess returns whether the kind is one of the internal preprocessing kinds (permute, to_group, expand)
// that passes insert in front of other ops.
func IsPreprocess(k Kind) bool {
	switch k {
	case KindPermute, KindToGroup, KindExpand:
		return true
	}
	return false
}

// checkArity panics if numInputs or numOutputs don't comply with the kind's arity contract.
func (k Kind) checkArity(numInputs, numOutputs int) {
	if k == KindWildcard {
		exceptions.Panicf("kind %s can only be used in patterns, not to create nodes", k)
	}
	info := k.Info()
	if numInputs < info.MinInputs || (info.MaxInputs != Variadic && numInputs > info.MaxInputs) {
		exceptions.Panicf("kind %s takes between %d and %d inputs, got %d", k, info.MinInputs, info.MaxInputs, numInputs)
	}
	if info.NumOutputs != Variadic && numOutputs != info.NumOutputs {
		exceptions.Panicf("kind %s has %d outputs, got %d", k, info.NumOutputs, numOutputs)
	}
}
