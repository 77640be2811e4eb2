// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pattern

import (
	"testing"

	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32(dims ...int) ir.TensorDesc { return ir.Strided(dtypes.Float32, dims...) }

func kinds(ks ...ir.Kind) []ir.Kind { return ks }

func convReLUPattern() *Descriptor {
	return NewBuilder("conv_relu").
		Node("conv", kinds(ir.KindConvolution)).
		Node("relu", kinds(ir.KindReLU)).
		Edge("conv", 0, "relu", 0).
		Anchor("relu").
		MustBuild()
}

// twoBranches builds two conv -> relu branches on the same input, and a bias_add in the second one:
//
//	conv1 -> relu1
//	conv2 -> bias -> relu2
func twoBranches(t *testing.T) (*ir.Graph, map[string]*ir.Node) {
	g := ir.NewGraph("two_branches", ir.EngineCPU)
	x := g.Input(f32(1, 3, 8, 8))
	w1 := g.Input(f32(4, 3, 3, 3))
	w2 := g.Input(f32(4, 3, 3, 3))
	b2 := g.Input(f32(4))
	n := make(map[string]*ir.Node)
	n["conv1"] = g.AddNode(ir.KindConvolution, []*ir.Value{x, w1}, f32(1, 4, 6, 6))
	n["relu1"] = g.AddNode(ir.KindReLU, []*ir.Value{n["conv1"].Output(0)}, f32(1, 4, 6, 6))
	n["conv2"] = g.AddNode(ir.KindConvolution, []*ir.Value{x, w2}, f32(1, 4, 6, 6))
	n["bias"] = g.AddNode(ir.KindBiasAdd, []*ir.Value{n["conv2"].Output(0), b2}, f32(1, 4, 6, 6))
	n["relu2"] = g.AddNode(ir.KindReLU, []*ir.Value{n["bias"].Output(0)}, f32(1, 4, 6, 6))
	require.NoError(t, g.Validate())
	return g, n
}

func TestBuildErrors(t *testing.T) {
	testCases := []struct {
		name    string
		builder *Builder
	}{
		{"no nodes", NewBuilder("empty").Anchor("a")},
		{"no anchor", NewBuilder("p").Node("a", nil)},
		{"unknown anchor", NewBuilder("p").Node("a", nil).Anchor("b")},
		{"duplicate node", NewBuilder("p").Node("a", nil).Node("a", nil).Anchor("a")},
		{"unknown producer", NewBuilder("p").Node("a", nil).Edge("x", 0, "a", 0).Anchor("a")},
		{"unknown consumer", NewBuilder("p").Node("a", nil).Edge("a", 0, "x", 0).Anchor("a")},
		{"negative slot", NewBuilder("p").Node("a", nil).Node("b", nil).Edge("a", -1, "b", 0).Anchor("a")},
		{"self edge", NewBuilder("p").Node("a", nil).Edge("a", 0, "a", 0).Anchor("a")},
		{"slot fed twice", NewBuilder("p").Node("a", nil).Node("b", nil).Node("c", nil).
			Edge("a", 0, "c", 0).Edge("b", 0, "c", 0).Anchor("c")},
		{"cycle", NewBuilder("p").Node("a", nil).Node("b", nil).
			Edge("a", 0, "b", 0).Edge("b", 0, "a", 0).Anchor("a")},
		{"disconnected", NewBuilder("p").Node("a", nil).Node("b", nil).Node("c", nil).
			Edge("a", 0, "b", 0).Anchor("a")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tc.builder.Build()
			require.ErrorIs(t, err, ir.ErrInvalidArgument)
			assert.Equal(t, ir.StatusInvalidArgument, ir.StatusOf(err))
			assert.Nil(t, p)
			require.Panics(t, func() { tc.builder.MustBuild() })
		})
	}
}

func TestDescriptor(t *testing.T) {
	p := NewBuilder("any_then_relu").
		Node("any", kinds(ir.KindWildcard, ir.KindExp)).
		Node("relu", kinds(ir.KindReLU, ir.KindReLU, ir.KindElu)).
		Edge("any", 0, "relu", 0).
		Anchor("relu").
		MustBuild()
	assert.Equal(t, "any_then_relu", p.Name())
	assert.Equal(t, 2, p.NumNodes())
	assert.Equal(t, 1, p.Anchor())
	assert.Equal(t, 0, p.NodeIndex("any"))
	assert.Equal(t, -1, p.NodeIndex("missing"))
	assert.True(t, p.Nodes()[0].AcceptsAnyKind())
	assert.Equal(t, kinds(ir.KindReLU, ir.KindElu), p.Nodes()[1].Kinds())
	assert.Equal(t, []Edge{{Producer: 0, OutSlot: 0, Consumer: 1, InSlot: 0}}, p.Edges())
	assert.Contains(t, p.String(), "relu: ReLU|Elu")
	assert.Contains(t, p.String(), "any[0] -> relu[0]")
}

func TestMatch(t *testing.T) {
	g, n := twoBranches(t)
	gen := g.Generation()
	matches := FindMatches(g, convReLUPattern())
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, []*ir.Node{n["conv1"], n["relu1"]}, m.Nodes)
	assert.Equal(t, n["relu1"], m.Anchor())
	assert.Equal(t, n["conv1"], m.Node("conv"))
	assert.Nil(t, m.Node("missing"))
	assert.Equal(t, gen, m.Generation)
	assert.False(t, n["relu1"].IsMatched(), "Match must not mutate the graph")

	// Determinism.
	for range 3 {
		again := FindMatches(g, convReLUPattern())
		require.Len(t, again, 1)
		assert.Equal(t, m.Nodes, again[0].Nodes)
	}

	// Marked nodes are not matched again.
	MarkMatched(matches)
	assert.True(t, n["conv1"].IsMatched())
	assert.True(t, n["relu1"].IsMatched())
	assert.Empty(t, FindMatches(g, convReLUPattern()))
	assert.Equal(t, gen, g.Generation())
}

func TestMatchConsumerSideBacktracking(t *testing.T) {
	// matmul output feeds first a relu, then an add: the matcher must skip the relu.
	g := ir.NewGraph("backtrack", ir.EngineCPU)
	x := g.Input(f32(2, 8))
	w := g.Input(f32(8, 4))
	bias := g.Input(f32(2, 4))
	matmul := g.AddNode(ir.KindMatMul, []*ir.Value{x, w}, f32(2, 4))
	relu := g.AddNode(ir.KindReLU, []*ir.Value{matmul.Output(0)}, f32(2, 4))
	add := g.AddNode(ir.KindAdd, []*ir.Value{matmul.Output(0), bias}, f32(2, 4))
	_ = relu

	p := NewBuilder("matmul_add").
		Node("matmul", kinds(ir.KindMatMul)).
		Node("add", kinds(ir.KindAdd)).
		Edge("matmul", 0, "add", 0).
		Anchor("matmul").
		MustBuild()
	matches := FindMatches(g, p)
	require.Len(t, matches, 1)
	assert.Equal(t, []*ir.Node{matmul, add}, matches[0].Nodes)

	// With the predicate requiring a single consumer, there is no match.
	p = NewBuilder("matmul_add_single_use").
		Node("matmul", kinds(ir.KindMatMul), NumConsumers(1)).
		Node("add", kinds(ir.KindAdd)).
		Edge("matmul", 0, "add", 0).
		Anchor("matmul").
		MustBuild()
	assert.Empty(t, FindMatches(g, p))

	// Edge on slot 1 doesn't match: matmul feeds slot 0 of add.
	p = NewBuilder("matmul_add_slot1").
		Node("matmul", kinds(ir.KindMatMul)).
		Node("add", kinds(ir.KindAdd)).
		Edge("matmul", 0, "add", 1).
		Anchor("add").
		MustBuild()
	assert.Empty(t, FindMatches(g, p))
}

func TestMatchNonOverlapping(t *testing.T) {
	g := ir.NewGraph("chain", ir.EngineCPU)
	x := g.Input(f32(16))
	exp := g.AddNode(ir.KindExp, []*ir.Value{x}, f32(16))
	relu1 := g.AddNode(ir.KindReLU, []*ir.Value{exp.Output(0)}, f32(16))
	relu2 := g.AddNode(ir.KindReLU, []*ir.Value{relu1.Output(0)}, f32(16))
	relu3 := g.AddNode(ir.KindReLU, []*ir.Value{relu2.Output(0)}, f32(16))

	p := NewBuilder("any_relu").
		Node("any", nil).
		Node("relu", kinds(ir.KindReLU)).
		Edge("any", 0, "relu", 0).
		Anchor("relu").
		MustBuild()
	matches := FindMatches(g, p)
	require.Len(t, matches, 2)
	assert.Equal(t, []*ir.Node{exp, relu1}, matches[0].Nodes)
	assert.Equal(t, []*ir.Node{relu2, relu3}, matches[1].Nodes)

	seen := make(map[ir.NodeId]bool)
	for _, m := range matches {
		for _, node := range m.Nodes {
			require.False(t, seen[node.Id()], "node %s in more than one match", node)
			seen[node.Id()] = true
		}
	}
}

func TestPredicates(t *testing.T) {
	g, n := twoBranches(t)
	conv1 := n["conv1"]
	require.NoError(t, conv1.SetAttr("data_format", ir.Enum("NCX")))

	assert.True(t, AttrEquals("data_format", ir.Enum("NCX"))(conv1))
	assert.False(t, AttrEquals("data_format", ir.String("NCX"))(conv1))
	assert.False(t, AttrEquals("data_format", ir.Enum("NCX"))(n["conv2"]))
	assert.True(t, AttrMissingOrEquals("data_format", ir.Enum("NCX"))(n["conv2"]))
	assert.False(t, AttrMissingOrEquals("data_format", ir.Enum("NXC"))(conv1))
	assert.True(t, NumConsumers(1)(conv1))
	assert.True(t, NumConsumers(0)(n["relu1"]))
	assert.True(t, Not(NumConsumers(0))(conv1))
	assert.True(t, OutputDType(dtypes.Float32)(conv1))
	assert.False(t, OutputDType(dtypes.Int8)(conv1))
	assert.True(t, InputIsLeaf(1)(n["bias"]))
	assert.False(t, InputIsLeaf(0)(n["bias"]))
	assert.False(t, InputIsLeaf(5)(n["bias"]))
	assert.True(t, HasNoPartition()(conv1))

	fused := ir.NewFusedNode(nil, []ir.TensorDesc{f32(1, 4, 6, 6)}, nil)
	_, err := g.RegisterPartition("test", fused, []*ir.Node{conv1})
	require.NoError(t, err)
	assert.False(t, HasNoPartition()(conv1))

	// Nodes owned by a partition are not matched.
	assert.Empty(t, FindMatches(g, convReLUPattern()))
}

func TestPass(t *testing.T) {
	g, n := twoBranches(t)
	convBiasReLU := NewBuilder("conv_bias_relu").
		Node("conv", kinds(ir.KindConvolution)).
		Node("bias", kinds(ir.KindBiasAdd)).
		Node("relu", kinds(ir.KindReLU)).
		Edge("conv", 0, "bias", 0).
		Edge("bias", 0, "relu", 0).
		Anchor("relu").
		MustBuild()
	pass := NewPass("conv_fusions", convBiasReLU, convReLUPattern())
	matches := pass.Run(g)
	require.Len(t, matches, 2)
	assert.Equal(t, convBiasReLU, matches[0].Pattern)
	assert.Equal(t, []*ir.Node{n["conv2"], n["bias"], n["relu2"]}, matches[0].Nodes)
	assert.Equal(t, []*ir.Node{n["conv1"], n["relu1"]}, matches[1].Nodes)
	for _, node := range g.Nodes() {
		assert.True(t, node.IsMatched(), "node %s", node)
	}
	assert.Contains(t, matches[1].String(), "conv_relu{conv=#")

	// Running again finds nothing.
	assert.Empty(t, pass.Run(g))
}

func TestMatchRejectsNonConvex(t *testing.T) {
	// exp feeds add directly and through log: {exp, add} can't be collapsed without log.
	g := ir.NewGraph("non_convex", ir.EngineCPU)
	x := g.Input(f32(16))
	exp := g.AddNode(ir.KindExp, []*ir.Value{x}, f32(16))
	log := g.AddNode(ir.KindLog, []*ir.Value{exp.Output(0)}, f32(16))
	g.AddNode(ir.KindAdd, []*ir.Value{exp.Output(0), log.Output(0)}, f32(16))

	p := NewBuilder("exp_add").
		Node("exp", kinds(ir.KindExp)).
		Node("add", kinds(ir.KindAdd)).
		Edge("exp", 0, "add", 0).
		Anchor("add").
		MustBuild()
	assert.Empty(t, FindMatches(g, p))

	// Including log makes the set convex.
	p = NewBuilder("exp_log_add").
		Node("exp", kinds(ir.KindExp)).
		Node("log", kinds(ir.KindLog)).
		Node("add", kinds(ir.KindAdd)).
		Edge("exp", 0, "log", 0).
		Edge("exp", 0, "add", 0).
		Edge("log", 0, "add", 1).
		Anchor("add").
		MustBuild()
	require.Len(t, FindMatches(g, p), 1)
}
