// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32(dims ...int) TensorDesc { return Strided(dtypes.Float32, dims...) }

// convReLU builds x -> conv(x, w) -> relu.
func convReLU(t *testing.T) (g *Graph, conv, relu *Node) {
	g = NewGraph("conv_relu", EngineCPU)
	x := g.Input(f32(1, 3, 8, 8))
	w := g.Input(f32(4, 3, 3, 3))
	conv = g.AddNode(KindConvolution, []*Value{x, w}, f32(1, 4, 6, 6)).SetName("conv")
	relu = g.AddNode(KindReLU, []*Value{conv.Output(0)}, f32(1, 4, 6, 6)).SetName("relu")
	require.NoError(t, g.Validate())
	return
}

// diamond builds: a = exp(x); b = log(a); c = tanh(a); d = add(b, c); e = sigmoid(x)
func diamond(t *testing.T) (g *Graph, nodes map[string]*Node) {
	g = NewGraph("diamond", EngineCPU)
	x := g.Input(f32(4))
	nodes = make(map[string]*Node)
	nodes["a"] = g.AddNode(KindExp, []*Value{x}, f32(4))
	nodes["b"] = g.AddNode(KindLog, []*Value{nodes["a"].Output(0)}, f32(4))
	nodes["c"] = g.AddNode(KindTanh, []*Value{nodes["a"].Output(0)}, f32(4))
	nodes["d"] = g.AddNode(KindAdd, []*Value{nodes["b"].Output(0), nodes["c"].Output(0)}, f32(4))
	nodes["e"] = g.AddNode(KindSigmoid, []*Value{x}, f32(4))
	require.NoError(t, g.Validate())
	return
}

func TestGraphConstruction(t *testing.T) {
	g, conv, relu := convReLU(t)
	assert.Equal(t, 2, g.NumNodes())
	assert.Equal(t, []*Node{conv, relu}, g.Nodes())
	assert.Equal(t, []*Node{relu}, g.OutputNodes())
	assert.True(t, g.Has(conv))
	assert.Len(t, g.Inputs(), 2)
	assert.Equal(t, 2, g.Generation())

	out := conv.Output(0)
	assert.Equal(t, conv, out.Producer())
	assert.Equal(t, 0, out.ProducerOffset())
	assert.Equal(t, []Use{{Node: relu, Offset: 0}}, out.Consumers())
	assert.Equal(t, -1, g.Inputs()[0].ProducerOffset())
	assert.Equal(t, conv, relu.InputProducer(0))
	assert.Nil(t, conv.InputProducer(0))
	assert.Equal(t, []*Node{relu}, conv.Consumers())
	assert.Empty(t, conv.Origins())

	// Attribute changes are not structural.
	require.NoError(t, conv.SetAttr("groups", Int(1)))
	out.SetLayout(LayoutAny)
	assert.Equal(t, 2, g.Generation())

	require.Panics(t, func() { conv.Input(2) })
	require.Panics(t, func() { conv.Output(1) })
	require.Panics(t, func() { g.AddNode(KindReLU, []*Value{nil}, f32(1)) })
	other := NewGraph("other", EngineCPU)
	require.Panics(t, func() { other.AddNode(KindReLU, []*Value{out}, f32(1, 4, 6, 6)) })

	text := g.String()
	assert.Contains(t, text, `Graph "conv_relu" (cpu): 2 nodes, 2 inputs, 0 partitions`)
	assert.Contains(t, text, "Convolution(conv)")
}

func TestTopoOrderVisit(t *testing.T) {
	g, nodes := diamond(t)
	assert.Equal(t, []*Node{nodes["d"], nodes["e"]}, g.OutputNodes())

	var visited []*Node
	require.NoError(t, g.TopoOrderVisit(func(node *Node) error {
		visited = append(visited, node)
		return nil
	}))
	want := []*Node{nodes["a"], nodes["b"], nodes["c"], nodes["d"], nodes["e"]}
	require.Equal(t, want, visited)

	// Each node comes after its producers.
	seen := make(map[*Node]bool)
	for _, node := range visited {
		for ii := range node.NumInputs() {
			if p := node.InputProducer(ii); p != nil {
				require.True(t, seen[p], "%s visited before its producer %s", node, p)
			}
		}
		seen[node] = true
	}

	stop := errors.New("stop")
	count := 0
	err := g.TopoOrderVisit(func(node *Node) error {
		count++
		if count == 2 {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 2, count)
}

func TestValidate(t *testing.T) {
	g, nodes := diamond(t)
	require.NoError(t, g.Validate())

	// Introduce a cycle by hand: a consumes d's output.
	a, d := nodes["a"], nodes["d"]
	x := a.Input(0)
	a.connectInput(0, d.Output(0))
	err := g.Validate()
	require.ErrorIs(t, err, ErrInvalidArgument)
	a.connectInput(0, x)
	require.NoError(t, g.Validate())

	// Broken symmetry.
	d.inputs[1] = x
	require.ErrorIs(t, g.Validate(), ErrInvalidArgument)
}

func TestIsConvex(t *testing.T) {
	_, n := diamond(t)
	assert.True(t, IsConvex([]*Node{n["a"]}))
	assert.True(t, IsConvex([]*Node{n["a"], n["b"]}))
	assert.True(t, IsConvex([]*Node{n["a"], n["b"], n["c"], n["d"]}))
	assert.True(t, IsConvex([]*Node{n["b"], n["c"], n["d"]}))
	assert.True(t, IsConvex([]*Node{n["a"], n["e"]}))

	// a -> b -> d leaves the set through b.
	assert.False(t, IsConvex([]*Node{n["a"], n["d"]}))
	assert.False(t, IsConvex([]*Node{n["a"], n["b"], n["d"]}))
}
