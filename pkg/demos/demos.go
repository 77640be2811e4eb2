// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package demos builds small graphs of common model shapes, used by the command line tool and tests.
package demos

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
)

// Demo is a graph plus its nodes indexed by name.
type Demo struct {
	Graph *ir.Graph
	Nodes map[string]*ir.Node
}

// Builder is the signature of the functions building demos.
type Builder func(engine ir.EngineKind) *Demo

var registry = map[string]Builder{
	"convnet": ConvNet,
	"mlp":     MLP,
}

// Names returns the names of the available demos, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build the demo with the given name. It panics if there is no such demo.
func Build(name string, engine ir.EngineKind) *Demo {
	builder, found := registry[name]
	if !found {
		exceptions.Panicf("unknown demo graph %q, valid values are %v", name, Names())
	}
	return builder(engine)
}

func (d *Demo) add(name string, kind ir.Kind, inputs []*ir.Value, output ir.TensorDesc) *ir.Node {
	node := d.Graph.AddNode(kind, inputs, output).SetName(name)
	d.Nodes[name] = node
	return node
}

func f32(dims ...int) ir.TensorDesc { return ir.Strided(dtypes.Float32, dims...) }

// ConvNet builds a small convolutional network:
//
//	conv1 -> bias1 -> relu1 -> conv2 (2 groups) -> relu2 -> pool -> reshape -> matmul -> add3 -> relu3 -> add4 -> tanh
func ConvNet(engine ir.EngineKind) *Demo {
	d := &Demo{Graph: ir.NewGraph("convnet", engine), Nodes: make(map[string]*ir.Node)}
	g := d.Graph
	x := g.Input(f32(1, 3, 8, 8))
	w1 := g.Input(f32(4, 3, 3, 3))
	b1 := g.Input(f32(4))
	w2 := g.Input(f32(4, 2, 3, 3))
	w3 := g.Input(f32(16, 8))
	b3 := g.Input(f32(1, 8))
	c := g.Input(f32(1, 8))

	conv1 := d.add("conv1", ir.KindConvolution, []*ir.Value{x, w1}, f32(1, 4, 6, 6))
	must.M(conv1.SetAttr("groups", ir.Int(1)))
	bias1 := d.add("bias1", ir.KindBiasAdd, []*ir.Value{conv1.Output(0), b1}, f32(1, 4, 6, 6))
	relu1 := d.add("relu1", ir.KindReLU, []*ir.Value{bias1.Output(0)}, f32(1, 4, 6, 6))
	conv2 := d.add("conv2", ir.KindConvolution, []*ir.Value{relu1.Output(0), w2}, f32(1, 4, 4, 4))
	must.M(conv2.SetAttr("groups", ir.Int(2)))
	relu2 := d.add("relu2", ir.KindReLU, []*ir.Value{conv2.Output(0)}, f32(1, 4, 4, 4))
	pool := d.add("pool", ir.KindMaxPool, []*ir.Value{relu2.Output(0)}, f32(1, 4, 2, 2))
	must.M(pool.SetAttr("kernel", ir.String("2,2")))
	reshape := d.add("reshape", ir.KindReshape, []*ir.Value{pool.Output(0)}, f32(1, 16))
	matmul := d.add("matmul", ir.KindMatMul, []*ir.Value{reshape.Output(0), w3}, f32(1, 8))
	add3 := d.add("add3", ir.KindAdd, []*ir.Value{matmul.Output(0), b3}, f32(1, 8))
	relu3 := d.add("relu3", ir.KindReLU, []*ir.Value{add3.Output(0)}, f32(1, 8))
	add4 := d.add("add4", ir.KindAdd, []*ir.Value{relu3.Output(0), c}, f32(1, 8))
	d.add("tanh", ir.KindTanh, []*ir.Value{add4.Output(0)}, f32(1, 8))
	return d
}

// MLP builds a 2 layer perceptron with a softmax, where the hidden layer output is also a graph output:
//
//	matmul1 -> add1 -> relu1 -> matmul2 -> add2 -> softmax
//	                         -> (output)
func MLP(engine ir.EngineKind) *Demo {
	d := &Demo{Graph: ir.NewGraph("mlp", engine), Nodes: make(map[string]*ir.Node)}
	g := d.Graph
	x := g.Input(f32(32, 64))
	w1 := g.Input(f32(64, 128))
	b1 := g.Input(f32(128))
	w2 := g.Input(f32(128, 10))
	b2 := g.Input(f32(10))

	matmul1 := d.add("matmul1", ir.KindMatMul, []*ir.Value{x, w1}, f32(32, 128))
	add1 := d.add("add1", ir.KindAdd, []*ir.Value{matmul1.Output(0), b1}, f32(32, 128))
	relu1 := d.add("relu1", ir.KindReLU, []*ir.Value{add1.Output(0)}, f32(32, 128))
	d.add("hidden", ir.KindTypeCast, []*ir.Value{relu1.Output(0)}, ir.Strided(dtypes.Float16, 32, 128))
	matmul2 := d.add("matmul2", ir.KindMatMul, []*ir.Value{relu1.Output(0), w2}, f32(32, 10))
	add2 := d.add("add2", ir.KindAdd, []*ir.Value{matmul2.Output(0), b2}, f32(32, 10))
	softmax := d.add("softmax", ir.KindSoftMax, []*ir.Value{add2.Output(0)}, f32(32, 10))
	must.M(softmax.SetAttr("axis", ir.Int(-1)))
	return d
}
