// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends_test

import (
	"sync"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fusegraph/backends"
	"github.com/gomlx/fusegraph/backends/fake"
	"github.com/gomlx/fusegraph/backends/fusing"
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/demos"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// debugOnly is a backend that only accepts PolicyDebug, and claims nothing.
type debugOnly struct {
	name     string
	priority float32
	panics   bool
	passes   bool
}

func (b *debugOnly) Name() string         { return b.name }
func (b *debugOnly) Priority() float32    { return b.priority }
func (b *debugOnly) RegisterPasses() bool { return b.passes }
func (b *debugOnly) Capabilities() backends.Capabilities {
	return backends.Capabilities{Policies: map[backends.Policy]bool{backends.PolicyDebug: true}}
}
func (b *debugOnly) GetPartitions(g *ir.Graph, policy backends.Policy) error {
	if err := backends.CheckPolicy(b, policy); err != nil {
		return err
	}
	if b.panics {
		exceptions.Panicf("backend %q always panics", b.name)
	}
	return nil
}

var registerOnce sync.Once

func registerTestBackends() {
	registerOnce.Do(func() {
		backends.Register(&debugOnly{name: "debug_only", priority: 100, passes: true})
	})
}

func TestRegistry(t *testing.T) {
	registerTestBackends()
	list := backends.List()
	require.GreaterOrEqual(t, len(list), 3)
	names := make([]string, len(list))
	for ii, b := range list {
		names[ii] = b.Name()
	}
	assert.Equal(t, []string{"debug_only", fusing.BackendName, fake.BackendName}, names)

	b, err := backends.Get("debug_only")
	require.NoError(t, err)
	assert.Equal(t, float32(100), b.Priority())
	_, err = backends.Get("nonexistent")
	require.ErrorIs(t, err, ir.ErrInvalidArgument)

	require.Panics(t, func() { backends.Register(&debugOnly{name: "debug_only", passes: true}) }, "registered twice")
	require.Panics(t, func() { backends.Register(&debugOnly{name: "no_passes", passes: false}) })
	_, err = backends.Get("no_passes")
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Setenv(backends.FUSEGRAPH_BACKEND, fake.BackendName)
	b, err := backends.Default()
	require.NoError(t, err)
	assert.Equal(t, fake.BackendName, b.Name())

	t.Setenv(backends.FUSEGRAPH_BACKEND, "")
	backends.DefaultName = fusing.BackendName
	defer func() { backends.DefaultName = "" }()
	b, err = backends.Default()
	require.NoError(t, err)
	assert.Equal(t, fusing.BackendName, b.Name())

	backends.DefaultName = "unknown"
	_, err = backends.Default()
	require.ErrorIs(t, err, ir.ErrInvalidArgument)
}

func TestPolicy(t *testing.T) {
	p, err := backends.PolicyFromString("Fusion")
	require.NoError(t, err)
	assert.Equal(t, backends.PolicyFusion, p)
	p, err = backends.PolicyFromString("debug")
	require.NoError(t, err)
	assert.Equal(t, backends.PolicyDebug, p)
	_, err = backends.PolicyFromString("largest")
	require.ErrorIs(t, err, ir.ErrInvalidArgument)

	err = backends.CheckPolicy(&debugOnly{name: "x"}, backends.PolicyFusion)
	require.ErrorIs(t, err, ir.ErrUnimplemented)
	require.NoError(t, backends.CheckPolicy(&debugOnly{name: "x"}, backends.PolicyDebug))
}

func TestGetPartitionsRecoversPanics(t *testing.T) {
	g := demos.MLP(ir.EngineCPU).Graph
	err := backends.GetPartitions(&debugOnly{name: "panicky", panics: true}, g, backends.PolicyDebug)
	require.ErrorIs(t, err, ir.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "always panics")
}

func TestPartition(t *testing.T) {
	registerTestBackends()
	d := demos.ConvNet(ir.EngineCPU)
	g, n := d.Graph, d.Nodes
	require.NoError(t, backends.Partition(g, backends.PolicyFusion))
	require.NoError(t, g.Validate())

	// Every node is claimed exactly once: reshape by the fake backend, the others by the fusing backend.
	claimed := make(map[ir.NodeId]ir.PartitionId)
	for _, p := range g.Partitions() {
		for _, id := range p.NodeIds() {
			prev, found := claimed[id]
			require.False(t, found, "node #%d claimed by partitions %d and %d", id, prev, p.Id())
			claimed[id] = p.Id()
		}
	}
	for _, node := range g.Nodes() {
		require.NotNil(t, node.Partition(), "node %s not claimed", node)
	}
	assert.Equal(t, fake.BackendName, n["reshape"].Partition().Backend())
	assert.Equal(t, fusing.BackendName, n["conv1"].Partition().Backend())
}

func TestHandOff(t *testing.T) {
	d := demos.MLP(ir.EngineCPU)
	g, n := d.Graph, d.Nodes
	backend, err := backends.Get(fake.BackendName)
	require.NoError(t, err)
	require.NoError(t, backends.GetPartitions(backend, g, backends.PolicyDebug))

	// matmul1: inputs x[32, 64] and w1[64, 128], output [32, 128].
	p := n["matmul1"].Partition()
	require.NotNil(t, p)
	err = backends.HandOff(p, []ir.TensorDesc{ir.Strided(dtypes.Float32, 32, 64)}, nil)
	require.ErrorIs(t, err, ir.ErrShapeMismatch)
	assert.False(t, p.IsFrozen())

	require.NoError(t, backends.HandOff(p,
		[]ir.TensorDesc{ir.Strided(dtypes.Float32, 32, 64), ir.Strided(dtypes.Float32, 64, 128)},
		[]ir.TensorDesc{ir.Strided(dtypes.Float32, 32, 128)}))
	assert.True(t, p.IsFrozen())
	require.ErrorIs(t, backends.HandOff(p, nil, nil), ir.ErrInvalidArgument)
	err = p.BindInputsOutputs(
		[]ir.TensorDesc{ir.Strided(dtypes.Float32, 32, 64), ir.Strided(dtypes.Float32, 64, 128)},
		[]ir.TensorDesc{ir.Strided(dtypes.Float32, 32, 128)})
	require.ErrorIs(t, err, ir.ErrInvalidArgument)

	// Placeholders are kept when no descriptors are given.
	softmax := n["softmax"].Partition()
	require.NoError(t, backends.HandOff(softmax, nil, nil))
	assert.True(t, softmax.IsFrozen())
	assert.Equal(t, 10, softmax.Outputs()[0].Shape().Dim(1))
}

func TestCapabilities(t *testing.T) {
	caps := backends.Capabilities{
		Kinds:    map[ir.Kind]bool{ir.KindReLU: true},
		DTypes:   map[dtypes.DType]bool{dtypes.Float32: true},
		Policies: map[backends.Policy]bool{backends.PolicyFusion: true},
	}
	g := ir.NewGraph("caps", ir.EngineCPU)
	x := g.Input(ir.Strided(dtypes.Float32, 3))
	relu := g.AddNode(ir.KindReLU, []*ir.Value{x}, ir.Strided(dtypes.Float32, 3))
	cast := g.AddNode(ir.KindTypeCast, []*ir.Value{relu.Output(0)}, ir.Strided(dtypes.Float16, 3))
	relu16 := g.AddNode(ir.KindReLU, []*ir.Value{cast.Output(0)}, ir.Strided(dtypes.Float16, 3))
	assert.True(t, caps.Supports(relu))
	assert.False(t, caps.Supports(cast))
	assert.False(t, caps.Supports(relu16))

	clone := caps.Clone()
	clone.Kinds[ir.KindTypeCast] = true
	assert.False(t, caps.Kinds[ir.KindTypeCast])
}
