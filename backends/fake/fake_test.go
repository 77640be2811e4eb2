// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package fake

import (
	"testing"

	"github.com/gomlx/fusegraph/backends"
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/demos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	b, err := backends.Get(BackendName)
	require.NoError(t, err)
	assert.Equal(t, BackendName, b.Name())
	caps := b.Capabilities()
	assert.True(t, caps.Kinds[ir.KindReshape])
	assert.False(t, caps.Kinds[ir.KindFused])
	assert.False(t, caps.Kinds[ir.KindWildcard])
}

func TestGetPartitions(t *testing.T) {
	for _, policy := range []backends.Policy{backends.PolicyFusion, backends.PolicyDebug} {
		t.Run(policy.String(), func(t *testing.T) {
			d := demos.MLP(ir.EngineGPU)
			g := d.Graph
			b := New("fake_test", 0)
			require.True(t, b.RegisterPasses())
			require.NoError(t, b.GetPartitions(g, policy))
			require.NoError(t, g.Validate())

			// One partition per node.
			require.Equal(t, g.NumNodes(), g.NumPartitions())
			claimed := make(map[ir.NodeId]bool)
			for _, p := range g.Partitions() {
				require.Len(t, p.Members(), 1)
				member := p.Members()[0]
				assert.Equal(t, []ir.NodeId{member.Id()}, p.NodeIds())
				assert.False(t, claimed[member.Id()])
				claimed[member.Id()] = true
				assert.Equal(t, ir.EngineGPU, p.Engine())
				assert.Len(t, p.Inputs(), member.NumInputs())
				assert.Len(t, p.Outputs(), member.NumOutputs())
			}

			// Running again claims nothing new.
			require.NoError(t, b.GetPartitions(g, policy))
			assert.Equal(t, g.NumNodes(), g.NumPartitions())
		})
	}
}

func TestRestrictedKinds(t *testing.T) {
	d := demos.MLP(ir.EngineCPU)
	b := New("fake_relu", 0, ir.KindReLU)
	require.True(t, b.RegisterPasses())
	require.NoError(t, b.GetPartitions(d.Graph, backends.PolicyFusion))
	require.Equal(t, 1, d.Graph.NumPartitions())
	assert.Equal(t, d.Nodes["relu1"], d.Graph.Partition(0).Members()[0])
	assert.Equal(t, "fake_relu_ReLU", d.Graph.Partition(0).FusedNode().Attrs().StringOr(ir.AttrPattern, ""))
}
