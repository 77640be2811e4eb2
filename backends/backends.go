// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface a partitioning backend needs to implement, and the process-wide
// registry of backends.
//
// A backend claims the nodes of a graph it can execute, grouping them into partitions (see ir.Partition),
// possibly fusing several nodes into one partition with pattern passes. Kernel generation happens later,
// when the backend compiles its partitions, and is outside the scope of this package.
//
// Backends register themselves during package initialization (see package backends/default), and the
// registry is only read afterwards.
package backends

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Policy selects how a backend partitions a graph.
type Policy int

const (
	// PolicyFusion runs the pattern passes of the backend, fusing matched nodes into multi-node partitions.
	PolicyFusion Policy = iota

	// PolicyDebug bypasses fusion: each supported node becomes its own partition.
	PolicyDebug
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case PolicyFusion:
		return "fusion"
	case PolicyDebug:
		return "debug"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// PolicyFromString parses the name of a policy.
func PolicyFromString(name string) (Policy, error) {
	switch strings.ToLower(name) {
	case "fusion":
		return PolicyFusion, nil
	case "debug":
		return PolicyDebug, nil
	}
	return 0, errors.Wrapf(ir.ErrInvalidArgument, "unknown partition policy %q, valid values are \"fusion\" or \"debug\"", name)
}

// Backend is the API a partitioning backend needs to implement.
type Backend interface {
	// Name returns the short unique name of the backend, e.g. "fake" or "fusing".
	Name() string

	// Priority of the backend: when partitioning a graph with Partition, backends with higher priority
	// claim nodes first.
	Priority() float32

	// RegisterPasses installs the pattern passes of the backend. It is called once, by Register, and a
	// backend returning false is not registered.
	RegisterPasses() bool

	// GetPartitions creates partitions on g for the nodes the backend supports, that are not yet
	// claimed by another partition.
	//
	// It returns an error wrapping ir.ErrUnimplemented if the policy is not supported.
	GetPartitions(g *ir.Graph, policy Policy) error

	// Capabilities returns what the backend supports.
	Capabilities() Capabilities
}

var (
	muRegistry      sync.RWMutex
	registered      = make(map[string]Backend)
	firstRegistered string
)

// Register a backend, after calling its RegisterPasses.
//
// It panics if a backend with the same name is already registered, or if RegisterPasses fails.
// To be safe, call Register during initialization of a package.
func Register(backend Backend) {
	name := backend.Name()
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if _, found := registered[name]; found {
		exceptions.Panicf("backend %q registered twice", name)
	}
	if !backend.RegisterPasses() {
		exceptions.Panicf("backend %q failed to register its passes", name)
	}
	if len(registered) == 0 {
		firstRegistered = name
	}
	registered[name] = backend
	klog.V(1).Infof("registered backend %q (priority %g)", name, backend.Priority())
}

// Get returns the registered backend with the given name.
func Get(name string) (Backend, error) {
	muRegistry.RLock()
	defer muRegistry.RUnlock()
	backend, found := registered[name]
	if !found {
		return nil, errors.Wrapf(ir.ErrInvalidArgument, "backend %q not registered, registered backends: %v",
			name, namesLocked())
	}
	return backend, nil
}

// List returns the registered backends, sorted by decreasing priority (and name for equal priorities).
func List() []Backend {
	muRegistry.RLock()
	defer muRegistry.RUnlock()
	list := make([]Backend, 0, len(registered))
	for _, backend := range registered {
		list = append(list, backend)
	}
	slices.SortFunc(list, func(a, b Backend) int {
		if a.Priority() != b.Priority() {
			if a.Priority() > b.Priority() {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name(), b.Name())
	})
	return list
}

func namesLocked() []string {
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultName is the name of the default backend, used if FUSEGRAPH_BACKEND is not set.
var DefaultName string

// FUSEGRAPH_BACKEND is the environment variable with the name of the default backend.
const FUSEGRAPH_BACKEND = "FUSEGRAPH_BACKEND"

// Default returns the default backend:
//
// 1. The backend named by the environment variable FUSEGRAPH_BACKEND, if defined.
// 2. Next the backend named by DefaultName, if defined.
// 3. The first registered backend.
func Default() (Backend, error) {
	if name, found := os.LookupEnv(FUSEGRAPH_BACKEND); found && name != "" {
		return Get(name)
	}
	if DefaultName != "" {
		return Get(DefaultName)
	}
	muRegistry.RLock()
	first := firstRegistered
	muRegistry.RUnlock()
	if first == "" {
		return nil, errors.Wrapf(ir.ErrInvalidArgument,
			`no registered backends, maybe import the default ones with import _ "github.com/gomlx/fusegraph/backends/default"?`)
	}
	return Get(first)
}

// CheckPolicy returns an error wrapping ir.ErrUnimplemented if backend doesn't support policy.
func CheckPolicy(backend Backend, policy Policy) error {
	if !backend.Capabilities().Policies[policy] {
		return errors.Wrapf(ir.ErrUnimplemented, "backend %q doesn't support policy %s", backend.Name(), policy)
	}
	return nil
}

// GetPartitions runs backend.GetPartitions on g, converting panics (contract violations) into errors
// wrapping ir.ErrInvalidArgument.
func GetPartitions(backend Backend, g *ir.Graph, policy Policy) (err error) {
	exception := exceptions.TryCatch[error](func() { err = backend.GetPartitions(g, policy) })
	if exception != nil {
		if errors.Is(exception, ir.ErrInvalidArgument) {
			return exception
		}
		return errors.Wrapf(ir.ErrInvalidArgument, "backend %q failed partitioning graph %q: %+v",
			backend.Name(), g.Name(), exception)
	}
	return err
}

// Partition runs every registered backend that supports policy on g, by decreasing priority, so each node is
// claimed by at most one backend, the one with the highest priority that supports it.
//
// Backends not supporting the policy are skipped. It returns an error wrapping ir.ErrUnimplemented if no
// registered backend supports the policy.
func Partition(g *ir.Graph, policy Policy) error {
	var ran int
	for _, backend := range List() {
		if CheckPolicy(backend, policy) != nil {
			klog.V(1).Infof("backend %q skipped: policy %s not supported", backend.Name(), policy)
			continue
		}
		if err := GetPartitions(backend, g, policy); err != nil {
			return err
		}
		ran++
	}
	if ran == 0 {
		return errors.Wrapf(ir.ErrUnimplemented, "no registered backend supports policy %s", policy)
	}
	klog.V(1).Infof("graph %q partitioned with policy %s: %d partitions", g.Name(), policy, g.NumPartitions())
	return nil
}

// HandOff finalizes a partition for compilation by its backend: the given concrete descriptors, if any, are
// bound to the partition's boundary values (see ir.Partition.BindInputsOutputs), and the partition is frozen.
//
// Pass nil inputs and outputs to keep the placeholder descriptors. It returns an error wrapping
// ir.ErrInvalidArgument if the partition was already handed off, or ir.ErrShapeMismatch if the descriptors
// don't fit; in both cases the partition is left unchanged.
func HandOff(p *ir.Partition, inputs, outputs []ir.TensorDesc) error {
	if p.IsFrozen() {
		return errors.Wrapf(ir.ErrInvalidArgument, "partition %d of graph %q was already handed off",
			p.Id(), p.Graph().Name())
	}
	if inputs != nil || outputs != nil {
		if err := p.BindInputsOutputs(inputs, outputs); err != nil {
			return err
		}
	}
	p.Freeze()
	klog.V(2).Infof("handed off %s", p)
	return nil
}
