// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// fusegraph partitions one of the demo graphs with the registered backends and prints the resulting
// partitions.
//
// Example:
//
//	fusegraph -graph=convnet -policy=fusion
//	FUSEGRAPH_DUMP=2 fusegraph -graph=mlp -backend=fusing -v=2
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gomlx/fusegraph/backends"
	_ "github.com/gomlx/fusegraph/backends/default"
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/demos"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagGraph = flag.String("graph", "convnet",
		fmt.Sprintf("Demo graph to partition, one of %q.", demos.Names()))
	flagBackend = flag.String("backend", "", "Backend to partition with. "+
		"If empty, all registered backends supporting --policy run, by decreasing priority.")
	flagPolicy = flag.String("policy", "fusion", `Partitioning policy, "fusion" or "debug".`)
	flagEngine = flag.String("engine", "cpu", `Engine the graph targets, one of "any", "cpu" or "gpu".`)
	flagGraphs = flag.Bool("show_graph", false, "Also print the graph nodes after partitioning.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() > 0 {
		klog.Errorf("Unexpected arguments %q. See 'fusegraph -help'.", flag.Args())
		os.Exit(1)
	}

	engine, err := engineFromString(*flagEngine)
	if err != nil {
		klog.Errorf("%v", err)
		os.Exit(1)
	}
	policy, err := backends.PolicyFromString(*flagPolicy)
	if err != nil {
		klog.Errorf("%v", err)
		os.Exit(1)
	}
	if !slices.Contains(demos.Names(), *flagGraph) {
		klog.Errorf("Unknown graph %q, valid values are %q.", *flagGraph, demos.Names())
		os.Exit(1)
	}

	demo := demos.Build(*flagGraph, engine)
	g := demo.Graph
	if *flagBackend == "" {
		must.M(backends.Partition(g, policy))
	} else {
		backend := must.M1(backends.Get(*flagBackend))
		must.M(backends.CheckPolicy(backend, policy))
		must.M(backends.GetPartitions(backend, g, policy))
	}
	must.M(g.Validate())
	for _, p := range g.Partitions() {
		must.M(backends.HandOff(p, nil, nil))
	}
	report(g)
}

func engineFromString(name string) (ir.EngineKind, error) {
	for _, engine := range []ir.EngineKind{ir.EngineAny, ir.EngineCPU, ir.EngineGPU} {
		if strings.EqualFold(engine.String(), name) {
			return engine, nil
		}
	}
	return ir.EngineAny, errors.Errorf("unknown engine %q, valid values are \"any\", \"cpu\" or \"gpu\"", name)
}
