// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/fusegraph/pkg/core/ir"
	"github.com/gomlx/fusegraph/pkg/support/xslices"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = evenRowStyle
			} else {
				s = oddRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// report prints one row per partition of g, and the nodes left unclaimed.
func report(g *ir.Graph) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Graph %q (%s): %d nodes, %d partitions",
		g.Name(), g.Engine(), g.NumNodes(), g.NumPartitions())))

	table := newPlainTable().
		Headers("id", "backend", "pattern", "kinds", "nodes", "#in", "#out", "boundary")
	for _, p := range g.Partitions() {
		fused := p.FusedNode()
		kinds := xslices.Map(p.Members(), func(n *ir.Node) string { return n.Kind().String() })
		ids := xslices.Map(p.NodeIds(), func(id ir.NodeId) string { return fmt.Sprintf("#%d", id) })
		table.Row(
			fmt.Sprintf("%d", p.Id()),
			p.Backend(),
			fused.Attrs().StringOr(ir.AttrPattern, "-"),
			strings.Join(kinds, ","),
			strings.Join(ids, " "),
			humanize.Comma(int64(len(p.Inputs()))),
			humanize.Comma(int64(len(p.Outputs()))),
			humanize.Bytes(uint64(p.BoundaryMemory())),
		)
	}
	fmt.Println(table.Render())

	var unclaimed []string
	for _, node := range g.Nodes() {
		if node.Partition() == nil {
			unclaimed = append(unclaimed, node.String())
		}
	}
	if len(unclaimed) > 0 {
		fmt.Printf("Unclaimed nodes (%d):\n", len(unclaimed))
		for _, s := range unclaimed {
			fmt.Printf("\t%s\n", s)
		}
	}
	if *flagGraphs {
		fmt.Println()
		fmt.Println(g)
	}
}
