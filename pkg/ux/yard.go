// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Cell is one block in a rendered yard.
type Cell struct {
	ID int

	// VoidBound marks a block that must leave through VOID.
	VoidBound bool

	// Blocking marks a block stacked above a VoidBound one.
	Blocking bool
}

// YardView is the renderable form of a yard.
type YardView struct {
	Length, Width, Height int

	// Stacks is indexed by x*Width+z, each listed bottom first.
	Stacks [][]Cell

	// Arrival lists the queue, head first.
	Arrival []Cell
}

func (v YardView) stack(x, z int) []Cell {
	i := x*v.Width + z
	if i < 0 || i >= len(v.Stacks) {
		return nil
	}
	return v.Stacks[i]
}

// RenderYard draws one grid per tier, top tier first. Rows are z, columns
// are x. Machine mode prints one "x,z<TAB>ids" line per non-empty column.
func (p *Printer) RenderYard(v YardView) string {
	if p.mode == ModeMachine {
		return renderYardMachine(v)
	}

	cellWidth := 2
	for _, s := range v.Stacks {
		for _, c := range s {
			cellWidth = max(cellWidth, len(strconv.Itoa(c.ID)))
		}
	}
	for _, c := range v.Arrival {
		cellWidth = max(cellWidth, len(strconv.Itoa(c.ID)))
	}

	var tiers []string
	for y := v.Height - 1; y >= 0; y-- {
		var b strings.Builder
		b.WriteString(p.style(Styles.Subtitle, fmt.Sprintf("tier %d", y)))
		for z := 0; z < v.Width; z++ {
			b.WriteString("\n")
			for x := 0; x < v.Length; x++ {
				if x > 0 {
					b.WriteString(" ")
				}
				s := v.stack(x, z)
				if y >= len(s) {
					b.WriteString(p.style(Styles.Muted, pad(".", cellWidth)))
					continue
				}
				b.WriteString(p.cell(s[y], cellWidth))
			}
		}
		tiers = append(tiers, b.String())
	}

	body := strings.Join(tiers, "\n\n")
	if p.mode == ModeRich {
		body = lipgloss.JoinHorizontal(lipgloss.Top, joinTiers(tiers)...)
	}

	arrival := make([]string, len(v.Arrival))
	for i, c := range v.Arrival {
		arrival[i] = p.cell(c, 0)
	}
	queue := "empty"
	if len(arrival) > 0 {
		queue = strings.Join(arrival, " "+string(IconArrow)+" ")
	}
	footer := fmt.Sprintf("%s %s", p.style(Styles.Muted, "arrival:"), queue)
	return body + "\n" + footer
}

// cell styles one block id: VOID-bound blocks in amber, blockers in red.
func (p *Printer) cell(c Cell, width int) string {
	text := pad(strconv.Itoa(c.ID), width)
	switch {
	case c.VoidBound:
		if p.mode == ModePlain {
			return text + "*"
		}
		return p.style(Styles.Warning.Bold(true), text)
	case c.Blocking:
		if p.mode == ModePlain {
			return text + "!"
		}
		return p.style(Styles.Error, text)
	default:
		if p.mode == ModePlain {
			return text + " "
		}
		return p.style(Styles.Subtitle, text)
	}
}

func joinTiers(tiers []string) []string {
	out := make([]string, 0, 2*len(tiers))
	for i, t := range tiers {
		if i > 0 {
			out = append(out, "   ")
		}
		out = append(out, Styles.Box.Render(t))
	}
	return out
}

func renderYardMachine(v YardView) string {
	var b strings.Builder
	for x := 0; x < v.Length; x++ {
		for z := 0; z < v.Width; z++ {
			s := v.stack(x, z)
			if len(s) == 0 {
				continue
			}
			fmt.Fprintf(&b, "%d,%d\t%s\n", x, z, joinIDs(s))
		}
	}
	fmt.Fprintf(&b, "arrival\t%s", joinIDs(v.Arrival))
	return b.String()
}

func joinIDs(cells []Cell) string {
	ids := make([]string, len(cells))
	for i, c := range cells {
		ids[i] = strconv.Itoa(c.ID)
		if c.VoidBound {
			ids[i] += "*"
		}
	}
	return strings.Join(ids, " ")
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// PlanStep is one row of a rendered plan.
type PlanStep struct {
	BlockID int
	From    string
	To      string
	Cost    int
}

// RenderPlan lists moves with their running cost.
func (p *Printer) RenderPlan(steps []PlanStep) string {
	var b strings.Builder
	total := 0
	for i, s := range steps {
		total += s.Cost
		if p.mode == ModeMachine {
			fmt.Fprintf(&b, "%d\t%d\t%s\t%s\t%d\n", i+1, s.BlockID, s.From, s.To, s.Cost)
			continue
		}
		fmt.Fprintf(&b, "%s block %s %s %s %s %s\n",
			p.style(Styles.Muted, fmt.Sprintf("%3d.", i+1)),
			p.style(Styles.Bold, strconv.Itoa(s.BlockID)),
			s.From, IconArrow, s.To,
			p.style(Styles.Muted, fmt.Sprintf("(+%d = %d)", s.Cost, total)))
	}
	return b.String()
}
