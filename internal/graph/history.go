// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"context"
	"slices"
)

// pushHistory records a visibility change, dropping any redo steps past
// the cursor.
func (g *Graph) pushHistory(shown, hidden []string) {
	var step Step
	if len(shown) > 0 {
		step.Entries = append(step.Entries, StepEntry{Nodes: slices.Clone(shown), Visible: true})
	}
	if len(hidden) > 0 {
		step.Entries = append(step.Entries, StepEntry{Nodes: slices.Clone(hidden), Visible: false})
	}
	g.history = append(g.history[:g.historyIndex], step)
	g.historyIndex = len(g.history)
}

// Undo reverts the most recent visibility step. It reports false when
// there is nothing to undo.
func (g *Graph) Undo(ctx context.Context) (bool, error) {
	var moved bool
	err := g.do(ctx, func() error {
		if g.historyIndex == 0 {
			return nil
		}
		g.historyIndex--
		g.applyStep(g.history[g.historyIndex], true)
		moved = true
		return nil
	})
	return moved, err
}

// Redo re-applies the step after the history cursor. It reports false
// when there is nothing to redo.
func (g *Graph) Redo(ctx context.Context) (bool, error) {
	var moved bool
	err := g.do(ctx, func() error {
		if g.historyIndex >= len(g.history) {
			return nil
		}
		g.applyStep(g.history[g.historyIndex], false)
		g.historyIndex++
		moved = true
		return nil
	})
	return moved, err
}

func (g *Graph) applyStep(step Step, invert bool) {
	for _, entry := range step.Entries {
		visible := entry.Visible != invert
		for _, id := range entry.Nodes {
			if n, ok := g.nodes[id]; ok {
				n.Visible = visible
			}
		}
	}
	g.updateData(true, true)
}

// HistoryState reports the number of recorded steps and the cursor.
func (g *Graph) HistoryState(ctx context.Context) (steps, index int, err error) {
	err = g.do(ctx, func() error {
		steps, index = len(g.history), g.historyIndex
		return nil
	})
	return steps, index, err
}
