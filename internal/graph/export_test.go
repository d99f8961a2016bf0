// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import "context"

// RunOnLoopForTest runs fn on the graph's event loop.
func (g *Graph) RunOnLoopForTest(ctx context.Context, fn func()) error {
	return g.do(ctx, func() error {
		fn()
		return nil
	})
}

// BlendColors exposes blendColors for tests.
var BlendColors = blendColors

// EdgeID exposes edgeID for tests.
var EdgeID = edgeID
