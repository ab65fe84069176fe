package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pstuifzand/minders/internal/model"
)

func TestGenerateOutline(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct{ nodes, depth int }{{1, 3}, {10, 1}, {500, 3}, {1000, 5}} {
		o := generateOutline("loadtest", tc.nodes, tc.depth, now)
		assert.Len(t, o.Items, tc.nodes+1)
		assert.Empty(t, model.Validate(o))

		maxDepth := 0
		o.Walk(func(_ *model.Item, depth int) bool {
			maxDepth = max(maxDepth, depth)
			return true
		})
		assert.LessOrEqual(t, maxDepth, tc.depth)
	}
}
