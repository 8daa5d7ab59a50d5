package metrics

import (
	"context"
	"testing"
)

func TestInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx := context.Background()
	// Recording on the no-op provider must not panic.
	DetectionsTotal.Add(ctx, 1)
	RecipeGenerationsTotal.Add(ctx, 1)
	StaleResponsesTotal.Add(ctx, 1)
	BusyRejectionsTotal.Add(ctx, 1)
	ExternalAPICallsTotal.Add(ctx, 1)
	ExternalAPIDuration.Record(ctx, 0.25)
	RenderedBlocks.Record(ctx, 6)
}
