package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("recgen/business")

	// Component action metrics
	DetectionsTotal        metric.Int64Counter
	RecipeGenerationsTotal metric.Int64Counter
	StaleResponsesTotal    metric.Int64Counter
	BusyRejectionsTotal    metric.Int64Counter

	// External API metrics
	ExternalAPICallsTotal metric.Int64Counter
	ExternalAPIDuration   metric.Float64Histogram

	// Renderer metrics
	RenderedBlocks metric.Int64Histogram
)

func init() {
	// Instruments must be usable before Init, e.g. in tests.
	if err := Init(); err != nil {
		otel.Handle(err)
	}
}

// Init (re)creates the instruments from the current global meter provider.
func Init() error {
	var err error
	meter = otel.Meter("recgen/business")

	DetectionsTotal, err = meter.Int64Counter(
		"recgen.detections.total",
		metric.WithDescription("Total number of detect actions, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	RecipeGenerationsTotal, err = meter.Int64Counter(
		"recgen.recipe_generations.total",
		metric.WithDescription("Total number of recipe selections, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	StaleResponsesTotal, err = meter.Int64Counter(
		"recgen.stale_responses.total",
		metric.WithDescription("Remote responses discarded because newer state superseded them"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	BusyRejectionsTotal, err = meter.Int64Counter(
		"recgen.busy_rejections.total",
		metric.WithDescription("Actions rejected because another one was in flight"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPICallsTotal, err = meter.Int64Counter(
		"external.api.calls.total",
		metric.WithDescription("Total number of external API calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPIDuration, err = meter.Float64Histogram(
		"external.api.duration",
		metric.WithDescription("Duration of external API calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return err
	}

	RenderedBlocks, err = meter.Int64Histogram(
		"recgen.render.blocks",
		metric.WithDescription("Number of display blocks per rendered recipe"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0, 5, 10, 20, 40, 80),
	)
	if err != nil {
		return err
	}

	return nil
}
