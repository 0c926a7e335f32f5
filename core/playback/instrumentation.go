package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/playback"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	overruns, _ = meter.Int64Counter(
		"playback.scheduler.overruns",
		metric.WithDescription("Enqueues that pushed queued audio past the sink capacity"),
	)
	evictedSamples, _ = meter.Int64Counter(
		"playback.scheduler.evicted_samples",
		metric.WithDescription("Queued samples dropped to make room for newer audio"),
		metric.WithUnit("{sample}"),
	)
	underruns, _ = meter.Int64Counter(
		"playback.render.underruns",
		metric.WithDescription("Render buffers padded with silence"),
	)
)
