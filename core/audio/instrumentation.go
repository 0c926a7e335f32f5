package audio

import (
	"context"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/audio"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	droppedFrames, _ = meter.Int64Counter(
		"audio.capture.dropped_frames",
		metric.WithDescription("Capture frames discarded before reaching the transport"),
	)

	reasonQueueFull  = attribute.String("reason", "queue_full")
	reasonConversion = attribute.String("reason", "conversion")

	// Metric calls from the capture callback have no request context.
	ctxBackground = context.Background()
)
