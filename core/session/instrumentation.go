package session

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/session"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	reconnects, _ = meter.Int64Counter(
		"session.reconnects",
		metric.WithDescription("Reconnect attempts by result"),
	)
	droppedPlayback, _ = meter.Int64Counter(
		"session.playback.dropped_chunks",
		metric.WithDescription("Downstream audio chunks received while the speaker was off"),
	)

	resultSuccess = attribute.String("result", "success")
	resultFailure = attribute.String("result", "failure")
)
