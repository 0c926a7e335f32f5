package transport

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/transport"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	receivedMessages, _ = meter.Int64Counter(
		"transport.messages.received",
		metric.WithDescription("Inbound websocket messages by kind"),
	)
	malformedMessages, _ = meter.Int64Counter(
		"transport.messages.malformed",
		metric.WithDescription("Inbound text messages dropped by the decoder"),
	)
	decodedEvents, _ = meter.Int64Counter(
		"transport.events.decoded",
		metric.WithDescription("Events decoded from downstream text by kind group"),
	)
	sentBytes, _ = meter.Int64Counter(
		"transport.bytes.sent",
		metric.WithDescription("Outbound payload bytes by kind"),
		metric.WithUnit("By"),
	)

	kindBinary = attribute.String("kind", "binary")
	kindText   = attribute.String("kind", "text")
)
