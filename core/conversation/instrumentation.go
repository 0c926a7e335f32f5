package conversation

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-live/core/conversation"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	finalizedTurns, _ = meter.Int64Counter(
		"conversation.turns.finalized",
		metric.WithDescription("Agent turns finalized by outcome"),
	)
	agentErrors, _ = meter.Int64Counter(
		"conversation.agent_errors",
		metric.WithDescription("Errors reported inline by the agent"),
	)
)

func outcomeAttr(outcome TurnOutcome) attribute.KeyValue {
	return attribute.String("outcome", string(outcome))
}
