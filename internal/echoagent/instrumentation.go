package echoagent

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-live/internal/echoagent"

var logger = otelslog.NewLogger(scopeName)
