package main

import "go.opentelemetry.io/contrib/bridges/otelslog"

var logger = otelslog.NewLogger("github.com/koscakluka/ema-live/cmd/ema-live")
