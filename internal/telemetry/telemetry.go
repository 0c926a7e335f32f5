package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Setup routes every otelslog logger in the process to path. The terminal
// belongs to the UI, so logs never go to stdout. An empty path discards
// logs.
func Setup(path string) (shutdown func(context.Context) error, err error) {
	var (
		w         io.Writer = io.Discard
		closeFile           = func() error { return nil }
	)
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closeFile = f, f.Close
	}

	provider, err := newProvider(w)
	if err != nil {
		closeFile()
		return nil, err
	}
	global.SetLoggerProvider(provider)

	return func(ctx context.Context) error {
		return errors.Join(provider.Shutdown(ctx), closeFile())
	}, nil
}

func newProvider(w io.Writer) (*sdklog.LoggerProvider, error) {
	exporter, err := stdoutlog.New(stdoutlog.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter))), nil
}
