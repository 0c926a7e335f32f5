package main

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-live/internal/echoagent"
	"github.com/spf13/cobra"
)

var echoAgentCmd = &cobra.Command{
	Use:   "echo-agent",
	Short: "Run a local loopback agent",
	Long: `Run a local agent that speaks the downstream protocol without any model
behind it. Point "ema-live connect --server ws://<listen>" at it to try the
client end to end.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return withTelemetry(cfg, func(ctx context.Context) error {
			fmt.Fprintf(cmd.OutOrStdout(), "echo agent listening on ws://%s/ws/{user_id}/{session_id}\n", cfg.EchoAgent.Address)
			return echoagent.New().ListenAndServe(ctx, cfg.EchoAgent.Address)
		})
	},
}

func init() {
	echoAgentCmd.Flags().String("listen", "127.0.0.1:8000", "address to listen on")
}
