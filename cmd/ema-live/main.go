package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koscakluka/ema-live/internal/config"
	"github.com/koscakluka/ema-live/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	configPath string
	settings   = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "ema-live",
	Short: "Live voice client for a remote conversational agent",
	Long: `ema-live streams microphone audio and images to a conversational agent
over one websocket and plays the agent's audio and text back as it arrives.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./ema-live.yaml)")
	rootCmd.PersistentFlags().String("log-file", "ema-live.log", "file to write logs to")

	rootCmd.AddCommand(connectCmd, echoAgentCmd, schemaCmd)
}

// loadConfig binds the command's flags and reads the layered configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.BindFlags(settings, cmd.Flags()); err != nil {
		return nil, err
	}
	return config.Load(settings, configPath)
}

// withTelemetry installs the log pipeline for the duration of run.
func withTelemetry(cfg *config.Config, run func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(cfg.Log.File)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	return run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

