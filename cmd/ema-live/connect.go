package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/audio/miniaudio"
	"github.com/koscakluka/ema-live/core/audio/portaudio"
	"github.com/koscakluka/ema-live/core/conversation"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/session"
	"github.com/koscakluka/ema-live/core/transport"
	"github.com/koscakluka/ema-live/internal/config"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open a live session with the agent",
	Long: `Open a live session with the agent and show the conversation in the
terminal. Type to send text, use /mic and /speaker (or ctrl+t and ctrl+o) to
toggle the devices and /image <path> to share a picture.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return withTelemetry(cfg, func(ctx context.Context) error {
			return runConnect(ctx, cfg)
		})
	},
}

func init() {
	flags := connectCmd.Flags()
	flags.String("server", session.DefaultServer, "agent server URL")
	flags.String("user", session.DefaultUserID, "user id sent in the session path")
	flags.String("session", "", "session id (default a random one)")
	flags.Duration("reconnect-delay", session.DefaultReconnectDelay, "wait before the single reconnect attempt")
	flags.String("backend", config.BackendMiniaudio, "audio backend, miniaudio or portaudio")
	flags.Bool("append-deltas", false, "append partial text deltas instead of replacing the text")
}

func runConnect(ctx context.Context, cfg *config.Config) error {
	host, err := openHost(cfg.Capture)
	if err != nil {
		// Text sessions still work without audio, the controls report the
		// device error when toggled.
		logger.Warn("audio host unavailable", "backend", cfg.Capture.Backend, "error", err)
		host = nil
	}
	if host != nil {
		defer host.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan tea.Msg, 256)
	forward := func(msg tea.Msg) {
		select {
		case updates <- msg:
		case <-ctx.Done():
		}
	}

	opts := []session.Option{
		session.WithServer(cfg.Server.URL),
		session.WithUserID(cfg.Server.UserID),
		session.WithReconnectDelay(cfg.Server.ReconnectDelay),
		session.WithDialer(transport.WebsocketDialer{Timeout: cfg.Server.DialTimeout}),
		session.WithCaptureOptions(
			audio.WithFrameDuration(cfg.Capture.FrameDuration),
			audio.WithFrameQueue(cfg.Capture.QueueSize),
		),
		session.WithPlaybackOptions(playback.WithCapacity(cfg.Playback.Capacity)),
		session.WithObserver(session.Observer{
			OnStateChanged:    func(s session.State) { forward(stateMsg(s)) },
			OnControlsChanged: func(c session.Controls) { forward(controlsMsg(c)) },
			OnNotice:          func(err error) { forward(noticeMsg{err}) },
		}),
		session.WithConversation(conversationOptions(cfg.Conversation, forward)...),
	}
	if host != nil {
		opts = append(opts, session.WithAudioHost(host))
	}
	if cfg.Server.SessionID != "" {
		opts = append(opts, session.WithSessionID(cfg.Server.SessionID))
	}
	manager := session.NewManager(opts...)

	runErr := make(chan error, 1)
	go func() { runErr <- manager.Run(ctx) }()

	program := tea.NewProgram(newModel(ctx, manager, updates), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run terminal UI: %w", err)
	}

	cancel()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func conversationOptions(cfg config.ConversationConfig, forward func(tea.Msg)) []conversation.TrackerOption {
	opts := []conversation.TrackerOption{
		conversation.WithHistoryLimit(cfg.HistoryLimit),
		conversation.WithCallbacks(conversation.Callbacks{
			OnTurnUpdated:   func(turn conversation.Turn) { forward(turnMsg{turn: turn}) },
			OnTurnFinalized: func(turn conversation.Turn) { forward(turnMsg{turn: turn, final: true}) },
			OnTranscriptUpdated: func(role events.Role, text string) {
				forward(transcriptMsg{role: role, text: text})
			},
			OnTranscriptLine: func(conversation.Line) { forward(historyMsg{}) },
			OnToolCall: func(call events.ToolCall) {
				forward(noticeMsg{fmt.Errorf("agent called tool %s", call.Name)})
			},
			OnNotice: func(err error) { forward(noticeMsg{err}) },
		}),
	}
	if cfg.AppendDeltas {
		opts = append(opts, conversation.WithAppendDeltas())
	}
	return opts
}

func openHost(cfg config.CaptureConfig) (audio.Host, error) {
	switch cfg.Backend {
	case config.BackendPortaudio:
		return portaudio.NewHost(cfg.FramesPerBuffer)
	default:
		return miniaudio.NewHost()
	}
}
