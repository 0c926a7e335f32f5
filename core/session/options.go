package session

import (
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/conversation"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/transport"
)

const (
	DefaultServer         = "ws://localhost:8000"
	DefaultUserID         = "user"
	DefaultReconnectDelay = 2 * time.Second
)

type Option func(*Manager)

func WithServer(server string) Option {
	return func(m *Manager) {
		m.server = server
	}
}

func WithUserID(userID string) Option {
	return func(m *Manager) {
		m.userID = userID
	}
}

// WithSessionID pins the session id. By default a random one is generated
// and kept for the lifetime of the manager, reconnects included.
func WithSessionID(sessionID string) Option {
	return func(m *Manager) {
		m.sessionID = sessionID
	}
}

func WithDialer(dialer transport.Dialer) Option {
	return func(m *Manager) {
		m.dialer = dialer
	}
}

func WithAudioHost(host audio.Host) Option {
	return func(m *Manager) {
		m.host = host
	}
}

func WithReconnectDelay(delay time.Duration) Option {
	return func(m *Manager) {
		if delay >= 0 {
			m.reconnectDelay = delay
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		m.observer.with(observer)
	}
}

func WithConversation(opts ...conversation.TrackerOption) Option {
	return func(m *Manager) {
		m.trackerOpts = append(m.trackerOpts, opts...)
	}
}

func WithCaptureOptions(opts ...audio.CaptureOption) Option {
	return func(m *Manager) {
		m.captureOpts = append(m.captureOpts, opts...)
	}
}

func WithPlaybackOptions(opts ...playback.SchedulerOption) Option {
	return func(m *Manager) {
		m.playbackOpts = append(m.playbackOpts, opts...)
	}
}
