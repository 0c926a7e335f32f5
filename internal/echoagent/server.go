// Package echoagent is a loopback stand-in for the remote agent. It speaks
// the same downstream protocol: it greets new sessions, answers text with
// streamed full-text deltas, acknowledges images, and plays microphone audio
// back at the downstream rate with a transcript line per second of speech.
package echoagent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultGreeting      = "Hi, I'm the echo agent. Say something or type a message."
	DefaultDeltaInterval = 40 * time.Millisecond

	author = "echo_agent"
)

type Option func(*Server)

func WithGreeting(greeting string) Option {
	return func(s *Server) {
		s.greeting = greeting
	}
}

// WithDeltaInterval sets the pause between streamed text deltas.
func WithDeltaInterval(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.deltaInterval = d
		}
	}
}

type Server struct {
	greeting      string
	deltaInterval time.Duration
	upgrader      websocket.Upgrader
}

func New(opts ...Option) *Server {
	s := &Server{
		greeting:      DefaultGreeting,
		deltaInterval: DefaultDeltaInterval,
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler serves /ws/{user_id}/{session_id}.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{user_id}/{session_id}", s.serveSession)
	return otelhttp.NewHandler(mux, "echo-agent")
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.Info("echo agent listening", "address", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("echo agent stopped: %w", err)
	}
	return nil
}

func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID := r.PathValue("user_id"), r.PathValue("session_id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	upsampler, err := audio.NewUpsampler(audio.UpstreamSampleRate, audio.DownstreamSampleRate)
	if err != nil {
		logger.Error("failed to create upsampler", "error", err)
		return
	}

	sess := &session{server: s, conn: conn, upsampler: upsampler}
	logger.Info("session opened", "user_id", userID, "session_id", sessionID)
	defer logger.Info("session closed", "user_id", userID, "session_id", sessionID)

	sess.speak(s.greeting)
	sess.serve()
}

type session struct {
	server    *Server
	conn      *websocket.Conn
	upsampler *audio.Upsampler

	heard time.Duration
}

func (s *session) serve() {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read failed", "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.echoAudio(data)
		case websocket.TextMessage:
			s.handleText(data)
		}
	}
}

type upstreamMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

func (s *session) handleText(data []byte) {
	var msg upstreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn("dropping malformed upstream message", "error", err)
		return
	}

	switch msg.Type {
	case "text":
		text := strings.TrimSpace(msg.Text)
		if strings.EqualFold(text, "interrupt") {
			s.send(transport.ServerMessage{Interrupted: true})
			return
		}
		s.speak("You said: " + text)

	case "image":
		image, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			s.send(transport.ServerMessage{ErrorCode: "INVALID_ARGUMENT", ErrorMessage: "image data is not valid base64"})
			return
		}
		s.speak(fmt.Sprintf("I received a %s image of %d bytes.", msg.MimeType, len(image)))

	default:
		logger.Warn("dropping upstream message with unknown type", "type", msg.Type)
	}
}

// speak streams text as cumulative partial deltas, then the final text and
// turn completion.
func (s *session) speak(text string) {
	words := strings.Fields(text)
	for i := range words {
		s.send(transport.ServerMessage{
			Author:  author,
			Partial: true,
			Content: &transport.Content{Role: "model", Parts: []transport.Part{{Text: strings.Join(words[:i+1], " ")}}},
		})
		if s.server.deltaInterval > 0 {
			time.Sleep(s.server.deltaInterval)
		}
	}
	s.send(transport.ServerMessage{
		Author:  author,
		Content: &transport.Content{Role: "model", Parts: []transport.Part{{Text: text}}},
	})
	s.send(transport.ServerMessage{Author: author, TurnComplete: true})
}

func (s *session) echoAudio(pcm []byte) {
	samples := audio.DecodeLinear16(pcm)
	if len(samples) == 0 {
		return
	}

	resampled, err := s.upsampler.Process(samples)
	if err != nil {
		logger.Warn("failed to resample echo", "error", err)
		return
	}
	if len(resampled) > 0 {
		s.write(websocket.BinaryMessage, audio.EncodeLinear16(resampled))
	}

	before := s.heard
	s.heard += audio.Upstream.SampleDuration(int64(len(samples)))
	if s.heard.Truncate(time.Second) > before.Truncate(time.Second) {
		line := fmt.Sprintf("(%.0f seconds of audio)", s.heard.Truncate(time.Second).Seconds())
		s.send(transport.ServerMessage{InputTranscription: &transport.Transcription{Text: line, Finished: true}})
		s.send(transport.ServerMessage{
			Author:              author,
			OutputTranscription: &transport.Transcription{Text: "echo " + line, Finished: true},
		})
		s.send(transport.ServerMessage{Author: author, TurnComplete: true})
	}
}

func (s *session) send(msg transport.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("failed to encode downstream message", "error", err)
		return
	}
	s.write(websocket.TextMessage, data)
}

func (s *session) write(messageType int, data []byte) {
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		logger.Debug("write failed", "error", err)
	}
}
