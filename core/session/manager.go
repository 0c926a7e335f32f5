package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/conversation"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrNotConnected     = errors.New("session not connected")
	ErrNotRunning       = errors.New("session manager not running")
	ErrAlreadyRunning   = errors.New("session manager already running")
	ErrConnectCancelled = errors.New("connect cancelled")
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Controls is the state of the user-facing device toggles.
type Controls struct {
	Microphone bool
	Speaker    bool
}

// Observer callbacks run on the manager's loop goroutine and must not call
// back into the manager synchronously.
type Observer struct {
	OnStateChanged    func(State)
	OnControlsChanged func(Controls)
	OnNotice          func(error)
}

func (o *Observer) defaults() *Observer {
	o.OnStateChanged = func(State) {}
	o.OnControlsChanged = func(Controls) {}
	o.OnNotice = func(error) {}
	return o
}

func (o *Observer) with(observer Observer) *Observer {
	if observer.OnStateChanged != nil {
		o.OnStateChanged = observer.OnStateChanged
	}
	if observer.OnControlsChanged != nil {
		o.OnControlsChanged = observer.OnControlsChanged
	}
	if observer.OnNotice != nil {
		o.OnNotice = observer.OnNotice
	}
	return o
}

type action func(reply chan<- error)

type inbound struct {
	gen int
	msg transport.Message
}

type connClosed struct {
	gen int
	err error
}

type dialed struct {
	gen       int
	conn      transport.Conn
	err       error
	reconnect bool
}

// Manager owns the connection and the devices of one client session. All
// state changes happen on the loop started by Run; public methods post into
// it and wait for the result.
type Manager struct {
	server         string
	userID         string
	sessionID      string
	dialer         transport.Dialer
	host           audio.Host
	reconnectDelay time.Duration
	observer       Observer
	trackerOpts    []conversation.TrackerOption
	captureOpts    []audio.CaptureOption
	playbackOpts   []playback.SchedulerOption

	tracker *conversation.Tracker

	actions chan func()
	inbound chan inbound
	closed  chan connClosed
	dialed  chan dialed
	done    chan struct{}
	running atomic.Bool

	state        atomic.Int32
	controlsMu   sync.Mutex
	lastControls Controls

	// Loop-owned.
	runCtx       context.Context
	gen          int
	framer       *transport.Framer
	stopReading  context.CancelFunc
	pendingReply chan<- error
	reconnectAt  *time.Timer
	intent       Controls
	capture      *audio.Capture
	frames       <-chan []byte
	output       *outputContext
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		server:         DefaultServer,
		userID:         DefaultUserID,
		sessionID:      uuid.NewString(),
		dialer:         transport.WebsocketDialer{},
		reconnectDelay: DefaultReconnectDelay,
		observer:       *new(Observer).defaults(),

		actions: make(chan func()),
		inbound: make(chan inbound, 256),
		closed:  make(chan connClosed, 4),
		dialed:  make(chan dialed, 4),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.tracker = conversation.NewTracker(m.trackerOpts...)
	return m
}

func (m *Manager) State() State { return State(m.state.Load()) }

func (m *Manager) Controls() Controls {
	m.controlsMu.Lock()
	defer m.controlsMu.Unlock()
	return m.lastControls
}

func (m *Manager) SessionID() string { return m.sessionID }

func (m *Manager) Conversation() *conversation.Tracker { return m.tracker }

// Run drives the session until ctx is cancelled. Devices and the connection
// are released before it returns.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(m.done)
	m.runCtx = ctx

	for {
		var reconnect <-chan time.Time
		if m.reconnectAt != nil {
			reconnect = m.reconnectAt.C
		}

		select {
		case <-ctx.Done():
			m.teardown()
			return nil

		case fn := <-m.actions:
			fn()

		case res := <-m.dialed:
			m.handleDialed(res)

		case in := <-m.inbound:
			if in.gen == m.gen && m.framer != nil {
				m.framer.Route(ctx, in.msg, transport.Handlers{
					OnAudio: m.playAudio,
					OnEvent: m.tracker.Handle,
				})
			}

		case c := <-m.closed:
			if c.gen == m.gen && m.State() == StateConnected {
				m.connectionLost(c.err)
			}

		case frame := <-m.frames:
			if m.framer != nil {
				if err := m.framer.SendAudio(frame); err != nil {
					logger.Debug("failed to send microphone frame", "error", err)
				}
			}

		case <-reconnect:
			m.reconnectAt = nil
			m.startDial(ctx, true)
		}
	}
}

// Connect dials the agent and waits until the session is connected or the
// attempt failed.
func (m *Manager) Connect(ctx context.Context) error {
	return m.post(ctx, func(reply chan<- error) {
		switch m.State() {
		case StateConnected:
			reply <- nil
			return
		case StateConnecting, StateReconnecting:
			m.cancelReconnect()
			m.replyPending(ErrConnectCancelled)
		}
		m.pendingReply = reply
		m.startDial(ctx, false)
	})
}

// Disconnect ends the session on the user's request. No reconnect follows.
func (m *Manager) Disconnect(ctx context.Context) error {
	return m.post(ctx, func(reply chan<- error) {
		m.cancelReconnect()
		m.replyPending(ErrConnectCancelled)
		m.gen++
		m.releaseDevices()
		m.intent = Controls{}
		m.publishControls()
		m.closeTransport()
		m.tracker.Reset()
		m.setState(StateDisconnected)
		logger.Info("session disconnected by user", "session_id", m.sessionID)
		reply <- nil
	})
}

func (m *Manager) SetMicrophone(ctx context.Context, on bool) error {
	return m.post(ctx, func(reply chan<- error) {
		reply <- m.setControl(on, &m.intent.Microphone, m.applyMicrophone)
	})
}

func (m *Manager) SetSpeaker(ctx context.Context, on bool) error {
	return m.post(ctx, func(reply chan<- error) {
		reply <- m.setControl(on, &m.intent.Speaker, m.applySpeaker)
	})
}

func (m *Manager) SendText(ctx context.Context, text string) error {
	return m.post(ctx, func(reply chan<- error) {
		if m.State() != StateConnected {
			reply <- ErrNotConnected
			return
		}
		reply <- m.framer.SendText(text)
	})
}

func (m *Manager) SendImage(ctx context.Context, mimeType string, data []byte) error {
	return m.post(ctx, func(reply chan<- error) {
		if m.State() != StateConnected {
			reply <- ErrNotConnected
			return
		}
		reply <- m.framer.SendImage(mimeType, data)
	})
}

func (m *Manager) post(ctx context.Context, act action) error {
	reply := make(chan error, 1)

	select {
	case m.actions <- func() { act(reply) }:
	case <-m.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-m.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) startDial(ctx context.Context, reconnect bool) {
	m.gen++
	gen := m.gen
	if reconnect {
		m.setState(StateReconnecting)
	} else {
		m.setState(StateConnecting)
	}

	endpoint, err := transport.Endpoint(m.server, m.userID, m.sessionID)
	if err != nil {
		m.handleDialed(dialed{gen: gen, err: err, reconnect: reconnect})
		return
	}

	go func() {
		ctx, span := tracer.Start(ctx, "connect session", trace.WithAttributes(
			attribute.String("session_id", m.sessionID),
			attribute.Bool("reconnect", reconnect),
		))
		defer span.End()

		conn, err := m.dialer.Dial(ctx, endpoint)
		if err != nil {
			span.RecordError(err)
		}
		select {
		case m.dialed <- dialed{gen: gen, conn: conn, err: err, reconnect: reconnect}:
		case <-m.done:
			if conn != nil {
				conn.Close()
			}
		}
	}()
}

func (m *Manager) handleDialed(res dialed) {
	if res.gen != m.gen {
		if res.conn != nil {
			res.conn.Close()
		}
		return
	}

	if res.reconnect {
		result := resultSuccess
		if res.err != nil {
			result = resultFailure
		}
		reconnects.Add(m.runCtx, 1, metric.WithAttributes(result))
	}

	if res.err != nil {
		err := fmt.Errorf("failed to connect: %w", res.err)
		logger.Warn("connection attempt failed", "error", res.err, "reconnect", res.reconnect)
		m.intent = Controls{}
		m.publishControls()
		m.setState(StateDisconnected)
		if res.reconnect {
			m.observer.OnNotice(err)
		}
		m.replyPending(err)
		return
	}

	m.framer = transport.NewFramer(res.conn)
	readCtx, stop := context.WithCancel(m.runCtx)
	m.stopReading = stop
	go m.read(readCtx, m.framer, res.gen)

	m.setState(StateConnected)
	logger.Info("session connected", "session_id", m.sessionID, "reconnect", res.reconnect)

	// Devices come back the way the user left them.
	if m.intent.Microphone {
		if err := m.applyMicrophone(true); err != nil {
			m.intent.Microphone = false
			m.observer.OnNotice(err)
		}
	}
	if m.intent.Speaker {
		if err := m.applySpeaker(true); err != nil {
			m.intent.Speaker = false
			m.observer.OnNotice(err)
		}
	}
	m.publishControls()
	m.replyPending(nil)
}

func (m *Manager) read(ctx context.Context, framer *transport.Framer, gen int) {
	err := framer.ReadLoop(ctx, func(msg transport.Message) {
		select {
		case m.inbound <- inbound{gen: gen, msg: msg}:
		case <-ctx.Done():
		}
	})
	select {
	case m.closed <- connClosed{gen: gen, err: err}:
	case <-m.done:
	}
}

// connectionLost handles a closure the user did not ask for: devices are
// released, the conversation is reset and one reconnect is scheduled.
func (m *Manager) connectionLost(err error) {
	if err == nil {
		err = transport.ErrTransportClosed
	}
	logger.Warn("connection lost", "error", err, "retry_in", m.reconnectDelay)

	m.gen++
	m.releaseDevices()
	m.publishControls()
	m.closeTransport()
	m.tracker.Reset()
	m.observer.OnNotice(err)

	m.setState(StateReconnecting)
	m.reconnectAt = time.NewTimer(m.reconnectDelay)
}

func (m *Manager) setControl(on bool, intent *bool, apply func(bool) error) error {
	if m.State() != StateConnected {
		return ErrNotConnected
	}
	*intent = on
	err := apply(on)
	if err != nil {
		*intent = false
		m.observer.OnNotice(err)
	}
	m.publishControls()
	return err
}

func (m *Manager) applyMicrophone(on bool) error {
	if !on {
		if m.capture == nil {
			return nil
		}
		err := m.capture.Stop()
		m.capture, m.frames = nil, nil
		return err
	}
	if m.capture != nil {
		return nil
	}
	if m.host == nil {
		return fmt.Errorf("%w: no audio host", audio.ErrDeviceUnavailable)
	}

	input, err := m.host.OpenInput()
	if err != nil {
		return wrapDeviceErr("failed to open microphone", err)
	}
	capture := audio.NewCapture(input, m.captureOpts...)
	if err := capture.Start(); err != nil {
		return err
	}
	m.capture, m.frames = capture, capture.Frames()
	return nil
}

func (m *Manager) applySpeaker(on bool) error {
	if !on {
		if m.output == nil {
			return nil
		}
		err := m.output.release()
		m.output = nil
		m.tracker.SetFlusher(nil)
		return err
	}
	if m.output != nil {
		return nil
	}
	if m.host == nil {
		return fmt.Errorf("%w: no audio host", audio.ErrDeviceUnavailable)
	}

	out, err := m.host.OpenOutput(audio.DownstreamSampleRate)
	if err != nil {
		return wrapDeviceErr("failed to open speaker", err)
	}
	output := newOutputContext(out, m.playbackOpts...)
	if err := output.register(); err != nil {
		return err
	}
	m.output = output
	m.tracker.SetFlusher(output.player)
	return nil
}

func (m *Manager) playAudio(pcm []byte) {
	if m.output == nil {
		droppedPlayback.Add(m.runCtx, 1)
		return
	}
	m.output.player.Enqueue(pcm)
}

func (m *Manager) releaseDevices() {
	if err := m.applyMicrophone(false); err != nil {
		logger.Warn("failed to release microphone", "error", err)
	}
	if err := m.applySpeaker(false); err != nil {
		logger.Warn("failed to release speaker", "error", err)
	}
}

func (m *Manager) closeTransport() {
	if m.stopReading != nil {
		m.stopReading()
		m.stopReading = nil
	}
	if m.framer != nil {
		m.framer.Close()
		m.framer = nil
	}
}

func (m *Manager) cancelReconnect() {
	if m.reconnectAt != nil {
		m.reconnectAt.Stop()
		m.reconnectAt = nil
	}
}

func (m *Manager) replyPending(err error) {
	if m.pendingReply != nil {
		m.pendingReply <- err
		m.pendingReply = nil
	}
}

func (m *Manager) teardown() {
	m.cancelReconnect()
	m.replyPending(ErrNotRunning)
	m.releaseDevices()
	m.closeTransport()
	m.setState(StateDisconnected)
}

func (m *Manager) setState(state State) {
	if State(m.state.Swap(int32(state))) == state {
		return
	}
	logger.Debug("session state changed", "state", state)
	m.observer.OnStateChanged(state)
}

func (m *Manager) publishControls() {
	controls := Controls{Microphone: m.capture != nil, Speaker: m.output != nil}

	m.controlsMu.Lock()
	changed := controls != m.lastControls
	m.lastControls = controls
	m.controlsMu.Unlock()

	if changed {
		m.observer.OnControlsChanged(controls)
	}
}

func wrapDeviceErr(msg string, err error) error {
	if errors.Is(err, audio.ErrDeviceUnavailable) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, audio.ErrDeviceUnavailable, err)
}
