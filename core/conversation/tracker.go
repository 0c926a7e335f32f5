package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/events"
	"go.opentelemetry.io/otel/metric"
)

const DefaultHistoryLimit = 200

type State int

const (
	StateIdle State = iota
	StateAgentSpeaking
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAgentSpeaking:
		return "agent_speaking"
	case StateFinalizing:
		return "finalizing"
	}
	return "unknown"
}

// Flusher discards audio that has not been played yet.
type Flusher interface {
	Flush()
}

type Callbacks struct {
	OnTurnUpdated       func(Turn)
	OnTurnFinalized     func(Turn)
	OnTranscriptUpdated func(role events.Role, text string)
	OnTranscriptLine    func(Line)
	OnToolCall          func(events.ToolCall)
	OnToolResult        func(events.ToolResult)
	OnNotice            func(error)
}

func (c *Callbacks) defaults() *Callbacks {
	c.OnTurnUpdated = func(Turn) {}
	c.OnTurnFinalized = func(Turn) {}
	c.OnTranscriptUpdated = func(events.Role, string) {}
	c.OnTranscriptLine = func(Line) {}
	c.OnToolCall = func(events.ToolCall) {}
	c.OnToolResult = func(events.ToolResult) {}
	c.OnNotice = func(error) {}
	return c
}

func (c *Callbacks) with(callbacks Callbacks) *Callbacks {
	if callbacks.OnTurnUpdated != nil {
		c.OnTurnUpdated = callbacks.OnTurnUpdated
	}
	if callbacks.OnTurnFinalized != nil {
		c.OnTurnFinalized = callbacks.OnTurnFinalized
	}
	if callbacks.OnTranscriptUpdated != nil {
		c.OnTranscriptUpdated = callbacks.OnTranscriptUpdated
	}
	if callbacks.OnTranscriptLine != nil {
		c.OnTranscriptLine = callbacks.OnTranscriptLine
	}
	if callbacks.OnToolCall != nil {
		c.OnToolCall = callbacks.OnToolCall
	}
	if callbacks.OnToolResult != nil {
		c.OnToolResult = callbacks.OnToolResult
	}
	if callbacks.OnNotice != nil {
		c.OnNotice = callbacks.OnNotice
	}
	return c
}

type TrackerOption func(*Tracker)

func WithCallbacks(callbacks Callbacks) TrackerOption {
	return func(t *Tracker) {
		t.callbacks.with(callbacks)
	}
}

func WithFlusher(flusher Flusher) TrackerOption {
	return func(t *Tracker) {
		t.flusher = flusher
	}
}

// WithAppendDeltas treats partial text and transcription deltas as
// increments instead of the full text so far. Final deltas still replace.
func WithAppendDeltas() TrackerOption {
	return func(t *Tracker) {
		t.appendDeltas = true
	}
}

func WithHistoryLimit(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.historyLimit = n
		}
	}
}

// Tracker folds control events into at most one live agent turn plus
// independent per-role transcripts. Callbacks run after the tracker's lock
// is released.
type Tracker struct {
	callbacks    Callbacks
	appendDeltas bool
	historyLimit int

	mu          sync.Mutex
	flusher     Flusher
	state       State
	turn        *Turn
	transcripts map[events.Role]string
	history     []Entry
}

func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		callbacks:    *new(Callbacks).defaults(),
		historyLimit: DefaultHistoryLimit,
		transcripts:  map[events.Role]string{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetFlusher replaces the audio flusher, nil disables flushing.
func (t *Tracker) SetFlusher(flusher Flusher) {
	t.mu.Lock()
	t.flusher = flusher
	t.mu.Unlock()
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Live returns a copy of the live turn.
func (t *Tracker) Live() (Turn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.turn == nil {
		return Turn{}, false
	}
	return t.snapshotLocked(), true
}

// Transcript returns the in-progress transcript for role.
func (t *Tracker) Transcript(role events.Role) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transcripts[role]
}

// History returns a deep copy of the finalized turns and transcript lines,
// oldest first.
func (t *Tracker) History() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyEntries(t.history)
}

func (t *Tracker) Handle(event events.Event) {
	var notify []func()

	switch e := event.(type) {
	case events.TextDelta:
		t.mu.Lock()
		notify = t.textDeltaLocked(e)
		t.mu.Unlock()

	case events.TranscriptionDelta:
		t.mu.Lock()
		notify = t.transcriptionLocked(e)
		t.mu.Unlock()

	case events.TurnComplete:
		t.mu.Lock()
		notify = t.finalizeLocked(TurnCompleted)
		t.mu.Unlock()

	case events.Interrupted:
		t.mu.Lock()
		flusher := t.flusher
		t.mu.Unlock()
		if flusher != nil {
			flusher.Flush()
		}

		t.mu.Lock()
		notify = t.finalizeLocked(TurnInterrupted)
		t.mu.Unlock()

	case events.ToolCall:
		logger.Info("agent called tool", "name", e.Name)
		notify = append(notify, func() { t.callbacks.OnToolCall(e) })

	case events.ToolResult:
		logger.Info("tool returned", "name", e.Name, "size", len(e.Payload))
		notify = append(notify, func() { t.callbacks.OnToolResult(e) })

	case events.AgentError:
		agentErrors.Add(context.Background(), 1)
		logger.Warn("agent reported an error", "code", e.Code, "message", e.Message)
		notify = append(notify, func() { t.callbacks.OnNotice(e) })

	default:
		logger.Debug("ignoring event", "kind", event.Kind())
	}

	for _, fn := range notify {
		fn()
	}
}

// Reset ends the live turn as interrupted and clears both transcripts
// without touching audio. It is used when the connection drops.
func (t *Tracker) Reset() {
	t.mu.Lock()
	notify := t.finalizeLocked(TurnInterrupted)
	t.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

func (t *Tracker) textDeltaLocked(e events.TextDelta) []func() {
	t.ensureTurnLocked(e.Author)
	t.turn.Streamed = true

	if t.appendDeltas && e.Partial {
		t.turn.Text += e.Text
	} else {
		t.turn.Text = e.Text
	}

	turn := t.snapshotLocked()
	return []func(){func() { t.callbacks.OnTurnUpdated(turn) }}
}

func (t *Tracker) transcriptionLocked(e events.TranscriptionDelta) []func() {
	current := t.transcripts[e.Role]
	if !e.Finished {
		if t.appendDeltas {
			current += e.Text
		} else {
			current = e.Text
		}
		t.transcripts[e.Role] = current
		return []func(){func() { t.callbacks.OnTranscriptUpdated(e.Role, current) }}
	}

	text := e.Text
	if text == "" {
		text = current
	}
	delete(t.transcripts, e.Role)

	var notify []func()
	notify = append(notify, func() { t.callbacks.OnTranscriptUpdated(e.Role, "") })

	if strings.TrimSpace(text) != "" {
		line := Line{Role: e.Role, Text: text, At: e.Timestamp()}
		t.appendHistoryLocked(Entry{Line: &line})
		notify = append(notify, func() { t.callbacks.OnTranscriptLine(line) })
	}

	if e.Role == events.RoleAgent && text != "" {
		t.ensureTurnLocked("")
		if !t.turn.Streamed {
			if t.turn.Text == "" {
				t.turn.Text = text
			} else {
				t.turn.Text += " " + text
			}
			turn := t.snapshotLocked()
			notify = append(notify, func() { t.callbacks.OnTurnUpdated(turn) })
		}
	}
	return notify
}

// finalizeLocked detaches the live turn, if any, and clears both transcript
// accumulators whether or not they were ever finished.
func (t *Tracker) finalizeLocked(outcome TurnOutcome) []func() {
	var notify []func()

	if t.turn != nil {
		t.state = StateFinalizing
		t.turn.Outcome = outcome
		t.turn.EndedAt = time.Now()
		turn := t.snapshotLocked()
		t.appendHistoryLocked(Entry{Turn: &turn})
		t.turn = nil

		finalizedTurns.Add(context.Background(), 1, metric.WithAttributes(outcomeAttr(outcome)))
		logger.Debug("turn finalized", "id", turn.ID, "outcome", outcome)
		notify = append(notify, func() { t.callbacks.OnTurnFinalized(turn) })
	}

	for _, role := range []events.Role{events.RoleUser, events.RoleAgent} {
		if _, ok := t.transcripts[role]; ok {
			notify = append(notify, func() { t.callbacks.OnTranscriptUpdated(role, "") })
		}
	}
	clear(t.transcripts)

	t.state = StateIdle
	return notify
}

func (t *Tracker) ensureTurnLocked(author string) {
	if t.turn != nil {
		if t.turn.Author == "" {
			t.turn.Author = author
		}
		return
	}
	t.turn = &Turn{ID: uuid.NewString(), Author: author, StartedAt: time.Now()}
	t.state = StateAgentSpeaking
}

func (t *Tracker) snapshotLocked() Turn {
	turn := *t.turn
	turn.UserTranscript = t.transcripts[events.RoleUser]
	turn.AgentTranscript = t.transcripts[events.RoleAgent]
	return turn
}

func (t *Tracker) appendHistoryLocked(entry Entry) {
	t.history = append(t.history, entry)
	if over := len(t.history) - t.historyLimit; over > 0 {
		t.history = append(t.history[:0], t.history[over:]...)
	}
}
