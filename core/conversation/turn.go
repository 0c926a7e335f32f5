package conversation

import (
	"time"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-live/core/events"
)

type TurnOutcome string

const (
	TurnLive        TurnOutcome = ""
	TurnCompleted   TurnOutcome = "completed"
	TurnInterrupted TurnOutcome = "interrupted"
)

// Turn is one agent response as displayed to the user.
type Turn struct {
	ID     string
	Author string
	Text   string

	// Streamed is set once a text delta arrived for the turn. Until then
	// finished agent transcripts are mirrored into Text.
	Streamed bool

	// Transcripts in progress when the turn was last observed.
	UserTranscript  string
	AgentTranscript string

	Outcome   TurnOutcome
	StartedAt time.Time
	EndedAt   time.Time
}

// Line is one finished transcript utterance.
type Line struct {
	Role events.Role
	Text string
	At   time.Time
}

// Entry is one item of the conversation history; exactly one of Turn and
// Line is set.
type Entry struct {
	Turn *Turn
	Line *Line
}

func copyEntries(entries []Entry) []Entry {
	var out []Entry
	if err := copier.CopyWithOption(&out, &entries, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to copy conversation history", "error", err)
		out = append([]Entry(nil), entries...)
	}
	return out
}
