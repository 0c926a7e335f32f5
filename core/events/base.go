package events

import (
	"strings"
	"time"
)

// Kind names an event as "<group>.<name>", for example
// "turn_state.completed".
type Kind string

// Group returns the part of the kind before the first dot.
func (k Kind) Group() string {
	group, _, _ := strings.Cut(string(k), ".")
	return group
}

// Event is anything decoded from the agent's downstream messages.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the fields shared by every event and is embedded by the
// concrete types.
type Base struct {
	kind       Kind
	receivedAt time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, receivedAt: time.Now()}
}

func (b Base) Kind() Kind { return b.kind }

// Timestamp is when the event was decoded on this side of the connection.
func (b Base) Timestamp() time.Time { return b.receivedAt }
