package events

import (
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "text delta", event: NewTextDelta("hi", true, "agent"), expected: KindTextDelta},
		{name: "transcription delta", event: NewTranscriptionDelta(RoleUser, "hi", false), expected: KindTranscriptionDelta},
		{name: "turn complete", event: NewTurnComplete(), expected: KindTurnComplete},
		{name: "interrupted", event: NewInterrupted(), expected: KindInterrupted},
		{name: "tool call", event: NewToolCall("lookup", nil), expected: KindToolCall},
		{name: "tool result", event: NewToolResult("lookup", nil), expected: KindToolResult},
		{name: "agent error", event: NewAgentError("500", "boom"), expected: KindAgentError},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestTurnCompleteAndInterruptedKindsAreDistinct(t *testing.T) {
	if NewTurnComplete().Kind() == NewInterrupted().Kind() {
		t.Fatalf("expected turn complete and interrupted kinds to differ")
	}
}

func TestAgentErrorIsAnError(t *testing.T) {
	var err error = NewAgentError("RESOURCE_EXHAUSTED", "quota exceeded")

	var agentErr AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected errors.As to find AgentError")
	}
	if got := err.Error(); got != "agent error RESOURCE_EXHAUSTED: quota exceeded" {
		t.Fatalf("expected formatted message, got %q", got)
	}
	if got := NewAgentError("", "quota exceeded").Error(); got != "agent error: quota exceeded" {
		t.Fatalf("expected message without code, got %q", got)
	}
}

func TestKindGroup(t *testing.T) {
	if got := KindTurnComplete.Group(); got != "turn_state" {
		t.Fatalf("expected group turn_state, got %q", got)
	}
	if got := Kind("plain").Group(); got != "plain" {
		t.Fatalf("expected a kind without a dot to be its own group, got %q", got)
	}
}
