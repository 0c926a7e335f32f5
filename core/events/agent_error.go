package events

import "fmt"

const KindAgentError Kind = "agent.error"

// AgentError is both an event and an error so it can be surfaced through
// error-handling paths unchanged.
type AgentError struct {
	Base
	Code    string
	Message string
}

func NewAgentError(code, message string) AgentError {
	return AgentError{Base: NewBase(KindAgentError), Code: code, Message: message}
}

func (e AgentError) Error() string {
	switch {
	case e.Code == "":
		return "agent error: " + e.Message
	case e.Message == "":
		return "agent error " + e.Code
	}
	return fmt.Sprintf("agent error %s: %s", e.Code, e.Message)
}
