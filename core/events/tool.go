package events

import "encoding/json"

const (
	KindToolCall   Kind = "tool.call"
	KindToolResult Kind = "tool.result"
)

type ToolCall struct {
	Base
	Name string
	Args json.RawMessage
}

func NewToolCall(name string, args json.RawMessage) ToolCall {
	return ToolCall{Base: NewBase(KindToolCall), Name: name, Args: args}
}

// ToolResult is reported for observability only, the agent has already
// consumed it.
type ToolResult struct {
	Base
	Name    string
	Payload json.RawMessage
}

func NewToolResult(name string, payload json.RawMessage) ToolResult {
	return ToolResult{Base: NewBase(KindToolResult), Name: name, Payload: payload}
}
