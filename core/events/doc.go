// Package events defines the typed control events decoded from the agent's
// downstream text messages.
//
// Event kinds are grouped by namespace:
//
//   - agent_response.*
//   - transcription.*
//   - turn_state.*
//   - tool.*
//   - agent.*
//
// agent_response events
//
//   - TextDelta (agent_response.text_delta): displayed text for the live turn.
//     Partial deltas carry the full text so far, a non-partial delta is the
//     final text.
//
// transcription events
//
//   - TranscriptionDelta (transcription.delta): speech transcript for one
//     role, either still accumulating or finished.
//
// turn_state events
//
//   - TurnComplete (turn_state.completed): the agent finished its turn.
//   - Interrupted (turn_state.interrupted): the agent stopped because the user
//     barged in. Unplayed audio must be discarded.
//
// tool events
//
//   - ToolCall (tool.call): the agent invoked a tool.
//   - ToolResult (tool.result): a tool returned to the agent.
//
// agent events
//
//   - AgentError (agent.error): the agent reported a non-fatal error.
package events
