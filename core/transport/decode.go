package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/koscakluka/ema-live/core/events"
)

// ErrMalformedMessage is returned for text messages that are not JSON
// objects or match none of the known downstream shapes.
var ErrMalformedMessage = errors.New("malformed message")

type object map[string]json.RawMessage

// Decode turns one downstream text message into control events. Shapes are
// tried in a fixed order: agent error, interrupted, input transcription,
// output transcription, content parts, turn complete. Every shape present in
// the message contributes its events in that order.
func Decode(data []byte) ([]events.Event, error) {
	obj, err := parseObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	var (
		out     []events.Event
		matched bool
	)

	code, message := obj.string("error_code"), obj.string("error_message")
	if code != "" || message != "" {
		matched = true
		out = append(out, events.NewAgentError(code, message))
	}

	if obj.bool("interrupted") {
		matched = true
		out = append(out, events.NewInterrupted())
	}

	for _, t := range []struct {
		field string
		role  events.Role
	}{
		{"input_transcription", events.RoleUser},
		{"output_transcription", events.RoleAgent},
	} {
		tr, ok := obj.object(t.field)
		if !ok {
			continue
		}
		matched = true
		if text := tr.string("text"); text != "" || tr.bool("finished") {
			out = append(out, events.NewTranscriptionDelta(t.role, text, tr.bool("finished")))
		}
	}

	if content, ok := obj.object("content"); ok {
		if parts, ok := content.array("parts"); ok {
			matched = true
			out = append(out, decodeParts(parts, obj.bool("partial"), obj.string("author"))...)
		}
	}

	if obj.bool("turn_complete") {
		matched = true
		out = append(out, events.NewTurnComplete())
	}

	if !matched {
		return nil, fmt.Errorf("%w: no known shape in message with keys %s", ErrMalformedMessage, obj.keys())
	}
	return out, nil
}

func decodeParts(parts []object, partial bool, author string) []events.Event {
	var (
		out     []events.Event
		text    strings.Builder
		hasText bool
	)
	for _, part := range parts {
		if call, ok := part.object("function_call"); ok {
			out = append(out, events.NewToolCall(call.string("name"), call.raw("args")))
			continue
		}
		if resp, ok := part.object("function_response"); ok {
			out = append(out, events.NewToolResult(resp.string("name"), resp.raw("response")))
			continue
		}
		if part.bool("thought") {
			continue
		}
		if _, ok := part.lookup("text"); ok {
			hasText = true
			text.WriteString(part.string("text"))
		}
	}

	if hasText {
		delta := events.NewTextDelta(text.String(), partial, author)
		out = append([]events.Event{delta}, out...)
	}
	return out
}

func parseObject(data []byte) (object, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("not a JSON object")
	}
	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// lookup finds a field by its snake_case name or its camelCase alias.
func (o object) lookup(snake string) (json.RawMessage, bool) {
	if v, ok := o[snake]; ok && !isNull(v) {
		return v, true
	}
	if camel := camelCase(snake); camel != snake {
		if v, ok := o[camel]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func (o object) string(field string) string {
	raw, ok := o.lookup(field)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (o object) bool(field string) bool {
	raw, ok := o.lookup(field)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

func (o object) object(field string) (object, bool) {
	raw, ok := o.lookup(field)
	if !ok {
		return nil, false
	}
	var nested object
	if err := json.Unmarshal(raw, &nested); err != nil || nested == nil {
		return nil, false
	}
	return nested, true
}

func (o object) array(field string) ([]object, bool) {
	raw, ok := o.lookup(field)
	if !ok {
		return nil, false
	}
	var items []object
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (o object) raw(field string) json.RawMessage {
	raw, _ := o.lookup(field)
	return raw
}

func (o object) keys() []string {
	return slices.Sorted(maps.Keys(o))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func camelCase(snake string) string {
	parts := strings.Split(snake, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
