package transport

import "encoding/json"

const (
	messageTypeText  = "text"
	messageTypeImage = "image"
)

// TextMessage is the upstream text input.
type TextMessage struct {
	Type string `json:"type" jsonschema:"enum=text"`
	Text string `json:"text"`
}

// ImageMessage carries one already-encoded still image.
type ImageMessage struct {
	Type     string `json:"type" jsonschema:"enum=image"`
	MimeType string `json:"mimeType" jsonschema:"example=image/jpeg"`
	Data     string `json:"data" jsonschema:"contentEncoding=base64"`
}

// ServerMessage is the downstream envelope. Every field is optional; Decode
// accepts both the snake_case spelling below and its camelCase alias.
type ServerMessage struct {
	Author              string         `json:"author,omitempty"`
	Partial             bool           `json:"partial,omitempty"`
	TurnComplete        bool           `json:"turn_complete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	ErrorCode           string         `json:"error_code,omitempty"`
	ErrorMessage        string         `json:"error_message,omitempty"`
	Content             *Content       `json:"content,omitempty"`
	InputTranscription  *Transcription `json:"input_transcription,omitempty"`
	OutputTranscription *Transcription `json:"output_transcription,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

type FunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type FunctionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response,omitempty"`
}

type Transcription struct {
	Text     string `json:"text,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}
