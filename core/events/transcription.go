package events

const KindTranscriptionDelta Kind = "transcription.delta"

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// TranscriptionDelta carries the transcript so far for one speaker. Finished
// marks the end of the utterance.
type TranscriptionDelta struct {
	Base
	Role     Role
	Text     string
	Finished bool
}

func NewTranscriptionDelta(role Role, text string, finished bool) TranscriptionDelta {
	return TranscriptionDelta{Base: NewBase(KindTranscriptionDelta), Role: role, Text: text, Finished: finished}
}
