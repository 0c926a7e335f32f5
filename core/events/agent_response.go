package events

const KindTextDelta Kind = "agent_response.text_delta"

type TextDelta struct {
	Base
	Text    string
	Partial bool
	Author  string
}

func NewTextDelta(text string, partial bool, author string) TextDelta {
	return TextDelta{Base: NewBase(KindTextDelta), Text: text, Partial: partial, Author: author}
}
