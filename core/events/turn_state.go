package events

const (
	KindTurnComplete Kind = "turn_state.completed"
	KindInterrupted  Kind = "turn_state.interrupted"
)

type TurnComplete struct {
	Base
}

func NewTurnComplete() TurnComplete {
	return TurnComplete{Base: NewBase(KindTurnComplete)}
}

type Interrupted struct {
	Base
}

func NewInterrupted() Interrupted {
	return Interrupted{Base: NewBase(KindInterrupted)}
}
