package events

const (
	KindTurnCompleted   Kind = "turn_state.completed"
	KindTurnFailed      Kind = "turn_state.failed"
	KindTurnCancelled   Kind = "turn_state.cancelled"
	KindPlaybackStarted Kind = "assistant_playback.started"
	KindPlaybackEnded   Kind = "assistant_playback.ended"
)

type TurnCompleted struct{ Base }

func NewTurnCompleted(turnID string) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted, turnID)}
}

// TurnFailed carries the error that aborted the turn.
type TurnFailed struct {
	Base
	Err error
}

func NewTurnFailed(turnID string, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed, turnID), Err: err}
}

type TurnCancelled struct{ Base }

func NewTurnCancelled(turnID string) TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled, turnID)}
}

type PlaybackStarted struct{ Base }

func NewPlaybackStarted(turnID string) PlaybackStarted {
	return PlaybackStarted{Base: NewBase(KindPlaybackStarted, turnID)}
}

// PlaybackEnded reports how the reply's playback ended; Err is nil when it
// was played to the end.
type PlaybackEnded struct {
	Base
	Err error
}

func NewPlaybackEnded(turnID string, err error) PlaybackEnded {
	return PlaybackEnded{Base: NewBase(KindPlaybackEnded, turnID), Err: err}
}
