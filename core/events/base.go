package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base is embedded by every event. TurnID is empty for events that are not
// tied to a turn.
type Base struct {
	kind      Kind
	timestamp time.Time
	turnID    string
}

func NewBase(kind Kind, turnID string) Base {
	return Base{kind: kind, timestamp: time.Now(), turnID: turnID}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}

func (b Base) TurnID() string {
	return b.turnID
}
