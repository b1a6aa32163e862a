package events

import (
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "chat message appended", event: NewChatMessageAppended("turn", "msg", "user", "hi", true), expected: KindChatMessageAppended},
		{name: "transcript updated", event: NewTranscriptUpdated("text", false), expected: KindTranscriptUpdated},
		{name: "listening changed", event: NewListeningChanged(true), expected: KindListeningChanged},
		{name: "status updated", event: NewStatusUpdated("turn", "Taking screenshot..."), expected: KindStatusUpdated},
		{name: "turn completed", event: NewTurnCompleted("turn"), expected: KindTurnCompleted},
		{name: "turn failed", event: NewTurnFailed("turn", errors.New("boom")), expected: KindTurnFailed},
		{name: "turn cancelled", event: NewTurnCancelled("turn"), expected: KindTurnCancelled},
		{name: "playback started", event: NewPlaybackStarted("turn"), expected: KindPlaybackStarted},
		{name: "playback ended", event: NewPlaybackEnded("turn", nil), expected: KindPlaybackEnded},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestTurnIDIsCarried(t *testing.T) {
	event := NewTurnCancelled("abc")
	if event.TurnID() != "abc" {
		t.Fatalf("expected turn id %q, got %q", "abc", event.TurnID())
	}
	if NewListeningChanged(false).TurnID() != "" {
		t.Fatalf("expected listening changes to carry no turn id")
	}
}
