// Package speechtotext keeps a streaming recognition engine running for as
// long as the user wants to be heard, reopening sessions the engine ends.
package speechtotext

import (
	"context"
	"errors"
	"strings"

	"github.com/koscakluka/ema-vision/core/audio"
)

var (
	// ErrEngine wraps failures to open or run an engine session.
	ErrEngine            = errors.New("recognition engine failed")
	ErrRecognizerStopped = errors.New("recognizer stopped")
)

// TranscriptEvent is an interim or final piece of recognized speech.
type TranscriptEvent struct {
	Text    string
	IsFinal bool
}

// Result is one slot of an engine result batch.
type Result struct {
	Transcript string
	IsFinal    bool
}

// ResultBatch is what an engine reports at once.
type ResultBatch struct {
	Results []Result
}

// Partition concatenates interim and final transcripts in slot order.
func Partition(batch ResultBatch) (interim, final string) {
	var interimText, finalText strings.Builder
	for _, result := range batch.Results {
		if result.IsFinal {
			finalText.WriteString(result.Transcript)
		} else {
			interimText.WriteString(result.Transcript)
		}
	}
	return interimText.String(), finalText.String()
}

// Engine opens single-shot recognition sessions.
type Engine interface {
	Open(ctx context.Context, encoding audio.EncodingInfo) (EngineSession, error)
}

// EngineSession ends on its own at the engine's discretion. Results is
// closed once it ended; Err then reports why, nil for a normal end.
type EngineSession interface {
	Results() <-chan ResultBatch
	Done() <-chan struct{}
	Err() error
	SendAudio(audio []byte) error
	Stop() error
}

// AudioSource produces microphone audio until ctx is done.
type AudioSource interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
}
