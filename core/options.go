package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/snapshot"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

type ContextSnapshotter interface {
	Capture(ctx context.Context) (snapshot.Snapshot, error)
}

func WithSnapshotter(snapshotter ContextSnapshotter) OrchestratorOption {
	return func(o *Orchestrator) { o.snapshotter = snapshotter }
}

func WithResponder(responder llms.Responder) OrchestratorOption {
	return func(o *Orchestrator) { o.responder = responder }
}

func WithSynthesizer(synthesizer texttospeech.Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesizer = synthesizer }
}

func WithAudioOutput(device audio.Device) OrchestratorOption {
	return func(o *Orchestrator) { o.output.Set(device) }
}

func WithBackend(backend llms.Backend) OrchestratorOption {
	return func(o *Orchestrator) {
		if backend.Valid() {
			o.backend = backend
		}
	}
}

func WithVoice(voice texttospeech.VoiceID) OrchestratorOption {
	return func(o *Orchestrator) {
		if voice != "" {
			o.voice = voice
		}
	}
}

// EventHandler receives every presentation event from the event loop. It is
// called synchronously and must not block.
type EventHandler interface {
	HandleEvent(event events.Event)
}

type EventHandlerFunc func(events.Event)

func (f EventHandlerFunc) HandleEvent(event events.Event) { f(event) }

func WithEventHandler(handler EventHandler) OrchestratorOption {
	return func(o *Orchestrator) {
		if handler != nil {
			o.eventHandlers = append(o.eventHandlers, handler)
		}
	}
}

// MetricsRecorder is fed from the event loop and the session workers.
type MetricsRecorder interface {
	TurnStarted()
	TurnFinished(outcome string)
	ResponderLatency(backend string, latency time.Duration)
	ChunkSubmitted()
	RecognizerRestarted()
}

func WithMetrics(metrics MetricsRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

type noopMetrics struct{}

func (noopMetrics) TurnStarted()                            {}
func (noopMetrics) TurnFinished(string)                     {}
func (noopMetrics) ResponderLatency(string, time.Duration) {}
func (noopMetrics) ChunkSubmitted()                         {}
func (noopMetrics) RecognizerRestarted()                    {}

type RunOptions struct {
	onTranscript       func(transcript string, final bool)
	onStatus           func(status string)
	onChatMessage      func(role Role, text string)
	onListeningChanged func(listening bool)
	onCancellation     func()
	onTurnFailed       func(err error)
	onPlaybackEnded    func()
}

type RunOption func(*RunOptions)

// WithTranscriptCallback registers a callback for the live transcript line.
// Interim updates replace each other until a final one arrives.
func WithTranscriptCallback(callback func(transcript string, final bool)) RunOption {
	return func(o *RunOptions) {
		o.onTranscript = callback
	}
}

func WithStatusCallback(callback func(status string)) RunOption {
	return func(o *RunOptions) {
		o.onStatus = callback
	}
}

func WithChatMessageCallback(callback func(role Role, text string)) RunOption {
	return func(o *RunOptions) {
		o.onChatMessage = callback
	}
}

func WithListeningChangedCallback(callback func(listening bool)) RunOption {
	return func(o *RunOptions) {
		o.onListeningChanged = callback
	}
}

func WithCancellationCallback(callback func()) RunOption {
	return func(o *RunOptions) {
		o.onCancellation = callback
	}
}

func WithTurnFailedCallback(callback func(err error)) RunOption {
	return func(o *RunOptions) {
		o.onTurnFailed = callback
	}
}

// WithPlaybackEndedCallback fires when a reply was played to the end.
func WithPlaybackEndedCallback(callback func()) RunOption {
	return func(o *RunOptions) {
		o.onPlaybackEnded = callback
	}
}
