// Package orchestration runs the listen, look, answer and speak loop. A
// single event loop owns all turn state; new speech always cancels whatever
// the assistant is doing before anything else happens.
package orchestration

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

var (
	ErrClosed         = errors.New("orchestrator closed")
	ErrAlreadyRunning = errors.New("orchestrator already running")
	ErrNoSnapshotter  = errors.New("no snapshotter configured")
	ErrNoResponder    = errors.New("no responder configured")
	ErrNoSynthesizer  = errors.New("no synthesizer configured")
)

type State string

const (
	StateIdle                State = "idle"
	StateSnapshotting        State = "snapshotting"
	StateAwaitingResponse    State = "awaiting_response"
	StateSynthesizingPlaying State = "synthesizing_playing"
)

const inboxSize = 64

type Orchestrator struct {
	snapshotter   ContextSnapshotter
	responder     llms.Responder
	synthesizer   texttospeech.Synthesizer
	output        *audioOutput
	eventHandlers []EventHandler
	metrics       MetricsRecorder

	inbox     chan loopEvent
	closed    chan struct{}
	closeOnce sync.Once
	started   atomic.Bool
	stopped   chan struct{}
	workers   sync.WaitGroup

	mu        sync.RWMutex
	state     State
	backend   llms.Backend
	voice     texttospeech.VoiceID
	listening bool

	conversation conversation

	// Only touched by the event loop.
	emit eventEmitter
	turn *turn
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		output:  newAudioOutput(nil),
		metrics: noopMetrics{},
		inbox:   make(chan loopEvent, inboxSize),
		closed:  make(chan struct{}),
		stopped: make(chan struct{}),
		state:   StateIdle,
		backend: llms.BackendPrimary,
		voice:   texttospeech.DefaultVoice,
		emit:    noopEventEmitter,
	}

	for _, opt := range opts {
		opt(o)
	}

	if !o.output.isConfigured() {
		log.Println("Warning: no audio output configured, replies will not be audible")
	}

	return o
}

// Run processes events until ctx is done or Close is called. Events posted
// before Run are processed once it starts. Run may be called once.
func (o *Orchestrator) Run(ctx context.Context, opts ...RunOption) error {
	select {
	case <-o.closed:
		return ErrClosed
	default:
	}
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(o.stopped)

	options := RunOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	o.emit = fanOut(newCallbackEventEmitter(options), o.eventHandlers)

	ctx, span := tracer.Start(ctx, "orchestrate")
	defer span.End()

	defer func() {
		o.shutdown()
		o.cancelCurrent(ctx)
		o.workers.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.closed:
			return nil
		case event := <-o.inbox:
			o.handle(ctx, event)
		}
	}
}

// Close stops the event loop, cancels the live turn and waits for its
// workers to exit.
func (o *Orchestrator) Close() {
	o.shutdown()
	if o.started.Load() {
		<-o.stopped
	}
}

func (o *Orchestrator) shutdown() {
	o.closeOnce.Do(func() { close(o.closed) })
}

// CancelTurn cancels the live turn as if the user had started speaking.
func (o *Orchestrator) CancelTurn() {
	o.post(cancelRequested{})
}

// Ask starts a turn for a typed question, the same way a final transcript
// would.
func (o *Orchestrator) Ask(question string) {
	o.post(transcriptReceived{event: speechtotext.TranscriptEvent{Text: question, IsFinal: true}})
}

// SetBackend selects the responder backend for turns started afterwards.
func (o *Orchestrator) SetBackend(backend llms.Backend) error {
	if !backend.Valid() {
		return llms.ErrUnknownBackend
	}
	o.mu.Lock()
	o.backend = backend
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) Backend() llms.Backend {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.backend
}

// SetVoice selects the voice for replies started afterwards.
func (o *Orchestrator) SetVoice(voice texttospeech.VoiceID) error {
	if voice == "" {
		return texttospeech.ErrUnknownVoice
	}
	o.mu.Lock()
	o.voice = voice
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) Voice() texttospeech.VoiceID {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.voice
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) Listening() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.listening
}

// History returns a deep copy of the chat history.
func (o *Orchestrator) History() []ChatMessage {
	history, err := o.conversation.history()
	if err != nil {
		logger.Error("failed to read chat history", "error", err)
		return nil
	}
	return history
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *Orchestrator) setListening(listening bool) {
	o.mu.Lock()
	o.listening = listening
	o.mu.Unlock()
}

func (o *Orchestrator) post(event loopEvent) {
	select {
	case o.inbox <- event:
	case <-o.closed:
	}
}

type loopEvent any

type (
	transcriptReceived     struct{ event speechtotext.TranscriptEvent }
	speechActivityDetected struct{}
	cancelRequested        struct{}
	listeningChanged       struct{ listening bool }
)

func (o *Orchestrator) handle(ctx context.Context, event loopEvent) {
	switch e := event.(type) {
	case transcriptReceived:
		o.emit(events.NewTranscriptUpdated(e.event.Text, e.event.IsFinal))
		text := strings.TrimSpace(e.event.Text)
		if text == "" {
			return
		}
		o.cancelCurrent(ctx)
		if e.event.IsFinal {
			o.startTurn(ctx, text)
		}
	case speechActivityDetected, cancelRequested:
		o.cancelCurrent(ctx)
	case listeningChanged:
		o.setListening(e.listening)
		o.emit(events.NewListeningChanged(e.listening))
	case snapshotReady:
		o.snapshotReady(e)
	case answerReady:
		o.answerReady(e)
	case playbackStarted:
		if t := o.current(e.turnID); t != nil {
			o.emit(events.NewPlaybackStarted(t.id))
		}
	case sessionEnded:
		o.sessionEnded(e)
	}
}
