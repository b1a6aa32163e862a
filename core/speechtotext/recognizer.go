package speechtotext

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-vision/core/audio"
	"go.opentelemetry.io/otel/codes"
)

type RecognizerState string

const (
	RecognizerIdle      RecognizerState = "idle"
	RecognizerListening RecognizerState = "listening"
	RecognizerEnded     RecognizerState = "ended"
	RecognizerStopped   RecognizerState = "stopped"
)

// ContinuousRecognizer runs one engine session at a time and opens a new one
// after RestartBackoff whenever the previous ended, until Stop.
type ContinuousRecognizer struct {
	engine  Engine
	options RecognizerOptions
	after   func(time.Duration) <-chan time.Time

	mu             sync.Mutex
	state          RecognizerState
	shouldContinue bool
	running        bool
	session        EngineSession
	cancel         context.CancelFunc
	done           chan struct{}
}

func NewContinuousRecognizer(engine Engine, opts ...RecognizerOption) *ContinuousRecognizer {
	options := RecognizerOptions{
		OnListeningChanged: func(bool) {},
		OnTranscript:       func(TranscriptEvent) {},
		OnSpeechActivity:   func() {},
		OnSessionRestart:   func() {},
		OnError:            func(error) {},
		EncodingInfo:       audio.GetDefaultEncodingInfo(),
		RestartBackoff:     DefaultRestartBackoff,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &ContinuousRecognizer{
		engine:  engine,
		options: options,
		after:   time.After,
		state:   RecognizerIdle,
	}
}

// Start begins listening. Calling it while already listening is a no-op.
func (r *ContinuousRecognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == RecognizerStopped {
		return ErrRecognizerStopped
	} else if r.running {
		return nil
	} else if r.engine == nil {
		return fmt.Errorf("%w: no engine configured", ErrEngine)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.running = true
	r.shouldContinue = true
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(runCtx)
	if r.options.AudioSource != nil {
		go r.captureAudio(runCtx)
	}
	return nil
}

// Stop ends listening for good and stops the active session.
func (r *ContinuousRecognizer) Stop() error {
	r.mu.Lock()
	r.shouldContinue = false
	session := r.session
	cancel := r.cancel
	if !r.running {
		r.state = RecognizerStopped
	}
	r.mu.Unlock()

	var err error
	if session != nil {
		err = session.Stop()
	}
	if cancel != nil {
		cancel()
	}
	return err
}

// Wait blocks until the restart loop exited.
func (r *ContinuousRecognizer) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *ContinuousRecognizer) State() RecognizerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *ContinuousRecognizer) run(ctx context.Context) {
	defer r.finish()

	for first := true; ; first = false {
		if !r.continuing() || ctx.Err() != nil {
			return
		}
		if !first {
			r.options.OnSessionRestart()
		}

		session, err := r.engine.Open(ctx, r.options.EncodingInfo)
		if err != nil {
			r.reportError(ctx, fmt.Errorf("%w: failed to open session: %w", ErrEngine, err))
		} else {
			r.listen(ctx, session)
		}

		if !r.continuing() {
			return
		}
		r.setState(RecognizerEnded)

		select {
		case <-ctx.Done():
			return
		case <-r.after(r.options.RestartBackoff):
		}
	}
}

func (r *ContinuousRecognizer) listen(ctx context.Context, session EngineSession) {
	if !r.attach(session) {
		_ = session.Stop()
		return
	}
	r.options.OnListeningChanged(true)

	for batch := range session.Results() {
		r.handleBatch(batch)
	}

	r.detach()
	r.options.OnListeningChanged(false)

	if err := session.Err(); err != nil {
		r.reportError(ctx, fmt.Errorf("%w: %w", ErrEngine, err))
	}
}

func (r *ContinuousRecognizer) handleBatch(batch ResultBatch) {
	interim, final := Partition(batch)

	if strings.TrimSpace(interim) != "" || strings.TrimSpace(final) != "" {
		r.options.OnSpeechActivity()
	}
	if interim != "" && final == "" {
		r.options.OnTranscript(TranscriptEvent{Text: interim, IsFinal: false})
	}
	if final != "" {
		r.options.OnTranscript(TranscriptEvent{Text: final, IsFinal: true})
	}
}

func (r *ContinuousRecognizer) captureAudio(ctx context.Context) {
	if err := r.options.AudioSource.Stream(ctx, r.forwardAudio); err != nil {
		r.reportError(ctx, fmt.Errorf("audio capture failed: %w", err))
	}
}

// forwardAudio drops audio that arrives between sessions.
func (r *ContinuousRecognizer) forwardAudio(audio []byte) {
	r.mu.Lock()
	session := r.session
	r.mu.Unlock()
	if session == nil {
		return
	}
	if err := session.SendAudio(audio); err != nil {
		logger.Debug("failed to forward audio to session", "error", err)
	}
}

func (r *ContinuousRecognizer) attach(session EngineSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.shouldContinue {
		return false
	}
	r.session = session
	r.state = RecognizerListening
	return true
}

func (r *ContinuousRecognizer) detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = nil
	if r.state == RecognizerListening {
		r.state = RecognizerEnded
	}
}

func (r *ContinuousRecognizer) continuing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shouldContinue
}

func (r *ContinuousRecognizer) setState(state RecognizerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

func (r *ContinuousRecognizer) finish() {
	r.mu.Lock()
	r.running = false
	r.session = nil
	r.state = RecognizerStopped
	r.shouldContinue = false
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	close(done)
}

func (r *ContinuousRecognizer) reportError(ctx context.Context, err error) {
	_, span := tracer.Start(ctx, "recognizer error")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()

	logger.WarnContext(ctx, "recognition session ended with error", "error", err)
	r.options.OnError(err)
}
