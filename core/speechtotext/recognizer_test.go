package speechtotext

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-vision/core/audio"
)

func TestRecognizerRestartsAfterBackoff(t *testing.T) {
	engine := newEngineStub()
	backoffs := make(chan time.Duration, 4)
	tick := make(chan time.Time)
	restarts := atomic.Int32{}
	r := NewContinuousRecognizer(engine, WithSessionRestartCallback(func() { restarts.Add(1) }))
	r.after = func(d time.Duration) <-chan time.Time {
		backoffs <- d
		return tick
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	defer r.Stop()

	first := engine.waitForSession(t, 0)
	first.end(nil)

	select {
	case d := <-backoffs:
		if d != DefaultRestartBackoff {
			t.Fatalf("expected %s backoff, got %s", DefaultRestartBackoff, d)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for backoff")
	}
	if got := engine.openCount(); got != 1 {
		t.Fatalf("expected no new session before the backoff elapsed, got %d opens", got)
	}

	tick <- time.Now()
	engine.waitForSession(t, 1)
	waitForCondition(t, time.Second, "restart count", func() bool { return restarts.Load() == 1 })
}

func TestRecognizerRestartsAfterEngineError(t *testing.T) {
	engine := newEngineStub()
	errs := make(chan error, 4)
	r := NewContinuousRecognizer(engine, WithRestartBackoff(0), WithErrorCallback(func(err error) { errs <- err }))

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	defer r.Stop()

	engine.waitForSession(t, 0).end(errors.New("network dropped"))

	select {
	case err := <-errs:
		if !errors.Is(err, ErrEngine) {
			t.Fatalf("expected %v, got %v", ErrEngine, err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for engine error")
	}
	engine.waitForSession(t, 1)
}

func TestRecognizerStopPreventsRestart(t *testing.T) {
	engine := newEngineStub()
	r := NewContinuousRecognizer(engine, WithRestartBackoff(0))

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	session := engine.waitForSession(t, 0)

	if err := r.Stop(); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}
	r.Wait()

	if !session.isStopped() {
		t.Fatalf("expected active session to be stopped")
	}
	time.Sleep(20 * time.Millisecond)
	if got := engine.openCount(); got != 1 {
		t.Fatalf("expected no restart after stop, got %d opens", got)
	}
	if got := r.State(); got != RecognizerStopped {
		t.Fatalf("expected %s, got %s", RecognizerStopped, got)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrRecognizerStopped) {
		t.Fatalf("expected %v, got %v", ErrRecognizerStopped, err)
	}
}

func TestRecognizerStartIsIdempotent(t *testing.T) {
	engine := newEngineStub()
	r := NewContinuousRecognizer(engine)
	defer r.Stop()

	_ = r.Start(context.Background())
	_ = r.Start(context.Background())
	engine.waitForSession(t, 0)
	time.Sleep(20 * time.Millisecond)

	if got := engine.openCount(); got != 1 {
		t.Fatalf("expected a single session, got %d", got)
	}
}

func TestRecognizerReportsListeningChanges(t *testing.T) {
	engine := newEngineStub()
	var mu sync.Mutex
	changes := []bool{}
	r := NewContinuousRecognizer(engine,
		WithRestartBackoff(time.Hour),
		WithListeningChangedCallback(func(listening bool) {
			mu.Lock()
			defer mu.Unlock()
			changes = append(changes, listening)
		}),
	)
	defer r.Stop()

	_ = r.Start(context.Background())
	engine.waitForSession(t, 0).end(nil)

	waitForCondition(t, time.Second, "listening changes", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if !changes[0] || changes[1] {
		t.Fatalf("expected listening true then false, got %v", changes)
	}
	if got := r.State(); got != RecognizerEnded {
		t.Fatalf("expected %s while waiting to restart, got %s", RecognizerEnded, got)
	}
}

func TestRecognizerBatchEvents(t *testing.T) {
	tests := []struct {
		name  string
		batch ResultBatch
		want  []string
	}{
		{
			name:  "interim only",
			batch: ResultBatch{Results: []Result{{Transcript: "how do"}, {Transcript: " I"}}},
			want:  []string{"activity", "interim:how do I"},
		},
		{
			name:  "final suppresses interim",
			batch: ResultBatch{Results: []Result{{Transcript: "how do I connect", IsFinal: true}, {Transcript: " to"}}},
			want:  []string{"activity", "final:how do I connect"},
		},
		{
			name:  "finals concatenate in slot order",
			batch: ResultBatch{Results: []Result{{Transcript: "wait", IsFinal: true}, {Transcript: " stop", IsFinal: true}}},
			want:  []string{"activity", "final:wait stop"},
		},
		{
			name:  "blank interim is not speech",
			batch: ResultBatch{Results: []Result{{Transcript: "  "}}},
			want:  []string{"interim:  "},
		},
		{
			name:  "empty batch",
			batch: ResultBatch{},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			r := NewContinuousRecognizer(nil,
				WithSpeechActivityCallback(func() { got = append(got, "activity") }),
				WithTranscriptCallback(func(ev TranscriptEvent) {
					kind := "interim"
					if ev.IsFinal {
						kind = "final"
					}
					got = append(got, kind+":"+ev.Text)
				}),
			)

			r.handleBatch(tt.batch)

			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRecognizerForwardsAudioToActiveSession(t *testing.T) {
	engine := newEngineStub()
	source := &audioSourceStub{frames: make(chan []byte, 4)}
	r := NewContinuousRecognizer(engine, WithAudioSource(source), WithRestartBackoff(time.Hour))
	defer r.Stop()

	_ = r.Start(context.Background())
	session := engine.waitForSession(t, 0)

	source.frames <- []byte{1, 2}
	waitForCondition(t, time.Second, "audio forwarded", func() bool { return session.audioBytes() == 2 })

	session.end(nil)
	waitForCondition(t, time.Second, "session detached", func() bool { return r.State() == RecognizerEnded })
	source.frames <- []byte{3, 4}
	time.Sleep(20 * time.Millisecond)
	if got := session.audioBytes(); got != 2 {
		t.Fatalf("expected audio between sessions to be dropped, got %d bytes", got)
	}
}

func TestRecognizerWithoutEngine(t *testing.T) {
	r := NewContinuousRecognizer(nil)
	if err := r.Start(context.Background()); !errors.Is(err, ErrEngine) {
		t.Fatalf("expected %v, got %v", ErrEngine, err)
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

type engineStub struct {
	mu       sync.Mutex
	sessions []*sessionStub
}

func newEngineStub() *engineStub {
	return &engineStub{}
}

func (e *engineStub) Open(ctx context.Context, _ audio.EncodingInfo) (EngineSession, error) {
	session := &sessionStub{results: make(chan ResultBatch, 8), done: make(chan struct{})}
	e.mu.Lock()
	e.sessions = append(e.sessions, session)
	e.mu.Unlock()
	return session, nil
}

func (e *engineStub) openCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *engineStub) waitForSession(t *testing.T, i int) *sessionStub {
	t.Helper()
	waitForCondition(t, time.Second, "engine session", func() bool { return e.openCount() > i })
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[i]
}

type sessionStub struct {
	results chan ResultBatch
	done    chan struct{}

	mu      sync.Mutex
	err     error
	ended   bool
	stopped bool
	audio   int
}

func (s *sessionStub) Results() <-chan ResultBatch { return s.results }
func (s *sessionStub) Done() <-chan struct{}       { return s.done }

func (s *sessionStub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *sessionStub) SendAudio(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio += len(audio)
	return nil
}

func (s *sessionStub) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.end(nil)
	return nil
}

func (s *sessionStub) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.results)
	close(s.done)
}

func (s *sessionStub) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *sessionStub) audioBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio
}

type audioSourceStub struct {
	frames chan []byte
}

func (s *audioSourceStub) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (s *audioSourceStub) Stream(ctx context.Context, onAudio func([]byte)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-s.frames:
			onAudio(frame)
		}
	}
}
