package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/snapshot"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	statusSnapshotting     = "Taking screenshot..."
	statusStreaming        = "Streaming audio..."
	statusPlaybackFinished = "Audio playback finished."
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

// turn is the live question. Its backend and voice are fixed when it starts.
type turn struct {
	id        string
	question  string
	backend   llms.Backend
	voice     texttospeech.VoiceID
	startedAt time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	span    trace.Span
	session *interactionSession
}

type (
	snapshotReady struct {
		turnID string
		snap   snapshot.Snapshot
		err    error
	}
	answerReady struct {
		turnID string
		answer string
		err    error
	}
	playbackStarted struct{ turnID string }
	sessionEnded    struct {
		turnID string
		err    error
	}
)

// current returns the live turn if turnID still names it. Results of
// superseded turns are dropped here.
func (o *Orchestrator) current(turnID string) *turn {
	if o.turn == nil || o.turn.id != turnID {
		return nil
	}
	return o.turn
}

func (o *Orchestrator) startTurn(ctx context.Context, question string) {
	o.mu.RLock()
	backend, voice := o.backend, o.voice
	o.mu.RUnlock()

	id := uuid.NewString()
	turnCtx, cancel := context.WithCancel(ctx)
	turnCtx, span := tracer.Start(turnCtx, "turn", trace.WithAttributes(
		attribute.String("turn.id", id),
		attribute.String("turn.backend", string(backend)),
	))

	t := &turn{
		id:        id,
		question:  question,
		backend:   backend,
		voice:     voice,
		startedAt: time.Now(),
		ctx:       turnCtx,
		cancel:    cancel,
		span:      span,
	}
	o.turn = t
	o.metrics.TurnStarted()
	logger.InfoContext(turnCtx, "turn started", "turn_id", id, "backend", backend)

	o.setState(StateSnapshotting)
	o.emit(events.NewStatusUpdated(t.id, statusSnapshotting))

	var snap snapshot.Snapshot
	o.spawn(t.ctx, "snapshot", func(ctx context.Context) error {
		if o.snapshotter == nil {
			return ErrNoSnapshotter
		}
		var err error
		snap, err = o.snapshotter.Capture(ctx)
		return err
	}, func(err error) {
		o.post(snapshotReady{turnID: t.id, snap: snap, err: err})
	})
}

func (o *Orchestrator) snapshotReady(result snapshotReady) {
	t := o.current(result.turnID)
	if t == nil {
		return
	}
	if result.err != nil {
		o.failTurn(t, fmt.Errorf("failed to capture screen: %w", result.err))
		return
	}

	message := o.conversation.appendUser(t.id, t.question, result.snap)
	o.emit(events.NewChatMessageAppended(t.id, message.ID, string(message.Role), message.Text, true))

	o.setState(StateAwaitingResponse)
	o.emit(events.NewStatusUpdated(t.id, fmt.Sprintf("Asking %s...", o.backendLabel(t.backend))))

	requestedAt := time.Now()
	var answer string
	o.spawn(t.ctx, "responder", func(ctx context.Context) error {
		if o.responder == nil {
			return ErrNoResponder
		}
		var err error
		answer, err = o.responder.Answer(ctx, t.question, result.snap, t.backend)
		return err
	}, func(err error) {
		o.metrics.ResponderLatency(string(t.backend), time.Since(requestedAt))
		o.post(answerReady{turnID: t.id, answer: answer, err: err})
	})
}

func (o *Orchestrator) answerReady(result answerReady) {
	t := o.current(result.turnID)
	if t == nil {
		return
	}
	if result.err != nil {
		o.failTurn(t, fmt.Errorf("failed to get an answer: %w", result.err))
		return
	}

	message := o.conversation.appendAssistant(t.id, result.answer)
	o.emit(events.NewChatMessageAppended(t.id, message.ID, string(message.Role), message.Text, false))

	session := newInteractionSession(t.id)
	t.session = session
	o.setState(StateSynthesizingPlaying)
	o.emit(events.NewStatusUpdated(t.id, statusStreaming))

	o.spawn(t.ctx, "playback", func(ctx context.Context) error {
		return o.playReply(ctx, t, session, result.answer)
	}, func(err error) {
		o.post(sessionEnded{turnID: t.id, err: err})
	})
}

// playReply runs one interaction session to its end. It reports
// playbackStarted once the first chunk reached the device.
func (o *Orchestrator) playReply(ctx context.Context, t *turn, session *interactionSession, text string) error {
	ctx, span := tracer.Start(ctx, "play reply", trace.WithAttributes(attribute.String("session.id", session.id)))
	defer span.End()

	if o.synthesizer == nil {
		return ErrNoSynthesizer
	}
	stream, err := o.synthesizer.Synthesize(ctx, text, t.voice)
	if err != nil {
		return fmt.Errorf("failed to start speech synthesis: %w", err)
	}
	if !session.attachStream(stream) {
		return audio.ErrPlayerCancelled
	}

	started := make(chan struct{})
	var startedOnce sync.Once
	player := audio.NewStreamingPlayer(o.output.Device(), audio.WithChunkAppendedCallback(func([]byte) {
		o.metrics.ChunkSubmitted()
		startedOnce.Do(func() { close(started) })
	}))
	if !session.attachPlayer(player) {
		return audio.ErrPlayerCancelled
	}
	if err := player.Start(ctx, stream); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	select {
	case <-started:
	case <-player.Done():
	}
	select {
	case <-started:
		o.post(playbackStarted{turnID: t.id})
	default:
	}

	<-player.Done()
	if err := player.Err(); err != nil {
		recordError(ctx, err)
		return err
	}
	return nil
}

func (o *Orchestrator) sessionEnded(result sessionEnded) {
	t := o.current(result.turnID)
	if t == nil {
		return
	}

	o.emit(events.NewPlaybackEnded(t.id, result.err))
	if result.err != nil {
		o.failTurn(t, fmt.Errorf("playback aborted: %w", result.err))
		return
	}

	o.emit(events.NewStatusUpdated(t.id, statusPlaybackFinished))
	o.endTurn(t, outcomeCompleted)
	o.emit(events.NewTurnCompleted(t.id))
}

// cancelCurrent retires the live session and abandons the live turn. It is a
// no-op while idle.
func (o *Orchestrator) cancelCurrent(ctx context.Context) {
	t := o.turn
	if t == nil {
		return
	}

	t.span.AddEvent("cancelled")
	o.endTurn(t, outcomeCancelled)
	logger.InfoContext(ctx, "turn cancelled", "turn_id", t.id)
	o.emit(events.NewTurnCancelled(t.id))
}

func (o *Orchestrator) failTurn(t *turn, err error) {
	recordError(t.ctx, err)
	logger.WarnContext(t.ctx, "turn failed", "turn_id", t.id, "error", err)

	o.endTurn(t, outcomeFailed)
	o.emit(events.NewStatusUpdated(t.id, fmt.Sprintf("Error: %v", err)))
	o.emit(events.NewTurnFailed(t.id, err))
}

func (o *Orchestrator) endTurn(t *turn, outcome string) {
	o.turn = nil
	if t.session != nil {
		t.session.retire()
	}
	t.cancel()
	t.span.SetAttributes(attribute.String("turn.outcome", outcome))
	t.span.End()

	o.metrics.TurnFinished(outcome)
	o.setState(StateIdle)
}

type namedProviders interface {
	Provider(backend llms.Backend) (llms.Provider, bool)
}

func (o *Orchestrator) backendLabel(backend llms.Backend) string {
	if router, ok := o.responder.(namedProviders); ok {
		if provider, ok := router.Provider(backend); ok {
			return provider.Name()
		}
	}
	return string(backend)
}
