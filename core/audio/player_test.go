package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStreamingPlayerAppendsChunksInOrderOneAtATime(t *testing.T) {
	sink := &manualSink{}
	player := NewStreamingPlayer(&manualDevice{sink: sink})

	source := newChunkSourceStub(5)
	for _, chunk := range []string{"c1", "c2", "c3", "c4", "c5"} {
		source.chunks <- []byte(chunk)
	}
	close(source.chunks)

	if err := player.Start(context.Background(), source); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	for i := range 5 {
		waitForCondition(t, time.Second, "next append", func() bool { return sink.appendCount() == i+1 })
		sink.completeNext(nil)
	}
	waitForCondition(t, time.Second, "end of stream", func() bool { return sink.endOfStreamCount() == 1 })

	select {
	case <-player.Done():
		t.Fatalf("expected playback to wait for the sink to finish playing")
	default:
	}

	sink.finishPlayback()
	waitForDone(t, player)

	if err := player.Err(); err != nil {
		t.Fatalf("expected no error after full playback, got %v", err)
	}
	if got := sink.maxInFlightCount(); got != 1 {
		t.Fatalf("expected at most one append in flight, got %d", got)
	}
	if got := sink.order(); got != "c1,c2,c3,c4,c5" {
		t.Fatalf("expected chunks in arrival order, got %s", got)
	}
	if sink.appendedDuringFlight() {
		t.Fatalf("expected end of stream only after the last append completed")
	}
	if !sink.isReleased() {
		t.Fatalf("expected sink to be released after playback")
	}
}

func TestStreamingPlayerStartsBeforeStreamEnds(t *testing.T) {
	sink := &manualSink{}
	player := NewStreamingPlayer(&manualDevice{sink: sink})
	source := newChunkSourceStub(1)

	if err := player.Start(context.Background(), source); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	source.chunks <- []byte("first")

	waitForCondition(t, time.Second, "first chunk appended", func() bool { return sink.appendCount() == 1 })
	player.Cancel()
}

func TestStreamingPlayerCancelDropsQueuedChunks(t *testing.T) {
	sink := &manualSink{}
	player := NewStreamingPlayer(&manualDevice{sink: sink})
	source := newChunkSourceStub(3)
	source.chunks <- []byte("c1")
	source.chunks <- []byte("c2")
	source.chunks <- []byte("c3")

	if err := player.Start(context.Background(), source); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	waitForCondition(t, time.Second, "first append", func() bool { return sink.appendCount() == 1 })
	waitForCondition(t, time.Second, "chunks queued", func() bool { return player.pending() == 2 })

	player.Cancel()
	player.Cancel()
	sink.completeNext(nil)
	time.Sleep(50 * time.Millisecond)

	if got := sink.appendCount(); got != 1 {
		t.Fatalf("expected no appends after cancel, got %d", got)
	}
	if !source.isCancelled() {
		t.Fatalf("expected source to be cancelled")
	}
	if !sink.isStopped() || !sink.isReleased() {
		t.Fatalf("expected sink to be stopped and released")
	}
	if !errors.Is(player.Err(), ErrPlayerCancelled) {
		t.Fatalf("expected %v, got %v", ErrPlayerCancelled, player.Err())
	}
}

func TestStreamingPlayerStreamErrorAbortsPlayback(t *testing.T) {
	sink := &manualSink{}
	player := NewStreamingPlayer(&manualDevice{sink: sink})
	streamErr := errors.New("connection reset")
	source := newChunkSourceStub(1)
	source.chunks <- []byte("c1")
	source.setErr(streamErr)
	close(source.chunks)

	if err := player.Start(context.Background(), source); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	waitForDone(t, player)

	if !errors.Is(player.Err(), streamErr) {
		t.Fatalf("expected stream error, got %v", player.Err())
	}
	if !sink.isReleased() {
		t.Fatalf("expected sink to be released after a stream error")
	}
}

func TestStreamingPlayerSinkErrorAbortsPlayback(t *testing.T) {
	sink := &manualSink{}
	player := NewStreamingPlayer(&manualDevice{sink: sink})
	source := newChunkSourceStub(2)
	source.chunks <- []byte("c1")
	source.chunks <- []byte("c2")

	if err := player.Start(context.Background(), source); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	waitForCondition(t, time.Second, "first append", func() bool { return sink.appendCount() == 1 })
	sink.completeNext(errors.New("device unplugged"))
	waitForDone(t, player)

	if !errors.Is(player.Err(), ErrSink) {
		t.Fatalf("expected %v, got %v", ErrSink, player.Err())
	}
	if !source.isCancelled() {
		t.Fatalf("expected source to be cancelled after a sink failure")
	}
}

func TestStreamingPlayerFinalFlushErrorFailsPlayback(t *testing.T) {
	sink := &manualSink{}
	player := NewStreamingPlayer(&manualDevice{sink: sink})
	source := newChunkSourceStub(1)
	source.chunks <- []byte("c1")
	close(source.chunks)

	if err := player.Start(context.Background(), source); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	waitForCondition(t, time.Second, "first append", func() bool { return sink.appendCount() == 1 })
	sink.completeNext(nil)
	waitForCondition(t, time.Second, "end of stream", func() bool { return sink.endOfStreamCount() == 1 })

	flushErr := errors.New("output underflow")
	sink.endPlayback(flushErr)
	waitForDone(t, player)

	if !errors.Is(player.Err(), ErrSink) || !errors.Is(player.Err(), flushErr) {
		t.Fatalf("expected sink error wrapping %v, got %v", flushErr, player.Err())
	}
	if !sink.isReleased() {
		t.Fatalf("expected sink to be released after a failed flush")
	}
}

func TestStreamingPlayerCancelBeforeStart(t *testing.T) {
	player := NewStreamingPlayer(&manualDevice{sink: &manualSink{}})
	player.Cancel()

	source := newChunkSourceStub(0)
	if err := player.Start(context.Background(), source); !errors.Is(err, ErrPlayerCancelled) {
		t.Fatalf("expected %v, got %v", ErrPlayerCancelled, err)
	}
	if !source.isCancelled() {
		t.Fatalf("expected source to be cancelled")
	}
}

func TestStreamingPlayerContextCancellation(t *testing.T) {
	sink := &manualSink{}
	player := NewStreamingPlayer(&manualDevice{sink: sink})
	source := newChunkSourceStub(0)
	ctx, cancel := context.WithCancel(context.Background())

	if err := player.Start(ctx, source); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	cancel()
	waitForDone(t, player)

	if !errors.Is(player.Err(), ErrPlayerCancelled) {
		t.Fatalf("expected %v, got %v", ErrPlayerCancelled, player.Err())
	}
}

func TestStreamingPlayerOnDiscardDevice(t *testing.T) {
	appended := atomic.Int32{}
	player := NewStreamingPlayer(DiscardDevice{}, WithChunkAppendedCallback(func([]byte) { appended.Add(1) }))
	source := newChunkSourceStub(2)
	source.chunks <- []byte("c1")
	source.chunks <- []byte("c2")
	close(source.chunks)

	if err := player.Start(context.Background(), source); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	waitForDone(t, player)

	if err := player.Err(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := appended.Load(); got != 2 {
		t.Fatalf("expected 2 appended chunks, got %d", got)
	}
}

func waitForDone(t *testing.T, player *StreamingPlayer) {
	t.Helper()
	select {
	case <-player.Done():
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for playback to finish")
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

type manualDevice struct {
	sink *manualSink
}

func (d *manualDevice) EncodingInfo() EncodingInfo { return GetDefaultEncodingInfo() }

func (d *manualDevice) OpenSink() (Sink, error) { return d.sink, nil }

type manualSink struct {
	mu sync.Mutex

	appended    [][]byte
	completions []func(error)
	inFlight    int
	maxInFlight int
	endedEarly  bool
	onEnded     []func(error)
	stopped     bool
	released    bool
}

func (s *manualSink) Append(chunk []byte, onComplete func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, chunk)
	s.completions = append(s.completions, onComplete)
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	return nil
}

func (s *manualSink) EndOfStream(onEnded func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight > 0 {
		s.endedEarly = true
	}
	s.onEnded = append(s.onEnded, onEnded)
	return nil
}

func (s *manualSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *manualSink) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

func (s *manualSink) completeNext(err error) {
	s.mu.Lock()
	if len(s.completions) == 0 {
		s.mu.Unlock()
		return
	}
	callback := s.completions[0]
	s.completions = s.completions[1:]
	s.inFlight--
	s.mu.Unlock()
	callback(err)
}

func (s *manualSink) finishPlayback() {
	s.endPlayback(nil)
}

func (s *manualSink) endPlayback(err error) {
	s.mu.Lock()
	callbacks := s.onEnded
	s.onEnded = nil
	s.mu.Unlock()
	for _, callback := range callbacks {
		callback(err)
	}
}

func (s *manualSink) appendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appended)
}

func (s *manualSink) endOfStreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.onEnded)
}

func (s *manualSink) maxInFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *manualSink) appendedDuringFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedEarly
}

func (s *manualSink) order() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := ""
	for i, chunk := range s.appended {
		if i > 0 {
			out += ","
		}
		out += string(chunk)
	}
	return out
}

func (s *manualSink) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *manualSink) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

type chunkSourceStub struct {
	chunks    chan []byte
	mu        sync.Mutex
	err       error
	cancelled bool
}

func newChunkSourceStub(buffer int) *chunkSourceStub {
	return &chunkSourceStub{chunks: make(chan []byte, buffer)}
}

func (s *chunkSourceStub) Chunks() <-chan []byte { return s.chunks }

func (s *chunkSourceStub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *chunkSourceStub) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

func (s *chunkSourceStub) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *chunkSourceStub) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
