package miniaudio

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-vision/core/audio"
)

func TestProcessAudioDrainsBufferAndPadsWithSilence(t *testing.T) {
	c := &playbackClient{}
	owner := c.claim()
	if _, err := c.send(owner, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}

	out := []byte{9, 9, 9, 9, 9, 9}
	c.processAudio(2)(out, nil, 3)

	want := []byte{1, 2, 3, 4, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected output %v, got %v", want, out)
		}
	}
	if got := c.buffered(owner); got != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", got)
	}
}

func TestMarksFireOncePlaybackPassesThem(t *testing.T) {
	c := &playbackClient{}
	owner := c.claim()
	_, _ = c.send(owner, make([]byte, 8))

	fired := atomic.Int32{}
	_ = c.markAt(owner, "end", c.buffered(owner), func(string) { fired.Add(1) })

	process := c.processAudio(2)
	process(make([]byte, 4), nil, 2)
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected mark to wait for the remaining audio")
	}

	process(make([]byte, 4), nil, 2)
	waitFor(t, func() bool { return fired.Load() == 1 })

	process(make([]byte, 4), nil, 2)
	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("expected mark to fire once, got %d", got)
	}
}

func TestMarkOnPeriodBoundaryFiresWithThatPeriod(t *testing.T) {
	c := &playbackClient{}
	owner := c.claim()
	_, _ = c.send(owner, make([]byte, 4))

	fired := atomic.Int32{}
	_ = c.markAt(owner, "end", c.buffered(owner), func(string) { fired.Add(1) })
	notYet := atomic.Int32{}
	_ = c.markAt(owner, "later", c.buffered(owner)+1, func(string) { notYet.Add(1) })

	c.processAudio(2)(make([]byte, 4), nil, 2)
	waitFor(t, func() bool { return fired.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := notYet.Load(); got != 0 {
		t.Fatalf("expected mark past the period to wait, got %d calls", got)
	}
}

func TestClaimInvalidatesPreviousSink(t *testing.T) {
	c := &playbackClient{}
	first := c.claim()
	_, _ = c.send(first, []byte{1, 2})
	second := c.claim()

	if _, err := c.send(first, []byte{3, 4}); err == nil {
		t.Fatalf("expected stale sink to be rejected")
	}
	if got := c.buffered(second); got != 0 {
		t.Fatalf("expected the new sink to start with an empty buffer, got %d", got)
	}

	_, _ = c.send(second, []byte{5, 6})
	c.release(first)
	if got := c.buffered(second); got != 2 {
		t.Fatalf("expected a stale release to leave the new sink alone, got %d", got)
	}
}

func TestPlaybackSinkHoldsCompletionWhileBufferIsFull(t *testing.T) {
	c := &playbackClient{}
	sink := &playbackSink{client: c, owner: c.claim(), maxBuffered: 4}

	completed := atomic.Int32{}
	if err := sink.Append(make([]byte, 4), func(error) { completed.Add(1) }); err != nil {
		t.Fatalf("expected append to succeed, got %v", err)
	}
	waitFor(t, func() bool { return completed.Load() == 1 })

	if err := sink.Append(make([]byte, 4), func(error) { completed.Add(1) }); err != nil {
		t.Fatalf("expected append to succeed, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if completed.Load() != 1 {
		t.Fatalf("expected second append to wait for room")
	}

	c.processAudio(2)(make([]byte, 6), nil, 3)
	waitFor(t, func() bool { return completed.Load() == 2 })
}

func TestPlaybackSinkReleaseSuppressesCallbacks(t *testing.T) {
	c := &playbackClient{}
	sink := &playbackSink{client: c, owner: c.claim(), maxBuffered: 2}

	ended := atomic.Int32{}
	_ = sink.Append(make([]byte, 2), func(error) {})
	_ = sink.EndOfStream(func(error) { ended.Add(1) })
	sink.Stop()
	_ = sink.Release()

	c.processAudio(2)(make([]byte, 4), nil, 2)
	time.Sleep(20 * time.Millisecond)
	if ended.Load() != 0 {
		t.Fatalf("expected no end callback after release")
	}
	if err := sink.Append([]byte{1}, func(error) {}); !errors.Is(err, audio.ErrSinkReleased) {
		t.Fatalf("expected %v, got %v", audio.ErrSinkReleased, err)
	}
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition")
}
