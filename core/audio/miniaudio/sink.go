package miniaudio

import (
	"fmt"
	"sync"

	"github.com/koscakluka/ema-vision/core/audio"
)

// playbackSink owns the shared playback buffer for one session. Appends
// complete right away while less than maxBuffered bytes are queued on the
// device, otherwise once playback drains back below that level.
type playbackSink struct {
	client      *playbackClient
	owner       uint64
	maxBuffered int

	mu       sync.Mutex
	released bool
}

func (s *playbackSink) Append(chunk []byte, onComplete func(error)) error {
	if s.isReleased() {
		return audio.ErrSinkReleased
	}

	buffered, err := s.client.send(s.owner, chunk)
	if err != nil {
		return fmt.Errorf("failed to queue audio: %w", err)
	}

	complete := func(string) {
		if !s.isReleased() {
			onComplete(nil)
		}
	}
	if buffered <= s.maxBuffered {
		go complete("")
		return nil
	}

	return s.client.markAt(s.owner, "room", buffered-s.maxBuffered, complete)
}

func (s *playbackSink) EndOfStream(onEnded func(error)) error {
	if s.isReleased() {
		return audio.ErrSinkReleased
	}

	return s.client.markAt(s.owner, "end", s.client.buffered(s.owner), func(string) {
		if !s.isReleased() {
			onEnded(nil)
		}
	})
}

func (s *playbackSink) Stop() {
	s.client.clearFor(s.owner)
}

func (s *playbackSink) Release() error {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()

	s.client.release(s.owner)
	return nil
}

func (s *playbackSink) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
