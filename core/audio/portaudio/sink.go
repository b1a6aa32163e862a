package portaudio

import (
	"sync"

	"github.com/koscakluka/ema-vision/core/audio"
)

type streamSink struct {
	client *Client
	owner  uint64

	mu       sync.Mutex
	leftover []byte
	stopped  bool
	released bool
}

// Append writes the chunk on its own goroutine and completes once every whole
// frame of it reached the device. A partial trailing frame is kept for the
// next chunk.
func (s *streamSink) Append(chunk []byte, onComplete func(error)) error {
	if s.isReleased() {
		return audio.ErrSinkReleased
	}

	go func() {
		err := s.write(chunk, false)
		if !s.isReleased() {
			onComplete(err)
		}
	}()
	return nil
}

// EndOfStream flushes the trailing partial frame padded with silence.
func (s *streamSink) EndOfStream(onEnded func(error)) error {
	if s.isReleased() {
		return audio.ErrSinkReleased
	}

	go func() {
		err := s.write(nil, true)
		if !s.isReleased() {
			onEnded(err)
		}
	}()
	return nil
}

func (s *streamSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.leftover = nil
}

func (s *streamSink) Release() error {
	s.mu.Lock()
	s.released = true
	s.stopped = true
	s.leftover = nil
	s.mu.Unlock()

	s.client.release(s.owner)
	return nil
}

func (s *streamSink) write(chunk []byte, flush bool) error {
	frameSize := s.client.frameSize()

	s.mu.Lock()
	pending := append(s.leftover, chunk...)
	s.leftover = nil
	s.mu.Unlock()

	if flush && len(pending)%frameSize != 0 {
		pending = append(pending, make([]byte, frameSize-len(pending)%frameSize)...)
	}

	for len(pending) >= frameSize {
		if s.isStopped() || !s.client.owns(s.owner) {
			return nil
		}
		if err := s.client.writeFrame(pending[:frameSize]); err != nil {
			return err
		}
		pending = pending[frameSize:]
	}

	s.mu.Lock()
	if !s.stopped {
		s.leftover = append([]byte(nil), pending...)
	}
	s.mu.Unlock()
	return nil
}

func (s *streamSink) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *streamSink) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
