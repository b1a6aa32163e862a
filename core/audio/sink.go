package audio

import (
	"errors"
	"sync"
)

var (
	// ErrSink wraps failures reported by an output sink.
	ErrSink = errors.New("audio sink failed")
	// ErrSinkReleased is returned when a released sink is used again.
	ErrSinkReleased = errors.New("audio sink released")
)

// Device opens one sink per playback session.
type Device interface {
	EncodingInfo() EncodingInfo
	OpenSink() (Sink, error)
}

// Sink is the device side of a single playback session.
//
// Append accepts one chunk and reports through onComplete once the sink can
// take the next one. onComplete must never be invoked from within Append.
// EndOfStream calls onEnded after everything appended so far has played,
// passing the error of the final flush if it failed.
// Stop discards buffered audio immediately. Release frees the sink, after
// which no callback registered on it may fire.
type Sink interface {
	Append(chunk []byte, onComplete func(error)) error
	EndOfStream(onEnded func(error)) error
	Stop()
	Release() error
}

// DiscardDevice accepts and drops all audio. Playback on it completes as soon
// as the stream ends.
type DiscardDevice struct {
	Encoding EncodingInfo
}

func (d DiscardDevice) EncodingInfo() EncodingInfo {
	if d.Encoding.IsZero() {
		return GetDefaultEncodingInfo()
	}
	return d.Encoding
}

func (d DiscardDevice) OpenSink() (Sink, error) {
	return &discardSink{}, nil
}

type discardSink struct {
	mu       sync.Mutex
	released bool
}

func (s *discardSink) Append(_ []byte, onComplete func(error)) error {
	if s.isReleased() {
		return ErrSinkReleased
	}
	go func() {
		if !s.isReleased() {
			onComplete(nil)
		}
	}()
	return nil
}

func (s *discardSink) EndOfStream(onEnded func(error)) error {
	if s.isReleased() {
		return ErrSinkReleased
	}
	go func() {
		if !s.isReleased() {
			onEnded(nil)
		}
	}()
	return nil
}

func (s *discardSink) Stop() {}

func (s *discardSink) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

func (s *discardSink) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
