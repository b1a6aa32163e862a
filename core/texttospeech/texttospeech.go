// Package texttospeech turns answer text into a stream of raw audio chunks.
package texttospeech

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStreamTransport wraps failures while reading synthesized audio.
	ErrStreamTransport = errors.New("speech stream transport failed")
	// ErrCancelled is reported by a stream that was cancelled by its consumer.
	ErrCancelled = errors.New("speech stream cancelled")
	ErrEmptyText    = errors.New("nothing to synthesize")
	ErrUnknownVoice = errors.New("unknown voice")
)

// BackendError carries a non-success reply from a synthesis backend.
type BackendError struct {
	Provider string
	Status   int
	Body     string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s returned non-OK HTTP status %d: %s", e.Provider, e.Status, e.Body)
}

// VoiceID identifies a voice of the synthesis backend.
type VoiceID string

const (
	VoiceChris VoiceID = "iP95p4xoKVk53GoZ742B"
	VoiceAlice VoiceID = "Xb7hH8MSUJpSbSDYk0k2"
	VoiceAria  VoiceID = "9BWtsMINqrJLrRacOk9x"
	VoiceBill  VoiceID = "pqHfZKP75CvOlQylNhV4"
	VoiceBrian VoiceID = "nPczCjzI2devNBz1zQrb"

	DefaultVoice = VoiceChris
)

type Voice struct {
	ID   VoiceID
	Name string
}

// Voices lists the selectable voices in display order.
func Voices() []Voice {
	return []Voice{
		{ID: VoiceChris, Name: "Chris"},
		{ID: VoiceAlice, Name: "Alice"},
		{ID: VoiceAria, Name: "Aria"},
		{ID: VoiceBill, Name: "Bill"},
		{ID: VoiceBrian, Name: "Brian"},
	}
}

// ParseVoice accepts a voice name (case-insensitive) or a voice ID.
func ParseVoice(s string) (VoiceID, error) {
	s = strings.TrimSpace(s)
	for _, voice := range Voices() {
		if strings.EqualFold(voice.Name, s) || string(voice.ID) == s {
			return voice.ID, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownVoice, s)
}

func (v VoiceID) Name() string {
	for _, voice := range Voices() {
		if voice.ID == v {
			return voice.Name
		}
	}
	return string(v)
}

// AudioChunkStream delivers synthesized audio in order. The channel is closed
// when the stream ends, after which Err reports why. Cancel is idempotent and
// no chunk is delivered after it returns.
type AudioChunkStream interface {
	Chunks() <-chan []byte
	Err() error
	Cancel()
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceID) (AudioChunkStream, error)
}
