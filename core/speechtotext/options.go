package speechtotext

import (
	"time"

	"github.com/koscakluka/ema-vision/core/audio"
)

const DefaultRestartBackoff = 500 * time.Millisecond

type RecognizerOptions struct {
	OnListeningChanged func(listening bool)
	OnTranscript       func(TranscriptEvent)
	OnSpeechActivity   func()
	OnSessionRestart   func()
	OnError            func(error)

	AudioSource    AudioSource
	EncodingInfo   audio.EncodingInfo
	RestartBackoff time.Duration
}

type RecognizerOption func(*RecognizerOptions)

func WithListeningChangedCallback(callback func(listening bool)) RecognizerOption {
	return func(o *RecognizerOptions) {
		o.OnListeningChanged = callback
	}
}

func WithTranscriptCallback(callback func(TranscriptEvent)) RecognizerOption {
	return func(o *RecognizerOptions) {
		o.OnTranscript = callback
	}
}

// WithSpeechActivityCallback fires for every batch carrying any non-blank
// text, ahead of the matching transcript callback.
func WithSpeechActivityCallback(callback func()) RecognizerOption {
	return func(o *RecognizerOptions) {
		o.OnSpeechActivity = callback
	}
}

func WithSessionRestartCallback(callback func()) RecognizerOption {
	return func(o *RecognizerOptions) {
		o.OnSessionRestart = callback
	}
}

func WithErrorCallback(callback func(error)) RecognizerOption {
	return func(o *RecognizerOptions) {
		o.OnError = callback
	}
}

// WithAudioSource sets where session audio comes from. Without one the
// engine is expected to capture audio itself.
func WithAudioSource(source AudioSource) RecognizerOption {
	return func(o *RecognizerOptions) {
		o.AudioSource = source
		if source != nil {
			o.EncodingInfo = source.EncodingInfo()
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) RecognizerOption {
	return func(o *RecognizerOptions) {
		if !encodingInfo.IsZero() {
			o.EncodingInfo = encodingInfo
		}
	}
}

func WithRestartBackoff(backoff time.Duration) RecognizerOption {
	return func(o *RecognizerOptions) {
		if backoff >= 0 {
			o.RestartBackoff = backoff
		}
	}
}
