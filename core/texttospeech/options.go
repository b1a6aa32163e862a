package texttospeech

import (
	"net/http"

	"github.com/koscakluka/ema-vision/core/audio"
)

type SynthesizerOptions struct {
	EncodingInfo    audio.EncodingInfo
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	BaseURL         string
	HTTPClient      *http.Client
}

type SynthesizerOption func(*SynthesizerOptions)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesizerOption {
	return func(o *SynthesizerOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

func WithModelID(modelID string) SynthesizerOption {
	return func(o *SynthesizerOptions) {
		if modelID != "" {
			o.ModelID = modelID
		}
	}
}

func WithVoiceSettings(stability, similarityBoost float64) SynthesizerOption {
	return func(o *SynthesizerOptions) {
		o.Stability = stability
		o.SimilarityBoost = similarityBoost
	}
}

func WithBaseURL(url string) SynthesizerOption {
	return func(o *SynthesizerOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithHTTPClient(client *http.Client) SynthesizerOption {
	return func(o *SynthesizerOptions) {
		if client != nil {
			o.HTTPClient = client
		}
	}
}

// NewSynthesizerOptions applies opts over defaults.
func NewSynthesizerOptions(defaults SynthesizerOptions, opts ...SynthesizerOption) SynthesizerOptions {
	options := defaults
	if options.EncodingInfo.IsZero() {
		options.EncodingInfo = audio.GetDefaultEncodingInfo()
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
