package main

import (
	"context"
	"fmt"
	"log"

	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/audio/miniaudio"
	"github.com/koscakluka/ema-vision/core/audio/portaudio"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/llms/gemini"
	"github.com/koscakluka/ema-vision/core/llms/groq"
	"github.com/koscakluka/ema-vision/core/llms/openai"
	"github.com/koscakluka/ema-vision/core/snapshot"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	deepgramstt "github.com/koscakluka/ema-vision/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-vision/core/speechtotext/google"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	deepgramtts "github.com/koscakluka/ema-vision/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-vision/core/texttospeech/elevenlabs"
	"github.com/koscakluka/ema-vision/internal/config"
)

const portaudioBufferSize = 1024

type audioDevice struct {
	device  audio.Device
	capture speechtotext.AudioSource
	close   func()
}

func (d audioDevice) Close() {
	if d.close != nil {
		d.close()
	}
}

func openAudioDevice(kind string) (audioDevice, error) {
	switch kind {
	case config.AudioDeviceMiniaudio:
		client, err := miniaudio.NewClient()
		if err != nil {
			return audioDevice{}, fmt.Errorf("failed to open miniaudio device: %w", err)
		}
		return audioDevice{device: client, capture: client, close: client.Close}, nil
	case config.AudioDevicePortaudio:
		client, err := portaudio.NewClient(portaudioBufferSize)
		if err != nil {
			return audioDevice{}, fmt.Errorf("failed to open portaudio device: %w", err)
		}
		return audioDevice{device: client, capture: client, close: client.Close}, nil
	default:
		log.Println("Warning: no audio device - replies are synthesized but not played")
		return audioDevice{device: audio.DiscardDevice{}}, nil
	}
}

func newProvider(ctx context.Context, cfg config.Config, name string) (llms.Provider, error) {
	apiKey := cfg.ProviderKey(name)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for %s", name)
	}
	switch name {
	case config.ProviderOpenAI:
		return openai.NewClient(apiKey), nil
	case config.ProviderGroq:
		return groq.NewClient(apiKey), nil
	case config.ProviderGemini:
		return gemini.NewClient(ctx, apiKey)
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

// newRouter binds the configured providers to the two backends. A backend
// whose provider cannot be built stays unbound and fails its turns.
func newRouter(ctx context.Context, cfg config.Config) *llms.Router {
	opts := []llms.RouterOption{llms.WithTimeout(cfg.ResponseTimeout)}
	for backend, name := range map[llms.Backend]string{
		llms.BackendPrimary:   cfg.PrimaryProvider,
		llms.BackendSecondary: cfg.SecondaryProvider,
	} {
		provider, err := newProvider(ctx, cfg, name)
		if err != nil {
			log.Printf("Warning: %s backend unavailable: %v", backend, err)
			continue
		}
		opts = append(opts, llms.WithProvider(backend, provider))
	}
	return llms.NewRouter(opts...)
}

func newSynthesizer(cfg config.Config, encoding audio.EncodingInfo) texttospeech.Synthesizer {
	var (
		synthesizer texttospeech.Synthesizer
		err         error
	)
	switch cfg.Synthesizer {
	case config.SynthesizerDeepgram:
		synthesizer, err = deepgramtts.NewTextToSpeechClient(cfg.DeepgramAPIKey,
			deepgramtts.WithSynthesizerOptions(texttospeech.WithEncodingInfo(encoding)))
	default:
		synthesizer, err = elevenlabs.NewClient(cfg.ElevenLabsAPIKey, texttospeech.WithEncodingInfo(encoding))
	}
	if err != nil {
		log.Printf("Warning: speech synthesis unavailable: %v", err)
		return nil
	}
	return synthesizer
}

// newRecognitionEngine returns nil when the configured engine cannot be
// built; the returned close func may be nil.
func newRecognitionEngine(ctx context.Context, cfg config.Config) (speechtotext.Engine, func()) {
	switch cfg.Recognizer {
	case config.RecognizerGoogle:
		engine, err := google.NewEngine(ctx)
		if err != nil {
			log.Printf("Warning: speech recognition unavailable: %v", err)
			return nil, nil
		}
		return engine, func() {
			if err := engine.Close(); err != nil {
				log.Printf("Warning: failed to close recognition client: %v", err)
			}
		}
	default:
		engine, err := deepgramstt.NewEngine(cfg.DeepgramAPIKey)
		if err != nil {
			log.Printf("Warning: speech recognition unavailable: %v", err)
			return nil, nil
		}
		return engine, nil
	}
}

func frameSource(path string) snapshot.FrameSource {
	if path == "" {
		return nil
	}
	return snapshot.FileSource{Path: path}
}
