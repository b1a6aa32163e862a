// Package config loads ema-vision settings from the environment and an
// optional .env file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"

	SynthesizerElevenLabs = "elevenlabs"
	SynthesizerDeepgram   = "deepgram"

	RecognizerDeepgram = "deepgram"
	RecognizerGoogle   = "google"

	AudioDeviceMiniaudio = "miniaudio"
	AudioDevicePortaudio = "portaudio"
	AudioDeviceNone      = "none"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	OpenAIAPIKey     string `json:"openai_api_key,omitempty" jsonschema:"description=OPENAI_API_KEY"`
	GroqAPIKey       string `json:"groq_api_key,omitempty" jsonschema:"description=GROQ_API_KEY"`
	GeminiAPIKey     string `json:"gemini_api_key,omitempty" jsonschema:"description=GEMINI_API_KEY"`
	ElevenLabsAPIKey string `json:"elevenlabs_api_key,omitempty" jsonschema:"description=ELEVENLABS_API_KEY"`
	DeepgramAPIKey   string `json:"deepgram_api_key,omitempty" jsonschema:"description=DEEPGRAM_API_KEY"`

	PrimaryProvider   string `json:"primary_provider" jsonschema:"description=EMA_PRIMARY_PROVIDER,enum=openai,enum=groq,enum=gemini,default=openai"`
	SecondaryProvider string `json:"secondary_provider" jsonschema:"description=EMA_SECONDARY_PROVIDER,enum=openai,enum=groq,enum=gemini,default=groq"`
	Backend           string `json:"backend" jsonschema:"description=EMA_BACKEND,enum=primary,enum=secondary,default=primary"`
	Voice             string `json:"voice" jsonschema:"description=EMA_VOICE,enum=Chris,enum=Alice,enum=Aria,enum=Bill,enum=Brian,default=Chris"`
	Synthesizer       string `json:"synthesizer" jsonschema:"description=EMA_SYNTHESIZER,enum=elevenlabs,enum=deepgram,default=elevenlabs"`
	Recognizer        string `json:"recognizer" jsonschema:"description=EMA_RECOGNIZER,enum=deepgram,enum=google,default=deepgram"`
	AudioDevice       string `json:"audio_device" jsonschema:"description=EMA_AUDIO_DEVICE,enum=miniaudio,enum=portaudio,enum=none,default=miniaudio"`

	FrameFile  string `json:"frame_file,omitempty" jsonschema:"description=EMA_FRAME_FILE: image file kept current by a screen recorder"`
	StatusAddr string `json:"status_addr,omitempty" jsonschema:"description=EMA_STATUS_ADDR: off disables the status server,default=:8089"`
	TUI        bool   `json:"tui" jsonschema:"description=EMA_TUI,default=true"`

	ResponseTimeout time.Duration `json:"response_timeout" jsonschema:"description=EMA_RESPONSE_TIMEOUT in nanoseconds; the environment accepts Go durations like 30s"`
	RestartBackoff  time.Duration `json:"restart_backoff" jsonschema:"description=EMA_RESTART_BACKOFF in nanoseconds; the environment accepts Go durations like 500ms"`
}

func Default() Config {
	return Config{
		PrimaryProvider:   ProviderOpenAI,
		SecondaryProvider: ProviderGroq,
		Backend:           string(llms.BackendPrimary),
		Voice:             "Chris",
		Synthesizer:       SynthesizerElevenLabs,
		Recognizer:        RecognizerDeepgram,
		AudioDevice:       AudioDeviceMiniaudio,
		StatusAddr:        ":8089",
		TUI:               true,
		ResponseTimeout:   llms.DefaultTimeout,
		RestartBackoff:    500 * time.Millisecond,
	}
}

// Load reads .env if present, then the environment, and validates the
// result. Missing API keys only produce warnings.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	cfg.OpenAIAPIKey = getenv("OPENAI_API_KEY")
	cfg.GroqAPIKey = getenv("GROQ_API_KEY")
	cfg.GeminiAPIKey = getenv("GEMINI_API_KEY")
	cfg.ElevenLabsAPIKey = getenv("ELEVENLABS_API_KEY")
	cfg.DeepgramAPIKey = getenv("DEEPGRAM_API_KEY")

	setString(&cfg.PrimaryProvider, getenv("EMA_PRIMARY_PROVIDER"))
	setString(&cfg.SecondaryProvider, getenv("EMA_SECONDARY_PROVIDER"))
	setString(&cfg.Backend, getenv("EMA_BACKEND"))
	setString(&cfg.Voice, getenv("EMA_VOICE"))
	setString(&cfg.Synthesizer, getenv("EMA_SYNTHESIZER"))
	setString(&cfg.Recognizer, getenv("EMA_RECOGNIZER"))
	setString(&cfg.AudioDevice, getenv("EMA_AUDIO_DEVICE"))
	cfg.FrameFile = getenv("EMA_FRAME_FILE")
	setString(&cfg.StatusAddr, getenv("EMA_STATUS_ADDR"))
	if strings.EqualFold(cfg.StatusAddr, "off") {
		cfg.StatusAddr = ""
	}

	var errs []error
	if raw := getenv("EMA_TUI"); raw != "" {
		tui, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("EMA_TUI: %w", err))
		} else {
			cfg.TUI = tui
		}
	}
	if err := setDuration(&cfg.ResponseTimeout, getenv("EMA_RESPONSE_TIMEOUT")); err != nil {
		errs = append(errs, fmt.Errorf("EMA_RESPONSE_TIMEOUT: %w", err))
	}
	if err := setDuration(&cfg.RestartBackoff, getenv("EMA_RESTART_BACKOFF")); err != nil {
		errs = append(errs, fmt.Errorf("EMA_RESTART_BACKOFF: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.warnMissingKeys()
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	checkEnum := func(name, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value))
		}
	}

	checkEnum("primary provider", c.PrimaryProvider, ProviderOpenAI, ProviderGroq, ProviderGemini)
	checkEnum("secondary provider", c.SecondaryProvider, ProviderOpenAI, ProviderGroq, ProviderGemini)
	checkEnum("synthesizer", c.Synthesizer, SynthesizerElevenLabs, SynthesizerDeepgram)
	checkEnum("recognizer", c.Recognizer, RecognizerDeepgram, RecognizerGoogle)
	checkEnum("audio device", c.AudioDevice, AudioDeviceMiniaudio, AudioDevicePortaudio, AudioDeviceNone)

	if _, err := llms.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err)
	}
	if _, err := texttospeech.ParseVoice(c.Voice); err != nil {
		errs = append(errs, err)
	}
	if c.ResponseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("response timeout must be positive, got %s", c.ResponseTimeout))
	}
	if c.RestartBackoff < 0 {
		errs = append(errs, fmt.Errorf("restart backoff must not be negative, got %s", c.RestartBackoff))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ProviderKey returns the API key configured for a responder provider.
func (c Config) ProviderKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	}
	return ""
}

func (c Config) warnMissingKeys() {
	for _, provider := range []string{c.PrimaryProvider, c.SecondaryProvider} {
		if c.ProviderKey(provider) == "" {
			log.Printf("Warning: no API key set for %s - that backend will not answer", provider)
		}
	}
	if c.Synthesizer == SynthesizerElevenLabs && c.ElevenLabsAPIKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - replies will not be spoken")
	}
	if (c.Synthesizer == SynthesizerDeepgram || c.Recognizer == RecognizerDeepgram) && c.DeepgramAPIKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - Deepgram services will not work")
	}
	if c.FrameFile == "" {
		log.Println("Warning: EMA_FRAME_FILE not set - no screen source is attached")
	}
}

// Schema returns the JSON schema describing Config.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&Config{})
	schema.Title = "ema-vision configuration"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}
	return data, nil
}

func setString(target *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*target = value
	}
}

func setDuration(target *time.Duration, value string) error {
	if value = strings.TrimSpace(value); value == "" {
		return nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*target = duration
	return nil
}
