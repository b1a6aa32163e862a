package deepgram

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-vision/core/texttospeech"
)

const defaultHost = "api.deepgram.com"

// TextToSpeechClient speaks text over Deepgram's streaming speak websocket.
// Each Synthesize call opens its own connection.
type TextToSpeechClient struct {
	apiKey  string
	host    string
	scheme  string
	options texttospeech.SynthesizerOptions
}

type ClientOption func(*TextToSpeechClient)

// WithEndpoint overrides the websocket scheme and host.
func WithEndpoint(scheme, host string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.scheme = scheme
		c.host = host
	}
}

func WithSynthesizerOptions(opts ...texttospeech.SynthesizerOption) ClientOption {
	return func(c *TextToSpeechClient) {
		c.options = texttospeech.NewSynthesizerOptions(c.options, opts...)
	}
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not set")
	}

	client := &TextToSpeechClient{
		apiKey:  apiKey,
		host:    defaultHost,
		scheme:  "wss",
		options: texttospeech.NewSynthesizerOptions(texttospeech.SynthesizerOptions{}),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, voice texttospeech.VoiceID) (texttospeech.AudioChunkStream, error) {
	if text == "" {
		return nil, texttospeech.ErrEmptyText
	}

	model := voiceModel(voice)
	conn, err := c.connectWebsocket(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open websocket: %w", texttospeech.ErrStreamTransport, err)
	}

	stream, streamCtx := texttospeech.NewChunkStream(ctx)
	req := &speakRequest{ws: conn, stream: stream}
	if err := req.speak(text); err != nil {
		_ = conn.Close()
		stream.Finish(err)
		return nil, err
	}

	go req.processIncomingMessages(streamCtx)
	return stream, nil
}
