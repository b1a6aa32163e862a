// Package elevenlabs streams speech from the ElevenLabs text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	baseURL        = "https://api.elevenlabs.io"
	defaultModelID = "eleven_flash_v2_5"
	readBufferSize = 4096
)

type Client struct {
	apiKey  string
	options texttospeech.SynthesizerOptions
}

func NewClient(apiKey string, opts ...texttospeech.SynthesizerOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key not set")
	}

	options := texttospeech.NewSynthesizerOptions(texttospeech.SynthesizerOptions{
		ModelID:         defaultModelID,
		Stability:       0.5,
		SimilarityBoost: 0.8,
		BaseURL:         baseURL,
		HTTPClient:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}, opts...)

	if _, err := outputFormat(options.EncodingInfo); err != nil {
		return nil, err
	}

	return &Client{apiKey: apiKey, options: options}, nil
}

// Synthesize waits for the response headers so backend rejections surface
// here; the audio body is then streamed chunk by chunk.
func (c *Client) Synthesize(ctx context.Context, text string, voice texttospeech.VoiceID) (texttospeech.AudioChunkStream, error) {
	if text == "" {
		return nil, texttospeech.ErrEmptyText
	}
	if voice == "" {
		voice = texttospeech.DefaultVoice
	}

	stream, streamCtx := texttospeech.NewChunkStream(ctx)
	streamCtx, span := tracer.Start(streamCtx, "synthesize speech")
	span.SetAttributes(
		attribute.String("tts.voice", string(voice)),
		attribute.String("tts.model", c.options.ModelID),
		attribute.Int("tts.text_length", len(text)),
	)

	resp, err := c.request(streamCtx, text, voice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		stream.Finish(err)
		return nil, err
	}

	go c.readBody(streamCtx, span, stream, resp.Body)
	return stream, nil
}

func (c *Client) request(ctx context.Context, text string, voice texttospeech.VoiceID) (*http.Response, error) {
	body, err := json.Marshal(requestBody{
		Text:    text,
		ModelID: c.options.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.options.Stability,
			SimilarityBoost: c.options.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	format, _ := outputFormat(c.options.EncodingInfo)
	endpoint := c.options.BaseURL + "/v1/text-to-speech/" + url.PathEscape(string(voice)) + "/stream?" +
		url.Values{"output_format": {format}}.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.options.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error sending request: %w", texttospeech.ErrStreamTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, &texttospeech.BackendError{Provider: "elevenlabs", Status: resp.StatusCode, Body: string(errorBody)}
	}
	return resp, nil
}

func (c *Client) readBody(ctx context.Context, span trace.Span, stream *texttospeech.ChunkStream, body io.ReadCloser) {
	defer span.End()
	defer body.Close()

	chunks := 0
	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !stream.Deliver(chunk) {
				stream.Finish(texttospeech.ErrCancelled)
				return
			}
			if chunks == 0 {
				span.AddEvent("first chunk")
			}
			chunks++
		}

		if errors.Is(err, io.EOF) {
			span.SetAttributes(attribute.Int("tts.chunks", chunks))
			stream.Finish(nil)
			return
		} else if err != nil {
			if ctx.Err() != nil {
				stream.Finish(texttospeech.ErrCancelled)
				return
			}
			err = fmt.Errorf("%w: %w", texttospeech.ErrStreamTransport, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			stream.Finish(err)
			return
		}
	}
}

type requestBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// outputFormat maps the device encoding to an ElevenLabs output_format.
func outputFormat(encoding audio.EncodingInfo) (string, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		switch encoding.SampleRate {
		case 8000, 16000, 22050, 24000, 44100:
			return "pcm_" + strconv.Itoa(encoding.SampleRate), nil
		}
	case audio.EncodingMulaw:
		if encoding.SampleRate == 8000 {
			return "ulaw_8000", nil
		}
	}
	return "", fmt.Errorf("unsupported output encoding %s", encoding)
}
