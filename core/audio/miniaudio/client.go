package miniaudio

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-vision/core/audio"
)

const defaultMaxBuffered = 2 * time.Second

// Client drives the default miniaudio playback and capture devices. It is an
// audio.Device for playback and a microphone source for recognition.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient

	maxBuffered time.Duration
}

type ClientOption func(*Client)

// WithMaxBuffered bounds how much audio a sink keeps queued on the device
// before it holds back the next chunk.
func WithMaxBuffered(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxBuffered = d
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{
		audioContext: audioCtx,
		maxBuffered:  defaultMaxBuffered,
	}
	for _, opt := range opts {
		opt(&client)
	}

	if err := client.playbackClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, client.EncodingInfo()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

// Stream forwards microphone audio to onAudio until ctx is done.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	id, err := c.captureClient.subscribe(onAudio)
	if err != nil {
		return err
	}
	<-ctx.Done()
	if err := c.captureClient.unsubscribe(id); err != nil {
		log.Printf("Warning: failed to stop capture: %v", err)
	}
	return nil
}

func (c *Client) OpenSink() (audio.Sink, error) {
	if err := c.playbackClient.ready(); err != nil {
		return nil, err
	}

	encoding := c.EncodingInfo()
	maxBuffered := encoding.FrameAligned(int(c.maxBuffered.Seconds() * float64(encoding.BytesPerSecond())))
	return &playbackSink{
		client:      &c.playbackClient,
		owner:       c.playbackClient.claim(),
		maxBuffered: maxBuffered,
	}, nil
}

func (c *Client) Close() {
	c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
