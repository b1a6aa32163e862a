package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-vision/core/audio"
)

// Client wraps a blocking PortAudio duplex stream. Playback writes block until
// the device consumed the frame, which is what paces the sinks.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	readMu  sync.Mutex
	writeMu sync.Mutex

	sinkMu     sync.Mutex
	activeSink uint64
	sinkCount  uint64
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start PortAudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

// Stream forwards microphone audio to onAudio until ctx is done.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := c.readFrame()
		if err != nil {
			log.Printf("Warning: %v", err)
			continue
		}
		onAudio(frame)
	}
}

// readFrame blocks until one buffer worth of samples was captured.
func (c *Client) readFrame() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if err := c.stream.Read(); err != nil {
		return nil, fmt.Errorf("failed to read from PortAudio stream: %w", err)
	}
	var frame bytes.Buffer
	frame.Grow(c.frameSize())
	_ = binary.Write(&frame, binary.LittleEndian, c.in)
	return frame.Bytes(), nil
}

func (c *Client) OpenSink() (audio.Sink, error) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	c.sinkCount++
	c.activeSink = c.sinkCount
	return &streamSink{client: c, owner: c.activeSink}, nil
}

func (c *Client) Close() {
	_ = c.stream.Stop()
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}

func (c *Client) owns(owner uint64) bool {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	return c.activeSink == owner
}

func (c *Client) release(owner uint64) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	if c.activeSink == owner {
		c.activeSink = 0
	}
}

// writeFrame blocks until one buffer worth of samples was handed to the device.
func (c *Client) writeFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := binary.Read(bytes.NewReader(frame), binary.LittleEndian, c.out); err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}
	if err := c.stream.Write(); err != nil {
		return fmt.Errorf("failed to write to PortAudio stream: %w", err)
	}
	return nil
}

func (c *Client) frameSize() int {
	return c.bufferSize * 2
}
