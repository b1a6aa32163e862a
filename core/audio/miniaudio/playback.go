package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-vision/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	// audioMu guards leftoverAudio, marks and activeSink
	audioMu       sync.Mutex
	leftoverAudio []byte
	marks         []playbackMark
	activeSink    uint64
	sinkCounter   uint64

	mu sync.Mutex
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	c.clear()
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return fmt.Errorf("device not started")
	}
	return nil
}

// claim hands the output over to a new sink, discarding whatever the
// previous one left behind.
func (c *playbackClient) claim() uint64 {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.sinkCounter++
	c.activeSink = c.sinkCounter
	c.leftoverAudio = nil
	c.marks = nil
	return c.activeSink
}

func (c *playbackClient) send(owner uint64, audio []byte) (buffered int, err error) {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	if owner != c.activeSink {
		return 0, fmt.Errorf("sink no longer owns the output")
	}
	c.leftoverAudio = append(c.leftoverAudio, audio...)
	return len(c.leftoverAudio), nil
}

// markAt registers callback to fire once position more bytes were played.
func (c *playbackClient) markAt(owner uint64, name string, position int, callback func(string)) error {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	if owner != c.activeSink {
		return fmt.Errorf("sink no longer owns the output")
	}
	c.marks = append(c.marks, playbackMark{
		name:     name,
		position: position,
		callback: callback,
	})
	return nil
}

func (c *playbackClient) buffered(owner uint64) int {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	if owner != c.activeSink {
		return 0
	}
	return len(c.leftoverAudio)
}

func (c *playbackClient) clearFor(owner uint64) {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	if owner != c.activeSink {
		return
	}
	c.leftoverAudio = nil
	c.marks = nil
}

func (c *playbackClient) release(owner uint64) {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	if owner != c.activeSink {
		return
	}
	c.leftoverAudio = nil
	c.marks = nil
	c.activeSink = 0
}

func (c *playbackClient) clear() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = nil
	c.marks = nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		passed := c.consumeMarksLocked(need)
		n := copy(pOutput[:need], c.leftoverAudio)
		c.leftoverAudio = c.leftoverAudio[n:]
		c.audioMu.Unlock()

		if n < need {
			clear(pOutput[n:need])
		}

		if len(passed) > 0 {
			go func() {
				for _, mark := range passed {
					mark.callback(mark.name)
				}
			}()
		}
	}
}

// consumeMarksLocked advances marks by the bytes handed to the device in one
// period. A mark due exactly at the end of the period is passed.
func (c *playbackClient) consumeMarksLocked(until int) []playbackMark {
	passed := 0
	for i := range c.marks {
		if c.marks[i].position > until {
			c.marks[i].position -= until
		} else {
			passed = i + 1
		}
	}
	if passed == 0 {
		return nil
	}
	toCall := c.marks[:passed:passed]
	c.marks = c.marks[passed:]
	return toCall
}
