package miniaudio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-vision/core/audio"
)

const capturePeriodFrames = 480

var errCaptureNotInitialized = errors.New("capture device not initialized")

// captureClient hands microphone frames to a single listener. A new listener
// replaces the previous one; unsubscribing with a stale id is a no-op, so an
// old recognizer winding down cannot silence its successor.
type captureClient struct {
	device *malgo.Device

	mu        sync.Mutex
	listener  uint64
	listeners uint64
	onAudio   func(audio []byte)
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	if encoding.Format != audio.EncodingLinear16 {
		return fmt.Errorf("capture supports only %s, got %s", audio.EncodingLinear16, encoding.Format.Name())
	}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = capturePeriodFrames
	config.Periods = 3

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: c.processCapture(malgo.SampleSizeInBytes(malgo.FormatS16)),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.mu.Unlock()
	return nil
}

func (c *captureClient) processCapture(bytesPerFrame int) malgo.DataProc {
	return func(_, pInput []byte, frameCount uint32) {
		n := int(frameCount) * bytesPerFrame
		if len(pInput) < n || n == 0 {
			return
		}

		c.mu.Lock()
		onAudio := c.onAudio
		c.mu.Unlock()
		if onAudio == nil {
			return
		}

		// malgo reuses the input buffer between callbacks
		frame := make([]byte, n)
		copy(frame, pInput[:n])
		onAudio(frame)
	}
}

// subscribe makes onAudio the listener and starts the device if needed.
func (c *captureClient) subscribe(onAudio func(audio []byte)) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return 0, errCaptureNotInitialized
	}

	c.listeners++
	c.listener = c.listeners
	c.onAudio = onAudio

	if !c.device.IsStarted() {
		if err := c.device.Start(); err != nil {
			c.onAudio = nil
			c.listener = 0
			return 0, fmt.Errorf("failed to start capture device: %w", err)
		}
	}
	return c.listener, nil
}

// unsubscribe stops the device if id is still the listener.
func (c *captureClient) unsubscribe(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errCaptureNotInitialized
	} else if c.listener != id {
		return nil
	}

	c.listener = 0
	c.onAudio = nil
	if !c.device.IsStarted() {
		return nil
	}
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (c *captureClient) Uninit() {
	c.mu.Lock()
	device := c.device
	c.device = nil
	c.listener = 0
	c.onAudio = nil
	c.mu.Unlock()

	// Uninit waits for a running data callback, which takes mu.
	if device != nil {
		device.Uninit()
	}
}
