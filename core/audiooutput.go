package orchestration

import (
	"reflect"
	"sync"

	"github.com/koscakluka/ema-vision/core/audio"
)

// audioOutput holds the device replies are played on. Without a usable
// device, replies run to completion on a discard device.
type audioOutput struct {
	mu     sync.RWMutex
	device audio.Device
}

func newAudioOutput(device audio.Device) *audioOutput {
	output := &audioOutput{}
	output.Set(device)
	return output
}

// Set replaces the device used by sessions started afterwards. Nil and
// typed-nil devices are treated as unconfigured.
func (a *audioOutput) Set(device audio.Device) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if isNilDevice(device) {
		a.device = nil
		return
	}
	a.device = device
}

func (a *audioOutput) isConfigured() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.device != nil
}

// Device returns the device for a new session.
func (a *audioOutput) Device() audio.Device {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.device == nil {
		return audio.DiscardDevice{Encoding: audio.GetDefaultEncodingInfo()}
	}
	return a.device
}

// EncodingInfo is what synthesizers should produce for the current device.
func (a *audioOutput) EncodingInfo() audio.EncodingInfo {
	return a.Device().EncodingInfo()
}

func isNilDevice(device audio.Device) bool {
	if device == nil {
		return true
	}

	v := reflect.ValueOf(device)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
