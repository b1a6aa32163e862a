package snapshot

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// FileSource treats an image file that some external capture tool keeps
// overwriting as a live screen share. It is active while the file exists.
type FileSource struct {
	Path string
}

func (s FileSource) Active() bool {
	info, err := os.Stat(s.Path)
	return err == nil && !info.IsDir()
}

func (s FileSource) Dimensions() (int, int, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open frame file: %w", err)
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read frame header: %w", err)
	}
	return config.Width, config.Height, nil
}

func (s FileSource) CurrentFrame() (image.Image, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame file: %w", err)
	}
	defer f.Close()

	frame, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return frame, nil
}

var errSourceStopped = errors.New("source stopped")

// StaticSource serves frames pushed to it in memory.
type StaticSource struct {
	mu      sync.RWMutex
	frame   image.Image
	stopped bool
}

func NewStaticSource(frame image.Image) *StaticSource {
	return &StaticSource{frame: frame}
}

func (s *StaticSource) SetFrame(frame image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.stopped = false
}

// Stop ends the share, as when the user stops presenting.
func (s *StaticSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *StaticSource) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.stopped && s.frame != nil
}

func (s *StaticSource) Dimensions() (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped || s.frame == nil {
		return 0, 0, errSourceStopped
	}
	bounds := s.frame.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}

func (s *StaticSource) CurrentFrame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped || s.frame == nil {
		return nil, errSourceStopped
	}
	return s.frame, nil
}
