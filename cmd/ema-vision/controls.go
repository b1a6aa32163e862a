package main

import (
	"context"
	"errors"
	"sync"

	"github.com/koscakluka/ema-vision/core/snapshot"
)

var errNoFrameSource = errors.New("no screen source configured, set EMA_FRAME_FILE")

type recognizer interface {
	Start(ctx context.Context) error
	Stop() error
	Wait()
}

// microphone starts a fresh recognizer every time listening is turned on,
// since a stopped recognizer cannot be restarted.
type microphone struct {
	ctx           context.Context
	newRecognizer func() recognizer

	mu     sync.Mutex
	active recognizer
}

func newMicrophone(ctx context.Context, newRecognizer func() recognizer) *microphone {
	return &microphone{ctx: ctx, newRecognizer: newRecognizer}
}

func (m *microphone) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

func (m *microphone) SetListening(listening bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if listening == (m.active != nil) {
		return nil
	}
	if !listening {
		active := m.active
		m.active = nil
		err := active.Stop()
		active.Wait()
		return err
	}

	r := m.newRecognizer()
	if err := r.Start(m.ctx); err != nil {
		return err
	}
	m.active = r
	return nil
}

func (m *microphone) Close() {
	_ = m.SetListening(false)
}

type screenShare struct {
	snapshotter *snapshot.Snapshotter
	source      snapshot.FrameSource

	mu      sync.Mutex
	sharing bool
}

func newScreenShare(snapshotter *snapshot.Snapshotter, source snapshot.FrameSource) *screenShare {
	return &screenShare{snapshotter: snapshotter, source: source}
}

func (s *screenShare) available() bool {
	return s.source != nil
}

func (s *screenShare) Sharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharing
}

func (s *screenShare) SetSharing(sharing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sharing {
		s.snapshotter.Detach()
		s.sharing = false
		return nil
	}
	if s.source == nil {
		return errNoFrameSource
	}
	s.snapshotter.Attach(s.source)
	s.sharing = true
	return nil
}
