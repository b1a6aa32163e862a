// Package snapshot grabs the current frame of a screen-share source and
// encodes it as a PNG image.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const MIMETypePNG = "image/png"

var (
	ErrNoActiveSource = errors.New("no active screen-share source")
	ErrEmptyFrame     = errors.New("screen-share source reported an empty frame")
)

// CaptureError is returned by Capture. Reason is one of ErrNoActiveSource or
// ErrEmptyFrame; anything else the source fails with is kept in Err.
type CaptureError struct {
	Reason error
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("snapshot failed: %v: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("snapshot failed: %v", e.Reason)
}

func (e *CaptureError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

// Snapshot is a single encoded frame.
type Snapshot struct {
	Image      []byte
	MIMEType   string
	Width      int
	Height     int
	CapturedAt time.Time
}

func (s Snapshot) IsZero() bool {
	return len(s.Image) == 0
}

// FrameSource is a live screen-share source.
type FrameSource interface {
	Active() bool
	Dimensions() (width, height int, err error)
	CurrentFrame() (image.Image, error)
}

type Snapshotter struct {
	mu     sync.RWMutex
	source FrameSource
	now    func() time.Time
}

type SnapshotterOption func(*Snapshotter)

func WithSource(source FrameSource) SnapshotterOption {
	return func(s *Snapshotter) {
		s.source = source
	}
}

func NewSnapshotter(opts ...SnapshotterOption) *Snapshotter {
	s := &Snapshotter{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach replaces the current source.
func (s *Snapshotter) Attach(source FrameSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
}

func (s *Snapshotter) Detach() {
	s.Attach(nil)
}

// Capture draws the source's current frame at its reported dimensions and
// encodes it as PNG.
func (s *Snapshotter) Capture(ctx context.Context) (Snapshot, error) {
	ctx, span := tracer.Start(ctx, "capture snapshot")
	defer span.End()

	s.mu.RLock()
	source := s.source
	s.mu.RUnlock()

	snap, err := s.capture(ctx, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Snapshot{}, err
	}
	span.SetAttributes(
		attribute.Int("snapshot.width", snap.Width),
		attribute.Int("snapshot.height", snap.Height),
		attribute.Int("snapshot.bytes", len(snap.Image)),
	)
	return snap, nil
}

func (s *Snapshotter) capture(ctx context.Context, source FrameSource) (Snapshot, error) {
	if source == nil || !source.Active() {
		return Snapshot{}, &CaptureError{Reason: ErrNoActiveSource}
	}

	width, height, err := source.Dimensions()
	if err != nil {
		return Snapshot{}, &CaptureError{Reason: ErrNoActiveSource, Err: err}
	} else if width <= 0 || height <= 0 {
		return Snapshot{}, &CaptureError{Reason: ErrEmptyFrame}
	}

	frame, err := source.CurrentFrame()
	if err != nil {
		return Snapshot{}, &CaptureError{Reason: ErrNoActiveSource, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), frame, frame.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return Snapshot{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	trace.SpanFromContext(ctx).AddEvent("frame encoded")
	return Snapshot{
		Image:      buf.Bytes(),
		MIMEType:   MIMETypePNG,
		Width:      width,
		Height:     height,
		CapturedAt: s.now(),
	}, nil
}
