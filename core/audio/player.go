package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrPlayerCancelled = errors.New("playback cancelled")
	ErrPlayerStarted   = errors.New("player already started")
	ErrNoDevice        = errors.New("no audio device configured")
)

// ChunkSource is a cancellable, ordered stream of audio chunks.
type ChunkSource interface {
	Chunks() <-chan []byte
	Err() error
	Cancel()
}

// StreamingPlayer plays one chunk stream on one sink, in arrival order,
// starting as soon as the first chunk shows up.
type StreamingPlayer struct {
	device Device

	onChunkAppended func(chunk []byte)

	mu       sync.Mutex
	queue    chunkQueue
	sink     Sink
	source   ChunkSource
	started  bool
	finished bool
	err      error
	done     chan struct{}
}

type PlayerOption func(*StreamingPlayer)

// WithChunkAppendedCallback runs under the player's lock after each chunk
// was handed to the sink; it must not block.
func WithChunkAppendedCallback(callback func(chunk []byte)) PlayerOption {
	return func(p *StreamingPlayer) {
		p.onChunkAppended = callback
	}
}

func NewStreamingPlayer(device Device, opts ...PlayerOption) *StreamingPlayer {
	p := &StreamingPlayer{
		device: device,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start opens a sink and begins consuming source. It returns without waiting
// for playback; use Done and Err to observe the outcome.
func (p *StreamingPlayer) Start(ctx context.Context, source ChunkSource) error {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		source.Cancel()
		return ErrPlayerCancelled
	} else if p.started {
		p.mu.Unlock()
		return ErrPlayerStarted
	} else if p.device == nil {
		p.finishLocked(ErrNoDevice)
		p.mu.Unlock()
		close(p.done)
		source.Cancel()
		return ErrNoDevice
	}

	sink, err := p.device.OpenSink()
	if err != nil {
		err = fmt.Errorf("%w: failed to open sink: %w", ErrSink, err)
		p.finishLocked(err)
		p.mu.Unlock()
		close(p.done)
		source.Cancel()
		return err
	}
	p.started = true
	p.sink = sink
	p.source = source
	p.mu.Unlock()

	go p.pump(ctx, source)
	return nil
}

// Cancel stops playback immediately, drops queued chunks and cancels the
// source. It is safe to call at any time and more than once.
func (p *StreamingPlayer) Cancel() {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	sink := p.finishLocked(ErrPlayerCancelled)
	source := p.source
	p.mu.Unlock()

	releaseSink(sink)
	close(p.done)
	if source != nil {
		source.Cancel()
	}
}

// Done is closed once playback completed, failed or was cancelled.
func (p *StreamingPlayer) Done() <-chan struct{} {
	return p.done
}

// Err is nil after a complete playback.
func (p *StreamingPlayer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// pending reports how many chunks wait for the sink.
func (p *StreamingPlayer) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

func (p *StreamingPlayer) pump(ctx context.Context, source ChunkSource) {
	chunks := source.Chunks()
	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			p.Cancel()
			return
		case chunk, ok := <-chunks:
			if !ok {
				if err := source.Err(); err != nil {
					p.fail(err)
				} else {
					p.upstreamEnded()
				}
				return
			}
			p.chunkArrived(chunk)
		}
	}
}

func (p *StreamingPlayer) chunkArrived(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	action, next := p.queue.push(chunk)
	p.executeLocked(action, next)
}

func (p *StreamingPlayer) upstreamEnded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	action, next := p.queue.endUpstream()
	p.executeLocked(action, next)
}

func (p *StreamingPlayer) appendCompleted(sink Sink, err error) {
	p.mu.Lock()
	if p.finished || p.sink != sink {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.mu.Unlock()
		p.fail(fmt.Errorf("%w: %w", ErrSink, err))
		return
	}
	action, next := p.queue.appendCompleted()
	p.executeLocked(action, next)
	p.mu.Unlock()
}

func (p *StreamingPlayer) playbackEnded(sink Sink, err error) {
	p.mu.Lock()
	if p.finished || p.sink != sink {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.mu.Unlock()
		p.fail(fmt.Errorf("%w: %w", ErrSink, err))
		return
	}
	released := p.finishLocked(nil)
	p.mu.Unlock()

	releaseSink(released)
	close(p.done)
}

func (p *StreamingPlayer) fail(err error) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	sink := p.finishLocked(err)
	source := p.source
	p.mu.Unlock()

	releaseSink(sink)
	close(p.done)
	if source != nil {
		source.Cancel()
	}
}

// executeLocked runs a queue decision against the sink. Sink callbacks hop
// onto their own goroutine so they never re-enter the lock.
func (p *StreamingPlayer) executeLocked(action queueAction, chunk []byte) {
	sink := p.sink
	switch action {
	case queueActionAppend:
		err := sink.Append(chunk, func(err error) {
			go p.appendCompleted(sink, err)
		})
		if err != nil {
			go p.fail(fmt.Errorf("%w: %w", ErrSink, err))
			return
		}
		if p.onChunkAppended != nil {
			p.onChunkAppended(chunk)
		}
	case queueActionEndOfStream:
		err := sink.EndOfStream(func(err error) {
			go p.playbackEnded(sink, err)
		})
		if err != nil {
			go p.fail(fmt.Errorf("%w: %w", ErrSink, err))
		}
	}
}

// finishLocked marks the player terminal and hands back the sink the caller
// must release once the lock is dropped. The caller closes done after that,
// so Done never fires while the sink is still held.
func (p *StreamingPlayer) finishLocked(err error) Sink {
	p.finished = true
	p.err = err
	p.queue.close()
	sink := p.sink
	p.sink = nil
	return sink
}

func releaseSink(sink Sink) {
	if sink == nil {
		return
	}
	sink.Stop()
	_ = sink.Release()
}
