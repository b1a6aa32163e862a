package texttospeech

import (
	"context"
	"sync"
)

const chunkBuffer = 16

// ChunkStream is the producer side of an AudioChunkStream shared by the
// backends. Deliver and Finish belong to the single producer goroutine.
type ChunkStream struct {
	chunks chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	// sendMu is held by Deliver for the whole send so Cancel can wait it out.
	sendMu sync.Mutex

	mu        sync.Mutex
	err       error
	finished  bool
	cancelled bool
}

// NewChunkStream returns the stream and a context that is done once the
// consumer cancels it or parent ends. Producers should stop on that context.
func NewChunkStream(parent context.Context) (*ChunkStream, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s := &ChunkStream{
		chunks: make(chan []byte, chunkBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	return s, ctx
}

func (s *ChunkStream) Chunks() <-chan []byte {
	return s.chunks
}

// Deliver hands a chunk to the consumer and reports false once the stream
// was cancelled or finished.
func (s *ChunkStream) Deliver(chunk []byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.isDone() {
		return false
	}
	select {
	case <-s.ctx.Done():
		return false
	case s.chunks <- chunk:
		return true
	}
}

// Finish closes the chunk channel. The first call wins; a cancelled stream
// always reports ErrCancelled.
func (s *ChunkStream) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	if s.cancelled {
		err = ErrCancelled
	}
	s.err = err
	close(s.chunks)
	s.cancel()
}

func (s *ChunkStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the producer and discards buffered chunks. Once it returns
// the consumer reads nothing but the channel close.
func (s *ChunkStream) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	s.cancel()

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	for {
		select {
		case _, ok := <-s.chunks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (s *ChunkStream) isDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled || s.finished || s.ctx.Err() != nil
}
