package orchestration

import (
	"sync"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

// interactionSession pairs the synthesis stream and the player of one reply.
// Once retired it cancels anything attached to it, later attachments
// included.
type interactionSession struct {
	id     string
	turnID string

	mu      sync.Mutex
	retired bool
	stream  texttospeech.AudioChunkStream
	player  *audio.StreamingPlayer
}

func newInteractionSession(turnID string) *interactionSession {
	return &interactionSession{id: uuid.NewString(), turnID: turnID}
}

func (s *interactionSession) attachStream(stream texttospeech.AudioChunkStream) bool {
	s.mu.Lock()
	if s.retired {
		s.mu.Unlock()
		stream.Cancel()
		return false
	}
	s.stream = stream
	s.mu.Unlock()
	return true
}

func (s *interactionSession) attachPlayer(player *audio.StreamingPlayer) bool {
	s.mu.Lock()
	if s.retired {
		s.mu.Unlock()
		player.Cancel()
		return false
	}
	s.player = player
	s.mu.Unlock()
	return true
}

// retire stops playback first so nothing more is audible, then aborts the
// synthesis transport.
func (s *interactionSession) retire() {
	s.mu.Lock()
	if s.retired {
		s.mu.Unlock()
		return
	}
	s.retired = true
	stream, player := s.stream, s.player
	s.mu.Unlock()

	if player != nil {
		player.Cancel()
	}
	if stream != nil {
		stream.Cancel()
	}
}

func (s *interactionSession) isRetired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retired
}
