// Package tui is the terminal front end: the chat, the live transcript, the
// status line and keys to steer the assistant.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

const eventBufferSize = 256

type Assistant interface {
	Ask(question string)
	CancelTurn()
	Backend() llms.Backend
	SetBackend(backend llms.Backend) error
	Voice() texttospeech.VoiceID
	SetVoice(voice texttospeech.VoiceID) error
}

// Microphone turns speech recognition on and off.
type Microphone interface {
	Listening() bool
	SetListening(listening bool) error
}

// ScreenShare attaches and detaches the screen source snapshots are taken
// from.
type ScreenShare interface {
	Sharing() bool
	SetSharing(sharing bool) error
}

type Options struct {
	Assistant   Assistant
	Microphone  Microphone
	ScreenShare ScreenShare
}

// UI forwards assistant events to the terminal program. HandleEvent never
// blocks; events that do not fit the buffer are dropped.
type UI struct {
	events chan events.Event
}

func New() *UI {
	return &UI{events: make(chan events.Event, eventBufferSize)}
}

func (u *UI) HandleEvent(event events.Event) {
	select {
	case u.events <- event:
	default:
		logger.Warn("dropped event, terminal is not keeping up", "kind", event.Kind())
	}
}

// Run shows the terminal UI until the user quits or ctx is done.
func (u *UI) Run(ctx context.Context, options Options) error {
	program := tea.NewProgram(newModel(options, u.events), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("terminal ui failed: %w", err)
	}
	return nil
}
