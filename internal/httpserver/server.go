// Package httpserver exposes health, metrics and a small control surface for
// a running assistant.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	orchestration "github.com/koscakluka/ema-vision/core"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Assistant interface {
	State() orchestration.State
	Backend() llms.Backend
	Voice() texttospeech.VoiceID
	Listening() bool
	History() []orchestration.ChatMessage
	Ask(question string)
	CancelTurn()
	SetBackend(backend llms.Backend) error
	SetVoice(voice texttospeech.VoiceID) error
}

type statusResponse struct {
	State     orchestration.State `json:"state"`
	Backend   llms.Backend        `json:"backend"`
	Voice     string              `json:"voice"`
	Listening bool                `json:"listening"`
	Messages  int                 `json:"messages"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	TurnID         string    `json:"turn_id"`
	Role           string    `json:"role"`
	Text           string    `json:"text"`
	SnapshotMIME   string    `json:"snapshot_mime,omitempty"`
	SnapshotWidth  int       `json:"snapshot_width,omitempty"`
	SnapshotHeight int       `json:"snapshot_height,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type askRequest struct {
	Question string `json:"question"`
}

type selectionRequest struct {
	Value string `json:"value"`
}

// New creates a configured Echo server instance. metrics may be nil.
func New(assistant Assistant, metrics http.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	h := handlers{assistant: assistant}
	e.GET("/status", h.status)
	e.GET("/conversation", h.conversation)
	e.POST("/ask", h.ask)
	e.POST("/cancel", h.cancel)
	e.PUT("/backend", h.setBackend)
	e.PUT("/voice", h.setVoice)
	return e
}

// Serve runs e on addr until ctx is done.
func Serve(ctx context.Context, e *echo.Echo, addr string) error {
	errs := make(chan error, 1)
	go func() { errs <- e.Start(addr) }()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down status server: %w", err)
	}
	return nil
}

type handlers struct {
	assistant Assistant
}

func (h handlers) status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		State:     h.assistant.State(),
		Backend:   h.assistant.Backend(),
		Voice:     h.assistant.Voice().Name(),
		Listening: h.assistant.Listening(),
		Messages:  len(h.assistant.History()),
	})
}

func (h handlers) conversation(c echo.Context) error {
	history := h.assistant.History()
	messages := make([]messageResponse, 0, len(history))
	for _, message := range history {
		response := messageResponse{
			ID:        message.ID,
			TurnID:    message.TurnID,
			Role:      string(message.Role),
			Text:      message.Text,
			CreatedAt: message.CreatedAt,
		}
		if message.Snapshot != nil {
			response.SnapshotMIME = message.Snapshot.MIMEType
			response.SnapshotWidth = message.Snapshot.Width
			response.SnapshotHeight = message.Snapshot.Height
		}
		messages = append(messages, response)
	}
	return c.JSON(http.StatusOK, messages)
}

func (h handlers) ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question must not be empty")
	}
	h.assistant.Ask(question)
	return c.NoContent(http.StatusAccepted)
}

func (h handlers) cancel(c echo.Context) error {
	h.assistant.CancelTurn()
	return c.NoContent(http.StatusAccepted)
}

func (h handlers) setBackend(c echo.Context) error {
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	backend, err := llms.ParseBackend(req.Value)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.assistant.SetBackend(backend); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h handlers) setVoice(c echo.Context) error {
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	voice, err := texttospeech.ParseVoice(req.Value)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.assistant.SetVoice(voice); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
