// Package llms answers a spoken question about a screen snapshot using one of
// the configured multimodal chat backends.
package llms

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-vision/core/snapshot"
)

const (
	DefaultInstructions = "You are an IT Support Assistant dedicated to helping users, especially elders, with their computer issues. " +
		"When answering, carefully review the screenshot and the user's question. " +
		"Provide clear, step-by-step guidance in simple, friendly language. " +
		"Keep your answer to no more than 3-4 sentences. " +
		"Do not include any special characters, as your response will be converted to audio."

	// NoResponse is spoken when a backend returns an empty answer.
	NoResponse = "No response"

	screenPreamble = "This is what my screen shows right now: [attached image]. "

	DefaultTemperature = 1.0
	DefaultMaxTokens   = 1024
)

// Backend selects which configured provider answers a turn.
type Backend string

const (
	BackendPrimary   Backend = "primary"
	BackendSecondary Backend = "secondary"
)

func (b Backend) Valid() bool {
	return b == BackendPrimary || b == BackendSecondary
}

func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownBackend, s)
	}
	return b, nil
}

var (
	// ErrTimeout is returned when a backend does not answer within the
	// router's timeout.
	ErrTimeout = errors.New("responder timed out")
	// ErrBackendNotConfigured is returned for a backend without a provider.
	ErrBackendNotConfigured = errors.New("backend not configured")
	ErrUnknownBackend       = errors.New("unknown backend")
)

// BackendError carries a non-success reply from a provider.
type BackendError struct {
	Provider string
	Status   int
	Body     string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s returned non-OK HTTP status %d: %s", e.Provider, e.Status, e.Body)
}

// Request is one multimodal question. Providers decide how Instructions are
// conveyed to their model.
type Request struct {
	Instructions  string
	UserText      string
	Image         []byte
	ImageMIMEType string
	Temperature   float64
	MaxTokens     int
}

// ImageDataURL inlines the image the way chat completion APIs accept it.
func (r Request) ImageDataURL() string {
	return "data:" + r.ImageMIMEType + ";base64," + base64.StdEncoding.EncodeToString(r.Image)
}

// Provider is a single chat completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// UserText prefixes the question with the screen preamble.
func UserText(question string) string {
	return screenPreamble + question
}

// Responder answers a question about a snapshot; Router is the default.
type Responder interface {
	Answer(ctx context.Context, question string, snap snapshot.Snapshot, backend Backend) (string, error)
}
