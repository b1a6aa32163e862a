package llms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/ema-vision/core/snapshot"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultTimeout = 30 * time.Second

// Router sends a question to the provider bound to the selected backend.
type Router struct {
	providers    map[Backend]Provider
	timeout      time.Duration
	instructions string
}

func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		providers:    map[Backend]Provider{},
		timeout:      DefaultTimeout,
		instructions: DefaultInstructions,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Provider returns the provider bound to backend, if any.
func (r *Router) Provider(backend Backend) (Provider, bool) {
	p, ok := r.providers[backend]
	return p, ok
}

// Answer asks the selected backend about the snapshot. An empty reply is
// replaced with NoResponse.
func (r *Router) Answer(ctx context.Context, question string, snap snapshot.Snapshot, backend Backend) (string, error) {
	provider, ok := r.providers[backend]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBackendNotConfigured, backend)
	}

	ctx, span := tracer.Start(ctx, "answer question")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.backend", string(backend)),
		attribute.String("llm.provider", provider.Name()),
	)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, r.timeout, ErrTimeout)
		defer cancel()
	}

	answer, err := provider.Complete(ctx, Request{
		Instructions:  r.instructions,
		UserText:      UserText(question),
		Image:         snap.Image,
		ImageMIMEType: snap.MIMEType,
		Temperature:   DefaultTemperature,
		MaxTokens:     DefaultMaxTokens,
	})
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrTimeout) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, r.timeout, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		logger.Info("backend returned an empty answer", "provider", provider.Name())
		answer = NoResponse
	}
	span.SetAttributes(attribute.Int("llm.answer_length", len(answer)))
	return answer, nil
}
