package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/koscakluka/ema-vision/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	url          = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel = "llama-3.2-90b-vision-preview"
)

// Client talks to Groq's OpenAI compatible endpoint. Groq's vision models
// reject a system message next to an image, so the instructions are folded
// into the user text.
type Client struct {
	apiKey  string
	options llms.ProviderOptions
}

func NewClient(apiKey string, opts ...llms.ProviderOption) *Client {
	return &Client{
		apiKey:  apiKey,
		options: llms.NewProviderOptions(defaultModel, url, opts...),
	}
}

func (c *Client) Name() string { return "groq" }

func (c *Client) Complete(ctx context.Context, request llms.Request) (string, error) {
	ctx, span := tracer.Start(ctx, "complete chat")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.options.Model))

	requestBodyBytes, err := json.Marshal(toRequestBody(c.options.Model, request))
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.options.BaseURL, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	resp, err := c.options.HTTPClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		errorBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			span.RecordError(fmt.Errorf("error reading error body: %w", readErr))
		}
		err := &llms.BackendError{Provider: c.Name(), Status: resp.StatusCode, Body: string(errorBody)}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var responseBody responseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return "", fmt.Errorf("error decoding response body: %w", err)
	}

	if len(responseBody.Choices) == 0 {
		return "", nil
	}
	return responseBody.Choices[0].Message.Content, nil
}
