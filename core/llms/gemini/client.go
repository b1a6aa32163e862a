package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-vision/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// Client answers through the Gemini API. Instructions are sent as the
// system instruction and the snapshot as an inline image part.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey string, opts ...llms.ProviderOption) (*Client, error) {
	options := llms.NewProviderOptions(defaultModel, "", opts...)

	config := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: options.HTTPClient,
	}
	if options.BaseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: options.BaseURL}
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, model: options.Model}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Complete(ctx context.Context, request llms.Request) (string, error) {
	ctx, span := tracer.Start(ctx, "generate content")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	response, err := c.client.Models.GenerateContent(ctx, c.model, toContents(request), toConfig(request))
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			err = &llms.BackendError{Provider: c.Name(), Status: apiErr.Code, Body: apiErr.Message}
		} else {
			err = fmt.Errorf("failed to generate content: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return responseText(response), nil
}

func toContents(request llms.Request) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(request.UserText)}
	if len(request.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(request.Image, request.ImageMIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func toConfig(request llms.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(request.Temperature)),
		MaxOutputTokens: int32(request.MaxTokens),
	}
	if request.Instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(request.Instructions, genai.RoleUser)
	}
	return config
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}
