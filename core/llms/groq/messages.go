package groq

import (
	"strings"

	"github.com/koscakluka/ema-vision/core/llms"
)

type requestBody struct {
	Model               string    `json:"model"`
	Messages            []message `json:"messages"`
	Temperature         float64   `json:"temperature"`
	MaxCompletionTokens int       `json:"max_completion_tokens"`
	TopP                float64   `json:"top_p"`
	Stream              bool      `json:"stream"`
}

const messageRoleUser = "user"

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func foldInstructions(instructions, userText string) string {
	if strings.TrimSpace(instructions) == "" {
		return userText
	}
	return instructions + " User question: " + userText
}

func toRequestBody(model string, request llms.Request) requestBody {
	parts := []contentPart{{Type: "text", Text: foldInstructions(request.Instructions, request.UserText)}}
	if len(request.Image) > 0 {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: request.ImageDataURL()}})
	}

	return requestBody{
		Model:               model,
		Messages:            []message{{Role: messageRoleUser, Content: parts}},
		Temperature:         request.Temperature,
		MaxCompletionTokens: request.MaxTokens,
		TopP:                1,
	}
}
