package openai

import "github.com/koscakluka/ema-vision/core/llms"

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
}

type messageRole string

const (
	messageRoleSystem messageRole = "system"
	messageRoleUser   messageRole = "user"
)

type message struct {
	Role    messageRole `json:"role"`
	Content any         `json:"content"`
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
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func toRequestBody(model string, request llms.Request) requestBody {
	messages := []message{}
	if request.Instructions != "" {
		messages = append(messages, message{Role: messageRoleSystem, Content: request.Instructions})
	}

	parts := []contentPart{{Type: "text", Text: request.UserText}}
	if len(request.Image) > 0 {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: request.ImageDataURL()}})
	}
	messages = append(messages, message{Role: messageRoleUser, Content: parts})

	return requestBody{
		Model:       model,
		Messages:    messages,
		Temperature: request.Temperature,
		MaxTokens:   request.MaxTokens,
		TopP:        1,
	}
}
