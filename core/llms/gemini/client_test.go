package gemini

import (
	"testing"

	"github.com/koscakluka/ema-vision/core/llms"
	"google.golang.org/genai"
)

func TestToContentsAttachesInlineImage(t *testing.T) {
	contents := toContents(llms.Request{
		UserText:      "what is this dialog?",
		Image:         []byte{1, 2, 3},
		ImageMIMEType: "image/png",
	})

	if len(contents) != 1 || contents[0].Role != genai.RoleUser {
		t.Fatalf("expected a single user content, got %+v", contents)
	}
	parts := contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %d", len(parts))
	}
	if parts[0].Text != "what is this dialog?" {
		t.Fatalf("expected question text first, got %q", parts[0].Text)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/png" {
		t.Fatalf("expected inline PNG data, got %+v", parts[1].InlineData)
	}
}

func TestToConfigCarriesInstructionsAndLimits(t *testing.T) {
	config := toConfig(llms.Request{Instructions: "be brief", Temperature: 1, MaxTokens: 1024})

	if config.MaxOutputTokens != 1024 {
		t.Fatalf("expected 1024 output tokens, got %d", config.MaxOutputTokens)
	}
	if config.Temperature == nil || *config.Temperature != 1 {
		t.Fatalf("expected temperature 1, got %v", config.Temperature)
	}
	if config.SystemInstruction == nil || config.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("expected system instruction, got %+v", config.SystemInstruction)
	}
}

func TestResponseTextJoinsParts(t *testing.T) {
	response := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "Open "}, {Text: "settings."}}},
		}},
	}
	if got := responseText(response); got != "Open settings." {
		t.Fatalf("expected joined text, got %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Fatalf("expected empty text without candidates, got %q", got)
	}
}
