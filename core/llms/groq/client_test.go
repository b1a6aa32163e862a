package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/ema-vision/core/llms"
)

func TestCompleteFoldsInstructionsIntoUserText(t *testing.T) {
	var captured requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Open settings."}}]}`))
	}))
	defer server.Close()

	client := NewClient("key", llms.WithBaseURL(server.URL), llms.WithHTTPClient(server.Client()), llms.WithModel("vision-test"))
	answer, err := client.Complete(context.Background(), llms.Request{
		Instructions:  "be brief",
		UserText:      "where is bluetooth?",
		Image:         []byte{1, 2, 3},
		ImageMIMEType: "image/png",
		MaxTokens:     1024,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if answer != "Open settings." {
		t.Fatalf("expected answer from response, got %q", answer)
	}

	if captured.Model != "vision-test" {
		t.Fatalf("expected model override, got %s", captured.Model)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != messageRoleUser {
		t.Fatalf("expected a single user message, got %+v", captured.Messages)
	}
	text := captured.Messages[0].Content[0].Text
	if text != "be brief User question: where is bluetooth?" {
		t.Fatalf("expected folded instructions, got %q", text)
	}
	if captured.MaxCompletionTokens != 1024 {
		t.Fatalf("expected max_completion_tokens 1024, got %d", captured.MaxCompletionTokens)
	}
}

func TestCompleteReturnsBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model decommissioned", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient("key", llms.WithBaseURL(server.URL), llms.WithHTTPClient(server.Client()))
	_, err := client.Complete(context.Background(), llms.Request{UserText: "hi"})

	var backendErr *llms.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected *llms.BackendError, got %v", err)
	}
	if backendErr.Provider != "groq" || !strings.Contains(backendErr.Body, "decommissioned") {
		t.Fatalf("unexpected backend error %+v", backendErr)
	}
}
