package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

func TestSynthesizeStreamsAudioUntilFlushed(t *testing.T) {
	var gotModel string
	server := newSpeakServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotModel = r.URL.Query().Get("model")

		var speak websocketMessage
		if err := conn.ReadJSON(&speak); err != nil || speak.Type != "Speak" || speak.Text != "hello there" {
			t.Errorf("expected speak message, got %+v (%v)", speak, err)
			return
		}
		var flush websocketMessage
		if err := conn.ReadJSON(&flush); err != nil || flush.Type != "Flush" {
			t.Errorf("expected flush message, got %+v (%v)", flush, err)
			return
		}

		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{3, 4})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed","sequence_id":0}`))
		_, _, _ = conn.ReadMessage()
	})
	defer server.Close()

	client := newTestClient(t, server)
	stream, err := client.Synthesize(context.Background(), "hello there", texttospeech.VoiceAlice)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var audio []byte
	for chunk := range stream.Chunks() {
		audio = append(audio, chunk...)
	}
	if len(audio) != 4 {
		t.Fatalf("expected 4 bytes of audio, got %d", len(audio))
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("expected clean end, got %v", err)
	}
	if gotModel != "aura-2-thalia-en" {
		t.Fatalf("expected mapped aura voice, got %q", gotModel)
	}
}

func TestSynthesizeCancelClosesSocket(t *testing.T) {
	server := newSpeakServer(t, func(conn *websocket.Conn, r *http.Request) {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := newTestClient(t, server)
	stream, err := client.Synthesize(context.Background(), "hello", texttospeech.VoiceChris)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	<-stream.Chunks()
	stream.Cancel()

	select {
	case _, ok := <-stream.Chunks():
		if ok {
			for range stream.Chunks() {
			}
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for stream to close")
	}
	if !errors.Is(stream.Err(), texttospeech.ErrCancelled) {
		t.Fatalf("expected %v, got %v", texttospeech.ErrCancelled, stream.Err())
	}
}

func TestVoiceModel(t *testing.T) {
	if got := voiceModel("aura-2-helena-en"); got != "aura-2-helena-en" {
		t.Fatalf("expected raw aura model to pass through, got %s", got)
	}
	if got := voiceModel("unknown"); got != defaultVoice {
		t.Fatalf("expected default voice, got %s", got)
	}
}

func newSpeakServer(t *testing.T, handle func(*websocket.Conn, *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
}

func newTestClient(t *testing.T, server *httptest.Server) *TextToSpeechClient {
	t.Helper()
	client, err := NewTextToSpeechClient("key", WithEndpoint("ws", strings.TrimPrefix(server.URL, "http://")))
	if err != nil {
		t.Fatalf("expected client, got %v", err)
	}
	return client
}
