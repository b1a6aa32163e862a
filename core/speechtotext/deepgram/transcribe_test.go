package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/speechtotext"
)

func TestTranscriptAccumulator(t *testing.T) {
	type step struct {
		transcript   string
		isFinal      bool
		speechFinal  bool
		utteranceEnd bool

		wantText  string
		wantFinal bool
		wantNone  bool
	}

	testCases := []struct {
		name  string
		steps []step
	}{
		{
			name: "interim then speech final",
			steps: []step{
				{transcript: "my wi", wantText: "my wi"},
				{transcript: "my wifi is", isFinal: true, wantText: "my wifi is"},
				{transcript: "not working", wantText: "my wifi is not working"},
				{transcript: "not working", isFinal: true, speechFinal: true, wantText: "my wifi is not working", wantFinal: true},
			},
		},
		{
			name: "utterance end flushes finalized segments",
			steps: []step{
				{transcript: "hello", isFinal: true, wantText: "hello"},
				{utteranceEnd: true, wantText: "hello", wantFinal: true},
				{utteranceEnd: true, wantNone: true},
			},
		},
		{
			name: "blank results are ignored",
			steps: []step{
				{transcript: "  ", wantNone: true},
				{transcript: "", isFinal: true, wantNone: true},
				{transcript: "", isFinal: true, speechFinal: true, wantNone: true},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var acc transcriptAccumulator
			for i, s := range tc.steps {
				var batch speechtotext.ResultBatch
				var ok bool
				if s.utteranceEnd {
					batch, ok = acc.utteranceEnd()
				} else {
					batch, ok = acc.message(s.transcript, s.isFinal, s.speechFinal)
				}

				if s.wantNone {
					if ok {
						t.Fatalf("step %d: expected no batch, got %+v", i, batch)
					}
					continue
				}
				if !ok {
					t.Fatalf("step %d: expected a batch, got none", i)
				}
				interim, final := speechtotext.Partition(batch)
				if s.wantFinal {
					if final != s.wantText || interim != "" {
						t.Fatalf("step %d: expected final %q, got final %q interim %q", i, s.wantText, final, interim)
					}
				} else if interim != s.wantText || final != "" {
					t.Fatalf("step %d: expected interim %q, got interim %q final %q", i, s.wantText, interim, final)
				}
			}
		})
	}
}

func TestEncodingParams(t *testing.T) {
	params, err := encodingParams(audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("expected default encoding to be accepted, got %v", err)
	}
	if params.Get("encoding") != "linear16" || params.Get("sample_rate") != "16000" {
		t.Fatalf("expected linear16 at 16000, got %v", params)
	}

	if _, err := encodingParams(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}); err == nil {
		t.Fatalf("expected mulaw at 16kHz to be rejected")
	}
	if _, err := encodingParams(audio.EncodingInfo{SampleRate: 44100, Format: audio.EncodingLinear16}); err == nil {
		t.Fatalf("expected 44.1kHz to be rejected")
	}
}

func TestSessionDeliversResultsAndClosesOnStop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	receivedAudio := make(chan []byte, 8)
	var query string
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		auth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage {
				if len(msg) > 0 && msg[0] != 0 {
					receivedAudio <- msg
					_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"wait"}]}}`))
				}
				continue
			}

			var control struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(msg, &control)
			if control.Type == "CloseStream" {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
	defer server.Close()

	engine, err := NewEngine("test-key", WithEndpoint("ws", strings.TrimPrefix(server.URL, "http://")))
	if err != nil {
		t.Fatalf("expected engine, got %v", err)
	}

	session, err := engine.Open(context.Background(), audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("expected session to open, got %v", err)
	}

	if err := session.SendAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("expected audio to be sent, got %v", err)
	}

	select {
	case batch := <-session.Results():
		_, final := speechtotext.Partition(batch)
		if final != "wait" {
			t.Fatalf("expected final transcript %q, got %q", "wait", final)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a result batch")
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}

	select {
	case <-session.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("expected session to end after stop")
	}
	if err := session.Err(); err != nil {
		t.Fatalf("expected clean end, got %v", err)
	}

	if auth != "Token test-key" {
		t.Fatalf("expected token auth header, got %q", auth)
	}
	if !strings.Contains(query, "interim_results=true") || !strings.Contains(query, "model=nova-3") {
		t.Fatalf("expected listen options in query, got %q", query)
	}
	if len(receivedAudio) != 1 {
		t.Fatalf("expected server to receive one audio frame, got %d", len(receivedAudio))
	}
}
