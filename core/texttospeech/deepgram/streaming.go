package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

type speakRequest struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	stream *texttospeech.ChunkStream

	closed bool
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context, voice deepgramVoice) (*websocket.Conn, error) {
	encodingInfo := c.options.EncodingInfo

	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx,
		(&url.URL{
			Scheme: c.scheme,
			Host:   c.host, Path: "/v1/speak",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (r *speakRequest) speak(text string) error {
	if err := r.sendWebsocketMessage(sendTextMsg(text)); err != nil {
		return fmt.Errorf("failed to send websocket speak message: %w", err)
	}
	if err := r.sendWebsocketMessage(flushMsg); err != nil {
		return fmt.Errorf("failed to send websocket flush message: %w", err)
	}
	return nil
}

// processIncomingMessages forwards audio until the flush is confirmed, the
// socket fails or the stream is cancelled.
func (r *speakRequest) processIncomingMessages(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		_ = r.sendWebsocketMessage(clearMsg)
		_ = r.close()
	})
	defer stop()

	for {
		msgType, msg, err := r.ws.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				r.stream.Finish(texttospeech.ErrCancelled)
			case websocket.IsCloseError(err, websocket.CloseNormalClosure):
				r.stream.Finish(nil)
			default:
				r.stream.Finish(fmt.Errorf("%w: %w", texttospeech.ErrStreamTransport, err))
			}
			_ = r.close()
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if !r.stream.Deliver(msg) {
				r.stream.Finish(texttospeech.ErrCancelled)
				_ = r.close()
				return
			}
		case websocket.TextMessage:
			var parsedMsg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				r.stream.Finish(nil)
				_ = r.sendWebsocketMessage(closeMsg)
				_ = r.close()
				return
			case "Warning":
				logger.Warn("deepgram speak warning", "message", string(msg))
			}
		}
	}
}

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	sendTextMsg = func(text string) websocketMessage {
		return websocketMessage{Type: "Speak", Text: text}
	}
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

var errSocketClosed = errors.New("websocket closed")

func (r *speakRequest) sendWebsocketMessage(msg websocketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errSocketClosed
	}

	return r.ws.WriteJSON(msg)
}

func (r *speakRequest) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.ws.Close()
}
