package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"github.com/koscakluka/ema-vision/internal/utils"
)

const (
	defaultHost  = "api.deepgram.com"
	defaultModel = "nova-3"

	// closeGrace is how long a stopped session waits for Deepgram to flush
	// its last results before the socket is dropped.
	closeGrace = 2 * time.Second
)

// Engine opens one Deepgram listen websocket per recognition session.
type Engine struct {
	apiKey   string
	scheme   string
	host     string
	model    string
	language string
}

type EngineOption func(*Engine)

func WithEndpoint(scheme, host string) EngineOption {
	return func(e *Engine) {
		e.scheme = scheme
		e.host = host
	}
}

func WithModel(model string) EngineOption {
	return func(e *Engine) {
		if model != "" {
			e.model = model
		}
	}
}

func WithLanguage(language string) EngineOption {
	return func(e *Engine) {
		if language != "" {
			e.language = language
		}
	}
}

func NewEngine(apiKey string, opts ...EngineOption) (*Engine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not set")
	}

	engine := &Engine{
		apiKey:   apiKey,
		scheme:   "wss",
		host:     defaultHost,
		model:    defaultModel,
		language: "en-US",
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

func (e *Engine) Open(ctx context.Context, encoding audio.EncodingInfo) (speechtotext.EngineSession, error) {
	params, err := encodingParams(encoding)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}
	params.Set("model", e.model)
	params.Set("language", e.language)
	params.Set("smart_format", "true")
	params.Set("interim_results", "true")
	params.Set("utterance_end_ms", "1000")
	params.Set("endpointing", "300")
	params.Set("vad_events", "true")

	listenURL := url.URL{Scheme: e.scheme, Host: e.host, Path: "/v1/listen", RawQuery: params.Encode()}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + e.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	s := &session{
		conn:      conn,
		results:   make(chan speechtotext.ResultBatch, 16),
		done:      make(chan struct{}),
		lastMsgTs: time.Now(),
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.readAndProcessMessages(sessionCtx)
	go s.generateSilence(sessionCtx, encoding)

	return s, nil
}

type session struct {
	conn   *websocket.Conn
	connMu sync.Mutex
	cancel context.CancelFunc

	results chan speechtotext.ResultBatch
	done    chan struct{}

	mu        sync.Mutex
	err       error
	stopped   bool
	lastMsgTs time.Time

	transcript transcriptAccumulator
}

func (s *session) Results() <-chan speechtotext.ResultBatch { return s.results }
func (s *session) Done() <-chan struct{}                    { return s.done }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *session) SendAudio(audio []byte) error {
	s.mu.Lock()
	s.lastMsgTs = time.Now()
	s.mu.Unlock()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// Stop asks Deepgram to finish the stream; the socket is dropped if it does
// not close on its own shortly after.
func (s *session) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	time.AfterFunc(closeGrace, s.cancel)

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		s.cancel()
		return fmt.Errorf("failed to close deepgram stream through websocket: %w", err)
	}
	return nil
}

func (s *session) readAndProcessMessages(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()
	defer s.cancel()

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.end(ctx, err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if batch, ok := s.processMessage(msg); ok {
			s.results <- batch
		}
	}
}

func (s *session) end(ctx context.Context, err error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) || stopped || ctx.Err() != nil {
		err = nil
	}

	if batch, ok := s.transcript.utteranceEnd(); ok {
		s.results <- batch
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.results)
	close(s.done)
}

func (s *session) processMessage(msg []byte) (speechtotext.ResultBatch, bool) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return speechtotext.ResultBatch{}, false
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", "error", err)
			return speechtotext.ResultBatch{}, false
		}
		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = msgResp.Channel.Alternatives[0].Transcript
		}
		return s.transcript.message(transcript, msgResp.IsFinal, msgResp.SpeechFinal)

	case api.TypeUtteranceEndResponse:
		return s.transcript.utteranceEnd()
	}

	return speechtotext.ResultBatch{}, false
}

// transcriptAccumulator joins Deepgram's finalized segments into one final
// result per utterance. Until the utterance ends, everything heard so far is
// reported as interim.
type transcriptAccumulator struct {
	segments []string
}

func (a *transcriptAccumulator) message(transcript string, isFinal, speechFinal bool) (speechtotext.ResultBatch, bool) {
	transcript = strings.TrimSpace(transcript)

	if !isFinal {
		if transcript == "" {
			return speechtotext.ResultBatch{}, false
		}
		return interimBatch(strings.Join(append(a.segments[:len(a.segments):len(a.segments)], transcript), " ")), true
	}

	if transcript != "" {
		a.segments = append(a.segments, transcript)
	}
	if speechFinal {
		return a.utteranceEnd()
	}
	if len(a.segments) == 0 {
		return speechtotext.ResultBatch{}, false
	}
	return interimBatch(strings.Join(a.segments, " ")), true
}

func (a *transcriptAccumulator) utteranceEnd() (speechtotext.ResultBatch, bool) {
	if len(a.segments) == 0 {
		return speechtotext.ResultBatch{}, false
	}
	full := strings.Join(a.segments, " ")
	a.segments = nil
	return speechtotext.ResultBatch{Results: []speechtotext.Result{{Transcript: full, IsFinal: true}}}, true
}

func interimBatch(text string) speechtotext.ResultBatch {
	return speechtotext.ResultBatch{Results: []speechtotext.Result{{Transcript: text}}}
}

func (s *session) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		logger.Debug("failed to send keep alive", "error", err)
	}
}

func (s *session) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *session) sinceLastAudio() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastMsgTs)
}

// generateSilence pads short microphone gaps with silence so endpointing
// still fires, then falls back to keep-alives during long pauses.
func (s *session) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const chunkDuration = 50 * time.Millisecond
	ticker := time.NewTicker(chunkDuration)
	defer ticker.Stop()

	chunk := make([]byte, encoding.FrameAligned(int(chunkDuration.Seconds()*float64(encoding.BytesPerSecond()))))
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	var state = silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := s.sinceLastAudio()
			switch state {
			case silenceGeneratorStateWaiting:
				if idle > chunkDuration {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
				}

			case silenceGeneratorStateSilence:
				if idle < chunkDuration {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}

				if err := s.sendSilence(chunk); err != nil {
					logger.Debug("failed to send silence", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if idle < chunkDuration {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(*lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = utils.Ptr(time.Now())
					s.sendKeepAlive()
				}
			}
		}
	}
}
