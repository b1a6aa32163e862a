// Package google runs recognition sessions on Google Cloud Speech-to-Text
// streaming recognition.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type streamOpener func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Engine shares one Speech client between all sessions it opens.
type Engine struct {
	client   *speech.Client
	open     streamOpener
	language string
}

type EngineOption func(*Engine)

func WithLanguage(language string) EngineOption {
	return func(e *Engine) {
		if language != "" {
			e.language = language
		}
	}
}

// NewEngine authenticates with application default credentials.
func NewEngine(ctx context.Context, opts ...EngineOption) (*Engine, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	engine := newEngine(func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return client.StreamingRecognize(ctx)
	}, opts...)
	engine.client = client
	return engine, nil
}

func newEngine(open streamOpener, opts ...EngineOption) *Engine {
	engine := &Engine{open: open, language: "en-US"}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *Engine) Open(ctx context.Context, encoding audio.EncodingInfo) (speechtotext.EngineSession, error) {
	audioEncoding, err := recognitionEncoding(encoding)
	if err != nil {
		return nil, err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := e.open(sessionCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   audioEncoding,
					SampleRateHertz:            int32(encoding.SampleRate),
					LanguageCode:               e.language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	s := &session{
		stream:  stream,
		cancel:  cancel,
		results: make(chan speechtotext.ResultBatch, 16),
		done:    make(chan struct{}),
	}
	go s.receive(sessionCtx)
	return s, nil
}

func recognitionEncoding(encoding audio.EncodingInfo) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		return speechpb.RecognitionConfig_LINEAR16, nil
	case audio.EncodingMulaw:
		return speechpb.RecognitionConfig_MULAW, nil
	}
	return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
}

type session struct {
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc

	// grpc streams allow a single sender at a time
	sendMu     sync.Mutex
	sendClosed bool

	results chan speechtotext.ResultBatch
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func (s *session) Results() <-chan speechtotext.ResultBatch { return s.results }
func (s *session) Done() <-chan struct{}                    { return s.done }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *session) SendAudio(audio []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return io.ErrClosedPipe
	}

	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: audio},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Stop half-closes the stream; Google answers with its last results and
// then ends the session.
func (s *session) Stop() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return nil
	}
	s.sendClosed = true

	if err := s.stream.CloseSend(); err != nil {
		s.cancel()
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (s *session) receive(ctx context.Context) {
	defer s.cancel()

	var err error
	for {
		var resp *speechpb.StreamingRecognizeResponse
		resp, err = s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				err = nil
			}
			break
		}
		if batch, ok := toResultBatch(resp); ok {
			s.results <- batch
		}
		if st := resp.GetError(); st != nil && st.GetCode() != int32(codes.OK) {
			err = fmt.Errorf("recognition stream failed: %w", status.ErrorProto(st))
			break
		}
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.results)
	close(s.done)
}

func toResultBatch(resp *speechpb.StreamingRecognizeResponse) (speechtotext.ResultBatch, bool) {
	if resp == nil || len(resp.GetResults()) == 0 {
		return speechtotext.ResultBatch{}, false
	}

	batch := speechtotext.ResultBatch{}
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		batch.Results = append(batch.Results, speechtotext.Result{
			Transcript: alternatives[0].GetTranscript(),
			IsFinal:    result.GetIsFinal(),
		})
	}
	return batch, len(batch.Results) > 0
}
