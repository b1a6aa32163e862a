package orchestration

import (
	"github.com/koscakluka/ema-vision/core/speechtotext"
)

// RecognizerOptions binds a recognizer's callbacks to this orchestrator.
// Pass them to speechtotext.NewContinuousRecognizer.
func (o *Orchestrator) RecognizerOptions() []speechtotext.RecognizerOption {
	return []speechtotext.RecognizerOption{
		speechtotext.WithTranscriptCallback(o.HandleTranscript),
		speechtotext.WithSpeechActivityCallback(o.SpeechActivity),
		speechtotext.WithListeningChangedCallback(o.ListeningChanged),
		speechtotext.WithSessionRestartCallback(o.metrics.RecognizerRestarted),
		speechtotext.WithErrorCallback(func(err error) {
			logger.Debug("recognizer reported error", "error", err)
		}),
	}
}

// HandleTranscript feeds a recognizer transcript into the event loop.
func (o *Orchestrator) HandleTranscript(event speechtotext.TranscriptEvent) {
	o.post(transcriptReceived{event: event})
}

// SpeechActivity reports that the user is speaking; any live turn is
// cancelled.
func (o *Orchestrator) SpeechActivity() {
	o.post(speechActivityDetected{})
}

func (o *Orchestrator) ListeningChanged(listening bool) {
	o.post(listeningChanged{listening: listening})
}
