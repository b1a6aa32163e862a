package orchestration

import "github.com/koscakluka/ema-vision/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts RunOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.TranscriptUpdated:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent.Text, typedEvent.Final)
			}
		case events.StatusUpdated:
			if opts.onStatus != nil {
				opts.onStatus(typedEvent.Status)
			}
		case events.ChatMessageAppended:
			if opts.onChatMessage != nil {
				opts.onChatMessage(Role(typedEvent.Role), typedEvent.Text)
			}
		case events.ListeningChanged:
			if opts.onListeningChanged != nil {
				opts.onListeningChanged(typedEvent.Listening)
			}
		case events.TurnCancelled:
			if opts.onCancellation != nil {
				opts.onCancellation()
			}
		case events.TurnFailed:
			if opts.onTurnFailed != nil {
				opts.onTurnFailed(typedEvent.Err)
			}
		case events.PlaybackEnded:
			if opts.onPlaybackEnded != nil && typedEvent.Err == nil {
				opts.onPlaybackEnded()
			}
		}
	}
}

// fanOut delivers each event to the callbacks first and then to every
// registered handler, in registration order.
func fanOut(callbacks eventEmitter, handlers []EventHandler) eventEmitter {
	return func(event events.Event) {
		callbacks(event)
		for _, handler := range handlers {
			handler.HandleEvent(event)
		}
	}
}
