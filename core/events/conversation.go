package events

const (
	KindChatMessageAppended Kind = "conversation.message_appended"
	KindTranscriptUpdated   Kind = "user_input.transcript_updated"
	KindListeningChanged    Kind = "user_input.listening_changed"
	KindStatusUpdated       Kind = "status.updated"
)

type ChatMessageAppended struct {
	Base
	MessageID   string
	Role        string
	Text        string
	HasSnapshot bool
}

func NewChatMessageAppended(turnID, messageID, role, text string, hasSnapshot bool) ChatMessageAppended {
	return ChatMessageAppended{
		Base:        NewBase(KindChatMessageAppended, turnID),
		MessageID:   messageID,
		Role:        role,
		Text:        text,
		HasSnapshot: hasSnapshot,
	}
}

type TranscriptUpdated struct {
	Base
	Text  string
	Final bool
}

func NewTranscriptUpdated(text string, final bool) TranscriptUpdated {
	return TranscriptUpdated{Base: NewBase(KindTranscriptUpdated, ""), Text: text, Final: final}
}

type ListeningChanged struct {
	Base
	Listening bool
}

func NewListeningChanged(listening bool) ListeningChanged {
	return ListeningChanged{Base: NewBase(KindListeningChanged, ""), Listening: listening}
}

type StatusUpdated struct {
	Base
	Status string
}

func NewStatusUpdated(turnID, status string) StatusUpdated {
	return StatusUpdated{Base: NewBase(KindStatusUpdated, turnID), Status: status}
}
