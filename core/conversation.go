package orchestration

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-vision/core/snapshot"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of the session's chat history. Only user messages
// carry a snapshot.
type ChatMessage struct {
	ID        string
	TurnID    string
	Role      Role
	Text      string
	Snapshot  *snapshot.Snapshot
	CreatedAt time.Time
}

// conversation is the append-only chat history. Only the event loop appends;
// readers take deep copies.
type conversation struct {
	mu       sync.RWMutex
	messages []ChatMessage
}

func (c *conversation) appendUser(turnID, text string, snap snapshot.Snapshot) ChatMessage {
	return c.append(ChatMessage{TurnID: turnID, Role: RoleUser, Text: text, Snapshot: &snap})
}

func (c *conversation) appendAssistant(turnID, text string) ChatMessage {
	return c.append(ChatMessage{TurnID: turnID, Role: RoleAssistant, Text: text})
}

func (c *conversation) append(message ChatMessage) ChatMessage {
	message.ID = uuid.NewString()
	message.CreatedAt = time.Now()

	c.mu.Lock()
	c.messages = append(c.messages, message)
	c.mu.Unlock()
	return message
}

func (c *conversation) history() ([]ChatMessage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := make([]ChatMessage, 0, len(c.messages))
	if err := copier.CopyWithOption(&history, &c.messages, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy chat history: %w", err)
	}
	return history, nil
}
