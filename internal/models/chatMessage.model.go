package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"hkboard/internal/utils"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeMessage MessageType = "message"
	MessageTypeTask    MessageType = "task"
)

type SenderType string

const (
	SenderAdmin       SenderType = "admin"
	SenderHousekeeper SenderType = "housekeeper"
	SenderSystem      SenderType = "system"
)

const SYSTEM_SENDER = "system"

var ErrInvalidMessage = errors.New("invalid message")

type ChatMessage struct {
	ID         string      `gorm:"type:varchar(96);primaryKey"      json:"id"`
	Type       MessageType `gorm:"type:varchar(16);not null"        json:"type"`
	Sender     string      `gorm:"type:varchar(64);not null"        json:"sender"`
	SenderType SenderType  `gorm:"type:varchar(16);not null"        json:"senderType"`
	Content    string      `gorm:"type:text;not null"               json:"content"`
	Timestamp  time.Time   `gorm:"not null;index"                   json:"timestamp"`
	Task       *Task       `gorm:"type:jsonb;serializer:json"       json:"task,omitempty"`
}

func (ChatMessage) TableName() string {
	return "messages"
}

// Actor is whoever performs a board mutation.
type Actor struct {
	Name string     `json:"name"`
	Type SenderType `json:"type"`
}

var SystemActor = Actor{Name: SYSTEM_SENDER, Type: SenderSystem}

func NewMessageID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func NewChatMessage(actor Actor, content string, now time.Time) (ChatMessage, error) {
	message := ChatMessage{
		ID:         NewMessageID(),
		Type:       MessageTypeMessage,
		Sender:     actor.Name,
		SenderType: actor.Type,
		Content:    utils.CleanText(content),
		Timestamp:  now,
	}
	if err := message.Validate(); err != nil {
		return ChatMessage{}, err
	}
	return message, nil
}

// NewTaskMessage posts a notification carrying a snapshot of task.
func NewTaskMessage(actor Actor, content string, task Task, now time.Time) ChatMessage {
	snapshot := task
	return ChatMessage{
		ID:         NewMessageID(),
		Type:       MessageTypeTask,
		Sender:     actor.Name,
		SenderType: actor.Type,
		Content:    content,
		Timestamp:  now,
		Task:       &snapshot,
	}
}

// RefersTo reports whether the message embeds a snapshot of the given task.
func (m ChatMessage) RefersTo(taskID string) bool {
	return m.Type == MessageTypeTask && m.Task != nil && m.Task.ID == taskID
}

func (m ChatMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMessage)
	}
	if m.Content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidMessage)
	}
	switch m.SenderType {
	case SenderAdmin, SenderHousekeeper, SenderSystem:
	default:
		return fmt.Errorf("%w: unknown sender type %q", ErrInvalidMessage, m.SenderType)
	}
	switch m.Type {
	case MessageTypeMessage:
	case MessageTypeTask:
		if m.Task == nil {
			return fmt.Errorf("%w: task message %s has no task", ErrInvalidMessage, m.ID)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
	return nil
}

func SortMessages(messages []ChatMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}
