package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/storelane/storelane-backend/pkg/db/models"
	"github.com/storelane/storelane-backend/pkg/enums"
	"github.com/storelane/storelane-backend/pkg/pagination"
)

// PostMessageInput captures a message being appended to a thread. ThreadID is
// the customer id owning the thread.
type PostMessageInput struct {
	ThreadID   uuid.UUID
	SenderID   uuid.UUID
	SenderRole enums.UserRole
	Content    string
}

// MessageDTO is the transport shape of one chat message. Clients reconcile
// their optimistic echoes against the id and created_at values.
type MessageDTO struct {
	ID         uuid.UUID      `json:"id"`
	ThreadID   uuid.UUID      `json:"thread_id"`
	SenderID   uuid.UUID      `json:"sender_id"`
	SenderRole enums.UserRole `json:"sender_role"`
	Content    string         `json:"content"`
	Read       bool           `json:"read"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ThreadSummary is one row in the admin thread list.
type ThreadSummary struct {
	ThreadID      uuid.UUID `json:"thread_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
}

// ThreadList wraps one page of threads plus the page metadata.
type ThreadList struct {
	Threads []ThreadSummary `json:"threads"`
	Page    pagination.Page `json:"page"`
}

// MessageList wraps one ascending page of a thread.
type MessageList struct {
	Messages []MessageDTO    `json:"messages"`
	Page     pagination.Page `json:"page"`
}

// FromModel maps a persisted message to its transport shape.
func FromModel(m *models.ChatMessage) *MessageDTO {
	if m == nil {
		return nil
	}
	return &MessageDTO{
		ID:         m.ID,
		ThreadID:   m.CustomerID,
		SenderID:   m.SenderID,
		SenderRole: m.SenderRole,
		Content:    m.Content,
		Read:       m.Read,
		CreatedAt:  m.CreatedAt,
	}
}
