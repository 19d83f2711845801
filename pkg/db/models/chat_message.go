package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storelane/storelane-backend/pkg/enums"
)

// ChatMessage is one entry in a customer's support thread. The customer id is
// the thread key; there is exactly one thread per customer.
type ChatMessage struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID      `gorm:"column:customer_id;type:uuid;not null;index"`
	SenderID   uuid.UUID      `gorm:"column:sender_id;type:uuid;not null"`
	SenderRole enums.UserRole `gorm:"column:sender_role;type:user_role;not null"`
	Content    string         `gorm:"column:content;not null"`
	Read       bool           `gorm:"column:read;not null;default:false"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}
