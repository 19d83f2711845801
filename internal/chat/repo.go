package chat

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelane/storelane-backend/pkg/db/models"
	"github.com/storelane/storelane-backend/pkg/enums"
	"github.com/storelane/storelane-backend/pkg/pagination"
)

// Repository defines persistence operations for chat threads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateMessage(ctx context.Context, message *models.ChatMessage) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, threadID uuid.UUID, params pagination.Params) (*MessageList, error)
	ListThreads(ctx context.Context, params pagination.Params) (*ThreadList, error)
	ScanMessages(ctx context.Context) ([]models.ChatMessage, error)
	MarkRead(ctx context.Context, threadID uuid.UUID, readerRole enums.UserRole) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a chat repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateMessage(ctx context.Context, message *models.ChatMessage) (*models.ChatMessage, error) {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func (r *repository) ListMessages(ctx context.Context, threadID uuid.UUID, params pagination.Params) (*MessageList, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("customer_id = ?", threadID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []models.ChatMessage
	err := query.
		Order("created_at ASC").
		Offset(pagination.Offset(params.Page)).
		Limit(pagination.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]MessageDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &MessageList{
		Messages: out,
		Page:     pagination.Build(params.Page, total),
	}, nil
}

// ListThreads aggregates the thread list in SQL: latest message per customer
// plus the count of unread customer-authored messages.
func (r *repository) ListThreads(ctx context.Context, params pagination.Params) (*ThreadList, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Distinct("customer_id").
		Count(&total).Error
	if err != nil {
		return nil, err
	}

	var rows []struct {
		models.ChatMessage
		DisplayName string
		Email       string
		UnreadCount int
	}
	err = r.db.WithContext(ctx).
		Table("chat_messages").
		Select(`chat_messages.*, users.display_name, users.email,
			(SELECT COUNT(*) FROM chat_messages unread
			 WHERE unread.customer_id = chat_messages.customer_id
			   AND unread.sender_role = ? AND unread.read = ?) AS unread_count`,
			enums.UserRoleCustomer, false).
		Joins("JOIN users ON users.id = chat_messages.customer_id").
		Where(`chat_messages.created_at = (
			SELECT MAX(latest.created_at) FROM chat_messages latest
			WHERE latest.customer_id = chat_messages.customer_id)`).
		Order("chat_messages.created_at DESC").
		Offset(pagination.Offset(params.Page)).
		Limit(pagination.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	threads := make([]ThreadSummary, 0, len(rows))
	for _, row := range rows {
		threads = append(threads, ThreadSummary{
			ThreadID:      row.CustomerID,
			CustomerName:  row.DisplayName,
			CustomerEmail: row.Email,
			LastMessage:   row.Content,
			LastMessageAt: row.CreatedAt,
			UnreadCount:   row.UnreadCount,
		})
	}
	return &ThreadList{
		Threads: threads,
		Page:    pagination.Build(params.Page, total),
	}, nil
}

// ScanMessages returns every message newest-first. It backs the Go-side
// thread derivation used when the aggregate query fails.
func (r *repository) ScanMessages(ctx context.Context) ([]models.ChatMessage, error) {
	var rows []models.ChatMessage
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkRead(ctx context.Context, threadID uuid.UUID, readerRole enums.UserRole) error {
	return r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("customer_id = ? AND sender_role <> ? AND read = ?", threadID, readerRole, false).
		UpdateColumn("read", true).Error
}
