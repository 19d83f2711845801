package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelane/storelane-backend/pkg/db/models"
	"github.com/storelane/storelane-backend/pkg/enums"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/logger"
	"github.com/storelane/storelane-backend/pkg/pagination"
)

const maxMessageLength = 4000

type messagePublisher interface {
	PublishMessage(ctx context.Context, message *MessageDTO) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ServiceParams bundles the dependencies of the chat service.
type ServiceParams struct {
	Repo      Repository
	Users     userDirectory
	Publisher messagePublisher
	Logger    *logger.Logger
}

// Service implements the chat relay operations.
type Service struct {
	repo      Repository
	users     userDirectory
	publisher messagePublisher
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "chat repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user directory required")
	}
	return &Service{
		repo:      params.Repo,
		users:     params.Users,
		publisher: params.Publisher,
		logg:      params.Logger,
	}, nil
}

// Post appends a message to a thread and fans it out to live subscribers.
// Customers may only write into their own thread; admins may write anywhere.
func (s *Service) Post(ctx context.Context, input PostMessageInput) (*MessageDTO, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message content is required")
	}
	if len(content) > maxMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message content is too long")
	}
	if input.ThreadID == uuid.Nil || input.SenderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "thread and sender ids are required")
	}
	if !input.SenderRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sender role")
	}
	if input.SenderRole == enums.UserRoleCustomer && input.SenderID != input.ThreadID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only post into their own thread")
	}

	if _, err := s.users.FindByID(ctx, input.ThreadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "thread not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve thread")
	}

	stored, err := s.repo.CreateMessage(ctx, &models.ChatMessage{
		CustomerID: input.ThreadID,
		SenderID:   input.SenderID,
		SenderRole: input.SenderRole,
		Content:    content,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store message")
	}

	dto := FromModel(stored)
	if s.publisher != nil {
		// Delivery to live subscribers is best effort. The message is already
		// durable; readers catch up through ListMessages.
		if err := s.publisher.PublishMessage(ctx, dto); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "publish chat message failed")
		}
	}
	return dto, nil
}

// ListMessages returns one ascending page of a thread. A customer requester
// may only read its own thread.
func (s *Service) ListMessages(ctx context.Context, threadID uuid.UUID, requester *uuid.UUID, params pagination.Params) (*MessageList, error) {
	if threadID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "thread id is required")
	}
	if requester != nil && *requester != threadID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only read their own thread")
	}
	list, err := s.repo.ListMessages(ctx, threadID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	return list, nil
}

// ListThreads returns the admin inbox ordered by latest message. The
// aggregate query is the primary path; when it fails the threads are derived
// from a full scan so the inbox stays available.
func (s *Service) ListThreads(ctx context.Context, params pagination.Params) (*ThreadList, error) {
	list, err := s.repo.ListThreads(ctx, params)
	if err == nil {
		return list, nil
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "thread aggregate query failed, falling back to scan")
	}
	return s.scanThreads(ctx, params)
}

func (s *Service) scanThreads(ctx context.Context, params pagination.Params) (*ThreadList, error) {
	messages, err := s.repo.ScanMessages(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan messages")
	}

	// Messages arrive newest-first, so the first row per customer is the
	// thread head and the order of first sightings is the thread order.
	var order []uuid.UUID
	heads := map[uuid.UUID]*ThreadSummary{}
	for i := range messages {
		m := &messages[i]
		summary, seen := heads[m.CustomerID]
		if !seen {
			summary = &ThreadSummary{
				ThreadID:      m.CustomerID,
				LastMessage:   m.Content,
				LastMessageAt: m.CreatedAt,
			}
			heads[m.CustomerID] = summary
			order = append(order, m.CustomerID)
		}
		if m.SenderRole == enums.UserRoleCustomer && !m.Read {
			summary.UnreadCount++
		}
	}

	total := int64(len(order))
	offset := pagination.Offset(params.Page)
	if offset > len(order) {
		offset = len(order)
	}
	end := offset + pagination.PageSize
	if end > len(order) {
		end = len(order)
	}

	threads := make([]ThreadSummary, 0, end-offset)
	for _, customerID := range order[offset:end] {
		summary := *heads[customerID]
		if user, err := s.users.FindByID(ctx, customerID); err == nil {
			summary.CustomerName = user.DisplayName
			summary.CustomerEmail = user.Email
		}
		threads = append(threads, summary)
	}
	return &ThreadList{
		Threads: threads,
		Page:    pagination.Build(params.Page, total),
	}, nil
}

// MarkRead flags every message in the thread written by the other side as
// read. The reader role decides which side that is.
func (s *Service) MarkRead(ctx context.Context, threadID uuid.UUID, readerRole enums.UserRole) error {
	if threadID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "thread id is required")
	}
	if !readerRole.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid reader role")
	}
	if err := s.repo.MarkRead(ctx, threadID, readerRole); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark thread read")
	}
	return nil
}
