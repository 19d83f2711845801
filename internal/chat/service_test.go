package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelane/storelane-backend/pkg/db/models"
	"github.com/storelane/storelane-backend/pkg/enums"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/pagination"
)

type stubChatRepo struct {
	messages      []models.ChatMessage
	aggregateErr  error
	markedThreads []uuid.UUID
	markedRoles   []enums.UserRole
}

func (s *stubChatRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubChatRepo) CreateMessage(_ context.Context, message *models.ChatMessage) (*models.ChatMessage, error) {
	message.ID = uuid.New()
	message.CreatedAt = time.Now().UTC()
	s.messages = append(s.messages, *message)
	return message, nil
}

func (s *stubChatRepo) ListMessages(_ context.Context, threadID uuid.UUID, params pagination.Params) (*MessageList, error) {
	var out []MessageDTO
	for i := range s.messages {
		if s.messages[i].CustomerID == threadID {
			out = append(out, *FromModel(&s.messages[i]))
		}
	}
	return &MessageList{Messages: out, Page: pagination.Build(params.Page, int64(len(out)))}, nil
}

func (s *stubChatRepo) ListThreads(_ context.Context, _ pagination.Params) (*ThreadList, error) {
	if s.aggregateErr != nil {
		return nil, s.aggregateErr
	}
	return &ThreadList{Page: pagination.Build(1, 0)}, nil
}

func (s *stubChatRepo) ScanMessages(_ context.Context) ([]models.ChatMessage, error) {
	// Newest first, matching the real scan.
	out := make([]models.ChatMessage, len(s.messages))
	for i := range s.messages {
		out[i] = s.messages[len(s.messages)-1-i]
	}
	return out, nil
}

func (s *stubChatRepo) MarkRead(_ context.Context, threadID uuid.UUID, readerRole enums.UserRole) error {
	s.markedThreads = append(s.markedThreads, threadID)
	s.markedRoles = append(s.markedRoles, readerRole)
	return nil
}

type stubUserDirectory struct {
	users map[uuid.UUID]*models.User
}

func newStubUserDirectory() *stubUserDirectory {
	return &stubUserDirectory{users: map[uuid.UUID]*models.User{}}
}

func (s *stubUserDirectory) add(displayName, email string) uuid.UUID {
	id := uuid.New()
	s.users[id] = &models.User{ID: id, DisplayName: displayName, Email: email}
	return id
}

func (s *stubUserDirectory) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubMessagePublisher struct {
	published []MessageDTO
	fail      bool
}

func (s *stubMessagePublisher) PublishMessage(_ context.Context, message *MessageDTO) error {
	if s.fail {
		return errors.New("broker down")
	}
	s.published = append(s.published, *message)
	return nil
}

func newChatService(t *testing.T, repo *stubChatRepo, users *stubUserDirectory, pub *stubMessagePublisher) *Service {
	t.Helper()
	params := ServiceParams{Repo: repo, Users: users}
	// A nil *stubMessagePublisher wrapped in the interface would look non-nil
	// to the publisher guard, so only set the field for a real stub.
	if pub != nil {
		params.Publisher = pub
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestPostTrimsAndStoresMessage(t *testing.T) {
	repo := &stubChatRepo{}
	users := newStubUserDirectory()
	pub := &stubMessagePublisher{}
	customerID := users.add("Dana", "dana@example.com")
	svc := newChatService(t, repo, users, pub)

	msg, err := svc.Post(context.Background(), PostMessageInput{
		ThreadID:   customerID,
		SenderID:   customerID,
		SenderRole: enums.UserRoleCustomer,
		Content:    "  where is my order?  ",
	})
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if msg.Content != "where is my order?" {
		t.Fatalf("expected trimmed content, got %q", msg.Content)
	}
	if msg.ThreadID != customerID {
		t.Fatalf("expected thread %s, got %s", customerID, msg.ThreadID)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.published))
	}
}

func TestPostRejectsBlankContent(t *testing.T) {
	users := newStubUserDirectory()
	customerID := users.add("Dana", "dana@example.com")
	svc := newChatService(t, &stubChatRepo{}, users, nil)

	_, err := svc.Post(context.Background(), PostMessageInput{
		ThreadID:   customerID,
		SenderID:   customerID,
		SenderRole: enums.UserRoleCustomer,
		Content:    "   ",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPostCustomerCannotWriteForeignThread(t *testing.T) {
	users := newStubUserDirectory()
	customerID := users.add("Dana", "dana@example.com")
	otherID := users.add("Eli", "eli@example.com")
	svc := newChatService(t, &stubChatRepo{}, users, nil)

	_, err := svc.Post(context.Background(), PostMessageInput{
		ThreadID:   otherID,
		SenderID:   customerID,
		SenderRole: enums.UserRoleCustomer,
		Content:    "hello",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPostAdminIntoUnknownThread(t *testing.T) {
	users := newStubUserDirectory()
	adminID := users.add("Ops", "ops@example.com")
	svc := newChatService(t, &stubChatRepo{}, users, nil)

	_, err := svc.Post(context.Background(), PostMessageInput{
		ThreadID:   uuid.New(),
		SenderID:   adminID,
		SenderRole: enums.UserRoleAdmin,
		Content:    "hello",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostWithoutPublisherConfigured(t *testing.T) {
	repo := &stubChatRepo{}
	users := newStubUserDirectory()
	customerID := users.add("Dana", "dana@example.com")
	svc := newChatService(t, repo, users, nil)

	msg, err := svc.Post(context.Background(), PostMessageInput{
		ThreadID:   customerID,
		SenderID:   customerID,
		SenderRole: enums.UserRoleCustomer,
		Content:    "hello",
	})
	if err != nil {
		t.Fatalf("expected stored message without a publisher, got %v", err)
	}
	if len(repo.messages) != 1 || msg == nil {
		t.Fatal("expected message persisted")
	}
}

func TestPostSurvivesPublishFailure(t *testing.T) {
	repo := &stubChatRepo{}
	users := newStubUserDirectory()
	customerID := users.add("Dana", "dana@example.com")
	svc := newChatService(t, repo, users, &stubMessagePublisher{fail: true})

	msg, err := svc.Post(context.Background(), PostMessageInput{
		ThreadID:   customerID,
		SenderID:   customerID,
		SenderRole: enums.UserRoleCustomer,
		Content:    "hello",
	})
	if err != nil {
		t.Fatalf("expected stored message despite publish failure, got %v", err)
	}
	if len(repo.messages) != 1 || msg == nil {
		t.Fatal("expected message persisted")
	}
}

func TestListMessagesForeignThreadForbidden(t *testing.T) {
	users := newStubUserDirectory()
	customerID := users.add("Dana", "dana@example.com")
	otherID := users.add("Eli", "eli@example.com")
	svc := newChatService(t, &stubChatRepo{}, users, nil)

	_, err := svc.ListMessages(context.Background(), otherID, &customerID, pagination.Params{Page: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestListThreadsFallsBackToScan(t *testing.T) {
	repo := &stubChatRepo{aggregateErr: errors.New("aggregate unsupported")}
	users := newStubUserDirectory()
	dana := users.add("Dana", "dana@example.com")
	eli := users.add("Eli", "eli@example.com")
	svc := newChatService(t, repo, users, nil)

	post := func(thread, sender uuid.UUID, role enums.UserRole, content string) {
		t.Helper()
		if _, err := svc.Post(context.Background(), PostMessageInput{
			ThreadID: thread, SenderID: sender, SenderRole: role, Content: content,
		}); err != nil {
			t.Fatalf("post failed: %v", err)
		}
	}
	post(dana, dana, enums.UserRoleCustomer, "first")
	post(dana, dana, enums.UserRoleCustomer, "second")
	post(eli, eli, enums.UserRoleCustomer, "hi")

	list, err := svc.ListThreads(context.Background(), pagination.Params{Page: 1})
	if err != nil {
		t.Fatalf("list threads failed: %v", err)
	}
	if len(list.Threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(list.Threads))
	}
	// Eli posted last so his thread leads.
	if list.Threads[0].ThreadID != eli || list.Threads[0].LastMessage != "hi" {
		t.Fatalf("unexpected head thread: %+v", list.Threads[0])
	}
	if list.Threads[1].UnreadCount != 2 {
		t.Fatalf("expected 2 unread for dana, got %d", list.Threads[1].UnreadCount)
	}
	if list.Threads[1].CustomerEmail != "dana@example.com" {
		t.Fatalf("expected counterpart email, got %q", list.Threads[1].CustomerEmail)
	}
}

func TestMarkReadRejectsInvalidRole(t *testing.T) {
	users := newStubUserDirectory()
	customerID := users.add("Dana", "dana@example.com")
	svc := newChatService(t, &stubChatRepo{}, users, nil)

	err := svc.MarkRead(context.Background(), customerID, enums.UserRole("owner"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkReadDelegatesReaderRole(t *testing.T) {
	repo := &stubChatRepo{}
	users := newStubUserDirectory()
	customerID := users.add("Dana", "dana@example.com")
	svc := newChatService(t, repo, users, nil)

	if err := svc.MarkRead(context.Background(), customerID, enums.UserRoleAdmin); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if len(repo.markedThreads) != 1 || repo.markedThreads[0] != customerID {
		t.Fatalf("expected mark for %s, got %v", customerID, repo.markedThreads)
	}
	if repo.markedRoles[0] != enums.UserRoleAdmin {
		t.Fatalf("expected admin reader role, got %s", repo.markedRoles[0])
	}
}
