package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelane/storelane-backend/pkg/db/models"
	"github.com/storelane/storelane-backend/pkg/enums"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/pagination"
)

type stubUsersRepo struct {
	users         map[uuid.UUID]*models.User
	updatedStatus enums.UserStatus
	list          func(ctx context.Context, params pagination.Params, status *enums.UserStatus) (*UserList, error)
}

func (s *stubUsersRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUsersRepo) List(ctx context.Context, params pagination.Params, status *enums.UserStatus) (*UserList, error) {
	if s.list != nil {
		return s.list(ctx, params, status)
	}
	return &UserList{Page: pagination.Build(params.Page, 0)}, nil
}

func (s *stubUsersRepo) UpdateStatus(_ context.Context, id uuid.UUID, status enums.UserStatus) error {
	s.updatedStatus = status
	if user, ok := s.users[id]; ok {
		user.Status = status
	}
	return nil
}

func newModerationService(t *testing.T, repo *stubUsersRepo) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestApprovePendingUser(t *testing.T) {
	userID := uuid.New()
	repo := &stubUsersRepo{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Status: enums.UserStatusPending},
	}}
	svc := newModerationService(t, repo)

	dto, err := svc.Approve(context.Background(), userID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if dto.Status != enums.UserStatusApproved {
		t.Fatalf("expected approved status, got %s", dto.Status)
	}
	if repo.updatedStatus != enums.UserStatusApproved {
		t.Fatalf("expected repo update to approved, got %s", repo.updatedStatus)
	}
}

func TestModerateIsIdempotentPerTarget(t *testing.T) {
	userID := uuid.New()
	repo := &stubUsersRepo{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Status: enums.UserStatusApproved},
	}}
	svc := newModerationService(t, repo)

	dto, err := svc.Approve(context.Background(), userID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if dto.Status != enums.UserStatusApproved {
		t.Fatalf("expected approved status, got %s", dto.Status)
	}
	if repo.updatedStatus != "" {
		t.Fatal("expected no status write for an already-approved user")
	}
}

func TestRejectAfterApprovalIsStateConflict(t *testing.T) {
	userID := uuid.New()
	repo := &stubUsersRepo{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Status: enums.UserStatusApproved},
	}}
	svc := newModerationService(t, repo)

	_, err := svc.Reject(context.Background(), userID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestModerateUnknownUserIsNotFound(t *testing.T) {
	svc := newModerationService(t, &stubUsersRepo{})
	_, err := svc.Approve(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListRejectsInvalidStatusFilter(t *testing.T) {
	svc := newModerationService(t, &stubUsersRepo{})
	bad := enums.UserStatus("frozen")
	_, err := svc.List(context.Background(), pagination.Params{Page: 1}, &bad)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
