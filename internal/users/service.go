package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storelane/storelane-backend/pkg/db/models"
	"github.com/storelane/storelane-backend/pkg/enums"
	pkgerrors "github.com/storelane/storelane-backend/pkg/errors"
	"github.com/storelane/storelane-backend/pkg/pagination"
)

// Service defines the admin moderation operations over registered users.
type Service interface {
	List(ctx context.Context, params pagination.Params, status *enums.UserStatus) (*UserList, error)
	Approve(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	Reject(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
}

type moderationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, params pagination.Params, status *enums.UserStatus) (*UserList, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.UserStatus) error
}

type service struct {
	repo moderationRepository
}

// NewService builds a user moderation service with the provided repository.
func NewService(repo moderationRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, status *enums.UserStatus) (*UserList, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user status filter")
	}
	list, err := s.repo.List(ctx, params, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return list, nil
}

func (s *service) Approve(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	return s.moderate(ctx, userID, enums.UserStatusApproved)
}

func (s *service) Reject(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	return s.moderate(ctx, userID, enums.UserStatusRejected)
}

func (s *service) moderate(ctx context.Context, userID uuid.UUID, next enums.UserStatus) (*UserDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user.Status == next {
		return FromModel(user), nil
	}
	if user.Status != enums.UserStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "user has already been moderated")
	}

	if err := s.repo.UpdateStatus(ctx, userID, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user status")
	}
	user.Status = next
	return FromModel(user), nil
}
