package service

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/windfall/speakscore/internal/errors"
	"github.com/windfall/speakscore/internal/repository"
)

// UserService handles learner records.
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// CreateUserReq represents a create-user request.
type CreateUserReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateUser stores a new user unless one with the same email exists, in
// which case a conflict error is returned.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserReq) (*repository.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" {
		return nil, errors.Validation("Name and email are required")
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, errors.InternalWrap("failed to check existing user", err)
	}
	if existing != nil {
		return nil, errors.Conflict("User already exists")
	}

	user := &repository.User{Name: name, Email: email}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if stderrors.Is(err, repository.ErrAlreadyExists) {
			return nil, errors.Conflict("User already exists")
		}
		return nil, errors.InternalWrap("Failed to create user", err)
	}

	return user, nil
}
