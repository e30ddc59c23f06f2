// Package service holds the user capability used by the HTTP layer and the
// background email publisher.
package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/utils"
)

// UserRepository is the persistence surface the service needs;
// *repository.UserRepo satisfies it.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash string, role model.Role) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	MarkVerified(ctx context.Context, id uint64) error
	List(ctx context.Context, limit, offset int) ([]model.User, error)
}

type UserService struct {
	repo       UserRepository
	bcryptCost int
}

func NewUserService(repo UserRepository, bcryptCost int) *UserService {
	return &UserService{repo: repo, bcryptCost: bcryptCost}
}

// GetUserByEmail returns repository.ErrNotFound when no user matches.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint64) (model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// VerifyPassword compares a plaintext password with a stored hash.
func (s *UserService) VerifyPassword(plain, hash string) bool {
	return utils.VerifyPassword(hash, plain)
}

// CreateUser hashes the password and stores a new unverified USER.
// A duplicate email yields repository.ErrEmailExists.
func (s *UserService) CreateUser(ctx context.Context, email, password string) (model.User, error) {
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(ctx, email, hash, model.RoleUser)
}

// UpdatePassword replaces the user's password hash.
func (s *UserService) UpdatePassword(ctx context.Context, u model.User, newPassword string) error {
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, u.ID, hash)
}

// VerifyUserEmail marks the user verified and active.
func (s *UserService) VerifyUserEmail(ctx context.Context, u model.User) error {
	return s.repo.MarkVerified(ctx, u.ID)
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	return s.repo.List(ctx, limit, offset)
}
