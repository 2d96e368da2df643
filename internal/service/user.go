package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/utils"
)

// UserService is the admin view of accounts plus the member's own profile.
type UserService struct {
	cfg      config.Config
	db       *sql.DB
	users    *repository.UserRepo
	tokens   *repository.TokenRepo
	profiles *repository.ProfileRepo
}

func NewUserService(cfg config.Config, db *sql.DB, users *repository.UserRepo, tokens *repository.TokenRepo, profiles *repository.ProfileRepo) *UserService {
	return &UserService{cfg: cfg, db: db, users: users, tokens: tokens, profiles: profiles}
}

// UserInput is the writable part of a user.  Password is only required on
// create; on update an empty password leaves it unchanged.
type UserInput struct {
	Email    string
	Name     string
	Phone    *string
	Password string
	Role     model.Role
	IsActive *bool
}

func (s *UserService) List(ctx context.Context, f repository.UserFilter) ([]model.User, int, error) {
	users, total, err := s.users.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal("list users failed", err)
	}
	return users, total, nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return u, notFoundOr(err, "User not found")
	}
	return u, nil
}

// Create adds an account with any role.
func (s *UserService) Create(ctx context.Context, in UserInput) (model.User, error) {
	if !in.Role.Valid() {
		return model.User{}, apperr.Validation("Invalid role")
	}
	if in.Password == "" {
		return model.User{}, apperr.Validation("Password is required")
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, apperr.Internal("hash password failed", err)
	}
	u := model.User{
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, apperr.Conflict("Email already exists")
		}
		return model.User{}, apperr.Internal("create user failed", err)
	}
	return s.Get(ctx, u.ID)
}

// Update edits an account.  Deactivating it also revokes its sessions.
func (s *UserService) Update(ctx context.Context, id uint64, in UserInput) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return u, notFoundOr(err, "User not found")
	}
	if in.Role != "" {
		if !in.Role.Valid() {
			return u, apperr.Validation("Invalid role")
		}
		u.Role = in.Role
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if n := strings.TrimSpace(in.Name); n != "" {
		u.Name = n
	}
	if in.Phone != nil {
		u.Phone = in.Phone
	}
	wasActive := u.IsActive
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if err := s.users.Update(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return u, apperr.Conflict("Email already exists")
		}
		return u, notFoundOr(err, "User not found")
	}
	if in.Password != "" {
		hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
		if err != nil {
			return u, apperr.Internal("hash password failed", err)
		}
		if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
			return u, notFoundOr(err, "User not found")
		}
	}
	if wasActive && !u.IsActive {
		if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
			return u, apperr.Internal("revoke tokens failed", err)
		}
	}
	return s.Get(ctx, id)
}

// Deactivate soft-deletes an account and revokes its refresh tokens.
func (s *UserService) Deactivate(ctx context.Context, id uint64) error {
	if err := s.users.Deactivate(ctx, id); err != nil {
		return notFoundOr(err, "User not found")
	}
	if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
		return apperr.Internal("revoke tokens failed", err)
	}
	return nil
}

// Profile returns the member profile; a user without one gets an empty
// profile rather than an error.
func (s *UserService) Profile(ctx context.Context, userID uint64) (model.MemberProfile, error) {
	p, err := s.profiles.GetMember(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MemberProfile{UserID: userID}, nil
	}
	if err != nil {
		return p, apperr.Internal("load profile failed", err)
	}
	return p, nil
}

// UpdateProfile replaces the member profile and, when given, the phone of
// the user row.
func (s *UserService) UpdateProfile(ctx context.Context, p model.MemberProfile, phone *string) (model.MemberProfile, error) {
	if phone != nil {
		u, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			return p, notFoundOr(err, "User not found")
		}
		u.Phone = phone
		if err := s.users.Update(ctx, &u); err != nil {
			return p, apperr.Internal("update user failed", err)
		}
	}
	if err := s.profiles.UpsertMember(ctx, p); err != nil {
		return p, apperr.Internal("save profile failed", err)
	}
	return s.Profile(ctx, p.UserID)
}
