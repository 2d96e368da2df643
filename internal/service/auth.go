package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/utils"
)

// AuthService issues and rotates token pairs.
type AuthService struct {
	cfg    config.Config
	db     *sql.DB
	users  *repository.UserRepo
	tokens *repository.TokenRepo
	now    func() time.Time
}

func NewAuthService(cfg config.Config, db *sql.DB, users *repository.UserRepo, tokens *repository.TokenRepo) *AuthService {
	return &AuthService{cfg: cfg, db: db, users: users, tokens: tokens, now: time.Now}
}

// Session is the result of register, login and refresh.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// RegisterInput is a member self-registration.
type RegisterInput struct {
	Email    string
	Name     string
	Phone    *string
	Password string
}

// Register creates an active member and logs them in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return Session{}, apperr.Internal("hash password failed", err)
	}
	u := model.User{
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         model.RoleMember,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return Session{}, apperr.Conflict("Email already exists")
		}
		return Session{}, apperr.Internal("create user failed", err)
	}
	return s.issue(ctx, u)
}

// Login verifies the credentials and issues a new pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, apperr.Unauthorized("Invalid email or password")
		}
		return Session{}, apperr.Internal("query failed", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, apperr.Unauthorized("Invalid email or password")
	}
	if !u.IsActive {
		return Session{}, apperr.Forbidden("Account is disabled")
	}
	return s.issue(ctx, u)
}

func (s *AuthService) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, string(u.Role), s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, apperr.Internal("issue access failed", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, apperr.Internal("issue refresh failed", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, apperr.Internal("save refresh failed", err)
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

// Refresh rotates a refresh token.  The token row is locked for the whole
// rotation, so a token succeeds at most once: the winner deletes it and a
// concurrent or later caller finds nothing.  An expired token is deleted
// and rejected.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, apperr.Validation("refresh_token required")
	}
	hash := utils.HashRefreshRaw(raw)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, apperr.Internal("failed to start transaction", err)
	}
	committed := false
	defer rollback(tx, &committed)

	tok, err := s.tokens.LockByHashTx(ctx, tx, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, apperr.Unauthorized("Invalid refresh token")
		}
		return Session{}, apperr.Internal("query failed", err)
	}
	if tok.Revoked {
		return Session{}, apperr.Unauthorized("Invalid refresh token")
	}
	if s.now().UTC().After(tok.ExpiresAt) {
		if err := s.tokens.DeleteTx(ctx, tx, tok.ID); err != nil {
			return Session{}, apperr.Internal("delete token failed", err)
		}
		if err := tx.Commit(); err != nil {
			return Session{}, apperr.Internal("failed to commit transaction", err)
		}
		committed = true
		return Session{}, apperr.Unauthorized("Refresh token expired")
	}

	u, err := s.users.GetByIDTx(ctx, tx, tok.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, apperr.Unauthorized("Invalid refresh token")
		}
		return Session{}, apperr.Internal("load user failed", err)
	}
	if !u.IsActive {
		return Session{}, apperr.Forbidden("Account is disabled")
	}

	if err := s.tokens.DeleteTx(ctx, tx, tok.ID); err != nil {
		return Session{}, apperr.Internal("delete token failed", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, apperr.Internal("issue refresh failed", err)
	}
	if err := s.tokens.StoreRefreshTx(ctx, tx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, apperr.Internal("save refresh failed", err)
	}
	if err := tx.Commit(); err != nil {
		return Session{}, apperr.Internal("failed to commit transaction", err)
	}
	committed = true

	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, string(u.Role), s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, apperr.Internal("issue access failed", err)
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

// Logout revokes one refresh token of the user, or all of them when raw is
// empty.
func (s *AuthService) Logout(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return apperr.Internal("logout failed", err)
		}
		return nil
	}
	ok, err := s.tokens.RevokeByHash(ctx, userID, utils.HashRefreshRaw(raw))
	if err != nil {
		return apperr.Internal("logout failed", err)
	}
	if !ok {
		return apperr.Unauthorized("Invalid refresh token")
	}
	return nil
}

// ChangePassword replaces the password after checking the current one and
// signs the user out everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "User not found")
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return apperr.Validation("Current password is incorrect")
	}
	hash, err := utils.HashPassword(next, s.cfg.BcryptCost)
	if err != nil {
		return apperr.Internal("hash password failed", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return notFoundOr(err, "User not found")
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return apperr.Internal("revoke tokens failed", err)
	}
	return nil
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return u, notFoundOr(err, "User not found")
	}
	return u, nil
}

// PurgeExpiredTokens deletes refresh tokens past their expiry.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, apperr.Internal("purge tokens failed", err)
	}
	return n, nil
}
