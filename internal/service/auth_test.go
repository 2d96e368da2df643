package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/utils"
)

var (
	lockTokenSQL   = regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE")
	deleteTokenSQL = regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE id=?")
	insertTokenSQL = regexp.QuoteMeta("INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)")
	userByIDSQL    = regexp.QuoteMeta("FROM users WHERE id=? LIMIT 1")
	userByEmailSQL = regexp.QuoteMeta("FROM users WHERE email=? LIMIT 1")
)

var tokenCols = []string{"id", "user_id", "token_hash", "expires_at", "revoked", "created_at"}

var userCols = []string{"id", "email", "name", "phone", "password_hash", "role", "is_active", "created_at", "updated_at"}

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newAuthService(t *testing.T) (*AuthService, sqlmock.Sqlmock) {
	db, mock := newMock(t)
	cfg := config.Config{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	svc := NewAuthService(cfg, db, repository.NewUserRepo(db), repository.NewTokenRepo(db))
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	raw := "3f1c0b7d2a"
	hash := utils.HashRefreshRaw(raw)

	t.Run("rotates a live token", func(t *testing.T) {
		svc, mock := newAuthService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockTokenSQL).WithArgs(hash).WillReturnRows(
			sqlmock.NewRows(tokenCols).AddRow(5, 7, hash, testNow.Add(time.Hour), false, testNow.Add(-time.Hour)))
		mock.ExpectQuery(userByIDSQL).WithArgs(7).WillReturnRows(
			sqlmock.NewRows(userCols).AddRow(7, "ana@example.com", "Ana", nil, "x", "member", true, testNow, testNow))
		mock.ExpectExec(deleteTokenSQL).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insertTokenSQL).WithArgs(7, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(6, 1))
		mock.ExpectCommit()

		sess, err := svc.Refresh(ctx, raw)
		require.NoError(t, err)
		assert.NotEqual(t, raw, sess.Refresh.Raw)
		claims, err := utils.ParseAccessToken("test-secret", sess.Access.Token)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), claims.UserID)
		assert.Equal(t, "member", claims.Role)
	})

	t.Run("expired token is deleted and rejected", func(t *testing.T) {
		svc, mock := newAuthService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockTokenSQL).WithArgs(hash).WillReturnRows(
			sqlmock.NewRows(tokenCols).AddRow(5, 7, hash, testNow.Add(-time.Minute), false, testNow.AddDate(0, 0, -8)))
		mock.ExpectExec(deleteTokenSQL).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := svc.Refresh(ctx, raw)
		requireKind(t, err, apperr.KindUnauthorized, "Refresh token expired")
	})

	t.Run("unknown token fails every time", func(t *testing.T) {
		svc, mock := newAuthService(t)
		for i := 0; i < 2; i++ {
			mock.ExpectBegin()
			mock.ExpectQuery(lockTokenSQL).WithArgs(hash).WillReturnRows(sqlmock.NewRows(tokenCols))
			mock.ExpectRollback()
		}
		for i := 0; i < 2; i++ {
			_, err := svc.Refresh(ctx, raw)
			requireKind(t, err, apperr.KindUnauthorized, "Invalid refresh token")
		}
	})

	t.Run("revoked token", func(t *testing.T) {
		svc, mock := newAuthService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockTokenSQL).WithArgs(hash).WillReturnRows(
			sqlmock.NewRows(tokenCols).AddRow(5, 7, hash, testNow.Add(time.Hour), true, testNow))
		mock.ExpectRollback()

		_, err := svc.Refresh(ctx, raw)
		requireKind(t, err, apperr.KindUnauthorized, "Invalid refresh token")
	})

	t.Run("disabled account", func(t *testing.T) {
		svc, mock := newAuthService(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockTokenSQL).WithArgs(hash).WillReturnRows(
			sqlmock.NewRows(tokenCols).AddRow(5, 7, hash, testNow.Add(time.Hour), false, testNow))
		mock.ExpectQuery(userByIDSQL).WithArgs(7).WillReturnRows(
			sqlmock.NewRows(userCols).AddRow(7, "ana@example.com", "Ana", nil, "x", "member", false, testNow, testNow))
		mock.ExpectRollback()

		_, err := svc.Refresh(ctx, raw)
		requireKind(t, err, apperr.KindForbidden, "Account is disabled")
	})

	t.Run("blank token", func(t *testing.T) {
		svc, _ := newAuthService(t)
		_, err := svc.Refresh(ctx, "  ")
		requireKind(t, err, apperr.KindValidation, "")
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hash, err := utils.HashPassword("s3cret-pass", 4)
	require.NoError(t, err)

	t.Run("issues a pair", func(t *testing.T) {
		svc, mock := newAuthService(t)
		mock.ExpectQuery(userByEmailSQL).WithArgs("ana@example.com").WillReturnRows(
			sqlmock.NewRows(userCols).AddRow(7, "ana@example.com", "Ana", nil, hash, "admin", true, testNow, testNow))
		mock.ExpectExec(insertTokenSQL).WithArgs(7, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))

		sess, err := svc.Login(ctx, "ana@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Access.Token)
		assert.NotEmpty(t, sess.Refresh.Raw)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, mock := newAuthService(t)
		mock.ExpectQuery(userByEmailSQL).WithArgs("ana@example.com").WillReturnRows(
			sqlmock.NewRows(userCols).AddRow(7, "ana@example.com", "Ana", nil, hash, "admin", true, testNow, testNow))

		_, err := svc.Login(ctx, "ana@example.com", "nope")
		requireKind(t, err, apperr.KindUnauthorized, "Invalid email or password")
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, mock := newAuthService(t)
		mock.ExpectQuery(userByEmailSQL).WithArgs("who@example.com").WillReturnRows(sqlmock.NewRows(userCols))

		_, err := svc.Login(ctx, "who@example.com", "s3cret-pass")
		requireKind(t, err, apperr.KindUnauthorized, "Invalid email or password")
	})
}
