package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/gym-management/internal/model"
)

// TokenRepo persists refresh tokens (single 'token_hash' column).
type TokenRepo struct{ db *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return r.store(ctx, r.db, userID, tokenHash, exp)
}

// StoreRefreshTx is StoreRefresh inside a rotation transaction.
func (r *TokenRepo) StoreRefreshTx(ctx context.Context, tx *sql.Tx, userID uint64, tokenHash string, exp time.Time) error {
	return r.store(ctx, tx, userID, tokenHash, exp)
}

func (r *TokenRepo) store(ctx context.Context, q querier, userID uint64, tokenHash string, exp time.Time) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// LockByHashTx reads a token row and locks it until the transaction ends,
// so two concurrent refreshes with the same token serialize on it.
func (r *TokenRepo) LockByHashTx(ctx context.Context, tx *sql.Tx, tokenHash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := tx.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, revoked, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	return t, err
}

// DeleteTx removes a token row.
func (r *TokenRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE id=?", id)
	return err
}

// RevokeByHash marks one of the user's tokens as revoked and reports
// whether a live token was found.
func (r *TokenRepo) RevokeByHash(ctx context.Context, userID uint64, tokenHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE token_hash=? AND user_id=? AND revoked=0",
		tokenHash, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE user_id=? AND revoked=0",
		userID)
	return err
}

// PurgeExpired deletes tokens past their expiry and returns how many went.
func (r *TokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
