// Package service holds the business rules of the gym API.  Services take
// the database pool and repositories at construction, return apperr
// errors with client-facing messages and never write HTTP responses.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/iliyamo/gym-management/internal/apperr"
)

// EventPublisher sends a domain event to a named queue.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, event any) error
}

// NopPublisher drops every event.  It is used when no broker is
// configured and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// publishTimeout bounds the best-effort publish done after a commit.
const publishTimeout = 5 * time.Second

// publishAsync sends event in the background, detached from the request
// context so a finished request does not cancel it.
func publishAsync(pub EventPublisher, logger *slog.Logger, queue string, event any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := pub.Publish(ctx, queue, event); err != nil {
			logger.Warn("event publish failed", "queue", queue, "err", err)
		}
	}()
}

// notFoundOr maps sql.ErrNoRows to a NotFound error with msg and anything
// else to an Internal error.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(msg)
	}
	return apperr.Internal(msg, err)
}

// rollback is deferred right after BeginTx; it is a no-op once the
// transaction committed.
func rollback(tx *sql.Tx, committed *bool) {
	if !*committed {
		_ = tx.Rollback()
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
