package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "not found", err: NotFound("Schedule not found"), want: KindNotFound},
		{name: "wrapped conflict", err: fmt.Errorf("enroll: %w", Conflict("User is already enrolled")), want: KindConflict},
		{name: "plain error", err: errors.New("boom"), want: KindInternal},
		{name: "internal with cause", err: Internal("load schedule", sql.ErrConnDone), want: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrapAndMessage(t *testing.T) {
	err := Wrap(KindValidation, "invalid voucher", sql.ErrNoRows)

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, "invalid voucher", MessageOf(fmt.Errorf("ctx: %w", err)))
	assert.Equal(t, "", MessageOf(errors.New("x")))
	assert.True(t, Is(err, KindValidation))
	assert.False(t, Is(nil, KindValidation))
	assert.Equal(t, "validation", KindValidation.String())
}
