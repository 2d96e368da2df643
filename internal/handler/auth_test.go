package handler

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/config"
	"github.com/iliyamo/gym-management/internal/middleware"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/service"
)

func TestLogoutBody(t *testing.T) {
	revokeAll := regexp.QuoteMeta("UPDATE refresh_tokens SET revoked=1 WHERE user_id=? AND revoked=0")

	cases := []struct {
		name   string
		body   string
		expect func(sqlmock.Sqlmock)
		status int
	}{
		{
			name:   "malformed body revokes nothing",
			body:   `{"refresh_token": "abc"`,
			status: http.StatusBadRequest,
		},
		{
			name:   "wrong type revokes nothing",
			body:   `{"refresh_token": 42}`,
			status: http.StatusBadRequest,
		},
		{
			name: "empty body logs out everywhere",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(revokeAll).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 3))
			},
			status: http.StatusNoContent,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			if tc.expect != nil {
				tc.expect(mock)
			}

			auth := service.NewAuthService(config.Config{JWTSecret: "test-secret"}, db,
				repository.NewUserRepo(db), repository.NewTokenRepo(db))
			h := NewAuthHandler(auth)

			e := newEcho()
			e.POST("/logout", h.Logout, func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					c.Set(middleware.UserIDKey, uint64(7))
					c.Set(middleware.RoleKey, "member")
					return next(c)
				}
			})

			req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(tc.body))
			if tc.body != "" {
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusBadRequest {
				assert.JSONEq(t, `{"error":"invalid body"}`, rec.Body.String())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
