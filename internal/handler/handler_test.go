package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/middleware"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return e
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", apperr.Validation("Class is full"), http.StatusBadRequest, "Class is full"},
		{"not found", apperr.NotFound("Schedule not found"), http.StatusNotFound, "Schedule not found"},
		{"conflict", apperr.Conflict("User is already enrolled"), http.StatusConflict, "User is already enrolled"},
		{"unauthorized", apperr.Unauthorized("Invalid refresh token"), http.StatusUnauthorized, "Invalid refresh token"},
		{"forbidden", apperr.Forbidden("Not your class"), http.StatusForbidden, "Not your class"},
		{"internal hides cause", apperr.Internal("create order failed", errors.New("deadlock")), http.StatusInternalServerError, "Internal server error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
		{"echo 404", echo.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"echo 405", echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "Method Not Allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := statusFor(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, msg)
		})
	}
}

func TestErrorHandlerRendersJSON(t *testing.T) {
	e := newEcho()
	e.GET("/boom", func(c echo.Context) error {
		return apperr.Internal("load user failed", errors.New("dial tcp: refused"))
	})
	e.GET("/missing", func(c echo.Context) error {
		return apperr.NotFound("Voucher not found")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Voucher not found"}`, rec.Body.String())
}

func TestValidatorMessages(t *testing.T) {
	cases := []struct {
		name string
		body string
		msg  string
	}{
		{"empty cart", `{"shipping_address":{"full_name":"A","phone":"1","address":"x","city":"Hanoi"}}`, "items is required"},
		{"zero quantity", `{"items":[{"product_id":3,"quantity":0}],"shipping_address":{"full_name":"A","phone":"1","address":"x","city":"Hanoi"}}`, "quantity is required"},
		{"missing city", `{"items":[{"product_id":3,"quantity":1}],"shipping_address":{"full_name":"A","phone":"1","address":"x"}}`, "city is required"},
		{"long payment method", `{"items":[{"product_id":3,"quantity":1}],"shipping_address":{"full_name":"A","phone":"1","address":"x","city":"Hanoi"},"payment_method":"` + strings.Repeat("x", 31) + `"}`, "payment_method must be at most 30 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEcho()
			e.POST("/checkout", func(c echo.Context) error {
				var req checkoutReq
				if err := bindValid(c, &req); err != nil {
					return err
				}
				return c.NoContent(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"`+tc.msg+`"}`, rec.Body.String())
		})
	}
}

func TestPageOf(t *testing.T) {
	cases := []struct {
		query         string
		limit, offset int
		page          int
	}{
		{"", 20, 0, 1},
		{"?page=3&limit=10", 10, 20, 3},
		{"?page=0&limit=-5", 20, 0, 1},
		{"?limit=1000", 100, 0, 1},
		{"?page=abc", 20, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil), httptest.NewRecorder())
			p, page := pageOf(c)
			assert.Equal(t, tc.limit, p.Limit)
			assert.Equal(t, tc.offset, p.Offset)
			assert.Equal(t, tc.page, page)
		})
	}
}

func TestActorOf(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, err := actorOf(c)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	c.Set(middleware.UserIDKey, uint64(7))
	c.Set(middleware.RoleKey, "trainer")
	actor, err := actorOf(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), actor.UserID)
	assert.Equal(t, "trainer", string(actor.Role))
}

func TestQueryParsers(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/?from=2025-03-01&to=03/31/2025&user_id=12", nil), httptest.NewRecorder())

	from, err := queryDate(c, "from")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", from.Format("2006-01-02"))

	_, err = queryDate(c, "to")
	assert.Equal(t, "to must be YYYY-MM-DD", apperr.MessageOf(err))

	id, err := queryUint(c, "user_id")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), *id)

	missing, err := queryUint(c, "trainer_id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
