// Package handler holds the echo handlers of the gym API.  Handlers bind
// and validate the request DTO, call one service method under a request
// timeout and render the result; service errors are returned to echo and
// rendered by ErrorHandler.
package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/gym-management/internal/apperr"
	"github.com/iliyamo/gym-management/internal/middleware"
	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/repository"
	"github.com/iliyamo/gym-management/internal/service"
)

// requestTimeout bounds the database work of one request.
const requestTimeout = 5 * time.Second

// exportTimeout is used by the spreadsheet and PDF endpoints.
const exportTimeout = 30 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID extracts the user_id stored by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.UserIDKey).(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// actorOf returns the authenticated caller.
func actorOf(c echo.Context) (service.Actor, error) {
	id, err := getUserID(c)
	if err != nil || id == 0 {
		return service.Actor{}, apperr.Unauthorized("unauthorized")
	}
	role, _ := c.Get(middleware.RoleKey).(string)
	return service.Actor{UserID: id, Role: model.Role(role)}, nil
}

// bindValid binds the body into req and runs the installed validator.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("invalid body")
	}
	return c.Validate(req)
}

func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return id, nil
}

// pageOf reads page (1-based) and limit query parameters.
func pageOf(c echo.Context) (repository.Page, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	return repository.Page{Limit: limit, Offset: (page - 1) * limit}, page
}

func listResponse(items any, total int, p repository.Page, page int) echo.Map {
	return echo.Map{"items": items, "total": total, "page": page, "limit": p.Limit}
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c echo.Context, name string) (*time.Time, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, apperr.Validation(name + " must be YYYY-MM-DD")
	}
	return &t, nil
}

func queryUint(c echo.Context, name string) (*uint64, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, apperr.Validation("invalid " + name)
	}
	return &n, nil
}

// parseDate parses a required YYYY-MM-DD body field.
func parseDate(name, v string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(v))
	if err != nil {
		return t, apperr.Validation(name + " must be YYYY-MM-DD")
	}
	return t, nil
}

func parseOptDate(name string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := parseDate(name, *v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optDecimal(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
