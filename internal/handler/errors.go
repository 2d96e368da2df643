package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-management/internal/apperr"
)

// statusFor maps an error to the HTTP status and the message sent to the
// client.  Messages of internal errors are never sent.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return he.Code, http.StatusText(he.Code)
		}
		return he.Code, fmt.Sprint(he.Message)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, "Internal server error"
	}
	switch ae.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, ae.Message
	case apperr.KindNotFound:
		return http.StatusNotFound, ae.Message
	case apperr.KindConflict:
		return http.StatusConflict, ae.Message
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized, ae.Message
	case apperr.KindForbidden:
		return http.StatusForbidden, ae.Message
	}
	return http.StatusInternalServerError, "Internal server error"
}

// ErrorHandler is installed as echo's HTTPErrorHandler.  Every error a
// handler returns is answered as {"error": message}; 5xx errors are logged
// with the request id.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"err", err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": msg})
		}
		if err != nil {
			logger.Warn("write error response failed", "err", err)
		}
	}
}
