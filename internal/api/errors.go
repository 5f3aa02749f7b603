package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/meshhub/hub/internal/apperr"
)

// mapServiceError maps the shared apperr taxonomy to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *apperr.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, apperr.ErrBadRequest) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, apperr.ErrUnauthorized) {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if errors.Is(err, apperr.ErrForbidden) {
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if errors.Is(err, apperr.ErrRateLimited) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}
	if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrAlreadyExists) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	slog.Error("unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
