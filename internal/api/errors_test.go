package api

import (
	"fmt"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/meshhub/hub/internal/apperr"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "validation error maps to 400",
			err:        apperr.NewValidationError("name", "missing field"),
			expectCode: http.StatusBadRequest,
			expectMsg:  "missing field",
		},
		{
			name:       "bad request maps to 400",
			err:        fmt.Errorf("wrapped: %w", apperr.ErrBadRequest),
			expectCode: http.StatusBadRequest,
		},
		{
			name:       "not found maps to 404",
			err:        fmt.Errorf("wrapped: %w", apperr.ErrNotFound),
			expectCode: http.StatusNotFound,
			expectMsg:  "resource not found",
		},
		{
			name:       "unauthorized maps to 401",
			err:        apperr.ErrUnauthorized,
			expectCode: http.StatusUnauthorized,
		},
		{
			name:       "forbidden maps to 403",
			err:        apperr.ErrForbidden,
			expectCode: http.StatusForbidden,
		},
		{
			name:       "rate limited maps to 429",
			err:        apperr.ErrRateLimited,
			expectCode: http.StatusTooManyRequests,
		},
		{
			name:       "conflict maps to 409",
			err:        fmt.Errorf("wrapped: %w", apperr.ErrConflict),
			expectCode: http.StatusConflict,
		},
		{
			name:       "already exists maps to 409",
			err:        apperr.ErrAlreadyExists,
			expectCode: http.StatusConflict,
		},
		{
			name:       "unknown error maps to 500",
			err:        fmt.Errorf("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.IsType(t, &echo.HTTPError{}, he)
			assert.Equal(t, tt.expectCode, he.Code)
			if tt.expectMsg != "" {
				assert.Contains(t, he.Error(), tt.expectMsg)
			}
		})
	}
}
