package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("bad"), fiber.StatusBadRequest},
		{"unauthorized", NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{"not found", NewNotFoundError("Project"), fiber.StatusNotFound},
		{"conflict", NewConflictError("taken"), fiber.StatusConflict},
		{"upstream", NewUpstreamError("rawg", errors.New("503")), fiber.StatusBadGateway},
		{"internal", NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
		{"wrapped app error", fmt.Errorf("service: %w", NewNotFoundError("Task")), fiber.StatusNotFound},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func respond(t *testing.T, status int, err error) (int, ErrorResponse) {
	t.Helper()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return RespondWithError(c, status, err)
	})

	resp, testErr := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, testErr)
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestRespondWithError_DoesNotLeakInternalDetails(t *testing.T) {
	status, body := respond(t, fiber.StatusInternalServerError,
		NewInternalError(errors.New("pq: password authentication failed")))

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body.Error)
	assert.Equal(t, CodeInternal, body.Code)

	_, body = respond(t, fiber.StatusInternalServerError, errors.New("dial tcp 10.0.0.1:5432"))
	assert.Equal(t, "Internal server error", body.Error)
}

func TestRespondWithError_ClientErrors(t *testing.T) {
	status, body := respond(t, fiber.StatusConflict, NewConflictError("Game already in cart"))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, ErrorResponse{Error: "Game already in cart", Code: CodeConflict}, body)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: users.email")))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestNewProgressCount(t *testing.T) {
	assert.Equal(t, ProgressCount{}, NewProgressCount(0, 0))
	assert.Equal(t, 33, NewProgressCount(1, 3).Percent)
	assert.Equal(t, 67, NewProgressCount(2, 3).Percent)
	assert.Equal(t, 100, NewProgressCount(4, 4).Percent)
}
