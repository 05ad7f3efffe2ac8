package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidTransitionCarriesStates(t *testing.T) {
	err := NewInvalidTransition("reported", "resolved")

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_TRANSITION", domainErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, domainErr.HTTPStatus)
	assert.Equal(t, "reported", domainErr.Details["from"])
	assert.Equal(t, "resolved", domainErr.Details["to"])
}

func TestIsCode(t *testing.T) {
	err := NewConflict("busy", nil)
	assert.True(t, IsCode(err, "CONFLICT"))
	assert.False(t, IsCode(err, "NOT_FOUND"))
	assert.False(t, IsCode(errors.New("plain"), "CONFLICT"))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsCode(wrapped, "CONFLICT"))
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("db gone")
	domainErr := ToDomainError(cause)

	assert.Equal(t, "INTERNAL_ERROR", domainErr.Code)
	assert.Equal(t, http.StatusInternalServerError, domainErr.HTTPStatus)
	assert.ErrorIs(t, domainErr, cause)
}

func TestToDomainErrorPassesThrough(t *testing.T) {
	err := NewNotFound("issue", map[string]any{"id": "abc"})
	domainErr := ToDomainError(err)

	assert.Equal(t, "NOT_FOUND", domainErr.Code)
	assert.Equal(t, "issue not found", domainErr.Message)
}
