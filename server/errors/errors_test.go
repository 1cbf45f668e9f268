package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"elimfilters/internal/domain/catalog"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unknown prefix", &catalog.UnknownPrefixRuleError{Family: catalog.FamilyCoolant, Duty: catalog.DutyLD}, http.StatusUnprocessableEntity},
		{"unresolved", fmt.Errorf("resolve: %w", catalog.ErrUnresolvedClassification), http.StatusUnprocessableEntity},
		{"short code", catalog.ErrInsufficientDigits, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("lookup: %w", catalog.ErrRecordNotFound), http.StatusNotFound},
		{"invalid duty", catalog.ErrInvalidDuty, http.StatusBadRequest},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromDomain(tt.err, "operation failed")
			assert.Equal(t, tt.code, appErr.StatusCode())
			assert.ErrorIs(t, appErr, tt.err)
		})
	}
}

func TestFromDomainKeepsAppError(t *testing.T) {
	original := NewConflictError("busy", nil)
	assert.Same(t, original, FromDomain(fmt.Errorf("wrapped: %w", original), "ignored"))
	assert.Nil(t, FromDomain(nil, "nothing"))
}

func TestInternalErrorHidesDetails(t *testing.T) {
	appErr := NewInternalError("failed to save", errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.NotContains(t, appErr.UserMessage(), "connection refused")
	assert.Contains(t, appErr.Error(), "connection refused")
}
