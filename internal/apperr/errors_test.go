package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientErrorDefaultsToBadRequest(t *testing.T) {
	err := Client(CodeEmptyCart, "cart is empty", 0)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, KindClient, err.Kind)
	assert.True(t, IsClient(err))
}

func TestWrappedErrorsKeepCode(t *testing.T) {
	wrapped := fmt.Errorf("create order: %w", InsufficientStock("v-1"))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInsufficientStock, e.Code)
	assert.Contains(t, e.Message, "v-1")
	assert.True(t, errors.Is(wrapped, Client(CodeInsufficientStock, "", 0)))
	assert.False(t, errors.Is(wrapped, Client(CodeEmptyCart, "", 0)))
}

func TestUnavailableIsRetryableServerError(t *testing.T) {
	err := Unavailable(context.DeadlineExceeded)
	assert.Equal(t, KindServer, err.Kind)
	assert.True(t, err.Retryable)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsClient(err))
}

func TestNotFoundIsServerKind(t *testing.T) {
	err := NotFound("order not found")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.True(t, HasCode(err, CodeNotFound))
}
