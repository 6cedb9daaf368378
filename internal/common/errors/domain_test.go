package commonerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithCause_KeepsSentinelIdentity(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("fetch bookings: %w", ErrBackendUnavailable.WithCause(cause))

	require.ErrorIs(t, err, ErrBackendUnavailable)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrAuthExpired)
}

func TestWithCause_ChainedCausesShareOrigin(t *testing.T) {
	first := ErrAuthExpired.WithCause(errors.New("401"))
	second := first.WithCause(errors.New("again"))

	require.ErrorIs(t, second, ErrAuthExpired)
	require.Equal(t, ErrAuthExpired.Code(), second.Code())
}

func TestAsDomainError(t *testing.T) {
	de, ok := AsDomainError(fmt.Errorf("wrapped: %w", ErrQueueFull))
	require.True(t, ok)
	require.Equal(t, "QUEUE_FULL", de.Code())
	require.Equal(t, http.StatusServiceUnavailable, de.HTTPStatus())
	require.Equal(t, CategoryInternal, de.Category())

	_, ok = AsDomainError(errors.New("plain"))
	require.False(t, ok)
}
