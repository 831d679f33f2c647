package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := Do(context.Background(), fastPolicy(), "test", func(context.Context) (int, error) {
		calls++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := Do(context.Background(), fastPolicy(), "test", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", StatusError("test", 503)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Do(context.Background(), fastPolicy(), "test", func(context.Context) (int, error) {
		calls++
		return 0, eris.New("malformed response")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Do(context.Background(), fastPolicy(), "test", func(context.Context) (int, error) {
		calls++
		return 0, StatusError("test", 429)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "429")
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastPolicy(), "test", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, StatusError("test", 500)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestStatusError_Classification(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTransient(StatusError("x", 429)))
	assert.True(t, IsTransient(StatusError("x", 500)))
	assert.True(t, IsTransient(StatusError("x", 503)))
	assert.False(t, IsTransient(StatusError("x", 404)))
	assert.False(t, IsTransient(StatusError("x", 400)))
	assert.False(t, IsTransient(nil))
}

func TestIsTransient_OpenCircuitIsPermanent(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTransient(gobreaker.ErrOpenState))
	assert.False(t, IsTransient(eris.Wrap(gobreaker.ErrTooManyRequests, "wrapped")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}
