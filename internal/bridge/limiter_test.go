package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimiter(t *testing.T) {
	l := NewClientLimiter(2, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	assert.ErrorIs(t, l.Acquire(ctx), ErrTooManyClients)

	l.Release()
	require.NoError(t, l.Acquire(ctx))

	st := l.Stats()
	assert.Equal(t, 2, st.MaxClients)
	assert.Equal(t, 2, st.ActiveClients)
	assert.Equal(t, int64(1), st.RejectedTotal)
}

func TestClientLimiterReleaseWithoutAcquire(t *testing.T) {
	l := NewClientLimiter(0, 0)
	l.Release()
	assert.Equal(t, 0, l.Stats().ActiveClients)
	assert.Equal(t, 1, l.Stats().MaxClients)
}
