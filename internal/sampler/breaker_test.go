package sampler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errProbe = errors.New("probe failed")

func newTestBreaker(now *time.Time) *Breaker {
	b := NewBreaker(3, time.Minute)
	b.now = func() time.Time { return *now }
	return b
}

func TestBreakerTripsAfterThreshold(t *testing.T) {
	now := time.Unix(1000, 0)
	b := newTestBreaker(&now)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Call(func() error { return errProbe }), errProbe)
	}
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, int64(1), b.Trips())

	called := false
	err := b.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	now := time.Unix(1000, 0)
	b := newTestBreaker(&now)

	_ = b.Call(func() error { return errProbe })
	_ = b.Call(func() error { return errProbe })
	assert.NoError(t, b.Call(func() error { return nil }))
	_ = b.Call(func() error { return errProbe })
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpen(t *testing.T) {
	now := time.Unix(1000, 0)
	b := newTestBreaker(&now)
	for i := 0; i < 3; i++ {
		_ = b.Call(func() error { return errProbe })
	}

	t.Run("试探失败重新熔断", func(t *testing.T) {
		now = now.Add(time.Minute)
		assert.ErrorIs(t, b.Call(func() error { return errProbe }), errProbe)
		assert.Equal(t, StateOpen, b.State())
		assert.Equal(t, int64(2), b.Trips())
		assert.ErrorIs(t, b.Call(func() error { return nil }), ErrCircuitOpen)
	})

	t.Run("试探成功恢复", func(t *testing.T) {
		now = now.Add(time.Minute)
		assert.NoError(t, b.Call(func() error { return nil }))
		assert.Equal(t, StateClosed, b.State())
	})
}

func TestBreakerSingleProbe(t *testing.T) {
	now := time.Unix(1000, 0)
	b := newTestBreaker(&now)
	for i := 0; i < 3; i++ {
		_ = b.Call(func() error { return errProbe })
	}
	now = now.Add(time.Minute)

	err := b.Call(func() error {
		assert.Equal(t, StateHalfOpen, b.State())
		assert.ErrorIs(t, b.Call(func() error { return nil }), ErrCircuitOpen)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	now := time.Unix(1000, 0)
	b := newTestBreaker(&now)
	for i := 0; i < 3; i++ {
		_ = b.Call(func() error { return errProbe })
	}
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}
