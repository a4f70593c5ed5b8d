package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	t.Run("starts closed", func(t *testing.T) {
		b := New("dedupe")
		assert.Equal(t, StateClosed, b.State())
		assert.Equal(t, "dedupe", b.Name())
		assert.True(t, b.Allow())
	})

	t.Run("opens on the threshold failure", func(t *testing.T) {
		b := New("dedupe", WithFailureThreshold(2))
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)

		useFallback, change = b.RecordFailure()
		assert.True(t, useFallback)
		assert.True(t, change.Opened)

		useFallback, change = b.RecordFailure()
		assert.True(t, useFallback)
		assert.False(t, change.Opened, "already open")
	})

	t.Run("success while closed clears failures", func(t *testing.T) {
		b := New("dedupe", WithFailureThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		assert.False(t, b.IsOpen())
	})

	t.Run("closes after consecutive successes", func(t *testing.T) {
		b := New("dedupe", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()

		usePrimary, change := b.RecordSuccess()
		assert.False(t, usePrimary)
		assert.False(t, change.Closed)

		b.RecordFailure()
		b.RecordSuccess()
		assert.True(t, b.IsOpen(), "a failure restarts the success run")

		usePrimary, change = b.RecordSuccess()
		assert.True(t, usePrimary)
		assert.True(t, change.Closed)
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("reset closes", func(t *testing.T) {
		b := New("dedupe", WithFailureThreshold(1))
		b.RecordFailure()
		b.Reset()
		assert.False(t, b.IsOpen())
	})
}

func TestBreaker_AllowProbesOncePerCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("cache", WithFailureThreshold(1), WithCooldown(time.Second), WithClock(func() time.Time { return now }))

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(time.Second)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "one probe per cooldown")

	now = now.Add(time.Second)
	assert.True(t, b.Allow())
}
