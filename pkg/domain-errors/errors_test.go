package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("wrapped coded error keeps its code through fmt wrapping", func(t *testing.T) {
		base := New(CodeExpired, "receipt request expired")
		err := fmt.Errorf("approve: %w", base)

		assert.True(t, HasCode(err, CodeExpired))
		assert.Equal(t, CodeExpired, CodeOf(err))
	})

	t.Run("uncoded errors are internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeNotFound))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("wrap exposes cause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeInternal, "failed to load receipt")

		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load receipt: connection reset", err.Error())
	})

	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "receipt not found")
		outer := Wrap(inner, CodeInternal, "failed to load receipt")
		assert.Equal(t, CodeInternal, CodeOf(outer))
	})
}
