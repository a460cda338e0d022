package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("HasCode matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeNotFound, "evidence not found"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("CodeOf defaults to internal for plain errors", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "bad decision")))
	})

	t.Run("Wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, CodeInternal, "failed to remove evidence")
		assert.True(t, Is(err, cause))
		assert.Contains(t, err.Error(), "connection reset")
		assert.Equal(t, "failed to remove evidence", err.Message)
	})
}
