package x1kernel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsWithAndWithoutInner(t *testing.T) {
	e := NewError("Alloc", ErrCodeOutOfMemory, "no free block large enough")
	assert.Contains(t, e.Error(), "Alloc")
	assert.Contains(t, e.Error(), "no free block large enough")

	inner := fmt.Errorf("boom")
	wrapped := WrapError("RegisterIRQ", ErrCodeAgain, "line busy", inner)
	assert.Contains(t, wrapped.Error(), "boom")
	assert.ErrorIs(t, wrapped, inner)
}

func TestIsCodeMatchesWrappedError(t *testing.T) {
	inner := NewError("Schedule", ErrCodeInvalidArgument, "bad priority")
	wrapped := fmt.Errorf("create thread: %w", inner)

	assert.True(t, IsCode(wrapped, ErrCodeInvalidArgument))
	assert.False(t, IsCode(wrapped, ErrCodeAgain))
	assert.False(t, IsCode(errors.New("unrelated"), ErrCodeAgain))
}

func TestFatalPanicsWithError(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Fatal did not panic")
		}
		var e *Error
		assert.ErrorAs(t, r.(error), &e)
	}()
	Fatal("Exit", "dead thread walking")
}
