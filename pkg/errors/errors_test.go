package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorWrapsSentinel(t *testing.T) {
	err := Newf(ErrInvalidInput, "unknown content type %q", "pages")

	assert.True(t, Is(err, ErrInvalidInput))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, `invalid input: unknown content type "pages"`, err.Error())
}

func TestIsUnwrapsNestedErrors(t *testing.T) {
	inner := New(ErrMediumFailure, "disk full")
	outer := fmt.Errorf("writing collection: %w", inner)

	assert.True(t, Is(outer, ErrMediumFailure))
}
