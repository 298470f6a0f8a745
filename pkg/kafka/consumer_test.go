package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Slug string `json:"slug"`
		N    int    `json:"n"`
	}

	got, err := DecodeJSON[payload]([]byte(`{"slug":"post","n":3}`))
	require.NoError(t, err)
	assert.Equal(t, payload{Slug: "post", N: 3}, got)

	_, err = DecodeJSON[payload]([]byte(`{broken`))
	assert.Error(t, err)
}
