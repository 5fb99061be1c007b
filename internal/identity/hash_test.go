package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIsStableAndKeyed(t *testing.T) {
	a, err := NewHasher("first-secret")
	require.NoError(t, err)
	b, err := NewHasher("second-secret")
	require.NoError(t, err)

	h1 := a.Hash("9001")
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, a.Hash("9001"))
	assert.NotEqual(t, h1, a.Hash("9002"))
	assert.NotEqual(t, h1, b.Hash("9001"))
}

func TestNewHasherValidatesSecret(t *testing.T) {
	_, err := NewHasher("")
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = NewHasher(strings.Repeat("k", 65))
	assert.Error(t, err)
}
