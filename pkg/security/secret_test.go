package security

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomSecret(t *testing.T) {
	a, err := RandomSecret(DefaultSecretSize)
	require.NoError(t, err)
	b, err := RandomSecret(DefaultSecretSize)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	raw, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, DefaultSecretSize)
}

func TestRandomSecret_InvalidSize(t *testing.T) {
	_, err := RandomSecret(0)
	assert.Error(t, err)
}
