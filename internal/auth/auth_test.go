package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bantay-ai/bantay/internal/config"
)

func TestNewFromConfigLookup(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{APIKeys: []string{"crud-key", " dash-key "}}}
	a, err := NewFromConfig(cfg)
	require.NoError(t, err)
	require.True(t, a.Enabled())

	c1, ok := a.Lookup("crud-key")
	require.True(t, ok)
	c2, ok := a.Lookup("dash-key")
	require.True(t, ok)
	assert.Len(t, c1.KeyID, 8)
	assert.NotEqual(t, c1.KeyID, c2.KeyID)

	_, ok = a.Lookup("other")
	assert.False(t, ok)
	_, ok = a.Lookup("")
	assert.False(t, ok)
}

func TestNewFromConfigRejectsBadKeys(t *testing.T) {
	_, err := NewFromConfig(&config.Config{Auth: config.AuthConfig{APIKeys: []string{"a", "a"}}})
	require.ErrorContains(t, err, "duplicates")

	_, err = NewFromConfig(&config.Config{Auth: config.AuthConfig{APIKeys: []string{"  "}}})
	require.ErrorContains(t, err, "empty")
}

func TestDisabledWithoutKeys(t *testing.T) {
	a, err := NewFromConfig(&config.Config{})
	require.NoError(t, err)
	assert.False(t, a.Enabled())

	var nilAuth *Auth
	assert.False(t, nilAuth.Enabled())
	_, ok := nilAuth.Lookup("k")
	assert.False(t, ok)
}
