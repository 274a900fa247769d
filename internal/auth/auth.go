package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bantay-ai/bantay/internal/config"
)

// Caller identifies an authenticated client without exposing its key.
type Caller struct {
	KeyID string // short sha256 fingerprint of the key
}

// Auth holds the accepted API keys. An Auth with no keys accepts every
// request.
type Auth struct {
	keys []string
}

// NewFromConfig builds an Auth instance from the loaded config.
func NewFromConfig(cfg *config.Config) (*Auth, error) {
	if cfg == nil {
		return &Auth{}, nil
	}
	seen := make(map[string]struct{}, len(cfg.Auth.APIKeys))
	keys := make([]string, 0, len(cfg.Auth.APIKeys))
	for i, key := range cfg.Auth.APIKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("auth.api_keys[%d] is empty", i)
		}
		if _, exists := seen[key]; exists {
			return nil, fmt.Errorf("auth.api_keys[%d] duplicates an earlier key", i)
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return &Auth{keys: keys}, nil
}

// Enabled reports whether requests must carry a key.
func (a *Auth) Enabled() bool {
	return a != nil && len(a.keys) > 0
}

// Lookup returns the caller for a given API key, if any.
func (a *Auth) Lookup(apiKey string) (Caller, bool) {
	if a == nil || apiKey == "" {
		return Caller{}, false
	}
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(apiKey)) == 1 {
			return Caller{KeyID: fingerprint(k)}, true
		}
	}
	return Caller{}, false
}

func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}
