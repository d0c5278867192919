package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// HeaderAPIKey carries the admin API key.
const HeaderAPIKey = "X-API-Key"

// HashAPIKey returns the hex HMAC-SHA256 of key under pepper, the form in
// which admin keys are configured.
func HashAPIKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// APIKeyGuard rejects admin requests that do not carry the configured key.
type APIKeyGuard struct {
	hash   []byte
	pepper []byte
}

// NewAPIKeyGuard creates a guard for a hex HMAC-SHA256 key hash.
func NewAPIKeyGuard(hexHash string, pepper []byte) (*APIKeyGuard, error) {
	hash, err := hex.DecodeString(hexHash)
	if err != nil {
		return nil, errors.Wrap(err, "decode key hash")
	}
	if len(hash) != sha256.Size {
		return nil, errors.Errorf("key hash must be %d bytes, got %d", sha256.Size, len(hash))
	}
	return &APIKeyGuard{hash: hash, pepper: pepper}, nil
}

// Middleware answers 401 unless the request key hashes to the configured one.
func (g *APIKeyGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mac := hmac.New(sha256.New, g.pepper)
		mac.Write([]byte(r.Header.Get(HeaderAPIKey)))
		if subtle.ConstantTimeCompare(mac.Sum(nil), g.hash) != 1 {
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
