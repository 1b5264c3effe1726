package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// ErrUnauthorized is returned when a request carries no valid API key.
var ErrUnauthorized = errors.New("unauthorized")

// Keys verifies API keys presented by callers. The zero value accepts
// every request.
type Keys struct {
	keys [][]byte
}

// NewKeys builds a verifier. Blank entries are ignored.
func NewKeys(keys []string) Keys {
	var k Keys
	for _, s := range keys {
		if s = strings.TrimSpace(s); s != "" {
			k.keys = append(k.keys, []byte(s))
		}
	}
	return k
}

// Enabled reports whether any key is configured.
func (k Keys) Enabled() bool { return len(k.keys) > 0 }

// Verify checks an Authorization header value of the form "Bearer <key>".
// Every configured key is compared in constant time.
func (k Keys) Verify(authorization string) error {
	if !k.Enabled() {
		return nil
	}
	presented, ok := BearerToken(authorization)
	if !ok {
		return ErrUnauthorized
	}
	p := []byte(presented)
	match := 0
	for _, key := range k.keys {
		match |= subtle.ConstantTimeCompare(p, key)
	}
	if match != 1 {
		return ErrUnauthorized
	}
	return nil
}

// BearerToken extracts the token of a "Bearer" Authorization header.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}
