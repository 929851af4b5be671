// Package security issues and checks the bearer token that guards the API's
// write endpoints. Only the bcrypt hash of a token is ever stored.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrMalformedHash is returned for a configured hash bcrypt cannot read.
var ErrMalformedHash = errors.New("api token hash is not a bcrypt hash")

func HashToken(tok string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(tok), bcrypt.DefaultCost)
	return string(b), err
}

func CheckToken(hash, tok string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(tok)) == nil
}

// ValidHash reports whether hash can be used with CheckToken.
func ValidHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return ErrMalformedHash
	}
	return nil
}

// NewToken returns n random bytes, URL-safe encoded.
func NewToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Bearer extracts the token from an Authorization header value.
func Bearer(header string) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
