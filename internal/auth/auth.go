// Package auth implements the minimal HMAC-signed cookie check gating
// access to hidden or private gallery folders, per the external-
// collaborator share-link interface.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Verifier checks a request's share cookie against an HMAC secret.
type Verifier struct {
	secret []byte
	cookie string
}

// NewVerifier returns a Verifier reading cookieName and validating its value
// against secret.
func NewVerifier(secret []byte, cookieName string) *Verifier {
	return &Verifier{secret: secret, cookie: cookieName}
}

// Sign produces the cookie value authorizing access to relPath: the path
// followed by a ':' and the hex-encoded HMAC-SHA256 of the path under the
// verifier's secret.
func (v *Verifier) Sign(relPath string) string {
	return relPath + ":" + v.mac(relPath)
}

// Allow reports whether r carries a cookie authorizing access to relPath.
// A verifier with no configured secret allows everything, matching the
// "auth disabled" default when no share secret is configured.
func (v *Verifier) Allow(r *http.Request, relPath string) bool {
	if len(v.secret) == 0 {
		return true
	}
	c, err := r.Cookie(v.cookie)
	if err != nil {
		return false
	}
	path, sig, ok := strings.Cut(c.Value, ":")
	if !ok || path != relPath {
		return false
	}
	expected := v.mac(relPath)
	return hmac.Equal([]byte(sig), []byte(expected))
}

func (v *Verifier) mac(relPath string) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(relPath))
	return hex.EncodeToString(h.Sum(nil))
}
