// Package webhook receives analysis engine callbacks.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
	ErrStaleTimestamp    = errors.New("webhook timestamp outside allowed window")
	ErrTenantMismatch    = errors.New("webhook tenant does not own job")
	ErrJobNotFound       = errors.New("webhook job not found")
)

// Verifier checks the HMAC signature and freshness of a delivery.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
	now     func() time.Time
}

func NewVerifier(secret string, maxSkew time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), maxSkew: maxSkew, now: time.Now}
}

// Sign returns the hex HMAC-SHA256 of "{timestamp}.{body}".
func Sign(secret, timestamp string, body []byte) string {
	return hex.EncodeToString(mac([]byte(secret), timestamp, body))
}

// Verify checks the signature first and the timestamp second, so an
// unsigned request learns nothing about the clock window.
func (v *Verifier) Verify(signature, timestamp string, body []byte) error {
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(got) == 0 {
		return ErrSignatureMismatch
	}
	if !hmac.Equal(got, mac(v.secret, timestamp, body)) {
		return ErrSignatureMismatch
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	skew := v.now().Sub(time.UnixMilli(ms))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return ErrStaleTimestamp
	}
	return nil
}

func mac(secret []byte, timestamp string, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(timestamp))
	h.Write([]byte{'.'})
	h.Write(body)
	return h.Sum(nil)
}
