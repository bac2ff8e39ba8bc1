// ABOUTME: HMAC-SHA1 signing and verification of raw message bodies
// ABOUTME: Responses are bound to requests by checking the echoed timestamp

package signer

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // HMAC-SHA1 is what the control server speaks
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Rejection reasons returned (wrapped in *ValidationError) by Validate.
var (
	ErrMissingSignature  = errors.New("missing signature")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrMalformedBody     = errors.New("malformed body")
	ErrTimestampMismatch = errors.New("timestamp mismatch")
)

// ValidationError explains why a message failed authentication.
type ValidationError struct {
	Reason error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// Authenticator signs and validates bodies with a shared secret.
type Authenticator struct {
	key []byte
}

// New returns an Authenticator keyed by secret. The secret is copied.
func New(secret []byte) *Authenticator {
	return &Authenticator{key: bytes.Clone(secret)}
}

// Sign returns the lowercase hex HMAC-SHA1 of body.
func (a *Authenticator) Sign(body []byte) string {
	mac := hmac.New(sha1.New, a.key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether body carries signature and echoes timestamp.
func (a *Authenticator) Verify(body []byte, timestamp int64, signature string) bool {
	return a.Validate(body, timestamp, signature) == nil
}

// Validate checks signature against body, then checks that the body's
// timestamp field equals timestamp. It returns nil or a *ValidationError.
func (a *Authenticator) Validate(body []byte, timestamp int64, signature string) error {
	if signature == "" {
		return &ValidationError{Reason: ErrMissingSignature}
	}
	if !hmac.Equal([]byte(a.Sign(body)), []byte(signature)) {
		return &ValidationError{Reason: ErrSignatureMismatch}
	}

	echoed, err := bodyTimestamp(body)
	if err != nil {
		return &ValidationError{Reason: ErrMalformedBody, Detail: err.Error()}
	}
	if !echoed.matches(timestamp) {
		return &ValidationError{
			Reason: ErrTimestampMismatch,
			Detail: fmt.Sprintf("sent %d, got %s", timestamp, echoed),
		}
	}
	return nil
}

type jsonTimestamp json.Number

func (t jsonTimestamp) matches(want int64) bool {
	n := json.Number(t)
	if i, err := n.Int64(); err == nil {
		return i == want
	}
	// The server may encode whole milliseconds as a float.
	f, err := n.Float64()
	return err == nil && f == float64(want)
}

func bodyTimestamp(body []byte) (jsonTimestamp, error) {
	var env struct {
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", err
	}
	raw := bytes.TrimSpace(env.Timestamp)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("no numeric timestamp field")
	}
	return jsonTimestamp(raw), nil
}
