// Package auth provides per-frame shared-secret checks.
//
// It intentionally avoids policy decisions and storage concerns.
package auth

import (
	"crypto/subtle"
	"errors"

	"github.com/pagepilot/pagectl/internal/protocol"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an authentication key.
type Validator interface {
	Validate(key string) error
}

// StaticKey is a simple validator for a single shared secret. An empty
// configured secret denies everything.
type StaticKey struct {
	Key string
}

func (s StaticKey) Validate(key string) error {
	if s.Key == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Key), []byte(key)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(key string) error

func (f FuncValidator) Validate(key string) error {
	return f(key)
}

// Verifier gates inbound frames on their api_key field.
type Verifier struct {
	validator Validator
}

func NewVerifier(v Validator) Verifier {
	return Verifier{validator: v}
}

// NewStaticVerifier is the common single-secret construction.
func NewStaticVerifier(secret string) Verifier {
	return NewVerifier(StaticKey{Key: secret})
}

// Verify checks the frame's api_key and returns a forwardable copy with the
// key removed. The key never reaches a subscriber. A missing or non-string
// key is ErrUnauthorized like a mismatched one; the caller answers with
// protocol.RejectionFrame and keeps the connection open.
func (v Verifier) Verify(msg map[string]any) (map[string]any, error) {
	if v.validator == nil {
		return nil, ErrUnauthorized
	}
	key, ok := msg[protocol.FieldAPIKey].(string)
	if !ok {
		return nil, ErrUnauthorized
	}
	if err := v.validator.Validate(key); err != nil {
		return nil, err
	}
	forward := make(map[string]any, len(msg)-1)
	for k, val := range msg {
		if k == protocol.FieldAPIKey {
			continue
		}
		forward[k] = val
	}
	return forward, nil
}
