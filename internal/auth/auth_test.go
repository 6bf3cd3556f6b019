package auth

import (
	"errors"
	"testing"
)

func TestStaticKeyValidate(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty secret denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched key denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching key accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticKey{Key: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	validator := FuncValidator(func(key string) error {
		if key != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad key, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok key, got %v", err)
	}
}

func TestVerifyStripsAPIKey(t *testing.T) {
	v := NewStaticVerifier("abc")
	msg := map[string]any{"api_key": "abc", "notes": "clicked start", "x": float64(4)}

	forward, err := v.Verify(msg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, ok := forward["api_key"]; ok {
		t.Fatal("api_key must never reach a subscriber")
	}
	if forward["notes"] != "clicked start" || forward["x"] != float64(4) {
		t.Fatalf("action fields must pass through untouched: %#v", forward)
	}
	// The caller's map stays intact for logging.
	if msg["api_key"] != "abc" {
		t.Fatal("verify must not mutate the input frame")
	}
}

func TestVerifyRejections(t *testing.T) {
	v := NewStaticVerifier("abc")
	tests := []struct {
		name string
		msg  map[string]any
	}{
		{name: "missing key", msg: map[string]any{"notes": "x"}},
		{name: "wrong key", msg: map[string]any{"api_key": "xyz"}},
		{name: "non-string key", msg: map[string]any{"api_key": float64(42)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(tc.msg); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestVerifierWithoutValidatorDeniesAll(t *testing.T) {
	var v Verifier
	if _, err := v.Verify(map[string]any{"api_key": "abc"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
