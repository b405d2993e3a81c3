package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"input", fmt.Errorf("threshold: %w", ErrInvalidInput), KindInvalidInput},
		{"unavailable", fmt.Errorf("dial: %w", ErrOracleUnavailable), KindOracleUnavailable},
		{"timeout", fmt.Errorf("wait: %w", ErrOracleTimeout), KindOracleTimeout},
		{"quota", ErrOracleQuotaExceeded, KindQuotaExceeded},
		{"malformed", fmt.Errorf("extract: %w", ErrMalformedResponse), KindMalformedResponse},
		{"schema", fmt.Errorf("validate: %w", ErrSchemaViolation), KindSchemaViolation},
		{"canceled", fmt.Errorf("oracle call: %w", context.Canceled), KindCanceled},
		{"unknown", errors.New("boom"), KindInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFail_WrapsAndUnwraps(t *testing.T) {
	err := Fail(fmt.Errorf("extract: %w", ErrMalformedResponse))

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if f.Kind != KindMalformedResponse {
		t.Errorf("Kind = %q, want %q", f.Kind, KindMalformedResponse)
	}
	if !errors.Is(err, ErrMalformedResponse) {
		t.Error("expected errors.Is to reach the sentinel")
	}
	if err.Error() != "malformed_response: extract: malformed oracle response" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestFail_NilAndIdempotent(t *testing.T) {
	if Fail(nil) != nil {
		t.Fatal("Fail(nil) must be nil")
	}

	first := Fail(ErrOracleTimeout)
	second := Fail(fmt.Errorf("outer: %w", first))
	if KindOf(second) != KindOracleTimeout {
		t.Errorf("KindOf() = %q, want %q", KindOf(second), KindOracleTimeout)
	}
}

func TestErrorKind_Retryable(t *testing.T) {
	retryable := map[ErrorKind]bool{
		KindOracleUnavailable: true,
		KindOracleTimeout:     true,
		KindInvalidInput:      false,
		KindQuotaExceeded:     false,
		KindMalformedResponse: false,
		KindSchemaViolation:   false,
		KindCanceled:          false,
		KindInternal:          false,
	}
	for k, want := range retryable {
		if got := k.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %v, want %v", k, got, want)
		}
	}
}

func TestOracleUsage_AddTokens(t *testing.T) {
	ctx, usage := NewContextWithUsage(context.Background())

	UsageFromContext(ctx).AddTokens(42)

	if !usage.Used || usage.TotalTokens != 42 {
		t.Errorf("usage = %+v, want Used=true TotalTokens=42", *usage)
	}

	// Nil collector is a no-op.
	UsageFromContext(context.Background()).AddTokens(1)
}
