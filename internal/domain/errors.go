package domain

import (
	"context"
	"errors"
)

var (
	// ErrInvalidInput signals a rejected comparison request (bad threshold, missing lists).
	ErrInvalidInput = errors.New("invalid input")
	// ErrOracleUnavailable signals a transport-level failure reaching the oracle.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrOracleTimeout signals that the oracle call exceeded its bounded wait.
	ErrOracleTimeout = errors.New("oracle timeout")
	// ErrOracleQuotaExceeded signals an exhausted oracle token budget.
	ErrOracleQuotaExceeded = errors.New("oracle quota exceeded")
	// ErrMalformedResponse signals oracle text without a parseable structured payload.
	ErrMalformedResponse = errors.New("malformed oracle response")
	// ErrSchemaViolation signals a parsed payload without the expected top-level shape.
	ErrSchemaViolation = errors.New("oracle response schema violation")
)

// ErrorKind classifies a failed comparison.
type ErrorKind string

// Failure kinds.
const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindOracleUnavailable ErrorKind = "oracle_unavailable"
	KindOracleTimeout     ErrorKind = "oracle_timeout"
	KindQuotaExceeded     ErrorKind = "quota_exceeded"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindSchemaViolation   ErrorKind = "schema_violation"
	KindCanceled          ErrorKind = "canceled"
	KindInternal          ErrorKind = "internal"
)

// Retryable reports whether an outer layer may retry a failure of this kind.
// Only transport-level failures qualify; a semantic failure would repeat.
func (k ErrorKind) Retryable() bool {
	return k == KindOracleUnavailable || k == KindOracleTimeout
}

// Failure is the error side of a comparison outcome.
// Callers switch on Kind or use errors.Is with the sentinels above.
type Failure struct {
	Kind ErrorKind
	Err  error
}

func (f *Failure) Error() string { return string(f.Kind) + ": " + f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

// Fail wraps err into a *Failure classified by KindOf. Nil stays nil,
// an existing *Failure is returned as is.
func Fail(err error) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	return &Failure{Kind: KindOf(err), Err: err}
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) ErrorKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrOracleTimeout):
		return KindOracleTimeout
	case errors.Is(err, ErrOracleUnavailable):
		return KindOracleUnavailable
	case errors.Is(err, ErrOracleQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrSchemaViolation):
		return KindSchemaViolation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
