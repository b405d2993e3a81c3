package itemmatch

import "github.com/kailas-cloud/itemmatch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput        = domain.ErrInvalidInput
	ErrOracleUnavailable   = domain.ErrOracleUnavailable
	ErrOracleTimeout       = domain.ErrOracleTimeout
	ErrOracleQuotaExceeded = domain.ErrOracleQuotaExceeded
	ErrMalformedResponse   = domain.ErrMalformedResponse
	ErrSchemaViolation     = domain.ErrSchemaViolation
)

// Kind returns the failure class of err: invalid_input, oracle_unavailable,
// oracle_timeout, quota_exceeded, malformed_response, schema_violation,
// canceled or internal.
func Kind(err error) string {
	return string(domain.KindOf(err))
}

// Retryable reports whether err is a transport failure a second attempt may fix.
func Retryable(err error) bool {
	return err != nil && domain.KindOf(err).Retryable()
}
