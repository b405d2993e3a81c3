package health

import "context"

// StorePinger checks budget store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// OracleChecker checks oracle provider availability.
type OracleChecker interface {
	HealthCheck(ctx context.Context) error
}
