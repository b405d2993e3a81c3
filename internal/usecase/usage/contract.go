package usage

import oracleuc "github.com/kailas-cloud/itemmatch/internal/usecase/oracle"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Windows() []oracleuc.BudgetWindow
}
