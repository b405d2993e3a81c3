package comparison

import (
	"context"

	"github.com/kailas-cloud/itemmatch/internal/domain"
)

// Oracle scores item similarity from a natural-language instruction.
type Oracle interface {
	Complete(ctx context.Context, instruction string) (domain.Completion, error)
}
