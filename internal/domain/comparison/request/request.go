package request

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/kailas-cloud/itemmatch/internal/domain"
)

// Request is a validated comparison of two item lists.
type Request struct {
	items1    []string
	items2    []string
	threshold float64
}

// New validates comparison parameters. Both lists are required (nil means the
// field was absent) but may be empty. maxItems caps each list; 0 disables the cap.
// Items are kept verbatim: no trimming, no deduplication.
func New(items1, items2 []string, threshold float64, maxItems int) (Request, error) {
	if items1 == nil {
		return Request{}, fmt.Errorf("%w: items1 is required", domain.ErrInvalidInput)
	}
	if items2 == nil {
		return Request{}, fmt.Errorf("%w: items2 is required", domain.ErrInvalidInput)
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return Request{}, fmt.Errorf("%w: similarityThreshold must be between 0 and 1", domain.ErrInvalidInput)
	}
	if maxItems > 0 && (len(items1) > maxItems || len(items2) > maxItems) {
		return Request{}, fmt.Errorf("%w: at most %d items per list", domain.ErrInvalidInput, maxItems)
	}

	if err := checkUTF8("items1", items1); err != nil {
		return Request{}, err
	}
	if err := checkUTF8("items2", items2); err != nil {
		return Request{}, err
	}

	return Request{
		items1:    append([]string{}, items1...),
		items2:    append([]string{}, items2...),
		threshold: threshold,
	}, nil
}

// Items1 returns the first list in its original order.
func (r *Request) Items1() []string { return r.items1 }

// Items2 returns the second list in its original order.
func (r *Request) Items2() []string { return r.items2 }

// Threshold returns the minimum similarity a match must reach.
func (r *Request) Threshold() float64 { return r.threshold }

// Trivial reports whether no match can exist because a list is empty.
func (r *Request) Trivial() bool { return len(r.items1) == 0 || len(r.items2) == 0 }

// checkUTF8 rejects items that cannot survive a JSON round trip unchanged.
func checkUTF8(field string, items []string) error {
	for i, it := range items {
		if !utf8.ValidString(it) {
			return fmt.Errorf("%w: %s[%d] is not valid UTF-8", domain.ErrInvalidInput, field, i)
		}
	}
	return nil
}
