package comparison

import "github.com/kailas-cloud/itemmatch/internal/domain/comparison/match"

// filterByThreshold keeps candidates with similarity >= threshold.
// The oracle was asked to honour the threshold; it is not trusted to have done so.
func filterByThreshold(candidates []match.Candidate, threshold float64) []match.Candidate {
	kept := make([]match.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity() >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// assemble builds the result in oracle order. Repeated pairs pass through.
func assemble(candidates []match.Candidate) match.Result {
	return match.NewResult(candidates)
}
