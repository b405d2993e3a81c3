package match

// Candidate is a proposed pairing of one item from each list.
type Candidate struct {
	item1      string
	item2      string
	similarity float64
}

// New creates a match candidate.
func New(item1, item2 string, similarity float64) Candidate {
	return Candidate{item1: item1, item2: item2, similarity: similarity}
}

// Item1 returns the value taken from the first list.
func (c *Candidate) Item1() string { return c.item1 }

// Item2 returns the value taken from the second list.
func (c *Candidate) Item2() string { return c.item2 }

// Similarity returns the oracle-reported score in [0,1].
func (c *Candidate) Similarity() float64 { return c.similarity }

// Result is the ordered outcome of one comparison.
type Result struct {
	matches []Candidate
}

// NewResult wraps candidates in oracle order. The slice is never nil so an
// empty result serialises as an empty list.
func NewResult(matches []Candidate) Result {
	if matches == nil {
		matches = []Candidate{}
	}
	return Result{matches: matches}
}

// Matches returns the candidates in oracle order.
func (r *Result) Matches() []Candidate {
	if r.matches == nil {
		return []Candidate{}
	}
	return r.matches
}

// Len returns the number of matches.
func (r *Result) Len() int { return len(r.matches) }
