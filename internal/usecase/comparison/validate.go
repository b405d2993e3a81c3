package comparison

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kailas-cloud/itemmatch/internal/domain"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/match"
	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/request"
)

// DropReason explains why a single oracle entry was discarded.
type DropReason string

// Entry drop reasons.
const (
	DropNotObject     DropReason = "not_object"
	DropBadItem       DropReason = "bad_item"
	DropBadSimilarity DropReason = "bad_similarity"
	DropOutOfRange    DropReason = "out_of_range"
	DropUnknownItem   DropReason = "unknown_item"
)

// Report summarises per-entry validation of one oracle payload.
type Report struct {
	Entries int
	Dropped map[DropReason]int
}

// DroppedTotal returns the number of discarded entries.
func (r Report) DroppedTotal() int {
	n := 0
	for _, v := range r.Dropped {
		n += v
	}
	return n
}

// ParseCandidates decodes the extracted payload and enforces its shape.
// A payload that does not parse is malformed; one without a "matches" list
// violates the schema. Individual bad entries are dropped, not fatal.
func ParseCandidates(payload string, req *request.Request) ([]match.Candidate, Report, error) {
	report := Report{Dropped: make(map[DropReason]int)}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &top); err != nil {
		return nil, report, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}

	raw, ok := top["matches"]
	if !ok {
		return nil, report, fmt.Errorf("%w: missing \"matches\" field", domain.ErrSchemaViolation)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, report, fmt.Errorf("%w: \"matches\" is not a list", domain.ErrSchemaViolation)
	}

	known1 := toSet(req.Items1())
	known2 := toSet(req.Items2())

	report.Entries = len(entries)
	candidates := make([]match.Candidate, 0, len(entries))
	for _, e := range entries {
		c, reason := parseEntry(e, known1, known2)
		if reason != "" {
			report.Dropped[reason]++
			continue
		}
		candidates = append(candidates, c)
	}

	return candidates, report, nil
}

func parseEntry(raw json.RawMessage, known1, known2 map[string]struct{}) (match.Candidate, DropReason) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return match.Candidate{}, DropNotObject
	}

	item1, ok1 := jsonString(fields["item1"])
	item2, ok2 := jsonString(fields["item2"])
	if !ok1 || !ok2 {
		return match.Candidate{}, DropBadItem
	}

	sim, ok := jsonNumber(fields["similarity"])
	if !ok {
		return match.Candidate{}, DropBadSimilarity
	}
	// Out-of-range scores are rejected rather than clamped.
	if sim < 0 || sim > 1 {
		return match.Candidate{}, DropOutOfRange
	}

	if _, ok := known1[item1]; !ok {
		return match.Candidate{}, DropUnknownItem
	}
	if _, ok := known2[item2]; !ok {
		return match.Candidate{}, DropUnknownItem
	}

	return match.New(item1, item2, sim), ""
}

// jsonString accepts only a JSON string literal (null is not a string).
func jsonString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// jsonNumber accepts only a finite JSON number literal; quoted numbers are rejected.
func jsonNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
