package comparison

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/itemmatch/internal/domain/comparison/request"
)

const (
	list1Label = "List 1: "
	list2Label = "List 2: "
)

const responseShape = `{
  "matches": [
    {
      "item1": "item from list 1",
      "item2": "item from list 2",
      "similarity": 0.95
    }
  ]
}`

// BuildInstruction renders the oracle instruction for req.
// Both lists are embedded as single-line JSON arrays so every value,
// including empty strings and duplicates, can be recovered exactly.
func BuildInstruction(req *request.Request) (string, error) {
	list1, err := encodeList(req.Items1())
	if err != nil {
		return "", fmt.Errorf("encode items1: %w", err)
	}
	list2, err := encodeList(req.Items2())
	if err != nil {
		return "", fmt.Errorf("encode items2: %w", err)
	}

	var b strings.Builder
	b.WriteString("Compare the following two lists of items and find similar matches.\n")
	fmt.Fprintf(&b, "Only return matches with similarity of at least %s%%.\n", formatPercent(req.Threshold()))
	b.WriteString("Consider variations in spelling, formatting, and word order.\n")
	b.WriteString("Copy item values exactly as they appear in the lists, including whitespace and punctuation.\n")
	b.WriteString("Express similarity as a number between 0 and 1.\n\n")
	b.WriteString(list1Label + list1 + "\n")
	b.WriteString(list2Label + list2 + "\n\n")
	b.WriteString("Return the results in this exact JSON format:\n")
	b.WriteString(responseShape)
	b.WriteString("\n")
	return b.String(), nil
}

// DecodeLists recovers both item lists from an instruction built by BuildInstruction.
func DecodeLists(instruction string) (items1, items2 []string, err error) {
	sc := bufio.NewScanner(strings.NewReader(instruction))
	sc.Buffer(make([]byte, 0, 64*1024), len(instruction)+1)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, list1Label):
			if err := json.Unmarshal([]byte(line[len(list1Label):]), &items1); err != nil {
				return nil, nil, fmt.Errorf("decode list 1: %w", err)
			}
		case strings.HasPrefix(line, list2Label):
			if err := json.Unmarshal([]byte(line[len(list2Label):]), &items2); err != nil {
				return nil, nil, fmt.Errorf("decode list 2: %w", err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan instruction: %w", err)
	}
	if items1 == nil || items2 == nil {
		return nil, nil, fmt.Errorf("instruction does not contain both lists")
	}
	return items1, items2, nil
}

// encodeList marshals items as a compact JSON array without HTML escaping.
// Newlines inside items are escaped by the encoder, so the array stays on one line.
func encodeList(items []string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", err //nolint:wrapcheck // wrapped by caller
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// formatPercent renders a [0,1] threshold as a percentage with at most two decimals.
func formatPercent(threshold float64) string {
	return strconv.FormatFloat(math.Round(threshold*10000)/100, 'f', -1, 64)
}
