package comparison

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/itemmatch/internal/domain"
)

// ExtractObject isolates the first complete JSON object in free-form oracle text.
// Scanning starts at the first '{' and tracks nesting depth; braces inside
// double-quoted strings (with backslash escapes) do not count.
func ExtractObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", fmt.Errorf("no opening brace found: %w", domain.ErrMalformedResponse)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("no balanced closing brace found: %w", domain.ErrMalformedResponse)
}
