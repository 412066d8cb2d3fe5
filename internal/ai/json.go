package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/psychodetective/internal/domain"
)

var errNoJSONObject = errors.New("no JSON object in response")

// parseObject decodes raw provider text into a single JSON object. Models
// sometimes wrap the object in a markdown fence or a sentence, so the first
// balanced object is used when the whole text is not an object.
// Numbers are kept as json.Number so validators can tell integers apart.
func parseObject(raw string) (map[string]any, error) {
	content := extractJSON(strings.TrimSpace(raw))
	if content == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrSchemaViolation, errNoJSONObject)
	}

	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaViolation, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSchemaViolation, errNoJSONObject)
	}
	return obj, nil
}

// extractJSON returns the first JSON object found in content, or "".
func extractJSON(content string) string {
	if isJSONObject(content) {
		return content
	}

	start := strings.IndexByte(content, '{')
	for start != -1 {
		if end := matchBrace(content, start); end != -1 {
			if candidate := content[start:end]; isJSONObject(candidate) {
				return candidate
			}
		}
		next := strings.IndexByte(content[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}

	return ""
}

// matchBrace returns the index after the brace closing the one at start,
// ignoring braces inside string literals, or -1.
func matchBrace(content string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(content); i++ {
		c := content[i]
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
				return i + 1
			}
		}
	}
	return -1
}

func isJSONObject(s string) bool {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
