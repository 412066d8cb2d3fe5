// Package sanitizer normalizes user-submitted text and masks personal data
// before it is placed into prompts.
package sanitizer

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmpty is returned for empty or whitespace-only input.
	ErrEmpty = errors.New("text is empty")

	// ErrTooShort is returned when the trimmed input is below the minimum length.
	ErrTooShort = errors.New("text is too short")

	// ErrTooLong is returned when the input exceeds the maximum length.
	ErrTooLong = errors.New("text is too long")
)

// Default length limits in characters.
const (
	DefaultMinLength = 10
	DefaultMaxLength = 4000
)

type maskRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Order matters: card numbers must be masked before phone numbers.
var defaultRules = []maskRule{
	// Secrets users paste by accident
	{regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9_\-\.]{16,}`), "${1}[TOKEN]"},
	{regexp.MustCompile(`(?i)\b(api[_-]?key|token|password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{4,}['"]?`), "${1}=[SECRET]"},

	// Email addresses
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[EMAIL]"},

	// Payment card numbers, 13-19 digits with optional separators
	{regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`), "[CARD]"},

	// Phone numbers, international or local with separators
	{regexp.MustCompile(`\+?\d[\d\s\-()]{8,}\d`), "[PHONE]"},

	// Links to social profiles and messengers
	{regexp.MustCompile(`(?i)\b(?:https?://)?(?:t\.me|vk\.com|instagram\.com|wa\.me)/[A-Za-z0-9_./-]+`), "[LINK]"},
}

var whitespaceRun = regexp.MustCompile(`[ \t\f\v]+`)
var blankLines = regexp.MustCompile(`\n{3,}`)

// Sanitizer trims, validates and masks user text.
type Sanitizer struct {
	rules     []maskRule
	minLength int
	maxLength int
}

// New creates a Sanitizer with the default masking rules.
func New(minLength, maxLength int) *Sanitizer {
	if minLength < 0 {
		minLength = 0
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Sanitizer{
		rules:     defaultRules,
		minLength: minLength,
		maxLength: maxLength,
	}
}

// WithLimits returns a copy using different length limits.
func (s *Sanitizer) WithLimits(minLength, maxLength int) *Sanitizer {
	out := New(minLength, maxLength)
	out.rules = s.rules
	return out
}

// MaxLength returns the maximum accepted length in characters.
func (s *Sanitizer) MaxLength() int {
	return s.maxLength
}

// Sanitize normalizes whitespace, enforces the length limits and masks
// personal data. Lengths are counted in characters, not bytes.
func (s *Sanitizer) Sanitize(text string) (string, error) {
	text = normalize(text)
	if text == "" {
		return "", ErrEmpty
	}

	n := utf8.RuneCountInString(text)
	if n < s.minLength {
		return "", ErrTooShort
	}
	if n > s.maxLength {
		return "", ErrTooLong
	}

	return s.Mask(text), nil
}

// Mask replaces personal data and secrets with placeholders.
func (s *Sanitizer) Mask(text string) string {
	for _, r := range s.rules {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}

// IsEmpty checks if the text is empty or whitespace only.
func (s *Sanitizer) IsEmpty(text string) bool {
	return strings.TrimSpace(text) == ""
}

// IsTooLong checks if the text exceeds the maximum length.
func (s *Sanitizer) IsTooLong(text string) bool {
	return utf8.RuneCountInString(text) > s.maxLength
}

// Stats describes what sanitization changed.
type Stats struct {
	OriginalLength  int
	SanitizedLength int
	MaskedItems     int
}

// SanitizeWithStats performs sanitization and reports how many items were masked.
func (s *Sanitizer) SanitizeWithStats(text string) (string, Stats, error) {
	stats := Stats{OriginalLength: utf8.RuneCountInString(text)}

	out, err := s.Sanitize(text)
	if err != nil {
		return "", stats, err
	}

	current := normalize(text)
	for _, r := range s.rules {
		stats.MaskedItems += len(r.pattern.FindAllStringIndex(current, -1))
		current = r.pattern.ReplaceAllString(current, r.replacement)
	}
	stats.SanitizedLength = utf8.RuneCountInString(out)

	return out, stats, nil
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ToValidUTF8(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
