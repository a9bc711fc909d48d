// Package sanitize locates and repairs a JSON payload embedded in noisy
// model output. Model responses routinely wrap JSON in code fences,
// commentary, or near-JSON with trailing commas; this package turns that
// into something encoding/json will accept, or fails with a feedback
// message ready to paste into a retry prompt.
package sanitize

import (
	"regexp"
	"strings"
)

// LocateError is returned when no JSON payload can be found. Feedback is a
// ready-to-use correction instruction for a retry prompt.
type LocateError struct {
	Reason   string
	Feedback string
}

func (e *LocateError) Error() string { return e.Reason }

// ErrEmptyResponse and ErrNoJSONFound are the two locate failure modes.
// They are distinct values so callers can match with errors.Is.
var (
	ErrEmptyResponse = &LocateError{
		Reason:   "empty model response",
		Feedback: "Your previous response was empty. Please provide a valid JSON response.",
	}
	ErrNoJSONFound = &LocateError{
		Reason:   "no JSON found in model response",
		Feedback: "Your previous response did not contain valid JSON. Please respond with ONLY a JSON object or array, no explanatory text.",
	}
)

var (
	lineComment   = regexp.MustCompile(`//[^\n]*`)
	blockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingComma = regexp.MustCompile(`,(\s*[\]}])`)
	missingComma  = regexp.MustCompile(`"\s*\n\s*"`)
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	parenthetical = regexp.MustCompile(`\([^)]{0,100}\)`)
	doubledComma  = regexp.MustCompile(`"\s*,\s*,\s*"`)
	danglingQuote = regexp.MustCompile(`"\s+([,\]}])`)
	fencedBlock   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	openFence     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*)$")
)

// StripComments removes //-style and /* */ comments, trailing commas before
// closers, and control characters, and reinserts commas between adjacent
// string values split across lines.
func StripComments(raw string) string {
	raw = lineComment.ReplaceAllString(raw, "")
	raw = blockComment.ReplaceAllString(raw, "")
	raw = trailingComma.ReplaceAllString(raw, "$1")
	raw = missingComma.ReplaceAllString(raw, "\",\n\"")
	raw = controlChars.ReplaceAllString(raw, " ")
	return raw
}

// Repair fixes defects that survive StripComments: parenthetical asides the
// model slips inside values, doubled commas, and whitespace between a
// closing quote and the next delimiter.
func Repair(raw string) string {
	raw = StripComments(raw)
	raw = parenthetical.ReplaceAllString(raw, "")
	raw = doubledComma.ReplaceAllString(raw, `", "`)
	raw = danglingQuote.ReplaceAllString(raw, `"$1`)
	return raw
}

// Locate extracts the most likely JSON substring from a raw model response.
// Strategies, in order: strip comments, unwrap the first fenced code block,
// accept text already starting with a bracket, then scan for the first
// balanced {...} or [...] span. Returns ErrEmptyResponse or ErrNoJSONFound.
func Locate(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyResponse
	}

	raw = StripComments(raw)

	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	} else if strings.Contains(raw, "```") {
		// Unterminated fence; keep whatever follows the opener.
		if m := openFence.FindStringSubmatch(raw); m != nil {
			raw = m[1]
		}
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoJSONFound
	}

	if raw[0] == '{' || raw[0] == '[' {
		if span := balancedSpan(raw, 0); span != "" {
			return span, nil
		}
		return raw, nil
	}

	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		if span := balancedSpan(raw, i); span != "" {
			return span, nil
		}
	}

	return "", ErrNoJSONFound
}

// balancedSpan returns raw[start:end] where end closes the bracket opened
// at start, counting depth while skipping string literals so braces inside
// values do not terminate the span early. Returns "" if never balanced.
func balancedSpan(raw string, start int) string {
	open := raw[start]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]

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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}

	return ""
}
