// Package llmjson pulls structured data out of free-form model output.
// Models wrap JSON in prose and code fences; these helpers find the payload
// and report a ParseError when there is none.
package llmjson

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports model output that did not contain the expected shape.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm output: %s: %v", e.Reason, e.Err)
	}
	return "llm output: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\s*\n?(.*?)```")

// StripFences returns the body of the first fenced code block in s, or s
// unchanged when it has none.
func StripFences(s string) string {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// ExtractArray returns the text between the first '[' and the last ']'.
func ExtractArray(s string) (string, error) {
	body := StripFences(s)
	start := strings.IndexByte(body, '[')
	end := strings.LastIndexByte(body, ']')
	if start < 0 || end <= start {
		return "", &ParseError{Reason: "no JSON array found", Raw: s}
	}
	return body[start : end+1], nil
}

// DecodeArray locates a JSON array in s and decodes it into a slice of
// raw items, so each item can be validated on its own.
func DecodeArray(s string) ([]json.RawMessage, error) {
	arr, err := ExtractArray(s)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, &ParseError{Reason: "invalid JSON array", Raw: s, Err: err}
	}
	return items, nil
}

var (
	quotedPattern   = regexp.MustCompile(`"([^"\n]*)"`)
	numberedPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.+?)\s*$`)
	bulletPattern   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// ExtractList pulls up to n short strings out of s. It tries, in order, a
// JSON array of strings, double-quoted phrases, numbered lines and finally
// plain non-empty lines. Results are trimmed and de-duplicated
// case-insensitively.
func ExtractList(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	if arr, err := ExtractArray(s); err == nil {
		var items []string
		if json.Unmarshal([]byte(arr), &items) == nil {
			if out := dedupe(items, n); len(out) > 0 {
				return out
			}
		}
	}

	var quoted []string
	for _, m := range quotedPattern.FindAllStringSubmatch(s, -1) {
		quoted = append(quoted, m[1])
	}
	if out := dedupe(quoted, n); len(out) > 0 {
		return out
	}

	var numbered []string
	for _, m := range numberedPattern.FindAllStringSubmatch(s, -1) {
		numbered = append(numbered, m[1])
	}
	if out := dedupe(numbered, n); len(out) > 0 {
		return out
	}

	var lines []string
	for _, line := range strings.Split(StripFences(s), "\n") {
		lines = append(lines, bulletPattern.ReplaceAllString(line, ""))
	}
	return dedupe(lines, n)
}

// CleanLine strips list numbering, bullets and surrounding quotes from a
// single line of model output.
func CleanLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = bulletPattern.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), "\"'`")
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func dedupe(items []string, n int) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
		if len(out) == n {
			break
		}
	}
	return out
}
