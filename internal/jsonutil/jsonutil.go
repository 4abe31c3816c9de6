// Package jsonutil extracts structured JSON from the free-form text a
// reasoning model returns. Models wrap JSON in markdown fences, prepend
// prose, or answer in plain English; every consumer of model output goes
// through this package so the fallback contract lives in one place.
package jsonutil

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON reports that no parseable JSON fragment of the requested shape
// was found in the text.
var ErrNoJSON = errors.New("jsonutil: no parseable JSON fragment")

// StripFences removes markdown code fences (``` and ```json) and surrounding
// whitespace from a model response.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// ExtractArray finds the first well-formed JSON array in s and unmarshals it
// into v. Returns ErrNoJSON when no candidate parses.
func ExtractArray(s string, v any) error {
	return extract(s, '[', ']', v)
}

// ExtractObject finds the first well-formed JSON object in s and unmarshals
// it into v. Returns ErrNoJSON when no candidate parses.
func ExtractObject(s string, v any) error {
	return extract(s, '{', '}', v)
}

func extract(s string, open, closing byte, v any) error {
	s = StripFences(s)
	for start := 0; start < len(s); start++ {
		if s[start] != open {
			continue
		}
		frag, ok := balanced(s[start:], open, closing)
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(frag), v); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}

// balanced returns the shortest prefix of s that is a brace/bracket-balanced
// fragment. The scan is string-literal aware so braces inside JSON strings
// do not affect nesting depth.
func balanced(s string, open, closing byte) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case closing:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
