// Package normalize turns raw provider text into Blueprint data.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/pkg/types"
)

var (
	leadingFence  = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\r?\n?[ \t]*```$")
)

// Normalize parses raw provider output into a Blueprint. It fails with an
// EmptyResponse error for blank input and an InvalidJSON error, carrying the
// original text as detail, when the payload does not parse.
//
// Required fields are not checked here; a missing "files" key yields a nil
// slice.
func Normalize(raw string) (*types.Blueprint, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, apperr.New(apperr.KindEmptyResponse, "provider returned an empty response")
	}

	text = StripFences(text)

	var bp types.Blueprint
	err := json.Unmarshal([]byte(text), &bp)
	if err == nil {
		return &bp, nil
	}

	// Chat backends sometimes wrap the object in prose.
	if obj := extractObject(text); obj != "" && obj != text {
		var retry types.Blueprint
		if json.Unmarshal([]byte(obj), &retry) == nil {
			return &retry, nil
		}
	}

	return nil, apperr.Wrap(err, apperr.KindInvalidJSON, "provider response is not valid JSON").WithDetail(raw)
}

// StripFences removes a leading ``` marker (with an optional language tag)
// and a trailing ``` marker when both are present. Interior fences are left
// untouched.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	lead := leadingFence.FindStringIndex(s)
	if lead == nil {
		return s
	}
	body := s[lead[1]:]
	trail := trailingFence.FindStringIndex(body)
	if trail == nil {
		return s
	}
	return strings.TrimSpace(body[:trail[0]])
}

// extractObject returns the span from the first "{" to the last "}".
func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
