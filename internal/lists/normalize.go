// Package lists turns spreadsheet cells holding several names (witnesses,
// lawyers) into clean, ordered string lists.
package lists

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PrincipalMarker is appended to the first lawyer for display only.
const PrincipalMarker = " (principal)"

// Options controls each normalization step.
type Options struct {
	Separators  []rune
	Trim        bool
	Dedupe      bool
	FilterEmpty bool
	Transform   func(string) string
}

// DefaultOptions splits on ';' and ',' and enables every step.
func DefaultOptions() Options {
	return Options{
		Separators:  []rune{';', ','},
		Trim:        true,
		Dedupe:      true,
		FilterEmpty: true,
	}
}

// Normalize converts an arbitrary cell value into a list of strings.
func Normalize(value any, opts Options) []string {
	var raw []string
	switch v := value.(type) {
	case nil:
		return []string{}
	case []string:
		raw = append(raw, v...)
	case []any:
		for _, item := range v {
			if item == nil {
				raw = append(raw, "")
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = splitCell(v, opts.Separators)
	default:
		raw = splitCell(fmt.Sprint(v), opts.Separators)
	}
	return clean(raw, opts)
}

// ParseJSONFirst tries a strict JSON array parse before falling back to
// delimiter splitting, since quoted JSON elements may contain separators.
func ParseJSONFirst(value any, opts Options) []string {
	if s, ok := value.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			var items []any
			if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
				return Normalize(items, opts)
			}
		}
	}
	return Normalize(value, opts)
}

func splitCell(cell string, separators []rune) []string {
	s := stripOuter(strings.TrimSpace(cell))
	if s == "" {
		return nil
	}
	if len(separators) == 0 || !strings.ContainsAny(s, string(separators)) {
		return []string{s}
	}
	var parts []string
	start := 0
	for i, r := range s {
		if isSeparator(r, separators) {
			parts = append(parts, s[start:i])
			start = i + len(string(r))
		}
	}
	return append(parts, s[start:])
}

func isSeparator(r rune, separators []rune) bool {
	for _, sep := range separators {
		if r == sep {
			return true
		}
	}
	return false
}

func stripOuter(s string) string {
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return trimQuotes(s)
}

const quoteChars = "\"'“”‘’"

func trimQuotes(s string) string {
	return strings.Trim(s, quoteChars)
}

func clean(raw []string, opts Options) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		if opts.Trim {
			item = strings.TrimSpace(item)
		}
		item = trimQuotes(item)
		if opts.Trim {
			item = strings.TrimSpace(item)
		}
		if opts.Transform != nil {
			item = opts.Transform(item)
		}
		if opts.FilterEmpty && item == "" {
			continue
		}
		if opts.Dedupe {
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}

// Report lists problems found by Validate.
type Report struct {
	Valid      bool     `json:"valid"`
	Empty      []int    `json:"empty,omitempty"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// Validate reports empty and duplicate entries without modifying items.
func Validate(items []string) Report {
	report := Report{}
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		key := strings.TrimSpace(item)
		if key == "" {
			report.Empty = append(report.Empty, i)
			continue
		}
		if seen[key] {
			report.Duplicates = append(report.Duplicates, key)
			continue
		}
		seen[key] = true
	}
	report.Valid = len(report.Empty) == 0 && len(report.Duplicates) == 0
	return report
}

// MarkPrincipal returns a copy with the first entry tagged for display.
// The result must not be persisted or compared against other lists.
func MarkPrincipal(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	if len(out) > 0 && !strings.HasSuffix(out[0], PrincipalMarker) {
		out[0] += PrincipalMarker
	}
	return out
}

// StripPrincipal removes display markers added by MarkPrincipal.
func StripPrincipal(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = strings.TrimSpace(strings.TrimSuffix(item, PrincipalMarker))
	}
	return out
}

// Join is the storage form of a list.
func Join(items []string) string {
	return strings.Join(items, "; ")
}
