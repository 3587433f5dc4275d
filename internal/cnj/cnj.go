// Package cnj validates, cleans and formats the 20-digit judicial case
// numbers (NNNNNNN-DD.YYYY.J.TR.OOOO) used as the primary case identifier.
package cnj

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Length is the number of digits in a CNJ number.
const Length = 20

var (
	ErrInvalid = errors.New("cnj: expected 20 digits")
	ErrFormat  = errors.New("cnj: not in NNNNNNN-DD.YYYY.J.TR.OOOO form")
)

var (
	bareDigits = regexp.MustCompile(`^\d{20}$`)
	formatted  = regexp.MustCompile(`^(\d{7})-(\d{2})\.(\d{4})\.(\d)\.(\d{2})\.(\d{4})$`)
)

// Mode selects between best-effort import cleaning and strict lookups.
type Mode string

const (
	ModeCorrection Mode = "correction"
	ModeFinal      Mode = "final"
)

// Number is a parsed CNJ number split into its segments.
type Number struct {
	Sequencial string `json:"sequencial"`
	Digito     string `json:"digito"`
	Ano        string `json:"ano"`
	Justica    string `json:"justica"`
	Tribunal   string `json:"tribunal"`
	Origem     string `json:"origem"`
}

// Digits returns the 20-digit join key.
func (n Number) Digits() string {
	return n.Sequencial + n.Digito + n.Ano + n.Justica + n.Tribunal + n.Origem
}

func (n Number) String() string {
	return fmt.Sprintf("%s-%s.%s.%s.%s.%s", n.Sequencial, n.Digito, n.Ano, n.Justica, n.Tribunal, n.Origem)
}

// Clean strips every non-digit character.
func Clean(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValid reports whether exactly 20 digits remain after cleaning.
func IsValid(value string) bool {
	return len(Clean(value)) == Length
}

// Format renders a CNJ number in its canonical punctuated form.
func Format(value string) (string, error) {
	digits := Clean(value)
	if len(digits) != Length {
		return "", fmt.Errorf("%w: got %d in %q", ErrInvalid, len(digits), value)
	}
	return split(digits).String(), nil
}

// Parse accepts either the punctuated form or 20 bare digits.
func Parse(value string) (Number, error) {
	trimmed := strings.TrimSpace(value)
	if bareDigits.MatchString(trimmed) {
		return split(trimmed), nil
	}
	m := formatted.FindStringSubmatch(trimmed)
	if m == nil {
		return Number{}, fmt.Errorf("%w: %q", ErrFormat, value)
	}
	return Number{Sequencial: m[1], Digito: m[2], Ano: m[3], Justica: m[4], Tribunal: m[5], Origem: m[6]}, nil
}

func split(digits string) Number {
	return Number{
		Sequencial: digits[0:7],
		Digito:     digits[7:9],
		Ano:        digits[9:13],
		Justica:    digits[13:14],
		Tribunal:   digits[14:16],
		Origem:     digits[16:20],
	}
}

// Result is the outcome of Validate.
type Result struct {
	Input     string `json:"input"`
	Valid     bool   `json:"valid"`
	Digits    string `json:"digits,omitempty"`
	Formatted string `json:"formatted,omitempty"`
	Corrected bool   `json:"corrected"`
	Message   string `json:"message,omitempty"`
}

// Validate checks value in the given mode. Correction mode keeps anything
// with 20 digits after cleaning and flags repaired punctuation; final mode
// only accepts 20 bare digits or the canonical punctuated form.
func Validate(value string, mode Mode) Result {
	result := Result{Input: value}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		result.Message = "número CNJ vazio"
		return result
	}

	digits := Clean(trimmed)
	if len(digits) != Length {
		result.Message = fmt.Sprintf("número CNJ deve ter 20 dígitos (encontrados %d)", len(digits))
		return result
	}

	canonical := split(digits).String()
	switch mode {
	case ModeFinal:
		if trimmed != digits && trimmed != canonical {
			result.Message = "número CNJ fora do formato NNNNNNN-DD.YYYY.J.TR.OOOO"
			return result
		}
	default:
		result.Corrected = trimmed != digits && trimmed != canonical
		if result.Corrected {
			result.Message = fmt.Sprintf("pontuação corrigida para %s", canonical)
		}
	}

	result.Valid = true
	result.Digits = digits
	result.Formatted = canonical
	return result
}

// ComputeCheckDigits returns the ISO 7064 mod 97-10 check digits for a
// number, ignoring whatever is currently in the DD position.
func ComputeCheckDigits(value string) (string, error) {
	digits := Clean(value)
	if len(digits) != Length {
		return "", fmt.Errorf("%w: got %d", ErrInvalid, len(digits))
	}
	base := digits[0:7] + digits[9:20] + "00"
	check := 98 - mod97(base)
	return fmt.Sprintf("%02d", check), nil
}

// CheckDigitValid reports whether the DD segment matches the computed digits.
func CheckDigitValid(value string) bool {
	digits := Clean(value)
	if len(digits) != Length {
		return false
	}
	return mod97(digits[0:7]+digits[9:20]+digits[7:9]) == 1
}

func mod97(digits string) int {
	rem := 0
	for _, r := range digits {
		rem = (rem*10 + int(r-'0')) % 97
	}
	return rem
}
