package lists

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeShapes(t *testing.T) {
	opts := DefaultOptions()
	cases := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, []string{}},
		{"semicolon", "Ana; Bruno ;Carla", []string{"Ana", "Bruno", "Carla"}},
		{"comma", "Ana,Bruno", []string{"Ana", "Bruno"}},
		{"mixed", "Ana; Bruno, Carla", []string{"Ana", "Bruno", "Carla"}},
		{"bracketed", "['Ana', 'Bruno']", []string{"Ana", "Bruno"}},
		{"quoted single", `"Ana Maria"`, []string{"Ana Maria"}},
		{"dedupe keeps first", "Ana; Bruno; Ana", []string{"Ana", "Bruno"}},
		{"drops empty", "Ana;; ;Bruno", []string{"Ana", "Bruno"}},
		{"slice", []string{" Ana ", "", "Ana", "Bruno"}, []string{"Ana", "Bruno"}},
		{"any slice", []any{"Ana", 7, nil}, []string{"Ana", "7"}},
		{"scalar", 42, []string{"42"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in, opts))
		})
	}
}

func TestNormalizeTogglesSteps(t *testing.T) {
	opts := Options{Separators: []rune{';'}}
	assert.Equal(t, []string{"Ana", " Ana", ""}, Normalize("Ana; Ana;", opts))

	opts.Transform = strings.ToUpper
	opts.FilterEmpty = true
	opts.Trim = true
	opts.Dedupe = true
	assert.Equal(t, []string{"ANA"}, Normalize("Ana; ana;", opts))
}

func TestSingleSeparatorSegmentCount(t *testing.T) {
	inputs := []string{
		"a;b;c",
		"a; b ; ;b",
		"x,y,,z, x",
		"solo",
		" ; ;",
	}
	for _, in := range inputs {
		sep := ";"
		if strings.Contains(in, ",") {
			sep = ","
		}
		want := map[string]bool{}
		var order []string
		for _, seg := range strings.Split(in, sep) {
			seg = strings.TrimSpace(seg)
			if seg == "" || want[seg] {
				continue
			}
			want[seg] = true
			order = append(order, seg)
		}
		got := Normalize(in, DefaultOptions())
		assert.Len(t, got, len(order), in)
	}
}

func TestParseJSONFirstKeepsEmbeddedSeparators(t *testing.T) {
	got := ParseJSONFirst(`["Silva, João", "Souza; Maria"]`, DefaultOptions())
	assert.Equal(t, []string{"Silva, João", "Souza; Maria"}, got)

	fallback := ParseJSONFirst(`[Silva, João]`, DefaultOptions())
	assert.Equal(t, []string{"Silva", "João"}, fallback)
}

func TestValidateReportsWithoutFailing(t *testing.T) {
	report := Validate([]string{"Ana", "", "Ana", "Bruno"})
	assert.False(t, report.Valid)
	assert.Equal(t, []int{1}, report.Empty)
	assert.Equal(t, []string{"Ana"}, report.Duplicates)
	assert.True(t, Validate([]string{"Ana"}).Valid)
}

func TestPrincipalMarkerRoundTrip(t *testing.T) {
	lawyers := []string{"Dr. Silva", "Dra. Souza"}
	marked := MarkPrincipal(lawyers)
	assert.Equal(t, "Dr. Silva (principal)", marked[0])
	assert.Equal(t, "Dr. Silva", lawyers[0])
	assert.Equal(t, marked, MarkPrincipal(marked))
	assert.Equal(t, lawyers, StripPrincipal(marked))
}
