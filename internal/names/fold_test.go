package names

import "testing"

func TestFold(t *testing.T) {
	cases := map[string]string{
		"  JOSÉ  da Silva ": "jose da silva",
		"João Conceição":    "joao conceicao",
		"":                  "",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInitials(t *testing.T) {
	if got := Initials("Maria das Graças Souza"); got != "mgs" {
		t.Errorf("Initials = %q, want mgs", got)
	}
}

func TestCanonical(t *testing.T) {
	if got := Canonical("  Ana   Maria "); got != "Ana Maria" {
		t.Errorf("Canonical = %q", got)
	}
	// accents and case survive; only Fold drops them
	if got := Canonical("José  da SILVA"); got != "José da SILVA" {
		t.Errorf("Canonical = %q", got)
	}
	if Canonical("José") == Canonical("Jose") {
		t.Error("Canonical must keep accented spellings distinct")
	}
}
