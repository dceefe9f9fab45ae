package encoding

import (
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

// garble reinterprets a string's raw bytes as Latin-1, reproducing the way
// undeclared charsets get mangled in transit.
func garble(s string) string {
	var b strings.Builder
	for _, c := range []byte(s) {
		b.WriteRune(rune(c))
	}
	return b.String()
}

func TestRepairUTF8ReadAsLatin1(t *testing.T) {
	want := "Радио Шансон"
	got := Repair(garble(want))
	if got != want {
		t.Errorf("Repair() = %q, want %q", got, want)
	}
}

func TestRepairCP1251ReadAsLatin1(t *testing.T) {
	want := "Радио Шансон - лучшие песни для вас"
	raw, err := charmap.Windows1251.NewEncoder().Bytes([]byte(want))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	got := Repair(garble(string(raw)))
	if got != want {
		t.Errorf("Repair() = %q, want %q", got, want)
	}
}

func TestRepairTriggersOnC1Controls(t *testing.T) {
	// Typographic quotes and dashes garble into 0x80..0x9F control runes
	// without any of the Cyrillic lead-byte telltales. The control runes
	// alone must trigger the repair.
	want := "“Live” — 24/7"
	garbled := garble(want)
	if strings.ContainsAny(garbled, telltales) {
		t.Fatalf("fixture %q must not contain lead-byte telltales", garbled)
	}

	if got := Repair(garbled); got != want {
		t.Errorf("Repair() = %q, want %q", got, want)
	}
}

func TestRepairLeavesCleanTextAlone(t *testing.T) {
	tests := []string{
		"",
		"Classic Rock FM",
		"Радио Маяк",
		"Café del Mar",
		"unknown",
	}

	for _, text := range tests {
		if got := Repair(text); got != text {
			t.Errorf("Repair(%q) = %q, want unchanged", text, got)
		}
	}
}

func TestRepairKeepsInputWhenNothingPlausible(t *testing.T) {
	// Telltale present, but the trailing rune above U+00FF means the text
	// was never a Latin-1 reinterpretation, so it must come back as is.
	text := "Ð–brokenЖ"
	if got := Repair(text); got != text {
		t.Errorf("Repair(%q) = %q, want unchanged", text, got)
	}
}

func TestPlausible(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{"Radio One", true},
		{"Русское Радио", true},
		{"Химия — лучшее «радио» №1", true},
		{"", false},
	}

	for _, tt := range tests {
		if got := plausible(tt.text); got != tt.want {
			t.Errorf("plausible(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
