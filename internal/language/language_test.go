package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"en-US", "en"},
		{"eng", "en"},
		{"spa", "es"},
		{"deu", "de"},
		{"english", "en"},
		{"French", "fr"},
		{"", ""},
		{"notalanguage", ""},
	}
	for _, tt := range tests {
		if got := ToISO2(tt.input); got != tt.expected {
			t.Fatalf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestToISO3(t *testing.T) {
	if got := ToISO3("en"); got != "eng" {
		t.Fatalf("ToISO3(en) = %q", got)
	}
	if got := ToISO3(""); got != "und" {
		t.Fatalf("ToISO3(empty) = %q", got)
	}
}

func TestValidAndDisplayName(t *testing.T) {
	if !Valid("german") || Valid("klingonese") {
		t.Fatal("unexpected Valid result")
	}
	if got := DisplayName("es"); got != "Spanish" {
		t.Fatalf("DisplayName(es) = %q", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(empty) = %q", got)
	}
	if got := DisplayName("q!"); got != "Q!" {
		t.Fatalf("DisplayName(q!) = %q", got)
	}
}
