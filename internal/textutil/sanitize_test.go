package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "clip", "clip"},
		{"separators", "talks/2024: keynote", "talks-2024- keynote"},
		{"dropped", `what? "why" <now>|`, "what why now"},
		{"whitespace", "  a \t b\n ", "a b"},
		{"control", "clip\x00\x07name", "clipname"},
		{"hidden", "..secret", "secret"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
