package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"trims", "  linen shirt  ", 0, "linen shirt"},
		{"collapses whitespace", "linen \t\n  shirt", 0, "linen shirt"},
		{"drops control chars", "lin\x00en", 0, "linen"},
		{"caps runes not bytes", "écharpe", 3, "éch"},
		{"no trailing space at cap", "ab cd", 3, "ab"},
		{"empty", "   ", 10, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.in, tc.max); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}
