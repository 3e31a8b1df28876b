package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "trims", in: "  Central Park  ", want: "Central Park"},
		{name: "folds whitespace", in: "Main\t\tStreet\n Lot", want: "Main Street Lot"},
		{name: "drops control", in: "Lot\x00B", want: "LotB"},
		{name: "rune cut", in: "Café Olé", max: 4, want: "Café"},
		{name: "no trailing space after cut", in: "ab cd", max: 3, want: "ab"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.in, tc.max); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}
