package i18n

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		header   string
		fallback string
		want     string
	}{
		{"ar", "en", "ar"},
		{"ar-SA,ar;q=0.9,en;q=0.5", "en", "ar"},
		{"en-US,en;q=0.9", "ar", "en"},
		{"en", "en", "en"},
		{"", "ar", "ar"},
		{"", "en", "en"},
		{"not a header ,,;;", "ar", "ar"},
	}
	for _, tc := range cases {
		if got := Match(tc.header, tc.fallback); got != tc.want {
			t.Errorf("Match(%q, %q) = %q, want %q", tc.header, tc.fallback, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("ar") != "ar" {
		t.Error("ar should stay ar")
	}
	for _, in := range []string{"en", "fr", "", "AR"} {
		if got := Normalize(in); got != "en" {
			t.Errorf("Normalize(%q) = %q, want en", in, got)
		}
	}
}
