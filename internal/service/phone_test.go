package service

import "testing"

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"010-1234-5678", "01012345678"},
		{"010 1234 5678", "01012345678"},
		{"(010)1234.5678", "01012345678"},
		{"01012345678", "01012345678"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := normalizePhone(tc.in); got != tc.want {
			t.Fatalf("normalizePhone(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestValidMobile(t *testing.T) {
	t.Parallel()

	valid := []string{"01012345678", "0101234567", "01112345678", "01912345678"}
	for _, n := range valid {
		if !validMobile(n) {
			t.Fatalf("expected %q to be valid", n)
		}
	}

	invalid := []string{"", "0212345678", "010123456", "010123456789", "01a12345678", "0101234567a"}
	for _, n := range invalid {
		if validMobile(n) {
			t.Fatalf("expected %q to be invalid", n)
		}
	}
}
