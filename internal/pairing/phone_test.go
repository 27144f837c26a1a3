package pairing

import (
	"errors"
	"testing"
)

func TestNormalizePhone_Valid(t *testing.T) {
	cases := map[string]string{
		"+12345678901":         "+12345678901",
		"12345678901":          "+12345678901",
		"+1 234 567-8901":      "+12345678901",
		"+49 (151) 2345678901": "+491512345678901",
	}
	for in, want := range cases {
		got, err := NormalizePhone(in)
		if err != nil {
			t.Fatalf("NormalizePhone(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizePhone_Invalid(t *testing.T) {
	for _, in := range []string{"", "+123", "123456789", "+1234567890a", "call me"} {
		if _, err := NormalizePhone(in); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("NormalizePhone(%q): expected ErrInvalidPhone, got %v", in, err)
		}
	}
}
