package pairing

import (
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`^\+\d{10,}$`)
	bareDigits   = regexp.MustCompile(`^\d{10,}$`)
)

// NormalizePhone validates a phone-number-shaped string and returns it
// in canonical +<digits> form. Accepted inputs are a leading + followed
// by at least 10 digits, or the same number without the +; spaces,
// dashes and parentheses are stripped first.
func NormalizePhone(s string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	switch {
	case phonePattern.MatchString(cleaned):
		return cleaned, nil
	case bareDigits.MatchString(cleaned):
		return "+" + cleaned, nil
	default:
		return "", ErrInvalidPhone
	}
}
