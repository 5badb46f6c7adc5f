// Package phone normalizes Korean mobile numbers to the hyphenated 010-1234-5678 form.
package phone

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPhoneNumber indicates the input is not a recognised mobile number.
var ErrInvalidPhoneNumber = errors.New("phone.invalid_number")

var (
	nonDigits       = regexp.MustCompile(`\D`)
	mobileDigits    = regexp.MustCompile(`^01[016789]\d{7,8}$`)
	formattedMobile = regexp.MustCompile(`^010-\d{3,4}-\d{4}$`)
)

// Format strips separators and hyphenates the number as 3-3-4 or 3-4-4.
// Blank input yields an empty string and no error.
func Format(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	digits := Digits(raw)
	if !mobileDigits.MatchString(digits) {
		return "", fmt.Errorf("phone.format %q: %w", raw, ErrInvalidPhoneNumber)
	}
	switch len(digits) {
	case 10:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:], nil
	default:
		return digits[:3] + "-" + digits[3:7] + "-" + digits[7:], nil
	}
}

// Digits removes every non-digit character.
func Digits(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// IsValid reports whether raw contains a valid mobile number once separators are removed.
func IsValid(raw string) bool {
	return mobileDigits.MatchString(Digits(raw))
}

// IsFormatted reports whether raw is already in 010-XXXX-XXXX form.
func IsFormatted(raw string) bool {
	return formattedMobile.MatchString(raw)
}
