package entity

import (
	"errors"
	"regexp"
	"strings"
)

const (
	// CountryCallingCode replaces the national trunk prefix.
	CountryCallingCode = "233"

	trunkPrefix = "0"
)

var (
	// ErrInvalidPhoneFormat indicates a phone number outside the supported numbering plan.
	ErrInvalidPhoneFormat = errors.New("verification: invalid phone number format")

	rePhone = regexp.MustCompile(`^233\d{9}$`)
)

// NormalizePhone converts a user supplied number into canonical digits,
// for example "+233551234567" and "0551234567" both become "233551234567".
func NormalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "+")

	if strings.HasPrefix(phone, trunkPrefix) {
		phone = CountryCallingCode + strings.TrimPrefix(phone, trunkPrefix)
	}

	if !rePhone.MatchString(phone) {
		return "", ErrInvalidPhoneFormat
	}

	return phone, nil
}

// MaskPhone hides the middle digits of a canonical number for logs and events.
func MaskPhone(phone string) string {
	if len(phone) < 9 {
		return strings.Repeat("*", len(phone))
	}

	return phone[:5] + strings.Repeat("*", len(phone)-8) + phone[len(phone)-3:]
}
