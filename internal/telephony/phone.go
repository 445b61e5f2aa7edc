package telephony

import (
	"fmt"
	"strings"

	"github.com/nikhilbhutani/voiceagents/internal/models"
	"github.com/ttacon/libphonenumber"
)

// NormalizeE164 parses a user-entered number and returns it in E.164 form.
// Numbers without a leading + are read in defaultRegion.
func NormalizeE164(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("phone number is required: %w", models.ErrInvalid)
	}
	num, err := libphonenumber.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", fmt.Errorf("parse phone number %q: %w", raw, models.ErrInvalid)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("phone number %q is not valid: %w", raw, models.ErrInvalid)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

// ValidCountry reports whether code is a region known to libphonenumber.
func ValidCountry(code string) bool {
	return libphonenumber.GetCountryCodeForRegion(strings.ToUpper(code)) != 0
}
