package catalog

import (
	"strings"

	"github.com/ttacon/libphonenumber"

	"tillsync/internal/core/apperror"
)

// DefaultPhoneRegion is used for numbers typed without a country code.
const DefaultPhoneRegion = "US"

// NormalizePhone parses a phone number typed at the till and returns it in
// E.164 form. An empty input stays empty.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := libphonenumber.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", apperror.NewValidation("invalid phone number").
			WithDetail("field", "phone").
			WithDetail("value", raw).
			WithCause(err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", apperror.NewValidation("invalid phone number").
			WithDetail("field", "phone").
			WithDetail("value", raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
