// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when the caller does not configure one.
const DefaultRegion = "IN"

// Placeholder is stored on leads whose contact details are still pending.
const Placeholder = "0000000000"

const (
	minCanonicalDigits = 10
	maxCanonicalDigits = 15
)

// Normalizer canonicalizes raw phone strings for one default region.
// Canonical form is E.164 without the leading plus, e.g. "919876543210".
type Normalizer struct {
	region      string
	countryCode string
	nationalLen int
}

// NewNormalizer creates a normalizer for the given ISO region code.
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}

	cc := phonenumbers.GetCountryCodeForRegion(region)
	if cc == 0 {
		region = DefaultRegion
		cc = phonenumbers.GetCountryCodeForRegion(region)
	}

	nationalLen := 10
	if example := phonenumbers.GetExampleNumberForType(region, phonenumbers.MOBILE); example != nil {
		nationalLen = len(strconv.FormatUint(example.GetNationalNumber(), 10))
	}

	return &Normalizer{
		region:      region,
		countryCode: strconv.Itoa(cc),
		nationalLen: nationalLen,
	}
}

// Region returns the configured default region.
func (n *Normalizer) Region() string {
	return n.region
}

// Normalize returns the canonical digits-only form of raw.
// It never fails: unusable input yields "" and plausibility is checked separately.
func (n *Normalizer) Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if number, err := phonenumbers.Parse(trimmed, n.region); err == nil && phonenumbers.IsValidNumber(number) {
		return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+")
	}

	return n.fallback(trimmed)
}

// fallback applies the fixed digit policy used when the number is not
// recognized by the numbering plan metadata.
func (n *Normalizer) fallback(raw string) string {
	hasPlus := strings.HasPrefix(raw, "+")
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}
	if IsPlaceholder(digits) {
		return Placeholder
	}
	if hasPlus {
		return digits
	}

	if strings.HasPrefix(digits, "00") {
		return strings.TrimPrefix(digits, "00")
	}
	if len(digits) == n.nationalLen+1 && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}
	if len(digits) == n.nationalLen {
		return n.countryCode + digits
	}
	return digits
}

// IsPlausible reports whether a canonical value can identify a real contact.
func IsPlausible(canonical string) bool {
	if IsPlaceholder(canonical) {
		return false
	}
	if len(canonical) < minCanonicalDigits || len(canonical) > maxCanonicalDigits {
		return false
	}
	return digitsOnly(canonical) == canonical
}

// IsPlaceholder reports whether v is the pending-contact marker (all zero digits).
func IsPlaceholder(v string) bool {
	digits := digitsOnly(v)
	if digits == "" {
		return false
	}
	return strings.Trim(digits, "0") == ""
}

func digitsOnly(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
