package validation

import (
	"regexp"
	"strings"
)

var countryRe = regexp.MustCompile(`^[A-Z]{2}$`)

var currencyRe = regexp.MustCompile(`^[a-z]{3}$`)

// NormalizeCountryCode upper-cases and trims an ISO 3166-1 alpha-2 code.
func NormalizeCountryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func IsValidCountryCode(code string) bool {
	return countryRe.MatchString(code)
}

// NormalizeCurrency lower-cases a currency code (Stripe expects lower case).
func NormalizeCurrency(cur string) string {
	return strings.ToLower(strings.TrimSpace(cur))
}

func IsValidCurrency(cur string) bool {
	return currencyRe.MatchString(cur)
}

// Stripe's zero and three decimal currencies. Everything else has two minor digits.
var (
	zeroDecimalCurrencies = map[string]bool{
		"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
		"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
		"vuv": true, "xaf": true, "xof": true, "xpf": true,
	}
	threeDecimalCurrencies = map[string]bool{
		"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
	}
)

// CurrencyExponent is the number of minor-unit digits of a normalized currency code.
func CurrencyExponent(cur string) int32 {
	switch {
	case zeroDecimalCurrencies[cur]:
		return 0
	case threeDecimalCurrencies[cur]:
		return 3
	}
	return 2
}
