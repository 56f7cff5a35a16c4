package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountryCode(t *testing.T) {
	assert.Equal(t, "KE", NormalizeCountryCode(" ke "))
	assert.True(t, IsValidCountryCode("KE"))
	assert.False(t, IsValidCountryCode("KEN"))
	assert.False(t, IsValidCountryCode("k1"))
	assert.False(t, IsValidCountryCode(""))
}

func TestCurrency(t *testing.T) {
	assert.Equal(t, "usd", NormalizeCurrency("USD"))
	assert.True(t, IsValidCurrency("usd"))
	assert.False(t, IsValidCurrency("US"))
}

func TestCurrencyExponent(t *testing.T) {
	assert.Equal(t, int32(2), CurrencyExponent("usd"))
	assert.Equal(t, int32(2), CurrencyExponent("kes"))
	assert.Equal(t, int32(0), CurrencyExponent("jpy"))
	assert.Equal(t, int32(0), CurrencyExponent("ugx"))
	assert.Equal(t, int32(3), CurrencyExponent("kwd"))
}
