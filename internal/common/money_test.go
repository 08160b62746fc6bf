package common

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	for _, in := range []string{"UNI", "uni", " Uni "} {
		c, err := ParseCurrency(in)
		require.NoError(t, err, in)
		assert.Equal(t, CurrencyUNI, c)
	}

	c, err := ParseCurrency("ton")
	require.NoError(t, err)
	assert.Equal(t, CurrencyTON, c)

	_, err = ParseCurrency("BTC")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
	_, err = ParseCurrency("")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestTruncateMoney(t *testing.T) {
	cases := map[string]string{
		"1.2345678":  "1.234567",
		"0.0000009":  "0",
		"-1.2345678": "-1.234567",
		"5":          "5",
	}
	for in, want := range cases {
		got := TruncateMoney(decimal.RequireFromString(in))
		assert.True(t, got.Equal(decimal.RequireFromString(want)),
			"TruncateMoney(%s) = %s, ожидалось %s", in, got, want)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.5 UNI", FormatAmount(decimal.RequireFromString("12.5"), CurrencyUNI))
	assert.Equal(t, "0.000001 TON", FormatAmount(decimal.RequireFromString("0.000001"), CurrencyTON))
}

func TestFormatDateTime(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	ts := time.Date(2026, 3, 1, 15, 4, 5, 0, loc)
	assert.Equal(t, "2026-03-01 12:04:05", FormatDateTime(ts))
}
