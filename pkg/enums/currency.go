package enums

import "fmt"

// Currency represents the denominations a contract can be priced in.
type Currency string

const (
	CurrencyUSD  Currency = "USD"
	CurrencyEUR  Currency = "EUR"
	CurrencyJPY  Currency = "JPY"
	CurrencyBTC  Currency = "BTC"
	CurrencyETH  Currency = "ETH"
	CurrencyCoin Currency = "COIN"
)

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyEUR,
	CurrencyJPY,
	CurrencyBTC,
	CurrencyETH,
	CurrencyCoin,
}

var currencyScales = map[Currency]int32{
	CurrencyUSD:  2,
	CurrencyEUR:  2,
	CurrencyJPY:  0,
	CurrencyBTC:  8,
	CurrencyETH:  8,
	CurrencyCoin: 0,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// Scale returns the number of fractional digits amounts in this currency may carry.
func (c Currency) Scale() int32 {
	if scale, ok := currencyScales[c]; ok {
		return scale
	}
	return 2
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
