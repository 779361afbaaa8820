package currency

import "github.com/shopspring/decimal"

// FormatPrice renders a price with two decimals, e.g. "4000.00".
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}

// FormatPriceIn appends the currency code unless it is the default USD.
func FormatPriceIn(price float64, currency string) string {
	code := normalize(currency)
	if code == "" || code == "USD" {
		return FormatPrice(price)
	}
	return FormatPrice(price) + " " + code
}
