package format

import (
	"github.com/shopspring/decimal"
)

// Centify renders an amount in minor units as dollars.
func Centify(cents int64) string {
	value := decimal.New(cents, -2)
	if value.IsNegative() {
		return "-$" + value.Neg().StringFixed(2)
	}
	return "$" + value.StringFixed(2)
}
