package tokens

import (
	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

// Pricing holds per-1K-token rates in cents.
type Pricing struct {
	InputRate  decimal.Decimal
	OutputRate decimal.Decimal
}

// Cost returns the rounded cost in cents, or nil unless both token counts are known.
func (p Pricing) Cost(inputTokens, outputTokens *int64) *int64 {
	if inputTokens == nil || outputTokens == nil {
		return nil
	}

	input := decimal.NewFromInt(*inputTokens).Div(thousand).Mul(p.InputRate)
	output := decimal.NewFromInt(*outputTokens).Div(thousand).Mul(p.OutputRate)

	cost := input.Add(output).Round(0).IntPart()
	return &cost
}
