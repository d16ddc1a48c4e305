// Package pricing converts a reference price into every supported currency and
// checks whether a wallet can pay it.
package pricing

import (
	"github.com/matrixise/token-pricer/internal/catalog"
	"github.com/matrixise/token-pricer/internal/fixedpoint"
	"github.com/shopspring/decimal"
)

// QuotePrecision is the maximum number of fractional digits of a quoted amount
const QuotePrecision = 16

// Quote is a price expressed in one currency
type Quote struct {
	Amount   string           `json:"amount"`
	Currency catalog.Currency `json:"currency"`
}

// Conversion maps target currency ids to quotes.
// A missing id means the currency is unsupported, not that it costs zero.
type Conversion map[string]Quote

// Convert prices amount of source in every target currency found in cat,
// pivoting through USD. Amounts are truncated to QuotePrecision digits so a
// quote never overstates the real price. Decimals outside
// fixedpoint.CheckRange are not priced.
func Convert(amount decimal.Decimal, source catalog.Currency, targets []string, cat catalog.Catalog) Conversion {
	out := make(Conversion, len(targets))
	if fixedpoint.CheckRange(amount) != nil || fixedpoint.CheckRange(source.PriceInUSD) != nil {
		return out
	}
	amountUSD := amount.Mul(source.PriceInUSD)

	for _, id := range targets {
		target, ok := cat.Find(id)
		if !ok || !target.PriceInUSD.IsPositive() || fixedpoint.CheckRange(target.PriceInUSD) != nil {
			continue
		}

		q, _ := amountUSD.QuoRem(target.PriceInUSD, QuotePrecision)
		out[id] = Quote{Amount: q.String(), Currency: target}
	}
	return out
}
