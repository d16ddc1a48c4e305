package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceEvaluation is one recorded evaluation of a watch
type PriceEvaluation struct {
	ID             int64               `json:"id"`
	EvaluatedAt    time.Time           `json:"evaluated_at"`
	Label          string              `json:"label"`
	Wallet         string              `json:"wallet"`
	Target         string              `json:"target"`
	SourceCurrency string              `json:"source_currency"`
	SourceAmount   decimal.Decimal     `json:"source_amount"`
	TargetAmount   decimal.NullDecimal `json:"target_amount"` // unset when the target could not be priced
	State          string              `json:"state"`
	HasBalance     bool                `json:"has_balance"`
	HasAllowance   bool                `json:"has_allowance"`
	HasEthBalance  bool                `json:"has_eth_balance"`
	NeedsBalance   decimal.NullDecimal `json:"needs_balance"`   // smallest units
	NeedsAllowance decimal.NullDecimal `json:"needs_allowance"` // smallest units
}

// NullAmount parses an optional integer or decimal string.
// Empty or malformed input is stored as NULL.
func NullAmount(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
