// Package catalog models the currencies a wallet can pay with and resolves
// them by id.
package catalog

import (
	"fmt"
	"math/big"

	"github.com/matrixise/token-pricer/internal/fixedpoint"
	"github.com/shopspring/decimal"
)

// Currency is a priced currency, optionally carrying wallet figures in
// smallest units
type Currency struct {
	ID         string          `json:"id"`
	PriceInUSD decimal.Decimal `json:"price_in_usd"`
	Balance    *big.Int        `json:"balance,omitempty"`
	Allowance  *big.Int        `json:"allowance,omitempty"`
}

// Catalog is an ordered list of currencies with unique ids
type Catalog []Currency

// Find returns the currency with the exact given id
func (c Catalog) Find(id string) (Currency, bool) {
	for _, cur := range c {
		if cur.ID == id {
			return cur, true
		}
	}
	return Currency{}, false
}

// Or returns c, or fallback when c is empty.
// Proxy catalogs fall back to the wallet catalog this way.
func (c Catalog) Or(fallback Catalog) Catalog {
	if len(c) == 0 {
		return fallback
	}
	return c
}

// IDs returns the currency ids in catalog order
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for _, cur := range c {
		ids = append(ids, cur.ID)
	}
	return ids
}

// Validate checks id uniqueness, prices and amounts
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for i, cur := range c {
		if cur.ID == "" {
			return fmt.Errorf("currency #%d: empty id", i)
		}
		if _, dup := seen[cur.ID]; dup {
			return fmt.Errorf("currency %s: duplicate id", cur.ID)
		}
		seen[cur.ID] = struct{}{}

		if !cur.PriceInUSD.IsPositive() {
			return fmt.Errorf("currency %s: price_in_usd must be positive (got %s)", cur.ID, cur.PriceInUSD)
		}
		if err := fixedpoint.CheckRange(cur.PriceInUSD); err != nil {
			return fmt.Errorf("currency %s: price_in_usd: %w", cur.ID, err)
		}
		if cur.Balance != nil && cur.Balance.Sign() < 0 {
			return fmt.Errorf("currency %s: negative balance", cur.ID)
		}
		if cur.Allowance != nil && cur.Allowance.Sign() < 0 {
			return fmt.Errorf("currency %s: negative allowance", cur.ID)
		}
	}
	return nil
}

// Record is the textual form of a Currency found in config files, snapshot
// files and request bodies
type Record struct {
	ID         string `json:"id" mapstructure:"id" validate:"required"`
	PriceInUSD string `json:"price_in_usd" mapstructure:"price_in_usd" validate:"required"`
	Balance    string `json:"balance,omitempty" mapstructure:"balance"`
	Allowance  string `json:"allowance,omitempty" mapstructure:"allowance"`
}

// Currency decodes the record
func (r Record) Currency() (Currency, error) {
	price, err := decimal.NewFromString(r.PriceInUSD)
	if err != nil {
		return Currency{}, fmt.Errorf("currency %s: invalid price_in_usd: %w", r.ID, err)
	}
	if err := fixedpoint.CheckRange(price); err != nil {
		return Currency{}, fmt.Errorf("currency %s: price_in_usd: %w", r.ID, err)
	}

	cur := Currency{ID: r.ID, PriceInUSD: price}
	if r.Balance != "" {
		if cur.Balance, err = fixedpoint.ParseUnits(r.Balance); err != nil {
			return Currency{}, fmt.Errorf("currency %s: balance: %w", r.ID, err)
		}
	}
	if r.Allowance != "" {
		if cur.Allowance, err = fixedpoint.ParseUnits(r.Allowance); err != nil {
			return Currency{}, fmt.Errorf("currency %s: allowance: %w", r.ID, err)
		}
	}
	return cur, nil
}

// Build decodes records into a validated catalog
func Build(records []Record) (Catalog, error) {
	cat := make(Catalog, 0, len(records))
	for _, r := range records {
		cur, err := r.Currency()
		if err != nil {
			return nil, err
		}
		cat = append(cat, cur)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}
