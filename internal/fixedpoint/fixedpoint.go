// Package fixedpoint converts decimal token amounts to and from integer
// smallest units (wei for 18-decimal tokens).
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// Decimals is the precision shared by ETH and ERC20 tokens priced by the engine
const Decimals = 18

// MaxDigits bounds the exponent and significant digits of decimals taken
// from outside: 78 digits hold any 256-bit integer, plus Decimals for the
// fractional part.
const MaxDigits = 78 + Decimals

var (
	// ErrNegative is returned when an amount is below zero
	ErrNegative = errors.New("negative amount")
	// ErrOutOfRange is returned for decimals beyond MaxDigits
	ErrOutOfRange = errors.New("amount out of range")
)

// Ether converts amounts with 18 decimal places
var Ether = New(Decimals)

// Converter performs decimal <-> smallest unit conversions at a fixed precision
type Converter struct {
	decimals int32
}

// New creates a converter for tokens with the given number of decimals
func New(decimals uint8) *Converter {
	return &Converter{decimals: int32(decimals)}
}

// Decimals returns the converter precision
func (c *Converter) Decimals() uint8 {
	return uint8(c.decimals)
}

// ToUnits converts a decimal string to an integer count of smallest units.
// Fractional digits beyond the converter precision are dropped, never rounded.
func (c *Converter) ToUnits(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return new(big.Int), nil
	}

	d, err := decimal.NewFromString(Truncate(amount, int(c.decimals)))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q: %w", amount, ErrNegative)
	}

	return d.Truncate(c.decimals).Shift(c.decimals).BigInt(), nil
}

// FromUnits converts smallest units to a human-readable decimal string
func (c *Converter) FromUnits(raw *big.Int) string {
	if raw == nil || raw.Sign() == 0 {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -c.decimals).String()
}

// Truncate drops fractional digits beyond places from a plain decimal string.
// Strings without a fractional part are returned unchanged.
func Truncate(amount string, places int) string {
	intPart, frac, ok := strings.Cut(amount, ".")
	if !ok || len(frac) <= places {
		return amount
	}
	// Leave exponent notation to the decimal parser
	if strings.ContainsAny(frac, "eE") {
		return amount
	}
	if places <= 0 {
		return intPart
	}
	return intPart + "." + frac[:places]
}

// ParseUnits parses a raw smallest-unit amount (decimal or 0x-prefixed hex).
// Empty input is zero. Values must fit in 256 bits and be non-negative.
func ParseUnits(s string) (*big.Int, error) {
	v, ok := ethmath.ParseBig256(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount %q: %w", s, ErrNegative)
	}
	return v, nil
}

// CheckRange rejects decimals whose exponent or significant digits exceed
// MaxDigits
func CheckRange(d decimal.Decimal) error {
	if exp := d.Exponent(); exp > MaxDigits || exp < -MaxDigits {
		return fmt.Errorf("exponent %d: %w", exp, ErrOutOfRange)
	}
	if n := d.NumDigits(); n > MaxDigits {
		return fmt.Errorf("%d significant digits: %w", n, ErrOutOfRange)
	}
	return nil
}
