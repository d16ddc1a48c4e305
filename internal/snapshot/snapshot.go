// Package snapshot loads priced currencies and wallet holdings from a file
// maintained outside of token-pricer.
package snapshot

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/token-pricer/internal/catalog"
	"github.com/matrixise/token-pricer/internal/config"
	"github.com/matrixise/token-pricer/internal/fixedpoint"
	"github.com/spf13/viper"
)

// Holding is a wallet's balance and allowance for one currency, in smallest units
type Holding struct {
	Currency  string `mapstructure:"currency" validate:"required"`
	Balance   string `mapstructure:"balance"`
	Allowance string `mapstructure:"allowance"`
}

// WalletHoldings lists holdings of a wallet and, optionally, of its proxy
type WalletHoldings struct {
	Address       string    `mapstructure:"address" validate:"required,eth_addr"`
	Holdings      []Holding `mapstructure:"holdings" validate:"dive"`
	ProxyHoldings []Holding `mapstructure:"proxy_holdings" validate:"dive"`
}

// File is the on-disk snapshot layout
type File struct {
	Currencies []catalog.Record `mapstructure:"currencies" validate:"required,min=1,dive"`
	Wallets    []WalletHoldings `mapstructure:"wallets" validate:"dive"`
}

type figures struct {
	balance   *big.Int
	allowance *big.Int
}

type wallet struct {
	holdings map[string]figures
	proxy    map[string]figures
}

// Snapshot is an immutable, validated view of a snapshot file
type Snapshot struct {
	Path       string
	ModifiedAt time.Time
	prices     catalog.Catalog
	wallets    map[common.Address]wallet
}

// Load reads and validates a snapshot file (TOML, JSON or YAML)
func Load(path string) (*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	snap, err := New(f)
	if err != nil {
		return nil, err
	}
	snap.Path = path
	snap.ModifiedAt = info.ModTime()
	return snap, nil
}

// New validates f and indexes its wallets
func New(f File) (*Snapshot, error) {
	if err := config.NewValidator().Struct(&f); err != nil {
		return nil, fmt.Errorf("snapshot validation failed: %w", err)
	}

	prices, err := catalog.Build(f.Currencies)
	if err != nil {
		return nil, fmt.Errorf("snapshot currencies: %w", err)
	}

	snap := &Snapshot{
		prices:  prices,
		wallets: make(map[common.Address]wallet, len(f.Wallets)),
	}

	for _, w := range f.Wallets {
		addr := common.HexToAddress(w.Address)
		if _, dup := snap.wallets[addr]; dup {
			return nil, fmt.Errorf("wallet %s: listed twice", addr.Hex())
		}

		holdings, err := index(prices, w.Holdings)
		if err != nil {
			return nil, fmt.Errorf("wallet %s: %w", addr.Hex(), err)
		}
		proxy, err := index(prices, w.ProxyHoldings)
		if err != nil {
			return nil, fmt.Errorf("wallet %s proxy: %w", addr.Hex(), err)
		}
		snap.wallets[addr] = wallet{holdings: holdings, proxy: proxy}
	}

	return snap, nil
}

func index(prices catalog.Catalog, holdings []Holding) (map[string]figures, error) {
	out := make(map[string]figures, len(holdings))
	for _, h := range holdings {
		if _, ok := prices.Find(h.Currency); !ok {
			return nil, fmt.Errorf("holding for unpriced currency %s", h.Currency)
		}
		if _, dup := out[h.Currency]; dup {
			return nil, fmt.Errorf("currency %s: listed twice", h.Currency)
		}

		var fig figures
		var err error
		if h.Balance != "" {
			if fig.balance, err = fixedpoint.ParseUnits(h.Balance); err != nil {
				return nil, fmt.Errorf("currency %s balance: %w", h.Currency, err)
			}
		}
		if h.Allowance != "" {
			if fig.allowance, err = fixedpoint.ParseUnits(h.Allowance); err != nil {
				return nil, fmt.Errorf("currency %s allowance: %w", h.Currency, err)
			}
		}
		out[h.Currency] = fig
	}
	return out, nil
}

// Prices returns the priced currencies without wallet figures
func (s *Snapshot) Prices() catalog.Catalog {
	return s.prices
}

// Wallets returns the number of wallets in the snapshot
func (s *Snapshot) Wallets() int {
	return len(s.wallets)
}

// Catalogs builds the wallet catalog and the proxy catalog for address.
// The proxy catalog is empty when the wallet has no proxy holdings.
// ok is false when the wallet is not part of the snapshot.
func (s *Snapshot) Catalogs(address string) (primary, proxy catalog.Catalog, ok bool) {
	if !common.IsHexAddress(address) {
		return nil, nil, false
	}
	w, ok := s.wallets[common.HexToAddress(address)]
	if !ok {
		return nil, nil, false
	}

	primary = withFigures(s.prices, w.holdings)
	if len(w.proxy) > 0 {
		proxy = withFigures(s.prices, w.proxy)
	}
	return primary, proxy, true
}

func withFigures(prices catalog.Catalog, figs map[string]figures) catalog.Catalog {
	out := make(catalog.Catalog, len(prices))
	for i, cur := range prices {
		if f, ok := figs[cur.ID]; ok {
			cur.Balance = f.balance
			cur.Allowance = f.allowance
		}
		out[i] = cur
	}
	return out
}

// Age returns how long ago the snapshot file was written
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s.ModifiedAt.IsZero() {
		return 0
	}
	return now.Sub(s.ModifiedAt)
}
