package pricing

import (
	"log/slog"
	"math/big"

	"github.com/matrixise/token-pricer/internal/catalog"
	"github.com/matrixise/token-pricer/internal/fixedpoint"
	"github.com/shopspring/decimal"
)

// DefaultNativeCurrency is the fee-paying currency id, which needs no allowance
const DefaultNativeCurrency = "token-ETH"

// FixedPoint converts decimal amounts to integer smallest units
type FixedPoint interface {
	ToUnits(amount string) (*big.Int, error)
}

// Config configures an Engine
type Config struct {
	NativeCurrency string
	FixedPoint     FixedPoint
	Logger         *slog.Logger
}

// Engine evaluates price requests. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	native string
	fp     FixedPoint
	logger *slog.Logger
}

// NewEngine creates an engine, defaulting to token-ETH and 18 decimals
func NewEngine(cfg Config) *Engine {
	if cfg.NativeCurrency == "" {
		cfg.NativeCurrency = DefaultNativeCurrency
	}
	if cfg.FixedPoint == nil {
		cfg.FixedPoint = fixedpoint.Ether
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{native: cfg.NativeCurrency, fp: cfg.FixedPoint, logger: cfg.Logger}
}

// NativeCurrency returns the configured native currency id
func (e *Engine) NativeCurrency() string {
	return e.native
}

// ReferencePrice is the price to convert, in its own currency
type ReferencePrice struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// Readiness flags whether upstream data is still being fetched
type Readiness struct {
	WalletLoading     bool `json:"wallet_loading"`
	PricesLoading     bool `json:"prices_loading"`
	BalancesLoading   bool `json:"balances_loading"`
	AllowancesLoading bool `json:"allowances_loading"`
}

// Loading reports whether any upstream data is still loading
func (r Readiness) Loading() bool {
	return r.WalletLoading || r.PricesLoading || r.BalancesLoading || r.AllowancesLoading
}

// Request is one evaluation snapshot
type Request struct {
	Target          string
	Targets         []string
	Currencies      catalog.Catalog
	ProxyCurrencies catalog.Catalog
	Price           *ReferencePrice
	Wallet          string
	Readiness       Readiness
}

// Result holds converted prices and the token status for the selected target
type Result struct {
	Prices      Conversion  `json:"prices"`
	ProxyPrices Conversion  `json:"proxy_prices,omitempty"`
	TokenStatus TokenStatus `json:"token_status"`
}

func emptyResult(state State) Result {
	return Result{Prices: Conversion{}, TokenStatus: newStatus(state)}
}

// Compute converts the reference price and evaluates the selected target.
// Missing data yields a neutral status instead of an error.
func (e *Engine) Compute(req Request) Result {
	if req.Readiness.Loading() {
		return emptyResult(StateLoading)
	}
	if req.Wallet == "" {
		return emptyResult(StateNoWallet)
	}
	if req.Price == nil || req.Price.Currency == "" {
		return emptyResult(StateLoading)
	}

	source, ok := req.Currencies.Find(req.Price.Currency)
	if !ok {
		e.logger.Debug("Reference currency not in catalog", "currency", req.Price.Currency)
		return emptyResult(StateLoading)
	}

	proxies := req.ProxyCurrencies.Or(req.Currencies)
	res := Result{
		Prices:      Convert(req.Price.Amount, source, req.Targets, req.Currencies),
		ProxyPrices: Convert(req.Price.Amount, source, req.Targets, proxies),
	}

	if _, ok := res.Prices[req.Target]; req.Target == "" || !ok {
		res.TokenStatus = newStatus(StateNotReady)
		return res
	}

	res.TokenStatus = e.Evaluate(req.Target, res.Prices, res.ProxyPrices)
	return res
}

// Evaluate compares wallet balance and proxy allowance against the target
// quote in smallest units. The native balance check always runs since the
// native currency pays transaction fees. A target amount that cannot be
// expressed in smallest units yields StateNotReady.
func (e *Engine) Evaluate(target string, prices, proxyPrices Conversion) TokenStatus {
	amount, err := e.units(prices, target)
	if err != nil {
		return newStatus(StateNotReady)
	}

	status := newStatus(StateReady)
	nativeAmount, err := e.units(prices, e.native)
	status.HasEthBalance = err == nil && balanceOf(prices, e.native).Cmp(nativeAmount) >= 0

	if target == e.native {
		status.HasBalance = status.HasEthBalance
		status.HasAllowance = true
		return status
	}

	status.HasBalance, status.NeedsBalance = shortfall(amount, balanceOf(prices, target))
	status.HasAllowance, status.NeedsAllowance = shortfall(amount, allowanceOf(proxyPrices, target))
	return status
}

// units converts the quoted amount for id to smallest units, zero when absent
func (e *Engine) units(c Conversion, id string) (*big.Int, error) {
	q, ok := c[id]
	if !ok {
		return new(big.Int), nil
	}
	v, err := e.fp.ToUnits(fixedpoint.Truncate(q.Amount, fixedpoint.Decimals))
	if err != nil {
		e.logger.Warn("Unusable quote amount", "currency", id, "amount", q.Amount, "error", err)
		return nil, err
	}
	return v, nil
}

func balanceOf(c Conversion, id string) *big.Int {
	if q, ok := c[id]; ok && q.Currency.Balance != nil {
		return q.Currency.Balance
	}
	return new(big.Int)
}

func allowanceOf(c Conversion, id string) *big.Int {
	if q, ok := c[id]; ok && q.Currency.Allowance != nil {
		return q.Currency.Allowance
	}
	return new(big.Int)
}
