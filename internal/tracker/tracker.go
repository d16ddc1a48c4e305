// Package tracker evaluates configured watches against a snapshot.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/token-pricer/internal/config"
	"github.com/matrixise/token-pricer/internal/pricing"
	"github.com/matrixise/token-pricer/internal/snapshot"
	"github.com/matrixise/token-pricer/internal/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentWatches = 8

// Watch is a reference price to check against one wallet
type Watch struct {
	Label   string
	Wallet  common.Address
	Target  string
	Targets []string
	Price   pricing.ReferencePrice
}

// WatchesFromConfig converts validated watch configs
func WatchesFromConfig(cfgs []config.WatchConfig) ([]Watch, error) {
	watches := make([]Watch, 0, len(cfgs))
	for _, c := range cfgs {
		amount, err := decimal.NewFromString(c.PriceAmount)
		if err != nil {
			return nil, fmt.Errorf("watch %s: invalid price_amount: %w", c.Label, err)
		}
		watches = append(watches, Watch{
			Label:   c.Label,
			Wallet:  common.HexToAddress(c.Wallet),
			Target:  c.Target,
			Targets: c.Targets,
			Price:   pricing.ReferencePrice{Currency: c.PriceCurrency, Amount: amount},
		})
	}
	return watches, nil
}

// Evaluation is the outcome of one watch
type Evaluation struct {
	Watch       Watch          `json:"-"`
	Label       string         `json:"label"`
	Wallet      string         `json:"wallet"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
	Result      pricing.Result `json:"result"`
}

// Record converts the evaluation to its storage form
func (e Evaluation) Record() storage.PriceEvaluation {
	st := e.Result.TokenStatus
	rec := storage.PriceEvaluation{
		EvaluatedAt:    e.EvaluatedAt,
		Label:          e.Label,
		Wallet:         e.Wallet,
		Target:         e.Watch.Target,
		SourceCurrency: e.Watch.Price.Currency,
		SourceAmount:   e.Watch.Price.Amount,
		State:          string(st.State),
		HasBalance:     st.HasBalance,
		HasAllowance:   st.HasAllowance,
		HasEthBalance:  st.HasEthBalance,
		NeedsBalance:   storage.NullAmount(st.NeedsBalance),
		NeedsAllowance: storage.NullAmount(st.NeedsAllowance),
	}
	if q, ok := e.Result.Prices[e.Watch.Target]; ok {
		rec.TargetAmount = storage.NullAmount(q.Amount)
	}
	return rec
}

// Tracker evaluates watches with a pricing engine
type Tracker struct {
	engine *pricing.Engine
	logger *slog.Logger
	now    func() time.Time
}

// New creates a tracker
func New(engine *pricing.Engine, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{engine: engine, logger: logger, now: time.Now}
}

// Request builds the pricing request for w from snap. A wallet missing from
// the snapshot yields a request without wallet.
func Request(snap *snapshot.Snapshot, w Watch) pricing.Request {
	req := pricing.Request{
		Target:  w.Target,
		Targets: w.Targets,
		Price:   &pricing.ReferencePrice{Currency: w.Price.Currency, Amount: w.Price.Amount},
	}

	primary, proxy, ok := snap.Catalogs(w.Wallet.Hex())
	if !ok {
		req.Currencies = snap.Prices()
		return req
	}
	req.Wallet = w.Wallet.Hex()
	req.Currencies = primary
	req.ProxyCurrencies = proxy
	return req
}

// Evaluate runs every watch against snap. Results keep the order of watches.
func (t *Tracker) Evaluate(ctx context.Context, snap *snapshot.Snapshot, watches []Watch) ([]Evaluation, error) {
	evals := make([]Evaluation, len(watches))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentWatches)

	for i, w := range watches {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			res := t.engine.Compute(Request(snap, w))
			evals[i] = Evaluation{
				Watch:       w,
				Label:       w.Label,
				Wallet:      w.Wallet.Hex(),
				EvaluatedAt: t.now().UTC(),
				Result:      res,
			}

			t.logger.Debug("Watch evaluated",
				"label", w.Label,
				"wallet", w.Wallet.Hex(),
				"target", w.Target,
				"state", res.TokenStatus.State,
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evals, nil
}

// Run loads the snapshot, evaluates all watches and records them when a
// store is given
func (t *Tracker) Run(ctx context.Context, snapshotPath string, watches []Watch, store Recorder) ([]Evaluation, error) {
	snap, err := snapshot.Load(snapshotPath)
	if err != nil {
		return nil, err
	}
	t.logger.Info("Snapshot loaded",
		"path", snap.Path,
		"currencies", len(snap.Prices()),
		"wallets", snap.Wallets(),
		"age", snap.Age(t.now()).Round(time.Second),
	)

	evals, err := t.Evaluate(ctx, snap, watches)
	if err != nil {
		return nil, err
	}

	for _, e := range evals {
		st := e.Result.TokenStatus
		t.logger.Info("Token status",
			"label", e.Label,
			"wallet", e.Wallet,
			"target", e.Watch.Target,
			"amount", e.Result.Prices[e.Watch.Target].Amount,
			"state", st.State,
			"has_balance", st.HasBalance,
			"has_allowance", st.HasAllowance,
			"has_eth_balance", st.HasEthBalance,
		)
	}

	if store == nil || len(evals) == 0 {
		return evals, nil
	}

	records := make([]storage.PriceEvaluation, 0, len(evals))
	for _, e := range evals {
		records = append(records, e.Record())
	}
	if err := store.BatchInsertEvaluations(ctx, records); err != nil {
		return evals, fmt.Errorf("record evaluations: %w", err)
	}
	t.logger.Info("Evaluations recorded", "count", len(records))
	return evals, nil
}

// Recorder persists evaluations
type Recorder interface {
	BatchInsertEvaluations(ctx context.Context, evals []storage.PriceEvaluation) error
}
