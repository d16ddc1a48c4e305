package pricing

import (
	"math/big"
)

// State describes how far an evaluation got
type State string

const (
	// StateLoading means wallet or price data is not available yet
	StateLoading State = "loading"
	// StateNoWallet means wallet data loaded and no wallet is connected
	StateNoWallet State = "no_wallet"
	// StateNotReady means prices exist but the selected target cannot be evaluated
	StateNotReady State = "not_ready"
	// StateReady means the token status fields are meaningful
	StateReady State = "ready"
)

// TokenStatus reports whether a wallet can pay a quote in the target currency.
// Needs* fields are smallest-unit integer strings, empty when nothing is missing.
type TokenStatus struct {
	State          State  `json:"state"`
	Loading        bool   `json:"loading"`
	HasBalance     bool   `json:"has_balance"`
	HasAllowance   bool   `json:"has_allowance"`
	HasEthBalance  bool   `json:"has_eth_balance"`
	NeedsAllowance string `json:"needs_allowance,omitempty"`
	NeedsBalance   string `json:"needs_balance,omitempty"`
}

func newStatus(state State) TokenStatus {
	return TokenStatus{State: state, Loading: state == StateLoading}
}

// Ready reports whether the status was computed from complete data
func (s TokenStatus) Ready() bool {
	return s.State == StateReady
}

// CanPay reports whether both balance and allowance cover the target amount
func (s TokenStatus) CanPay() bool {
	return s.Ready() && s.HasBalance && s.HasAllowance
}

// shortfall returns need - have as a string, or "" when have covers need
func shortfall(need, have *big.Int) (bool, string) {
	if have.Cmp(need) >= 0 {
		return true, ""
	}
	return false, new(big.Int).Sub(need, have).String()
}
