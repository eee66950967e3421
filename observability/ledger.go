package observability

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DavNej/lending-protocol/lending"
)

// Ledger is the engine query surface the recorder decorates.
type Ledger interface {
	GetPool(asset common.Address) (*lending.Pool, error)
	GetLoan(loanID uint64) (*lending.Loan, error)
	GetScaledCollateralRatio(asset common.Address) (*big.Int, error)
}

// LedgerRecorder decorates a Ledger, counting every operation and its outcome
// before forwarding the result. It is the query-side counterpart of
// EventCounter.
type LedgerRecorder struct {
	metrics *LedgerMetrics
	next    Ledger
}

// NewLedgerRecorder wraps the next ledger with operation counting.
func NewLedgerRecorder(metrics *LedgerMetrics, next Ledger) *LedgerRecorder {
	return &LedgerRecorder{metrics: metrics, next: next}
}

// GetPool implements the Ledger interface.
func (r *LedgerRecorder) GetPool(asset common.Address) (*lending.Pool, error) {
	pool, err := r.next.GetPool(asset)
	r.metrics.ObserveOperation("get_pool", err)
	return pool, err
}

// GetLoan implements the Ledger interface.
func (r *LedgerRecorder) GetLoan(loanID uint64) (*lending.Loan, error) {
	loan, err := r.next.GetLoan(loanID)
	r.metrics.ObserveOperation("get_loan", err)
	return loan, err
}

// GetScaledCollateralRatio implements the Ledger interface.
func (r *LedgerRecorder) GetScaledCollateralRatio(asset common.Address) (*big.Int, error) {
	ratio, err := r.next.GetScaledCollateralRatio(asset)
	r.metrics.ObserveOperation("get_collateral_ratio", err)
	return ratio, err
}
