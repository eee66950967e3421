package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool captures the accounting state for a single asset's liquidity pool.
// Amount values are expressed as big integers in the asset's smallest unit.
type Pool struct {
	// Asset identifies the underlying fungible asset accepted by the pool.
	Asset common.Address
	// ShareToken identifies the receipt-token issuer owned by the ledger
	// for this pool.
	ShareToken common.Address
	// LastRateUpdate records the unix timestamp when the borrow rate was
	// last refreshed.
	LastRateUpdate int64
	// ScaledInterestRate is the current yearly borrow rate in fixed-point
	// units.
	ScaledInterestRate *big.Int
	// TotalBorrowed tracks the outstanding principal lent out of the pool.
	TotalBorrowed *big.Int
}

// Exists reports whether the pool record belongs to a registered pool. A pool
// with the zero asset identifier was never created.
func (p *Pool) Exists() bool {
	return p != nil && p.Asset != (common.Address{})
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	return &Pool{
		Asset:              p.Asset,
		ShareToken:         p.ShareToken,
		LastRateUpdate:     p.LastRateUpdate,
		ScaledInterestRate: cloneBigInt(p.ScaledInterestRate),
		TotalBorrowed:      cloneBigInt(p.TotalBorrowed),
	}
}

func (p *Pool) ensureDefaults() *Pool {
	if p == nil {
		return nil
	}
	if p.ScaledInterestRate == nil {
		p.ScaledInterestRate = big.NewInt(0)
	}
	if p.TotalBorrowed == nil {
		p.TotalBorrowed = big.NewInt(0)
	}
	return p
}

// Loan records a borrower's fixed-rate debt position secured by posted
// collateral. A loan whose Asset is the zero identifier does not exist; fully
// settled loans keep their record with zeroed amounts for historical lookup.
type Loan struct {
	// ID is the monotonically increasing loan identifier, assigned from 1.
	ID uint64
	// Borrower is the account that originated the loan.
	Borrower common.Address
	// Asset identifies the borrowed asset; the zero identifier marks a
	// nonexistent loan.
	Asset common.Address
	// Principal is the outstanding borrowed amount.
	Principal *big.Int
	// CollateralAsset identifies the asset securing the loan.
	CollateralAsset common.Address
	// CollateralAmount is the collateral currently posted.
	CollateralAmount *big.Int
	// ScaledBorrowRate is the pool borrow rate snapshotted at origination;
	// it never tracks later pool rate changes.
	ScaledBorrowRate *big.Int
	// InterestDue is the interest computed at the last accrual.
	InterestDue *big.Int
	// LastAccrual records the unix timestamp of the last interest accrual.
	LastAccrual int64
}

// Exists reports whether the loan record belongs to an assigned loan id.
func (l *Loan) Exists() bool {
	return l != nil && l.Asset != (common.Address{})
}

// Debt returns the loan's total outstanding debt, principal plus accrued
// interest.
func (l *Loan) Debt() *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Add(cloneBigInt(l.Principal), cloneBigInt(l.InterestDue))
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	return &Loan{
		ID:               l.ID,
		Borrower:         l.Borrower,
		Asset:            l.Asset,
		Principal:        cloneBigInt(l.Principal),
		CollateralAsset:  l.CollateralAsset,
		CollateralAmount: cloneBigInt(l.CollateralAmount),
		ScaledBorrowRate: cloneBigInt(l.ScaledBorrowRate),
		InterestDue:      cloneBigInt(l.InterestDue),
		LastAccrual:      l.LastAccrual,
	}
}

func (l *Loan) ensureDefaults() *Loan {
	if l == nil {
		return nil
	}
	if l.Principal == nil {
		l.Principal = big.NewInt(0)
	}
	if l.CollateralAmount == nil {
		l.CollateralAmount = big.NewInt(0)
	}
	if l.ScaledBorrowRate == nil {
		l.ScaledBorrowRate = big.NewInt(0)
	}
	if l.InterestDue == nil {
		l.InterestDue = big.NewInt(0)
	}
	return l
}
