package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeLendingPoolCreated is emitted when a pool for a new asset is
	// registered together with its share token.
	TypeLendingPoolCreated = "lending.pool.created"
	// TypeLendingDeposit is emitted when liquidity is supplied to a pool.
	TypeLendingDeposit = "lending.deposit"
	// TypeLendingWithdraw is emitted when liquidity is redeemed from a pool.
	TypeLendingWithdraw = "lending.withdraw"
	// TypeLendingBorrow is emitted when a new loan is originated.
	TypeLendingBorrow = "lending.borrow"
	// TypeLendingCollateralAdded is emitted when collateral is posted to an
	// existing loan.
	TypeLendingCollateralAdded = "lending.collateral.added"
	// TypeLendingCollateralRemoved is emitted when collateral is released
	// from an existing loan.
	TypeLendingCollateralRemoved = "lending.collateral.removed"
	// TypeLendingRepay is emitted for every repayment, partial or full.
	TypeLendingRepay = "lending.repay"
	// TypeLendingLoanClosed is emitted once a loan's debt has been fully
	// settled and its collateral released.
	TypeLendingLoanClosed = "lending.loan.closed"
	// TypeLendingLiquidated is emitted when a third party force-closes an
	// undercollateralized loan.
	TypeLendingLiquidated = "lending.liquidated"
)

// PoolCreated captures the registration of a new per-asset pool.
type PoolCreated struct {
	Asset      common.Address
	ShareToken common.Address
}

// EventType implements the Event interface.
func (PoolCreated) EventType() string { return TypeLendingPoolCreated }

// Deposit captures liquidity supplied to a pool.
type Deposit struct {
	Account common.Address
	Asset   common.Address
	Amount  *big.Int
}

// EventType implements the Event interface.
func (Deposit) EventType() string { return TypeLendingDeposit }

// Withdraw captures liquidity redeemed from a pool.
type Withdraw struct {
	Account common.Address
	Asset   common.Address
	Amount  *big.Int
}

// EventType implements the Event interface.
func (Withdraw) EventType() string { return TypeLendingWithdraw }

// Borrow captures the origination of a new loan.
type Borrow struct {
	Account common.Address
	LoanID  uint64
}

// EventType implements the Event interface.
func (Borrow) EventType() string { return TypeLendingBorrow }

// CollateralAdded captures collateral posted to a loan.
type CollateralAdded struct {
	LoanID uint64
	Amount *big.Int
}

// EventType implements the Event interface.
func (CollateralAdded) EventType() string { return TypeLendingCollateralAdded }

// CollateralRemoved captures collateral released from a loan.
type CollateralRemoved struct {
	LoanID uint64
	Amount *big.Int
}

// EventType implements the Event interface.
func (CollateralRemoved) EventType() string { return TypeLendingCollateralRemoved }

// Repay captures a repayment against a loan. Amount reflects the value
// actually pulled from the payer.
type Repay struct {
	LoanID uint64
	Amount *big.Int
}

// EventType implements the Event interface.
func (Repay) EventType() string { return TypeLendingRepay }

// LoanClosed marks the full settlement of a loan.
type LoanClosed struct {
	LoanID uint64
}

// EventType implements the Event interface.
func (LoanClosed) EventType() string { return TypeLendingLoanClosed }

// Liquidated captures the forced closure of an undercollateralized loan.
type Liquidated struct {
	Liquidator common.Address
	LoanID     uint64
}

// EventType implements the Event interface.
func (Liquidated) EventType() string { return TypeLendingLiquidated }
