package lending

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DavNej/lending-protocol/core/events"
)

type engineState interface {
	GetPool(asset common.Address) (*Pool, error)
	PutPool(asset common.Address, pool *Pool) error
	GetLoan(id uint64) (*Loan, error)
	PutLoan(id uint64, loan *Loan) error
	// PutLoanAndPool commits a loan and its pool in one atomic write.
	PutLoanAndPool(id uint64, loan *Loan, asset common.Address, pool *Pool) error
	NextLoanID() (uint64, error)
	GetCollateralRatio(asset common.Address) (*big.Int, error)
	PutCollateralRatio(asset common.Address, ratio *big.Int) error
}

// Engine orchestrates the state transitions of the lending ledger: pool
// registration, share-based deposit/withdraw accounting, collateralized
// borrowing, repayment and liquidation. Every public operation is a single
// atomic transition guarded by a function-scoped lock; a nested call made
// while an operation is in flight is rejected rather than interleaved.
type Engine struct {
	mu sync.Mutex

	state   engineState
	tokens  TokenRegistry
	shares  ShareFactory
	emitter events.Emitter

	owner         common.Address
	moduleAddress common.Address
	nowFn         func() int64
}

// NewEngine constructs a lending engine. The owner address gates collateral
// ratio configuration and the module address is the account under which the
// ledger holds pooled assets and posted collateral.
func NewEngine(owner, moduleAddr common.Address) *Engine {
	return &Engine{
		owner:         owner,
		moduleAddress: moduleAddr,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens wires the registry used to resolve asset transfer interfaces.
func (e *Engine) SetTokens(registry TokenRegistry) { e.tokens = registry }

// SetShareFactory wires the issuer used to create and resolve pool share
// tokens.
func (e *Engine) SetShareFactory(factory ShareFactory) { e.shares = factory }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// ModuleAddress returns the account under which the ledger holds liquidity.
func (e *Engine) ModuleAddress() common.Address { return e.moduleAddress }

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// lock acquires the engine-wide re-entrancy guard. A transfer callback (or
// any concurrent caller) arriving while an operation holds the lock is
// rejected with ErrReentrantCall instead of observing half-updated state.
func (e *Engine) lock() error {
	if !e.mu.TryLock() {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) emit(event events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}

// CreatePool registers a pool for the given asset and spawns its share-token
// issuer, named derivatively from the underlying. The share token identifier
// is returned.
func (e *Engine) CreatePool(asset common.Address) (common.Address, error) {
	if err := e.lock(); err != nil {
		return common.Address{}, err
	}
	defer e.mu.Unlock()

	if e.state == nil {
		return common.Address{}, errNilState
	}
	if asset == (common.Address{}) {
		return common.Address{}, ErrZeroAddress
	}
	existing, err := e.state.GetPool(asset)
	if err != nil {
		return common.Address{}, err
	}
	if existing.Exists() {
		return common.Address{}, ErrPoolAlreadyExists
	}

	underlying, err := e.underlying(asset)
	if err != nil {
		return common.Address{}, err
	}
	if e.shares == nil {
		return common.Address{}, errNilShareFactory
	}
	share, err := e.shares.Create(asset, underlying.Name()+" Supply Share", "s"+underlying.Symbol())
	if err != nil {
		return common.Address{}, err
	}

	pool := &Pool{
		Asset:              asset,
		ShareToken:         share.Address(),
		LastRateUpdate:     e.now(),
		ScaledInterestRate: cloneBigInt(defaultInterestRate),
		TotalBorrowed:      big.NewInt(0),
	}
	if err := e.state.PutPool(asset, pool); err != nil {
		return common.Address{}, err
	}

	e.emit(events.PoolCreated{Asset: asset, ShareToken: share.Address()})
	return share.Address(), nil
}

// SetScaledCollateralRatio overwrites the required collateralization ratio
// for an asset. Owner-only; a zero ratio means the asset is rejected as
// collateral.
func (e *Engine) SetScaledCollateralRatio(caller, asset common.Address, ratio *big.Int) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if e.state == nil {
		return errNilState
	}
	if caller != e.owner {
		return ErrUnauthorized
	}
	if asset == (common.Address{}) {
		return ErrZeroAddress
	}
	return e.state.PutCollateralRatio(asset, cloneBigInt(ratio))
}

// UpdatePoolInterestRate refreshes the pool's borrow rate from current
// utilisation and returns the resulting rate. Calling it again within the
// same timestamp is a no-op.
func (e *Engine) UpdatePoolInterestRate(asset common.Address) (*big.Int, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	pool, err := e.loadPool(asset)
	if err != nil {
		return nil, err
	}
	underlying, err := e.underlying(asset)
	if err != nil {
		return nil, err
	}
	rate := e.refreshRate(pool, underlying)
	if err := e.state.PutPool(asset, pool); err != nil {
		return nil, err
	}
	return rate, nil
}

// Deposit pulls the asset amount from the caller and mints pool shares priced
// at the live exchange rate. The minted share amount is returned.
//
// The exchange rate is computed from the balance held after the pull, so the
// freshly received amount dilutes the depositor's own mint. That ordering is
// part of the ledger's observable pricing behaviour and is kept as is.
func (e *Engine) Deposit(caller, asset common.Address, amount *big.Int) (*big.Int, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if caller == (common.Address{}) || asset == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	pool, err := e.loadPool(asset)
	if err != nil {
		return nil, err
	}
	underlying, err := e.underlying(asset)
	if err != nil {
		return nil, err
	}
	share, err := e.shareToken(pool)
	if err != nil {
		return nil, err
	}

	e.refreshRate(pool, underlying)

	if err := underlying.TransferFrom(e.moduleAddress, caller, e.moduleAddress, amount); err != nil {
		return nil, err
	}

	held := underlying.BalanceOf(e.moduleAddress)
	supply := share.TotalSupply()
	exchangeRate := cloneBigInt(scale)
	if supply.Sign() != 0 {
		exchangeRate = mulDiv(held, scale, supply)
	}
	minted := mulDiv(amount, scale, exchangeRate)
	if err := share.Mint(caller, minted); err != nil {
		return nil, err
	}

	if err := e.state.PutPool(asset, pool); err != nil {
		return nil, err
	}

	e.emit(events.Deposit{Account: caller, Asset: asset, Amount: cloneBigInt(amount)})
	return minted, nil
}

// Withdraw burns the caller's pool shares covering the requested amount and
// transfers the amount back to the caller.
func (e *Engine) Withdraw(caller, asset common.Address, amount *big.Int) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	pool, err := e.loadPool(asset)
	if err != nil {
		return err
	}
	underlying, err := e.underlying(asset)
	if err != nil {
		return err
	}
	share, err := e.shareToken(pool)
	if err != nil {
		return err
	}

	e.refreshRate(pool, underlying)

	held := underlying.BalanceOf(e.moduleAddress)
	if amount.Cmp(held) > 0 {
		return ErrNotEnoughLiquidity
	}
	sharesToBurn := mulDiv(amount, share.TotalSupply(), held)
	if share.BalanceOf(caller).Cmp(sharesToBurn) < 0 {
		return ErrInsufficientLPTokens
	}

	if err := share.Burn(caller, sharesToBurn); err != nil {
		return err
	}
	if err := underlying.Transfer(e.moduleAddress, caller, amount); err != nil {
		return err
	}
	if err := e.state.PutPool(asset, pool); err != nil {
		return err
	}

	e.emit(events.Withdraw{Account: caller, Asset: asset, Amount: cloneBigInt(amount)})
	return nil
}

// Borrow originates a new loan: the caller posts collateral, receives the
// borrowed amount, and the loan snapshots the pool's current borrow rate for
// its whole lifetime. The new loan id is returned.
func (e *Engine) Borrow(caller, asset common.Address, amount *big.Int, collateralAsset common.Address, collateralAmount *big.Int) (uint64, error) {
	if err := e.lock(); err != nil {
		return 0, err
	}
	defer e.mu.Unlock()

	if caller == (common.Address{}) || asset == (common.Address{}) || collateralAsset == (common.Address{}) {
		return 0, ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 || collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return 0, ErrZeroAmount
	}
	pool, err := e.loadPool(asset)
	if err != nil {
		return 0, err
	}
	ratio, err := e.collateralRatio(collateralAsset)
	if err != nil {
		return 0, err
	}
	if ratio.Sign() == 0 {
		return 0, ErrCollateralNotAccepted
	}
	underlying, err := e.underlying(asset)
	if err != nil {
		return 0, err
	}
	if underlying.BalanceOf(e.moduleAddress).Cmp(amount) < 0 {
		return 0, ErrNotEnoughLiquidity
	}

	e.refreshRate(pool, underlying)

	if !collateralSufficient(collateralAmount, amount, ratio) {
		return 0, ErrInsufficientCollateral
	}
	collateral, err := e.underlying(collateralAsset)
	if err != nil {
		return 0, err
	}

	id, err := e.state.NextLoanID()
	if err != nil {
		return 0, err
	}
	loan := &Loan{
		ID:               id,
		Borrower:         caller,
		Asset:            asset,
		Principal:        cloneBigInt(amount),
		CollateralAsset:  collateralAsset,
		CollateralAmount: cloneBigInt(collateralAmount),
		ScaledBorrowRate: cloneBigInt(pool.ScaledInterestRate),
		InterestDue:      big.NewInt(0),
		LastAccrual:      e.now(),
	}
	pool.TotalBorrowed = new(big.Int).Add(pool.TotalBorrowed, amount)

	if err := collateral.TransferFrom(e.moduleAddress, caller, e.moduleAddress, collateralAmount); err != nil {
		return 0, err
	}
	if err := underlying.Transfer(e.moduleAddress, caller, amount); err != nil {
		return 0, err
	}
	if err := e.state.PutLoanAndPool(id, loan, asset, pool); err != nil {
		return 0, err
	}

	e.emit(events.Borrow{Account: caller, LoanID: id})
	return id, nil
}

// AddCollateral pulls additional collateral from the caller into the loan.
// No collateralization check applies; adding only improves the ratio.
func (e *Engine) AddCollateral(caller common.Address, loanID uint64, amount *big.Int) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	loan, err := e.loadLoan(loanID)
	if err != nil {
		return err
	}
	accrueLoanInterest(loan, e.now())

	collateral, err := e.underlying(loan.CollateralAsset)
	if err != nil {
		return err
	}
	if err := collateral.TransferFrom(e.moduleAddress, caller, e.moduleAddress, amount); err != nil {
		return err
	}
	loan.CollateralAmount = new(big.Int).Add(loan.CollateralAmount, amount)

	if err := e.state.PutLoan(loanID, loan); err != nil {
		return err
	}
	e.emit(events.CollateralAdded{LoanID: loanID, Amount: cloneBigInt(amount)})
	return nil
}

// RemoveCollateral releases part of the loan's collateral back to the caller
// provided the remainder still covers the outstanding debt at the required
// ratio.
func (e *Engine) RemoveCollateral(caller common.Address, loanID uint64, amount *big.Int) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	loan, err := e.loadLoan(loanID)
	if err != nil {
		return err
	}
	accrueLoanInterest(loan, e.now())

	ratio, err := e.collateralRatio(loan.CollateralAsset)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(loan.CollateralAmount, amount)
	if !collateralSufficient(remaining, loan.Debt(), ratio) {
		return ErrInsufficientCollateral
	}

	collateral, err := e.underlying(loan.CollateralAsset)
	if err != nil {
		return err
	}
	loan.CollateralAmount = remaining
	if err := collateral.Transfer(e.moduleAddress, caller, amount); err != nil {
		return err
	}
	if err := e.state.PutLoan(loanID, loan); err != nil {
		return err
	}
	e.emit(events.CollateralRemoved{LoanID: loanID, Amount: cloneBigInt(amount)})
	return nil
}

// Repay settles debt against the loan. Amounts covering the full debt close
// the loan and release the entire collateral; only the exact outstanding debt
// is ever pulled from the caller. Smaller amounts first extinguish interest,
// then amortize principal.
func (e *Engine) Repay(caller common.Address, loanID uint64, amount *big.Int) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	loan, err := e.loadLoan(loanID)
	if err != nil {
		return err
	}
	accrueLoanInterest(loan, e.now())

	pool, err := e.loadPool(loan.Asset)
	if err != nil {
		return err
	}
	underlying, err := e.underlying(loan.Asset)
	if err != nil {
		return err
	}

	debt := loan.Debt()
	switch {
	case amount.Cmp(debt) >= 0:
		// Full repayment: pull only the exact debt, never the excess.
		if err := underlying.TransferFrom(e.moduleAddress, caller, e.moduleAddress, debt); err != nil {
			return err
		}
		pool.TotalBorrowed = new(big.Int).Sub(pool.TotalBorrowed, loan.Principal)

		collateral, err := e.underlying(loan.CollateralAsset)
		if err != nil {
			return err
		}
		released := cloneBigInt(loan.CollateralAmount)
		loan.Principal = big.NewInt(0)
		loan.InterestDue = big.NewInt(0)
		loan.CollateralAmount = big.NewInt(0)
		if released.Sign() > 0 {
			if err := collateral.Transfer(e.moduleAddress, caller, released); err != nil {
				return err
			}
		}
		if err := e.state.PutLoanAndPool(loanID, loan, loan.Asset, pool); err != nil {
			return err
		}
		e.emit(events.Repay{LoanID: loanID, Amount: debt})
		e.emit(events.LoanClosed{LoanID: loanID})
		return nil

	case amount.Cmp(loan.InterestDue) > 0:
		// Amortizing repayment: interest first, remainder against principal.
		if err := underlying.TransferFrom(e.moduleAddress, caller, e.moduleAddress, amount); err != nil {
			return err
		}
		principalPortion := new(big.Int).Sub(amount, loan.InterestDue)
		pool.TotalBorrowed = new(big.Int).Sub(pool.TotalBorrowed, principalPortion)
		loan.Principal = new(big.Int).Sub(loan.Principal, principalPortion)
		loan.InterestDue = big.NewInt(0)
		if err := e.state.PutLoanAndPool(loanID, loan, loan.Asset, pool); err != nil {
			return err
		}
		e.emit(events.Repay{LoanID: loanID, Amount: cloneBigInt(amount)})
		return nil

	default:
		// Interest-only repayment.
		if err := underlying.TransferFrom(e.moduleAddress, caller, e.moduleAddress, amount); err != nil {
			return err
		}
		loan.InterestDue = new(big.Int).Sub(loan.InterestDue, amount)
		if err := e.state.PutLoan(loanID, loan); err != nil {
			return err
		}
		e.emit(events.Repay{LoanID: loanID, Amount: cloneBigInt(amount)})
		return nil
	}
}

// Liquidate lets a third party close an undercollateralized loan. The
// liquidator pays the full outstanding debt and receives the entire posted
// collateral; there is no discount or penalty split.
func (e *Engine) Liquidate(liquidator common.Address, loanID uint64) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	loan, err := e.loadLoan(loanID)
	if err != nil {
		return err
	}
	accrueLoanInterest(loan, e.now())

	ratio, err := e.collateralRatio(loan.CollateralAsset)
	if err != nil {
		return err
	}
	debt := loan.Debt()
	if !liquidationEligible(loan.CollateralAmount, debt, ratio) {
		return ErrLiquidationForbidden
	}

	pool, err := e.loadPool(loan.Asset)
	if err != nil {
		return err
	}
	underlying, err := e.underlying(loan.Asset)
	if err != nil {
		return err
	}
	collateral, err := e.underlying(loan.CollateralAsset)
	if err != nil {
		return err
	}

	if err := underlying.TransferFrom(e.moduleAddress, liquidator, e.moduleAddress, debt); err != nil {
		return err
	}
	pool.TotalBorrowed = new(big.Int).Sub(pool.TotalBorrowed, loan.Principal)

	seized := cloneBigInt(loan.CollateralAmount)
	loan.Principal = big.NewInt(0)
	loan.InterestDue = big.NewInt(0)
	loan.CollateralAmount = big.NewInt(0)
	if seized.Sign() > 0 {
		if err := collateral.Transfer(e.moduleAddress, liquidator, seized); err != nil {
			return err
		}
	}
	if err := e.state.PutLoanAndPool(loanID, loan, loan.Asset, pool); err != nil {
		return err
	}

	e.emit(events.Liquidated{Liquidator: liquidator, LoanID: loanID})
	return nil
}

// UpdateLoanInterest recomputes the loan's interest from whole elapsed days
// and returns the newly computed amount. Fractional-day elapses leave the
// loan untouched and return zero.
func (e *Engine) UpdateLoanInterest(loanID uint64) (*big.Int, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	loan, err := e.loadLoan(loanID)
	if err != nil {
		return nil, err
	}
	interest, changed := accrueLoanInterest(loan, e.now())
	if !changed {
		return big.NewInt(0), nil
	}
	if err := e.state.PutLoan(loanID, loan); err != nil {
		return nil, err
	}
	return interest, nil
}

// GetPool returns the pool state for an asset. Unknown assets yield a
// zero-valued pool, never an error.
func (e *Engine) GetPool(asset common.Address) (*Pool, error) {
	if e.state == nil {
		return nil, errNilState
	}
	pool, err := e.state.GetPool(asset)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &Pool{}
	}
	return pool.Clone().ensureDefaults(), nil
}

// GetLoan returns the loan record for an id. Ids that were never assigned
// yield a zero-valued loan, never an error.
func (e *Engine) GetLoan(loanID uint64) (*Loan, error) {
	if e.state == nil {
		return nil, errNilState
	}
	loan, err := e.state.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		loan = &Loan{}
	}
	return loan.Clone().ensureDefaults(), nil
}

// GetScaledCollateralRatio returns the required collateralization ratio for
// an asset, zero when the asset is not accepted as collateral.
func (e *Engine) GetScaledCollateralRatio(asset common.Address) (*big.Int, error) {
	return e.collateralRatio(asset)
}

func (e *Engine) loadPool(asset common.Address) (*Pool, error) {
	if e.state == nil {
		return nil, errNilState
	}
	pool, err := e.state.GetPool(asset)
	if err != nil {
		return nil, err
	}
	if !pool.Exists() {
		return nil, ErrPoolNotFound
	}
	return pool.Clone().ensureDefaults(), nil
}

func (e *Engine) loadLoan(id uint64) (*Loan, error) {
	if e.state == nil {
		return nil, errNilState
	}
	loan, err := e.state.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if !loan.Exists() {
		return nil, ErrLoanNotFound
	}
	return loan.Clone().ensureDefaults(), nil
}

func (e *Engine) underlying(asset common.Address) (Token, error) {
	if e.tokens == nil {
		return nil, errNilTokens
	}
	return e.tokens.Token(asset)
}

func (e *Engine) shareToken(pool *Pool) (ShareToken, error) {
	if e.shares == nil {
		return nil, errNilShareFactory
	}
	return e.shares.Share(pool.ShareToken)
}

func (e *Engine) collateralRatio(asset common.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	ratio, err := e.state.GetCollateralRatio(asset)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(ratio), nil
}

// refreshRate recomputes the pool's borrow rate from utilisation, once per
// timestamp. The refreshed rate is returned and written into the pool clone;
// persisting the pool is the caller's responsibility.
func (e *Engine) refreshRate(pool *Pool, underlying Token) *big.Int {
	now := e.now()
	if pool.LastRateUpdate == now {
		return cloneBigInt(pool.ScaledInterestRate)
	}
	held := underlying.BalanceOf(e.moduleAddress)
	pool.ScaledInterestRate = nextInterestRate(pool.ScaledInterestRate, pool.TotalBorrowed, held)
	pool.LastRateUpdate = now
	return cloneBigInt(pool.ScaledInterestRate)
}
