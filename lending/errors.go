package lending

import "errors"

// Guard failures surface as distinct error kinds so callers can branch on
// cause with errors.Is. Every failure aborts the enclosing operation with no
// partial state mutation and no external transfer performed.
var (
	// ErrZeroAddress rejects the null identifier where a real asset or
	// account is required.
	ErrZeroAddress = errors.New("lending engine: zero address")
	// ErrZeroAmount rejects non-positive amounts.
	ErrZeroAmount = errors.New("lending engine: amount must be positive")
	// ErrPoolAlreadyExists rejects pool creation for an asset that already
	// has a pool.
	ErrPoolAlreadyExists = errors.New("lending engine: pool already exists")
	// ErrPoolNotFound rejects operations against an asset with no pool.
	ErrPoolNotFound = errors.New("lending engine: pool not found")
	// ErrLoanNotFound rejects operations against a loan id that was never
	// assigned or is administratively absent.
	ErrLoanNotFound = errors.New("lending engine: loan not found")
	// ErrNotEnoughLiquidity rejects withdrawals and borrows exceeding the
	// asset balance currently held by the ledger.
	ErrNotEnoughLiquidity = errors.New("lending engine: not enough liquidity")
	// ErrInsufficientLPTokens rejects withdrawals burning more shares than
	// the caller holds.
	ErrInsufficientLPTokens = errors.New("lending engine: insufficient lp tokens")
	// ErrInsufficientCollateral rejects borrows and collateral removals that
	// would leave the loan below its required collateralization ratio.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrCollateralNotAccepted rejects collateral assets whose required
	// ratio is zero.
	ErrCollateralNotAccepted = errors.New("lending engine: collateral not accepted")
	// ErrLiquidationForbidden rejects liquidation of a loan that is still
	// sufficiently collateralized.
	ErrLiquidationForbidden = errors.New("lending engine: liquidation forbidden")
	// ErrUnauthorized rejects owner-only configuration from any other caller.
	ErrUnauthorized = errors.New("lending engine: caller is not the owner")
	// ErrReentrantCall rejects a nested invocation while another operation
	// holds the engine lock.
	ErrReentrantCall = errors.New("lending engine: reentrant call")
)

var (
	errNilState        = errors.New("lending engine: state not configured")
	errNilTokens       = errors.New("lending engine: token registry not configured")
	errNilShareFactory = errors.New("lending engine: share factory not configured")
)
