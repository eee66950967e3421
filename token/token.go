package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance signals a transfer exceeding the holder's
	// balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance signals a delegated transfer exceeding the
	// spender's approval.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	// ErrAmountOutOfRange signals an amount that is negative or does not fit
	// the 256-bit balance width.
	ErrAmountOutOfRange = errors.New("token: amount out of range")
	// ErrNotAuthorized signals a mint or burn attempted by anyone but the
	// issuer's owner.
	ErrNotAuthorized = errors.New("token: caller not authorized")
	// ErrUnknownToken signals a lookup for an asset the registry has never
	// seen.
	ErrUnknownToken = errors.New("token: unknown token")
)

// Ledger is an in-memory fungible token with standard transfer/approve
// semantics. Balances and allowances are kept as 256-bit integers; the
// *big.Int boundary is range-checked on the way in.
type Ledger struct {
	mu sync.RWMutex

	name       string
	symbol     string
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
	supply     *uint256.Int
}

// NewLedger creates an empty token ledger.
func NewLedger(name, symbol string) *Ledger {
	return &Ledger{
		name:       name,
		symbol:     symbol,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
		supply:     uint256.NewInt(0),
	}
}

// Name returns the token's display name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the token's ticker symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// TotalSupply returns the amount of tokens in existence.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply.ToBig()
}

// BalanceOf returns the balance held by an account.
func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[account]; ok {
		return bal.ToBig()
	}
	return big.NewInt(0)
}

// Allowance returns the remaining approval from owner to spender.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if approved, ok := l.allowances[owner][spender]; ok {
		return approved.ToBig()
	}
	return big.NewInt(0)
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	value, err := toWord(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, value)
}

// TransferFrom moves amount on behalf of the holder, consuming the spender's
// allowance. A spender equal to the holder spends its own funds directly.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	value, err := toWord(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if spender != from {
		approved, ok := l.allowances[from][spender]
		if !ok || approved.Lt(value) {
			return ErrInsufficientAllowance
		}
		l.allowances[from][spender] = new(uint256.Int).Sub(approved, value)
	}
	return l.move(from, to, value)
}

// Approve sets the spender's allowance over the owner's funds.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	value, err := toWord(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.allowances[owner]; !ok {
		l.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	l.allowances[owner][spender] = value
	return nil
}

// Mint credits freshly issued tokens to an account. Intended for bootstrap
// seeding and tests; production assets arrive with their supply already
// distributed.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	value, err := toWord(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(to, value)
	l.supply = new(uint256.Int).Add(l.supply, value)
	return nil
}

func (l *Ledger) move(from, to common.Address, value *uint256.Int) error {
	bal, ok := l.balances[from]
	if value.Sign() > 0 && (!ok || bal.Lt(value)) {
		return ErrInsufficientBalance
	}
	if value.Sign() == 0 {
		return nil
	}
	l.balances[from] = new(uint256.Int).Sub(bal, value)
	l.credit(to, value)
	return nil
}

func (l *Ledger) credit(to common.Address, value *uint256.Int) {
	if existing, ok := l.balances[to]; ok {
		l.balances[to] = new(uint256.Int).Add(existing, value)
		return
	}
	l.balances[to] = value.Clone()
}

func toWord(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrAmountOutOfRange
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrAmountOutOfRange
	}
	return value, nil
}
