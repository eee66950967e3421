package token

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"lukechampine.com/blake3"

	"github.com/DavNej/lending-protocol/lending"
)

// Share is the receipt-token issuer spawned for a lending pool. Minting and
// burning are a capability of whoever holds the full issuer: the Factory only
// hands it to the ledger engine, everything else reads supply through
// Factory.ShareSupply.
type Share struct {
	addr   common.Address
	ledger *Ledger
}

// Address returns the deterministic identifier of the share token.
func (s *Share) Address() common.Address { return s.addr }

// Name returns the share token's display name.
func (s *Share) Name() string { return s.ledger.Name() }

// Symbol returns the share token's ticker symbol.
func (s *Share) Symbol() string { return s.ledger.Symbol() }

// TotalSupply returns the outstanding share supply, the sole record of
// proportional claims on the pool's assets.
func (s *Share) TotalSupply() *big.Int { return s.ledger.TotalSupply() }

// BalanceOf returns the shares held by an account.
func (s *Share) BalanceOf(account common.Address) *big.Int { return s.ledger.BalanceOf(account) }

// Mint issues new shares to an account.
func (s *Share) Mint(to common.Address, amount *big.Int) error { return s.ledger.Mint(to, amount) }

// Burn destroys shares held by an account.
func (s *Share) Burn(from common.Address, amount *big.Int) error { return s.ledger.burn(from, amount) }

// Factory creates and resolves the share-token issuers owned by a single
// lending ledger. Issuer addresses are derived from the ledger and underlying
// asset, so recreating a pool's issuer always lands on the same identifier.
type Factory struct {
	mu     sync.RWMutex
	ledger common.Address
	shares map[common.Address]*Share
}

// NewFactory creates a share factory bound to the given ledger address.
func NewFactory(ledger common.Address) *Factory {
	return &Factory{
		ledger: ledger,
		shares: make(map[common.Address]*Share),
	}
}

// Create spawns the issuer for an asset's pool, or returns the existing one:
// derivation is deterministic, so re-registering after a restart is safe.
func (f *Factory) Create(asset common.Address, name, symbol string) (lending.ShareToken, error) {
	addr := shareAddress(f.ledger, asset)
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.shares[addr]; ok {
		return existing, nil
	}
	share := &Share{addr: addr, ledger: NewLedger(name, symbol)}
	f.shares[addr] = share
	return share, nil
}

// Share resolves a previously created issuer by its token address.
func (f *Factory) Share(tokenAddr common.Address) (lending.ShareToken, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	share, ok := f.shares[tokenAddr]
	if !ok {
		return nil, ErrUnknownToken
	}
	return share, nil
}

// ShareSupply exposes a share token's total supply without granting mint or
// burn rights.
func (f *Factory) ShareSupply(tokenAddr common.Address) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	share, ok := f.shares[tokenAddr]
	if !ok {
		return nil, ErrUnknownToken
	}
	return share.TotalSupply(), nil
}

// shareAddress derives the issuer identifier from the ledger and underlying
// asset.
func shareAddress(ledger, asset common.Address) common.Address {
	material := make([]byte, 0, common.AddressLength*2)
	material = append(material, ledger.Bytes()...)
	material = append(material, asset.Bytes()...)
	sum := blake3.Sum256(material)
	return common.BytesToAddress(sum[:common.AddressLength])
}

// burn removes tokens from an account and reduces the total supply.
func (l *Ledger) burn(from common.Address, amount *big.Int) error {
	value, err := toWord(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[from]
	if value.Sign() > 0 && (!ok || bal.Lt(value)) {
		return ErrInsufficientBalance
	}
	if value.Sign() == 0 {
		return nil
	}
	l.balances[from] = new(uint256.Int).Sub(bal, value)
	l.supply = new(uint256.Int).Sub(l.supply, value)
	return nil
}
