package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is the fungible-asset transfer interface the engine depends on. The
// ledger has no ambient caller, so the spender/holder is always explicit. Any
// failure is fatal to the enclosing operation.
type Token interface {
	Name() string
	Symbol() string
	BalanceOf(account common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
	Approve(owner, spender common.Address, amount *big.Int) error
}

// ShareToken is the receipt-token issuer created for each pool. Mint and burn
// are reserved to the ledger: only the engine ever holds this interface, every
// other component sees a read-only view.
type ShareToken interface {
	Address() common.Address
	TotalSupply() *big.Int
	BalanceOf(account common.Address) *big.Int
	Mint(to common.Address, amount *big.Int) error
	Burn(from common.Address, amount *big.Int) error
}

// TokenRegistry resolves asset identifiers to their transfer interfaces.
type TokenRegistry interface {
	Token(asset common.Address) (Token, error)
}

// ShareFactory creates and resolves the share-token issuers owned by the
// ledger.
type ShareFactory interface {
	Create(asset common.Address, name, symbol string) (ShareToken, error)
	Share(token common.Address) (ShareToken, error)
}
