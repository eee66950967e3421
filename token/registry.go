package token

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DavNej/lending-protocol/lending"
)

// Registry maps asset identifiers to their transfer interfaces. Assets are
// registered once at wiring time; lookups are concurrent-safe.
type Registry struct {
	mu     sync.RWMutex
	tokens map[common.Address]*Ledger
}

// NewRegistry creates an empty asset registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[common.Address]*Ledger)}
}

// Register adds an asset ledger under the given identifier, replacing any
// previous registration.
func (r *Registry) Register(asset common.Address, ledger *Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[asset] = ledger
}

// Token resolves an asset identifier to its transfer interface.
func (r *Registry) Token(asset common.Address) (lending.Token, error) {
	ledger, ok := r.Ledger(asset)
	if !ok {
		return nil, ErrUnknownToken
	}
	return ledger, nil
}

// Ledger resolves the concrete ledger for an asset, for wiring code that
// needs mint access.
func (r *Registry) Ledger(asset common.Address) (*Ledger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ledger, ok := r.tokens[asset]
	return ledger, ok
}
