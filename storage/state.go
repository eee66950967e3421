package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DavNej/lending-protocol/lending"
)

var (
	poolPrefix  = []byte("lend/pool/")
	loanPrefix  = []byte("lend/loan/")
	ratioPrefix = []byte("lend/ratio/")
	loanSeqKey  = []byte("lend/seq/loan")
)

// State persists the lending ledger's Pool, Loan and collateral-ratio tables
// in a key-value Database. Records are JSON-encoded; loan ids are allocated
// from a monotonic sequence starting at 1.
type State struct {
	seqMu sync.Mutex
	db    Database
}

// NewState wraps a Database as a lending state backend.
func NewState(db Database) *State {
	return &State{db: db}
}

// GetPool loads the pool record for an asset, nil when absent.
func (s *State) GetPool(asset common.Address) (*lending.Pool, error) {
	raw, err := s.db.Get(poolKey(asset))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pool := &lending.Pool{}
	if err := json.Unmarshal(raw, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

// PutPool stores the pool record for an asset.
func (s *State) PutPool(asset common.Address, pool *lending.Pool) error {
	raw, err := json.Marshal(pool)
	if err != nil {
		return err
	}
	return s.db.Put(poolKey(asset), raw)
}

// GetLoan loads the loan record for an id, nil when never assigned.
func (s *State) GetLoan(id uint64) (*lending.Loan, error) {
	raw, err := s.db.Get(loanKey(id))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	loan := &lending.Loan{}
	if err := json.Unmarshal(raw, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// PutLoan stores the loan record for an id.
func (s *State) PutLoan(id uint64, loan *lending.Loan) error {
	raw, err := json.Marshal(loan)
	if err != nil {
		return err
	}
	return s.db.Put(loanKey(id), raw)
}

// PutLoanAndPool stores a loan together with its pool in one atomic batch, so
// a backend failure can never record the loan without the matching pool
// accounting.
func (s *State) PutLoanAndPool(id uint64, loan *lending.Loan, asset common.Address, pool *lending.Pool) error {
	loanRaw, err := json.Marshal(loan)
	if err != nil {
		return err
	}
	poolRaw, err := json.Marshal(pool)
	if err != nil {
		return err
	}
	return s.db.WriteBatch([]Entry{
		{Key: loanKey(id), Value: loanRaw},
		{Key: poolKey(asset), Value: poolRaw},
	})
}

// NextLoanID allocates the next loan id. Ids start at 1, strictly increase
// and are never reused, even across restarts.
func (s *State) NextLoanID() (uint64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	var last uint64
	raw, err := s.db.Get(loanSeqKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
	case err != nil:
		return 0, err
	case len(raw) == 8:
		last = binary.BigEndian.Uint64(raw)
	}

	next := last + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := s.db.Put(loanSeqKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// GetCollateralRatio loads the required scaled ratio for a collateral asset,
// nil when the asset was never configured.
func (s *State) GetCollateralRatio(asset common.Address) (*big.Int, error) {
	raw, err := s.db.Get(ratioKey(asset))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ratio, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, errors.New("storage: malformed collateral ratio record")
	}
	return ratio, nil
}

// PutCollateralRatio stores the required scaled ratio for a collateral asset.
func (s *State) PutCollateralRatio(asset common.Address, ratio *big.Int) error {
	if ratio == nil {
		ratio = big.NewInt(0)
	}
	return s.db.Put(ratioKey(asset), []byte(ratio.String()))
}

func poolKey(asset common.Address) []byte {
	return append(append([]byte(nil), poolPrefix...), asset.Bytes()...)
}

func loanKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return append(append([]byte(nil), loanPrefix...), buf...)
}

func ratioKey(asset common.Address) []byte {
	return append(append([]byte(nil), ratioPrefix...), asset.Bytes()...)
}
