// Package token defines the transfer surface pools settle against and an
// in-memory ledger implementation of it.
package token

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrNonPositiveAmount   = errors.New("transfer amount must be positive")
)

// Transferer moves token balances between holders. Pools use it both to
// pay out and to verify that callbacks delivered what they owed.
type Transferer interface {
	// BalanceOf returns the holder's balance of the given token. The
	// returned value must not be retained or mutated by the implementation
	// after it is handed out.
	BalanceOf(token, holder common.Address) *big.Int

	// Transfer moves amount of token from one holder to another. It must
	// either complete fully or leave balances untouched.
	Transfer(token, from, to common.Address, amount *big.Int) error
}

// Ledger is an in-memory Transferer keyed by token then holder. It is safe
// for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// Mint credits amount of token to the holder, creating the balance if it
// does not exist yet.
func (l *Ledger) Mint(token, holder common.Address, amount *big.Int) {
	if amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		l.balances[token] = holders
	}
	if balance, ok := holders[holder]; ok {
		balance.Add(balance, amount)
	} else {
		holders[holder] = new(big.Int).Set(amount)
	}
}

// BalanceOf returns a copy of the holder's balance, zero if none exists.
func (l *Ledger) BalanceOf(token, holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if balance, ok := l.balances[token][holder]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

// Transfer moves amount of token between holders, failing without any
// effect if the sender's balance does not cover it.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	if amount.Sign() == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	source, ok := l.balances[token][from]
	if !ok || source.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	source.Sub(source, amount)

	holders := l.balances[token]
	if dest, ok := holders[to]; ok {
		dest.Add(dest, amount)
	} else {
		holders[to] = new(big.Int).Set(amount)
	}
	return nil
}
