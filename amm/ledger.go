// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Ledger holds token balances for every account outside the pool manager's
// custody. It stands in for ERC20 contracts and native balances.
type Ledger struct {
	mu       sync.RWMutex
	balances map[Currency]map[common.Address]*uint256.Int
	frozen   map[common.Address]bool

	// wrapped is the ERC20 wrapper of the native coin, if any
	wrapped Currency
}

// NewLedger creates an empty ledger. wrapped may be the zero currency when the
// chain has no wrapped native asset.
func NewLedger(wrapped Currency) *Ledger {
	return &Ledger{
		balances: make(map[Currency]map[common.Address]*uint256.Int),
		frozen:   make(map[common.Address]bool),
		wrapped:  wrapped,
	}
}

// BalanceOf returns a copy of the account's balance
func (l *Ledger) BalanceOf(currency Currency, account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[currency][account]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Mint credits new tokens to an account
func (l *Ledger) Mint(currency Currency, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(currency, to, amount)
}

// Freeze makes every transfer to the account fail, modelling a recipient
// that rejects incoming payments.
func (l *Ledger) Freeze(account common.Address, frozen bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if frozen {
		l.frozen[account] = true
		return
	}
	delete(l.frozen, account)
}

// Transfer moves tokens between two accounts
func (l *Ledger) Transfer(currency Currency, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen[to] {
		return fmt.Errorf("%w: %s", ErrAccountFrozen, to.Hex())
	}
	if err := l.debit(currency, from, amount); err != nil {
		return err
	}
	return l.credit(currency, to, amount)
}

// Unwrap burns wrapped native tokens and pays out the native coin.
func (l *Ledger) Unwrap(account common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.wrapped.IsNative() {
		return ErrNotWrappedNativeAsset
	}
	if l.frozen[account] {
		return fmt.Errorf("%w: %s", ErrAccountFrozen, account.Hex())
	}
	if err := l.debit(l.wrapped, account, amount); err != nil {
		return err
	}
	return l.credit(NativeCurrency, account, amount)
}

// release pays tokens out of pool manager custody.
func (l *Ledger) release(currency Currency, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(currency, to, amount)
}

// collect pulls tokens into pool manager custody.
func (l *Ledger) collect(currency Currency, from common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debit(currency, from, amount)
}

// Wrapped returns the wrapped native currency
func (l *Ledger) Wrapped() Currency {
	return l.wrapped
}

// credit requires l.mu.
func (l *Ledger) credit(currency Currency, to common.Address, amount *uint256.Int) error {
	if l.frozen[to] {
		return fmt.Errorf("%w: %s", ErrAccountFrozen, to.Hex())
	}
	accounts, ok := l.balances[currency]
	if !ok {
		accounts = make(map[common.Address]*uint256.Int)
		l.balances[currency] = accounts
	}
	bal, ok := accounts[to]
	if !ok {
		bal = new(uint256.Int)
		accounts[to] = bal
	}
	if _, overflow := bal.AddOverflow(bal, amount); overflow {
		return fmt.Errorf("balance overflow for %s", to.Hex())
	}
	return nil
}

// debit requires l.mu.
func (l *Ledger) debit(currency Currency, from common.Address, amount *uint256.Int) error {
	bal, ok := l.balances[currency][from]
	if !ok {
		bal = new(uint256.Int)
	}
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s of %s, needs %s",
			ErrInsufficientBalance, from.Hex(), bal.Dec(), currency, amount.Dec())
	}
	if ok {
		bal.Sub(bal, amount)
	}
	return nil
}

type ledgerSnapshot map[Currency]map[common.Address]*uint256.Int

func (l *Ledger) snapshot() ledgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := make(ledgerSnapshot, len(l.balances))
	for c, accounts := range l.balances {
		copied := make(map[common.Address]*uint256.Int, len(accounts))
		for a, bal := range accounts {
			copied[a] = bal.Clone()
		}
		snap[c] = copied
	}
	return snap
}

func (l *Ledger) restore(snap ledgerSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = snap
}
