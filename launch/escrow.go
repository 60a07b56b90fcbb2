// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/launchmm/amm"
)

var (
	balancePrefix = []byte("escrow/balance")
	totalPrefix   = []byte("escrow/total")
)

type journalEntry struct {
	key  []byte
	prev []byte // nil when the key was absent
}

// Escrow holds balances owed to recipients until they withdraw them. Every
// write is journaled so a failed session can be unwound.
type Escrow struct {
	mu      sync.Mutex
	db      database.Database
	journal []journalEntry
}

// NewEscrow creates an escrow over db
func NewEscrow(db database.Database) *Escrow {
	return &Escrow{db: db}
}

func balanceKey(recipient common.Address, currency amm.Currency) []byte {
	h := blake3.New()
	h.Write(balancePrefix)
	h.Write(recipient.Bytes())
	h.Write(currency.Address.Bytes())
	return h.Sum(nil)
}

func totalKey(currency amm.Currency) []byte {
	h := blake3.New()
	h.Write(totalPrefix)
	h.Write(currency.Address.Bytes())
	return h.Sum(nil)
}

// Balance returns what recipient can withdraw in currency
func (e *Escrow) Balance(recipient common.Address, currency amm.Currency) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.get(balanceKey(recipient, currency))
}

// Total returns the sum of all balances held in currency
func (e *Escrow) Total(currency amm.Currency) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.get(totalKey(currency))
}

// Credit adds amount to recipient's balance
func (e *Escrow) Credit(recipient common.Address, currency amm.Currency, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.add(balanceKey(recipient, currency), amount); err != nil {
		return err
	}
	return e.add(totalKey(currency), amount)
}

// Take zeroes recipient's balance and returns what it held
func (e *Escrow) Take(recipient common.Address, currency amm.Currency) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := balanceKey(recipient, currency)
	amount, err := e.get(key)
	if err != nil || amount.IsZero() {
		return amount, err
	}
	total, err := e.get(totalKey(currency))
	if err != nil {
		return nil, err
	}
	if total.Lt(amount) {
		return nil, fmt.Errorf("%w: escrow total below balance", ErrInvariantViolation)
	}
	if err := e.put(key, new(uint256.Int)); err != nil {
		return nil, err
	}
	if err := e.put(totalKey(currency), new(uint256.Int).Sub(total, amount)); err != nil {
		return nil, err
	}
	return amount, nil
}

// mark returns a position in the journal to revert to
func (e *Escrow) mark() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.journal)
}

// revertTo undoes every write made after mark
func (e *Escrow) revertTo(mark int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.journal) - 1; i >= mark; i-- {
		entry := e.journal[i]
		var err error
		if entry.prev == nil {
			err = e.db.Delete(entry.key)
		} else {
			err = e.db.Put(entry.key, entry.prev)
		}
		if err != nil {
			return err
		}
	}
	if mark < len(e.journal) {
		e.journal = e.journal[:mark]
	}
	return nil
}

// commit forgets the journal from mark on
func (e *Escrow) commit(mark int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if mark < len(e.journal) {
		e.journal = e.journal[:mark]
	}
}

// get requires e.mu.
func (e *Escrow) get(key []byte) (*uint256.Int, error) {
	raw, err := e.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(raw), nil
}

// put requires e.mu.
func (e *Escrow) put(key []byte, value *uint256.Int) error {
	prev, err := e.db.Get(key)
	switch {
	case errors.Is(err, database.ErrNotFound):
		prev = nil
	case err != nil:
		return err
	}
	e.journal = append(e.journal, journalEntry{key: key, prev: prev})
	b := value.Bytes32()
	return e.db.Put(key, b[:])
}

// add requires e.mu.
func (e *Escrow) add(key []byte, amount *uint256.Int) error {
	current, err := e.get(key)
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return fmt.Errorf("%w: escrow balance overflow", ErrInvariantViolation)
	}
	return e.put(key, sum)
}
