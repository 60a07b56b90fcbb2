// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/luxfi/launchmm/amm"
	"github.com/luxfi/launchmm/clmath"
)

// Inventory is the fee inventory a pool's hook holds for netting
type Inventory struct {
	Native *uint256.Int
	Other  *uint256.Int
}

func (i Inventory) clone() Inventory {
	return Inventory{Native: i.Native.Clone(), Other: i.Other.Clone()}
}

func zeroInventory() Inventory {
	return Inventory{Native: new(uint256.Int), Other: new(uint256.Int)}
}

// Netting sells fee inventory of the launched token to buyers before their
// trade reaches the curve, at the curve's own price.
type Netting struct {
	mu        sync.RWMutex
	inventory map[amm.PoolID]*Inventory
	engine    PoolEngine
}

func newNetting(engine PoolEngine) *Netting {
	return &Netting{inventory: make(map[amm.PoolID]*Inventory), engine: engine}
}

// Inventory returns a copy of the pool's inventory
func (n *Netting) Inventory(id amm.PoolID) Inventory {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if inv, ok := n.inventory[id]; ok {
		return inv.clone()
	}
	return zeroInventory()
}

// Deposit adds to the pool's inventory
func (n *Netting) Deposit(id amm.PoolID, native, other *uint256.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	inv := n.entry(id)
	if native != nil {
		inv.Native = new(uint256.Int).Add(inv.Native, native)
	}
	if other != nil {
		inv.Other = new(uint256.Int).Add(inv.Other, other)
	}
}

// DrainNative empties the native inventory and returns it
func (n *Netting) DrainNative(id amm.PoolID) *uint256.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	inv, ok := n.inventory[id]
	if !ok {
		return new(uint256.Int)
	}
	out := inv.Native
	inv.Native = new(uint256.Int)
	return out
}

// Attempt fills as much of a buy of the launched token as the inventory
// allows. Only native-in trades are netted. Exact-output trades are capped at
// the inventory; exact-input trades are priced in full and then scaled down.
// The result never spends more than the inventory held, nor prices past
// sqrtPriceLimitX96. A nil limit prices up to the edge of the curve.
func (n *Netting) Attempt(
	id amm.PoolID,
	nativeIn bool,
	nativeIsZero bool,
	amountSpecified *big.Int,
	sqrtPriceX96, sqrtPriceLimitX96, liquidity *uint256.Int,
) (nativeUsed, otherUsed *uint256.Int, err error) {
	nativeUsed, otherUsed = new(uint256.Int), new(uint256.Int)
	if !nativeIn || amountSpecified == nil || amountSpecified.Sign() == 0 {
		return nativeUsed, otherUsed, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	inv, ok := n.inventory[id]
	if !ok || inv.Other.IsZero() {
		return nativeUsed, otherUsed, nil
	}

	// native in moves the price toward the launched token getting dearer
	zeroForOne := nativeIsZero
	target := sqrtPriceLimitX96
	switch {
	case target == nil && zeroForOne:
		target = new(uint256.Int).AddUint64(clmath.MinSqrtRatio, 1)
	case target == nil:
		target = new(uint256.Int).SubUint64(clmath.MaxSqrtRatio, 1)
	case zeroForOne && !target.Lt(sqrtPriceX96), !zeroForOne && !target.Gt(sqrtPriceX96):
		// the limit leaves no room to move
		return nativeUsed, otherUsed, nil
	}

	amount, overflow := uint256.FromBig(new(big.Int).Abs(amountSpecified))
	if overflow {
		return nativeUsed, otherUsed, clmath.ErrMulDivOverflow
	}
	if amountSpecified.Sign() > 0 {
		if amount.Gt(inv.Other) {
			amount = inv.Other.Clone()
		}
		step, err := n.engine.PriceSwapStep(sqrtPriceX96, target, liquidity, amount, false, 0)
		if err != nil {
			return nativeUsed, otherUsed, err
		}
		nativeUsed, otherUsed = step.AmountIn, step.AmountOut
	} else {
		step, err := n.engine.PriceSwapStep(sqrtPriceX96, target, liquidity, amount, true, 0)
		if err != nil {
			return nativeUsed, otherUsed, err
		}
		nativeUsed, otherUsed = step.AmountIn, step.AmountOut
		if otherUsed.Gt(inv.Other) {
			if nativeUsed, err = clmath.MulDiv(nativeUsed, inv.Other, otherUsed); err != nil {
				return new(uint256.Int), new(uint256.Int), err
			}
			otherUsed = inv.Other.Clone()
		}
	}
	if otherUsed.Gt(inv.Other) {
		otherUsed = inv.Other.Clone()
	}
	if nativeUsed.IsZero() || otherUsed.IsZero() {
		return new(uint256.Int), new(uint256.Int), nil
	}

	inv.Native = new(uint256.Int).Add(inv.Native, nativeUsed)
	inv.Other = new(uint256.Int).Sub(inv.Other, otherUsed)
	return nativeUsed, otherUsed, nil
}

// entry requires n.mu.
func (n *Netting) entry(id amm.PoolID) *Inventory {
	inv, ok := n.inventory[id]
	if !ok {
		fresh := zeroInventory()
		inv = &fresh
		n.inventory[id] = inv
	}
	return inv
}

func (n *Netting) snapshot(id amm.PoolID) *Inventory {
	n.mu.RLock()
	defer n.mu.RUnlock()
	inv, ok := n.inventory[id]
	if !ok {
		return nil
	}
	copied := inv.clone()
	return &copied
}

func (n *Netting) restore(id amm.PoolID, inv *Inventory) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if inv == nil {
		delete(n.inventory, id)
		return
	}
	copied := inv.clone()
	n.inventory[id] = &copied
}
