// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/launchmm/clmath"
)

var (
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// PoolManager is the singleton pool engine. All pools live here, which
// enables flash accounting: during an unlocked session token movements are
// tracked as per-account deltas and only have to net to zero at the end.
type PoolManager struct {
	// session serialises unlocked sessions. Re-entering Unlock from inside
	// a session deadlocks.
	session sync.Mutex

	// mu protects the state below. It is never held across a hook call.
	mu sync.RWMutex

	log     log.Logger
	address common.Address
	ledger  *Ledger
	hooks   *HookRegistry

	unlocked bool

	// pools stores all pool states by pool ID
	pools map[PoolID]*Pool

	// positions stores all liquidity positions
	// Key: BLAKE3(poolID || owner || tickLower || tickUpper || salt)
	positions map[[32]byte]*Position

	// deltas tracks what each account is owed (+) or owes (-) in the
	// current session
	deltas map[common.Address]map[Currency]*big.Int

	// reserves is what custody holds per currency. It may dip below zero
	// inside a session but not at its end.
	reserves map[Currency]*big.Int

	checkpointed map[checkpointKey]struct{}
	reverts      []func()
	commits      []func()
}

type checkpointKey struct {
	c  Checkpointer
	id PoolID
}

type managerSnapshot struct {
	pools     map[PoolID]*Pool
	positions map[[32]byte]*Position
	reserves  map[Currency]*big.Int
}

// NewPoolManager creates a new pool manager instance. address is the custody
// account that holds pool reserves in the ledger.
func NewPoolManager(address common.Address, ledger *Ledger, logger log.Logger) *PoolManager {
	return &PoolManager{
		log:       logger,
		address:   address,
		ledger:    ledger,
		hooks:     NewHookRegistry(),
		pools:     make(map[PoolID]*Pool),
		positions: make(map[[32]byte]*Position),
		deltas:    make(map[common.Address]map[Currency]*big.Int),
		reserves:  make(map[Currency]*big.Int),
	}
}

// Address returns the custody address
func (pm *PoolManager) Address() common.Address { return pm.address }

// Ledger returns the token ledger backing the engine
func (pm *PoolManager) Ledger() *Ledger { return pm.ledger }

// RegisterHook binds a hook implementation to its address
func (pm *PoolManager) RegisterHook(addr common.Address, hooks Hooks) error {
	return pm.hooks.Register(addr, hooks)
}

// =========================================================================
// Pool Initialization
// =========================================================================

// Initialize creates a pool at the given price and returns its tick.
func (pm *PoolManager) Initialize(sender common.Address, key PoolKey, sqrtPriceX96 *uint256.Int) (int32, error) {
	if !key.Currency0.Less(key.Currency1) {
		return 0, ErrCurrencyNotSorted
	}
	if key.Fee >= clmath.MaxFeePips {
		return 0, ErrInvalidFee
	}
	if key.TickSpacing < 1 || key.TickSpacing > 32767 {
		return 0, ErrInvalidTickSpacing
	}
	tick, err := clmath.TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSqrtPrice, err)
	}

	if key.Hooks != (common.Address{}) {
		hook, ok := pm.hooks.Get(key.Hooks)
		if !ok {
			return 0, ErrUnregisteredHookAddress
		}
		if HasPermission(key.Hooks, HookBeforeInitialize) {
			if err := hook.(InitializeHook).BeforeInitialize(sender, key, sqrtPriceX96); err != nil {
				return 0, err
			}
		}
	}

	id := key.ID()
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, ok := pm.pools[id]; ok {
		return 0, ErrPoolAlreadyInitialized
	}
	pm.pools[id] = newPool(key, sqrtPriceX96, tick)

	pm.log.Debug("pool initialized", "pool", id.Hex(), "tick", tick, "hooks", key.Hooks.Hex())
	return tick, nil
}

// =========================================================================
// Flash Accounting - Unlock Pattern
// =========================================================================

// Unlock runs fn as one all-or-nothing session. Inside fn the caller may
// swap, modify liquidity, take and settle. When fn fails or leaves any
// account with a non-zero delta, every change made during the session is
// rolled back, including the state of checkpointed hooks.
func (pm *PoolManager) Unlock(caller common.Address, fn func() error) error {
	pm.session.Lock()
	defer pm.session.Unlock()

	pm.mu.Lock()
	snap := pm.snapshotLocked()
	pm.unlocked = true
	pm.deltas = make(map[common.Address]map[Currency]*big.Int)
	pm.checkpointed = make(map[checkpointKey]struct{})
	pm.mu.Unlock()
	ledgerSnap := pm.ledger.snapshot()

	err := fn()
	if err == nil {
		err = pm.verifySettlement()
	}

	pm.mu.Lock()
	reverts, commits := pm.reverts, pm.commits
	pm.reverts, pm.commits, pm.checkpointed = nil, nil, nil
	if err != nil {
		pm.pools = snap.pools
		pm.positions = snap.positions
		pm.reserves = snap.reserves
	}
	pm.unlocked = false
	pm.deltas = make(map[common.Address]map[Currency]*big.Int)
	pm.mu.Unlock()

	if err != nil {
		pm.ledger.restore(ledgerSnap)
		for i := len(reverts) - 1; i >= 0; i-- {
			reverts[i]()
		}
		pm.log.Debug("session reverted", "caller", caller.Hex(), "err", err)
		return err
	}
	for _, commit := range commits {
		commit()
	}
	return nil
}

// Checkpoint asks c to capture its state for pool id so it can be rolled back
// with the current session. Repeated calls for the same pair are ignored.
// Outside a session it does nothing.
func (pm *PoolManager) Checkpoint(c Checkpointer, id PoolID) {
	key := checkpointKey{c: c, id: id}
	pm.mu.Lock()
	if !pm.unlocked {
		pm.mu.Unlock()
		return
	}
	if _, ok := pm.checkpointed[key]; ok {
		pm.mu.Unlock()
		return
	}
	pm.checkpointed[key] = struct{}{}
	pm.mu.Unlock()

	revert, commit := c.Checkpoint(id)

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if revert != nil {
		pm.reverts = append(pm.reverts, revert)
	}
	if commit != nil {
		pm.commits = append(pm.commits, commit)
	}
}

// verifySettlement ensures all deltas are zero and custody is solvent
func (pm *PoolManager) verifySettlement() error {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for account, deltas := range pm.deltas {
		for currency, delta := range deltas {
			if delta.Sign() != 0 {
				return fmt.Errorf("%w: account=%s, currency=%s, delta=%s",
					ErrNonZeroDelta, account.Hex(), currency, delta)
			}
		}
	}
	for currency, reserve := range pm.reserves {
		if reserve.Sign() < 0 {
			return fmt.Errorf("%w: currency=%s, reserve=%s", ErrReserveUnderflow, currency, reserve)
		}
	}
	return nil
}

func (pm *PoolManager) snapshotLocked() managerSnapshot {
	snap := managerSnapshot{
		pools:     make(map[PoolID]*Pool, len(pm.pools)),
		positions: make(map[[32]byte]*Position, len(pm.positions)),
		reserves:  make(map[Currency]*big.Int, len(pm.reserves)),
	}
	for id, pool := range pm.pools {
		snap.pools[id] = pool.clone()
	}
	for key, pos := range pm.positions {
		copied := *pos
		copied.Liquidity = pos.Liquidity.Clone()
		snap.positions[key] = &copied
	}
	for currency, reserve := range pm.reserves {
		snap.reserves[currency] = new(big.Int).Set(reserve)
	}
	return snap
}

// Take pays amount of currency out of custody to `to`, charging account's
// delta.
func (pm *PoolManager) Take(account common.Address, currency Currency, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.unlocked {
		return ErrManagerLocked
	}
	if err := pm.ledger.release(currency, to, amount); err != nil {
		return err
	}
	pm.addReserve(currency, new(big.Int).Neg(amount.ToBig()))
	pm.updateDelta(account, currency, new(big.Int).Neg(amount.ToBig()))
	return nil
}

// Settle pulls amount of currency from account into custody, crediting
// account's delta.
func (pm *PoolManager) Settle(account common.Address, currency Currency, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.unlocked {
		return ErrManagerLocked
	}
	if err := pm.ledger.collect(currency, account, amount); err != nil {
		return err
	}
	pm.addReserve(currency, amount.ToBig())
	pm.updateDelta(account, currency, amount.ToBig())
	return nil
}

// CurrencyDelta returns account's open delta in the current session
func (pm *PoolManager) CurrencyDelta(account common.Address, currency Currency) *big.Int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if d, ok := pm.deltas[account][currency]; ok {
		return new(big.Int).Set(d)
	}
	return new(big.Int)
}

// Reserve returns what custody holds of a currency
func (pm *PoolManager) Reserve(currency Currency) *big.Int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if r, ok := pm.reserves[currency]; ok {
		return new(big.Int).Set(r)
	}
	return new(big.Int)
}

// updateDelta requires pm.mu.
func (pm *PoolManager) updateDelta(account common.Address, currency Currency, delta *big.Int) {
	deltas, ok := pm.deltas[account]
	if !ok {
		deltas = make(map[Currency]*big.Int)
		pm.deltas[account] = deltas
	}
	current, ok := deltas[currency]
	if !ok {
		current = new(big.Int)
		deltas[currency] = current
	}
	current.Add(current, delta)
}

// addReserve requires pm.mu.
func (pm *PoolManager) addReserve(currency Currency, delta *big.Int) {
	r, ok := pm.reserves[currency]
	if !ok {
		r = new(big.Int)
		pm.reserves[currency] = r
	}
	r.Add(r, delta)
}

// accountPoolDelta requires pm.mu.
func (pm *PoolManager) accountPoolDelta(account common.Address, key PoolKey, delta BalanceDelta) {
	if delta.Amount0.Sign() != 0 {
		pm.updateDelta(account, key.Currency0, delta.Amount0)
	}
	if delta.Amount1.Sign() != 0 {
		pm.updateDelta(account, key.Currency1, delta.Amount1)
	}
}

// =========================================================================
// Core DEX Operations
// =========================================================================

// Swap executes a swap in a pool. The returned delta is the caller's, after
// any amounts claimed by the pool's hook.
func (pm *PoolManager) Swap(caller common.Address, key PoolKey, params SwapParams, hookData []byte) (BalanceDelta, error) {
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return ZeroBalanceDelta(), ErrSwapAmountZero
	}
	id := key.ID()

	pm.mu.RLock()
	unlocked := pm.unlocked
	_, initialized := pm.pools[id]
	pm.mu.RUnlock()
	if !unlocked {
		return ZeroBalanceDelta(), ErrManagerLocked
	}
	if !initialized {
		return ZeroBalanceDelta(), ErrPoolNotInitialized
	}

	var hook Hooks
	if key.Hooks != (common.Address{}) {
		h, ok := pm.hooks.Get(key.Hooks)
		if !ok {
			return ZeroBalanceDelta(), ErrUnregisteredHookAddress
		}
		hook = h
		if cp, ok := h.(Checkpointer); ok {
			pm.Checkpoint(cp, id)
		}
	}

	amountToSwap := new(big.Int).Set(params.AmountSpecified)
	hookDelta := ZeroBeforeSwapDelta()
	if hook != nil && HasPermission(key.Hooks, HookBeforeSwap) {
		d, err := hook.BeforeSwap(caller, key, params, hookData)
		if err != nil {
			return ZeroBalanceDelta(), err
		}
		if HasPermission(key.Hooks, HookBeforeSwapReturnsDelta) {
			if d.Specified != nil {
				hookDelta.Specified.Set(d.Specified)
			}
			if d.Unspecified != nil {
				hookDelta.Unspecified.Set(d.Unspecified)
			}
			amountToSwap.Add(amountToSwap, hookDelta.Specified)
			if amountToSwap.Sign() != 0 && amountToSwap.Sign() != params.AmountSpecified.Sign() {
				return ZeroBalanceDelta(), ErrHookDeltaExceedsSwap
			}
		}
	}

	swapDelta := ZeroBalanceDelta()
	if amountToSwap.Sign() != 0 {
		var err error
		pm.mu.Lock()
		swapDelta, err = pm.executeSwap(id, params.ZeroForOne, amountToSwap, params.SqrtPriceLimitX96)
		pm.mu.Unlock()
		if err != nil {
			return ZeroBalanceDelta(), err
		}
	}

	specifiedIs0 := params.SpecifiedIsCurrency0()
	hookBalance := toBalanceDelta(hookDelta.Specified, hookDelta.Unspecified, specifiedIs0)

	if hook != nil && HasPermission(key.Hooks, HookAfterSwap) {
		unspecified, err := hook.AfterSwap(caller, key, params, swapDelta, hookData)
		if err != nil {
			return ZeroBalanceDelta(), err
		}
		if HasPermission(key.Hooks, HookAfterSwapReturnsDelta) && unspecified != nil && unspecified.Sign() != 0 {
			hookBalance = hookBalance.Add(toBalanceDelta(new(big.Int), unspecified, specifiedIs0))
		}
	}

	callerDelta := swapDelta.Sub(hookBalance)
	if err := checkInt128(callerDelta); err != nil {
		return ZeroBalanceDelta(), err
	}

	pm.mu.Lock()
	pm.accountPoolDelta(caller, key, callerDelta)
	if hook != nil {
		pm.accountPoolDelta(key.Hooks, key, hookBalance)
	}
	pm.mu.Unlock()

	return callerDelta, nil
}

func toBalanceDelta(specified, unspecified *big.Int, specifiedIs0 bool) BalanceDelta {
	if specifiedIs0 {
		return NewBalanceDelta(specified, unspecified)
	}
	return NewBalanceDelta(unspecified, specified)
}

func checkInt128(d BalanceDelta) error {
	for _, a := range []*big.Int{d.Amount0, d.Amount1} {
		if a.Cmp(maxInt128) > 0 || a.Cmp(minInt128) < 0 {
			return ErrAmountOverflow
		}
	}
	return nil
}

// executeSwap walks the curve until the amount is used up or the price limit
// is hit. Requires pm.mu.
func (pm *PoolManager) executeSwap(id PoolID, zeroForOne bool, amountSpecified *big.Int, limit *uint256.Int) (BalanceDelta, error) {
	pool := pm.pools[id]
	if limit == nil {
		if zeroForOne {
			limit = new(uint256.Int).AddUint64(clmath.MinSqrtRatio, 1)
		} else {
			limit = new(uint256.Int).SubUint64(clmath.MaxSqrtRatio, 1)
		}
	}
	if zeroForOne {
		if !limit.Lt(pool.SqrtPriceX96) {
			return ZeroBalanceDelta(), ErrPriceLimitReached
		}
		if !limit.Gt(clmath.MinSqrtRatio) {
			return ZeroBalanceDelta(), ErrPriceLimitOutOfBounds
		}
	} else {
		if !limit.Gt(pool.SqrtPriceX96) {
			return ZeroBalanceDelta(), ErrPriceLimitReached
		}
		if !limit.Lt(clmath.MaxSqrtRatio) {
			return ZeroBalanceDelta(), ErrPriceLimitOutOfBounds
		}
	}

	exactIn := amountSpecified.Sign() < 0
	requested, overflow := uint256.FromBig(new(big.Int).Abs(amountSpecified))
	if overflow {
		return ZeroBalanceDelta(), ErrAmountOverflow
	}
	remaining := requested.Clone()
	calculated := new(uint256.Int)
	fees := new(uint256.Int)

	sqrtP := pool.SqrtPriceX96.Clone()
	tick := pool.Tick
	liquidity := pool.Liquidity.Clone()

	for !remaining.IsZero() && !sqrtP.Eq(limit) {
		stepStart := sqrtP
		next, initialized := pool.bitmap.NextInitializedTickWithinOneWord(tick, pool.Key.TickSpacing, zeroForOne)
		if next < clmath.MinTick {
			next = clmath.MinTick
		} else if next > clmath.MaxTick {
			next = clmath.MaxTick
		}
		sqrtNext := clmath.MustSqrtRatioAtTick(next)

		target := sqrtNext
		if zeroForOne && sqrtNext.Lt(limit) || !zeroForOne && sqrtNext.Gt(limit) {
			target = limit
		}

		step, err := clmath.ComputeSwapStep(sqrtP, target, liquidity, remaining, exactIn, pool.Key.Fee)
		if err != nil {
			return ZeroBalanceDelta(), err
		}
		sqrtP = step.SqrtPriceNext

		if exactIn {
			spent := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
			if spent.Gt(remaining) {
				spent = remaining.Clone()
			}
			remaining.Sub(remaining, spent)
			calculated.Add(calculated, step.AmountOut)
		} else {
			remaining.Sub(remaining, step.AmountOut)
			calculated.Add(calculated, step.AmountIn)
			calculated.Add(calculated, step.FeeAmount)
		}
		fees.Add(fees, step.FeeAmount)

		if sqrtP.Eq(sqrtNext) {
			if initialized {
				net := new(big.Int).Set(pool.ticks[next].liquidityNet)
				if zeroForOne {
					net.Neg(net)
				}
				updated := new(big.Int).Add(liquidity.ToBig(), net)
				if updated.Sign() < 0 {
					return ZeroBalanceDelta(), ErrInsufficientLiquidity
				}
				liquidity = uint256.MustFromBig(updated)
			}
			if zeroForOne {
				tick = next - 1
			} else {
				tick = next
			}
		} else if !sqrtP.Eq(stepStart) {
			if tick, err = clmath.TickAtSqrtRatio(sqrtP); err != nil {
				return ZeroBalanceDelta(), err
			}
		}
	}

	pool.SqrtPriceX96 = sqrtP
	pool.Tick = tick
	pool.Liquidity = liquidity
	if zeroForOne {
		pool.FeesAccrued0.Add(pool.FeesAccrued0, fees)
	} else {
		pool.FeesAccrued1.Add(pool.FeesAccrued1, fees)
	}

	used := new(uint256.Int).Sub(requested, remaining).ToBig()
	var specified, unspecified *big.Int
	if exactIn {
		specified, unspecified = used.Neg(used), calculated.ToBig()
	} else {
		specified, unspecified = used, new(big.Int).Neg(calculated.ToBig())
	}
	delta := toBalanceDelta(specified, unspecified, exactIn == zeroForOne)
	if err := checkInt128(delta); err != nil {
		return ZeroBalanceDelta(), err
	}

	pm.log.Debug("swap",
		"pool", id.Hex(),
		"amount0", delta.Amount0,
		"amount1", delta.Amount1,
		"tick", tick,
	)
	return delta, nil
}

// ModifyLiquidity adds or removes liquidity owned by caller. The returned
// delta is negative for what the caller must pay in.
func (pm *PoolManager) ModifyLiquidity(caller common.Address, key PoolKey, params ModifyLiquidityParams) (BalanceDelta, error) {
	id := key.ID()

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.unlocked {
		return ZeroBalanceDelta(), ErrManagerLocked
	}
	pool, ok := pm.pools[id]
	if !ok {
		return ZeroBalanceDelta(), ErrPoolNotInitialized
	}

	spacing := key.TickSpacing
	if params.TickLower >= params.TickUpper ||
		params.TickLower < clmath.MinTick || params.TickUpper > clmath.MaxTick ||
		params.TickLower%spacing != 0 || params.TickUpper%spacing != 0 {
		return ZeroBalanceDelta(), fmt.Errorf("%w: [%d, %d)", ErrInvalidTickRange, params.TickLower, params.TickUpper)
	}
	if params.LiquidityDelta == nil || params.LiquidityDelta.Sign() == 0 {
		return ZeroBalanceDelta(), ErrLiquidityDeltaZero
	}
	absL, overflow := uint256.FromBig(new(big.Int).Abs(params.LiquidityDelta))
	if overflow || absL.Gt(clmath.MaxUint128) {
		return ZeroBalanceDelta(), ErrTickLiquidityOverflow
	}
	add := params.LiquidityDelta.Sign() > 0

	posKey := PositionKey(id, caller, params.TickLower, params.TickUpper, params.Salt)
	pos, ok := pm.positions[posKey]
	if !ok {
		pos = &Position{Owner: caller, TickLower: params.TickLower, TickUpper: params.TickUpper, Liquidity: new(uint256.Int)}
	}
	if !add && pos.Liquidity.Lt(absL) {
		return ZeroBalanceDelta(), ErrInsufficientLiquidity
	}

	sqrtLower := clmath.MustSqrtRatioAtTick(params.TickLower)
	sqrtUpper := clmath.MustSqrtRatioAtTick(params.TickUpper)
	amount0, amount1 := new(uint256.Int), new(uint256.Int)
	var err error
	inRange := false
	switch {
	case pool.Tick < params.TickLower:
		amount0, err = clmath.Amount0Delta(sqrtLower, sqrtUpper, absL, add)
	case pool.Tick < params.TickUpper:
		inRange = true
		if amount0, err = clmath.Amount0Delta(pool.SqrtPriceX96, sqrtUpper, absL, add); err == nil {
			amount1, err = clmath.Amount1Delta(sqrtLower, pool.SqrtPriceX96, absL, add)
		}
	default:
		amount1, err = clmath.Amount1Delta(sqrtLower, sqrtUpper, absL, add)
	}
	if err != nil {
		return ZeroBalanceDelta(), err
	}

	if err := pm.updateTick(pool, params.TickLower, params.LiquidityDelta, false); err != nil {
		return ZeroBalanceDelta(), err
	}
	if err := pm.updateTick(pool, params.TickUpper, params.LiquidityDelta, true); err != nil {
		return ZeroBalanceDelta(), err
	}
	if inRange {
		if add {
			pool.Liquidity = new(uint256.Int).Add(pool.Liquidity, absL)
		} else {
			pool.Liquidity = new(uint256.Int).Sub(pool.Liquidity, absL)
		}
	}

	if add {
		pos.Liquidity = new(uint256.Int).Add(pos.Liquidity, absL)
	} else {
		pos.Liquidity = new(uint256.Int).Sub(pos.Liquidity, absL)
	}
	if pos.Liquidity.IsZero() {
		delete(pm.positions, posKey)
	} else {
		pm.positions[posKey] = pos
	}

	var delta BalanceDelta
	if add {
		delta = NewBalanceDelta(new(big.Int).Neg(amount0.ToBig()), new(big.Int).Neg(amount1.ToBig()))
	} else {
		delta = NewBalanceDelta(amount0.ToBig(), amount1.ToBig())
	}
	if err := checkInt128(delta); err != nil {
		return ZeroBalanceDelta(), err
	}
	pm.accountPoolDelta(caller, key, delta)

	pm.log.Debug("liquidity modified",
		"pool", id.Hex(),
		"owner", caller.Hex(),
		"tickLower", params.TickLower,
		"tickUpper", params.TickUpper,
		"liquidityDelta", params.LiquidityDelta,
	)
	return delta, nil
}

// updateTick requires pm.mu.
func (pm *PoolManager) updateTick(pool *Pool, tick int32, liquidityDelta *big.Int, upper bool) error {
	info, ok := pool.ticks[tick]
	if !ok {
		info = &tickInfo{liquidityGross: new(uint256.Int), liquidityNet: new(big.Int)}
	}
	grossAfter := new(big.Int).Add(info.liquidityGross.ToBig(), liquidityDelta)
	if grossAfter.Sign() < 0 {
		return ErrInsufficientLiquidity
	}
	gross, overflow := uint256.FromBig(grossAfter)
	if overflow || gross.Gt(clmath.MaxUint128) {
		return ErrTickLiquidityOverflow
	}
	flipped := info.liquidityGross.IsZero() != gross.IsZero()

	net := new(big.Int).Set(info.liquidityNet)
	if upper {
		net.Sub(net, liquidityDelta)
	} else {
		net.Add(net, liquidityDelta)
	}

	if gross.IsZero() {
		delete(pool.ticks, tick)
	} else {
		pool.ticks[tick] = &tickInfo{liquidityGross: gross, liquidityNet: net}
	}
	if flipped {
		pool.bitmap.FlipTick(tick, pool.Key.TickSpacing)
	}
	return nil
}

// =========================================================================
// Views
// =========================================================================

// CurrentPrice returns the pool's sqrt price and tick
func (pm *PoolManager) CurrentPrice(id PoolID) (*uint256.Int, int32, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	pool, ok := pm.pools[id]
	if !ok {
		return nil, 0, ErrPoolNotInitialized
	}
	return pool.SqrtPriceX96.Clone(), pool.Tick, nil
}

// Liquidity returns the pool's in-range liquidity
func (pm *PoolManager) Liquidity(id PoolID) (*uint256.Int, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	pool, ok := pm.pools[id]
	if !ok {
		return nil, ErrPoolNotInitialized
	}
	return pool.Liquidity.Clone(), nil
}

// PositionLiquidity returns the liquidity of one position, zero if absent
func (pm *PoolManager) PositionLiquidity(id PoolID, owner common.Address, tickLower, tickUpper int32, salt [32]byte) *uint256.Int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if pos, ok := pm.positions[PositionKey(id, owner, tickLower, tickUpper, salt)]; ok {
		return pos.Liquidity.Clone()
	}
	return new(uint256.Int)
}

// FeesAccrued returns the LP fees a pool has collected
func (pm *PoolManager) FeesAccrued(id PoolID) (*uint256.Int, *uint256.Int) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	pool, ok := pm.pools[id]
	if !ok {
		return new(uint256.Int), new(uint256.Int)
	}
	return pool.FeesAccrued0.Clone(), pool.FeesAccrued1.Clone()
}

// PriceSwapStep exposes the curve's single-step pricing
func (pm *PoolManager) PriceSwapStep(
	sqrtCurrent, sqrtTarget, liquidity, amountRemaining *uint256.Int,
	exactIn bool,
	feePips uint32,
) (clmath.SwapStep, error) {
	return clmath.ComputeSwapStep(sqrtCurrent, sqrtTarget, liquidity, amountRemaining, exactIn, feePips)
}

// =========================================================================
// Ledger passthrough
// =========================================================================

// Transfer moves tokens between two accounts outside custody
func (pm *PoolManager) Transfer(currency Currency, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return pm.ledger.Transfer(currency, from, to, amount)
}

// BalanceOf returns an account's ledger balance
func (pm *PoolManager) BalanceOf(currency Currency, account common.Address) *uint256.Int {
	return pm.ledger.BalanceOf(currency, account)
}

// Unwrap converts the account's wrapped native tokens to the native coin
func (pm *PoolManager) Unwrap(account common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return pm.ledger.Unwrap(account, amount)
}
