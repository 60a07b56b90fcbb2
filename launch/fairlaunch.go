// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/launchmm/amm"
	"github.com/luxfi/launchmm/clmath"
)

// fairLaunchSalt keys the positions a closing fair launch deploys
var fairLaunchSalt = [32]byte{31: 0x01}

var percentScale = uint256.NewInt(1e18)

// FairLaunchRecord is the fair-launch state of one pool
type FairLaunchRecord struct {
	StartsAt    uint64
	EndsAt      uint64
	InitialTick int32
	Revenue     *uint256.Int
	Supply      *uint256.Int
	Closed      bool
}

func (r FairLaunchRecord) clone() FairLaunchRecord {
	r.Revenue = r.Revenue.Clone()
	r.Supply = r.Supply.Clone()
	return r
}

// FairLaunch sells a fixed supply at the initial tick's price for a limited
// window, then deploys the proceeds and the unsold tokens as liquidity.
type FairLaunch struct {
	mu      sync.RWMutex
	records map[amm.PoolID]*FairLaunchRecord

	engine PoolEngine
	hook   common.Address
	window time.Duration
	now    func() time.Time
	events *events
	log    log.Logger
}

func newFairLaunch(engine PoolEngine, hook common.Address, window time.Duration, now func() time.Time, ev *events, logger log.Logger) *FairLaunch {
	return &FairLaunch{
		records: make(map[amm.PoolID]*FairLaunchRecord),
		engine:  engine,
		hook:    hook,
		window:  window,
		now:     now,
		events:  ev,
		log:     logger,
	}
}

func (f *FairLaunch) timestamp() uint64 {
	return uint64(f.now().Unix())
}

// Open starts (or restarts) the fair launch of a pool
func (f *FairLaunch) Open(id amm.PoolID, initialTick int32, startsAt uint64, supply *uint256.Int) FairLaunchRecord {
	rec := &FairLaunchRecord{
		StartsAt:    startsAt,
		EndsAt:      startsAt + uint64(f.window/time.Second),
		InitialTick: initialTick,
		Revenue:     new(uint256.Int),
		Supply:      supply.Clone(),
	}
	f.mu.Lock()
	f.records[id] = rec
	f.mu.Unlock()

	f.events.emit(Event{Kind: EventFairLaunchOpened, Pool: id, Amount: supply.Clone()})
	return rec.clone()
}

// Record returns a copy of the pool's record. Unknown pools yield a zero
// record.
func (f *FairLaunch) Record(id amm.PoolID) FairLaunchRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if rec, ok := f.records[id]; ok {
		return rec.clone()
	}
	return FairLaunchRecord{Revenue: new(uint256.Int), Supply: new(uint256.Int)}
}

// IsOpen reports whether the window covers now. It depends on time only.
func (f *FairLaunch) IsOpen(id amm.PoolID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.records[id]
	if !ok {
		return false
	}
	now := f.timestamp()
	return rec.StartsAt <= now && now < rec.EndsAt
}

// Scheduled reports whether the window lies in the future
func (f *FairLaunch) Scheduled(id amm.PoolID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.records[id]
	return ok && f.timestamp() < rec.StartsAt
}

// pendingClose reports a window that has ended without its positions being
// deployed yet.
func (f *FairLaunch) pendingClose(id amm.PoolID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.records[id]
	return ok && !rec.Closed && f.timestamp() >= rec.EndsAt
}

// Fill sells from the fair-launch supply at the initial tick. A negative
// amountSpecified is an exact native input, a positive one an exact output of
// the launched token. Fills larger than the remaining supply are capped: an
// exact input pays in proportion, an exact output pays for what is left.
func (f *FairLaunch) Fill(id amm.PoolID, amountSpecified *big.Int, nativeIsZero bool) (native, other *uint256.Int, err error) {
	native, other = new(uint256.Int), new(uint256.Int)
	if amountSpecified == nil || amountSpecified.Sign() == 0 {
		return native, other, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.Supply.IsZero() {
		return native, other, nil
	}

	amount, overflow := uint256.FromBig(new(big.Int).Abs(amountSpecified))
	if overflow {
		return native, other, clmath.ErrMulDivOverflow
	}
	if amountSpecified.Sign() < 0 {
		native = amount
		// base is native, priced in the launched token
		if other, err = clmath.QuoteAtTick(rec.InitialTick, native, nativeIsZero); err != nil {
			return nil, nil, err
		}
	} else {
		other = amount
		if other.Gt(rec.Supply) {
			other = rec.Supply.Clone()
		}
		// the buyer pays, so the price rounds up
		if native, err = clmath.QuoteAtTickRoundingUp(rec.InitialTick, other, !nativeIsZero); err != nil {
			return nil, nil, err
		}
	}

	if other.Gt(rec.Supply) {
		percentage, err := clmath.MulDiv(rec.Supply, percentScale, other)
		if err != nil {
			return nil, nil, err
		}
		if native, err = clmath.MulDiv(native, percentage, percentScale); err != nil {
			return nil, nil, err
		}
		other = rec.Supply.Clone()
	}

	rec.Revenue = new(uint256.Int).Add(rec.Revenue, native)
	rec.Supply = new(uint256.Int).Sub(rec.Supply, other)
	return native, other, nil
}

// Close ends the fair launch. The revenue becomes a one-spacing native
// position next to the initial tick and the hook's remaining launched tokens,
// less feesToPreserve, a position from the other side of the tick out to the
// grid bound. Must run inside an engine session.
func (f *FairLaunch) Close(key amm.PoolKey, feesToPreserve *uint256.Int, nativeIsZero bool) (FairLaunchRecord, error) {
	id := key.ID()
	f.mu.RLock()
	stored, ok := f.records[id]
	var rec FairLaunchRecord
	if ok {
		rec = stored.clone()
	}
	f.mu.RUnlock()
	if !ok {
		return FairLaunchRecord{}, ErrUnknownPool
	}

	_, liveTick, err := f.engine.CurrentPrice(id)
	if err != nil {
		return FairLaunchRecord{}, err
	}
	native, other := key.Currency1, key.Currency0
	if nativeIsZero {
		native, other = key.Currency0, key.Currency1
	}

	// native position
	lower, upper := nativeSideRange(rec.InitialTick, nativeIsZero)
	if !singleSided(liveTick, lower, upper, nativeIsZero) {
		lower, upper = nativeSideRange(liveTick, nativeIsZero)
	}
	used, err := f.deploy(key, native, nativeIsZero, lower, upper, rec.Revenue)
	if err != nil {
		return FairLaunchRecord{}, fmt.Errorf("deploying fair launch revenue: %w", err)
	}
	if used.Gt(rec.Revenue) {
		used = rec.Revenue.Clone()
	}
	rec.Revenue = new(uint256.Int).Sub(rec.Revenue, used)

	// launched-token position
	balance := f.engine.BalanceOf(other, f.hook)
	tokens := new(uint256.Int)
	if balance.Gt(feesToPreserve) {
		tokens.Sub(balance, feesToPreserve)
	}
	lower, upper = otherSideRange(rec.InitialTick, nativeIsZero)
	if !singleSided(liveTick, lower, upper, !nativeIsZero) {
		lower, upper = otherSideRange(liveTick, nativeIsZero)
	}
	if _, err := f.deploy(key, other, !nativeIsZero, lower, upper, tokens); err != nil {
		return FairLaunchRecord{}, fmt.Errorf("deploying unsold supply: %w", err)
	}

	rec.Supply = new(uint256.Int)
	rec.EndsAt = f.timestamp()
	rec.Closed = true

	f.mu.Lock()
	f.records[id] = &rec
	f.mu.Unlock()

	f.events.emit(Event{Kind: EventFairLaunchClosed, Pool: id, Amount: used})
	f.log.Debug("fair launch closed", "pool", id.Hex(), "deployedNative", used, "deployedTokens", tokens)
	return rec.clone(), nil
}

// deploy adds a single-sided position funded with up to amount of currency
// from the hook's balance and returns what it consumed. Ranges that are not
// single-sided or would hold no liquidity are skipped.
func (f *FairLaunch) deploy(key amm.PoolKey, currency amm.Currency, isZero bool, lower, upper int32, amount *uint256.Int) (*uint256.Int, error) {
	used := new(uint256.Int)
	if amount.IsZero() {
		return used, nil
	}
	_, tick, err := f.engine.CurrentPrice(key.ID())
	if err != nil {
		return nil, err
	}
	if !singleSided(tick, lower, upper, isZero) {
		return used, nil
	}
	liquidity, err := singleSidedLiquidity(lower, upper, amount, isZero)
	if err != nil || liquidity.IsZero() {
		return used, nil
	}
	delta, err := f.engine.ModifyLiquidity(f.hook, key, amm.ModifyLiquidityParams{
		TickLower:      lower,
		TickUpper:      upper,
		LiquidityDelta: liquidity.ToBig(),
		Salt:           fairLaunchSalt,
	})
	if err != nil {
		return nil, err
	}
	owed := new(big.Int).Neg(delta.Of(isZero))
	if owed.Sign() <= 0 {
		return used, nil
	}
	used = uint256.MustFromBig(owed)
	if err := f.engine.Settle(f.hook, currency, used); err != nil {
		return nil, err
	}
	return used, nil
}

// restore puts back a checkpointed record
func (f *FairLaunch) restore(id amm.PoolID, rec *FairLaunchRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec == nil {
		delete(f.records, id)
		return
	}
	copied := rec.clone()
	f.records[id] = &copied
}

func (f *FairLaunch) snapshot(id amm.PoolID) *FairLaunchRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.records[id]
	if !ok {
		return nil
	}
	copied := rec.clone()
	return &copied
}

// singleSidedLiquidity is the liquidity amount of currency buys in
// [lower, upper)
func singleSidedLiquidity(lower, upper int32, amount *uint256.Int, isZero bool) (*uint256.Int, error) {
	sqrtLower, err := clmath.SqrtRatioAtTick(lower)
	if err != nil {
		return nil, err
	}
	sqrtUpper, err := clmath.SqrtRatioAtTick(upper)
	if err != nil {
		return nil, err
	}
	if isZero {
		return clmath.LiquidityForAmount0(sqrtLower, sqrtUpper, amount)
	}
	return clmath.LiquidityForAmount1(sqrtLower, sqrtUpper, amount)
}
