// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/launchmm/amm"
	"github.com/luxfi/launchmm/clmath"
)

// bidWallSalt keys the bid wall position apart from fair-launch positions
var bidWallSalt = [32]byte{31: 0x02}

// ThresholdPolicy decides how much native must be pending before the bid
// wall is redeployed.
type ThresholdPolicy interface {
	Threshold(cumulativeFees *uint256.Int) *uint256.Int
}

// FixedThreshold always returns Amount
type FixedThreshold struct {
	Amount *uint256.Int
}

// Threshold implements ThresholdPolicy
func (t FixedThreshold) Threshold(*uint256.Int) *uint256.Int {
	if t.Amount == nil {
		return new(uint256.Int)
	}
	return t.Amount.Clone()
}

// ScaledThreshold grows with the fees a pool has routed to its bid wall:
// cumulative / Divisor, bounded by Floor and, when set, Ceiling.
type ScaledThreshold struct {
	Floor   *uint256.Int
	Divisor uint64
	Ceiling *uint256.Int
}

// Threshold implements ThresholdPolicy
func (t ScaledThreshold) Threshold(cumulativeFees *uint256.Int) *uint256.Int {
	floor := new(uint256.Int)
	if t.Floor != nil {
		floor.Set(t.Floor)
	}
	if t.Divisor == 0 || cumulativeFees == nil {
		return floor
	}
	scaled := new(uint256.Int).Div(cumulativeFees, uint256.NewInt(t.Divisor))
	if t.Ceiling != nil && !t.Ceiling.IsZero() && scaled.Gt(t.Ceiling) {
		scaled.Set(t.Ceiling)
	}
	if scaled.Lt(floor) {
		return floor
	}
	return scaled
}

// BidWallRecord is the bid wall state of one pool
type BidWallRecord struct {
	Disabled       bool
	Initialized    bool
	TickLower      int32
	TickUpper      int32
	PendingNative  *uint256.Int
	CumulativeFees *uint256.Int
}

func (r BidWallRecord) clone() BidWallRecord {
	r.PendingNative = r.PendingNative.Clone()
	r.CumulativeFees = r.CumulativeFees.Clone()
	return r
}

func zeroBidWall() BidWallRecord {
	return BidWallRecord{PendingNative: new(uint256.Int), CumulativeFees: new(uint256.Int)}
}

// BidWall keeps a single-sided native position one spacing below the
// launched token's price, topped up from fees once enough have accumulated.
type BidWall struct {
	mu         sync.RWMutex
	records    map[amm.PoolID]*BidWallRecord
	thresholds map[amm.PoolID]ThresholdPolicy
	treasuries map[amm.PoolID]common.Address

	defaultThreshold ThresholdPolicy

	engine PoolEngine
	hook   common.Address
	native amm.Currency
	events *events
	log    log.Logger
}

func newBidWall(engine PoolEngine, cfg Config, ev *events) *BidWall {
	return &BidWall{
		records:          make(map[amm.PoolID]*BidWallRecord),
		thresholds:       make(map[amm.PoolID]ThresholdPolicy),
		treasuries:       make(map[amm.PoolID]common.Address),
		defaultThreshold: cfg.BidWallThreshold,
		engine:           engine,
		hook:             cfg.Address,
		native:           cfg.Native,
		events:           ev,
		log:              cfg.Log,
	}
}

// Record returns a copy of the pool's record
func (b *BidWall) Record(id amm.PoolID) BidWallRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if rec, ok := b.records[id]; ok {
		return rec.clone()
	}
	return zeroBidWall()
}

// Threshold is the pending amount that triggers a redeploy of id's wall
func (b *BidWall) Threshold(id amm.PoolID) *uint256.Int {
	b.mu.RLock()
	policy, ok := b.thresholds[id]
	if !ok {
		policy = b.defaultThreshold
	}
	cumulative := new(uint256.Int)
	if rec, ok := b.records[id]; ok {
		cumulative.Set(rec.CumulativeFees)
	}
	b.mu.RUnlock()
	return policy.Threshold(cumulative)
}

func (b *BidWall) setThreshold(id amm.PoolID, policy ThresholdPolicy) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if policy == nil {
		delete(b.thresholds, id)
		return
	}
	b.thresholds[id] = policy
}

func (b *BidWall) setTreasury(id amm.PoolID, treasury common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.treasuries[id] = treasury
}

func (b *BidWall) treasury(id amm.PoolID) common.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.treasuries[id]
}

// IsDisabled reports whether the pool's creator switched the wall off
func (b *BidWall) IsDisabled(id amm.PoolID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[id]
	return ok && rec.Disabled
}

// Deposit parks native fees the hook already holds. Once pending reaches the
// threshold the wall is pulled and redeployed with everything it holds in
// the spacing next to preSwapTick. Must run inside an engine session.
func (b *BidWall) Deposit(key amm.PoolKey, native *uint256.Int, preSwapTick int32, nativeIsZero bool) error {
	if native == nil || native.IsZero() {
		return nil
	}
	id := key.ID()
	rec := b.Record(id)
	rec.CumulativeFees = new(uint256.Int).Add(rec.CumulativeFees, native)
	rec.PendingNative = new(uint256.Int).Add(rec.PendingNative, native)
	b.store(id, rec)
	b.events.emit(Event{Kind: EventBidWallDeposit, Pool: id, Currency: b.native, Amount: native.Clone()})

	if rec.PendingNative.Lt(b.Threshold(id)) {
		return nil
	}

	total := rec.PendingNative.Clone()
	rec.PendingNative = new(uint256.Int)
	recovered, err := b.withdraw(key, &rec, nativeIsZero)
	if err != nil {
		return err
	}
	total.Add(total, recovered)

	_, liveTick, err := b.engine.CurrentPrice(id)
	if err != nil {
		return err
	}
	lower, upper := nativeSideRange(preSwapTick, nativeIsZero)
	if !singleSided(liveTick, lower, upper, nativeIsZero) {
		lower, upper = nativeSideRange(liveTick, nativeIsZero)
	}

	liquidity := new(uint256.Int)
	if singleSided(liveTick, lower, upper, nativeIsZero) {
		if liquidity, err = singleSidedLiquidity(lower, upper, total, nativeIsZero); err != nil {
			liquidity = new(uint256.Int)
		}
	}
	if liquidity.IsZero() {
		rec.PendingNative = total
		b.store(id, rec)
		b.log.Debug("bid wall deposit re-parked", "pool", id.Hex(), "pending", total)
		return nil
	}

	delta, err := b.engine.ModifyLiquidity(b.hook, key, amm.ModifyLiquidityParams{
		TickLower:      lower,
		TickUpper:      upper,
		LiquidityDelta: liquidity.ToBig(),
		Salt:           bidWallSalt,
	})
	if err != nil {
		return fmt.Errorf("placing bid wall: %w", err)
	}
	needed := uint256.MustFromBig(new(big.Int).Neg(delta.Of(nativeIsZero)))
	if err := b.engine.Settle(b.hook, b.native, needed); err != nil {
		return err
	}
	if total.Gt(needed) {
		if err := b.payTreasury(id, b.native, new(uint256.Int).Sub(total, needed)); err != nil {
			return err
		}
	}

	rec.Initialized = true
	rec.TickLower, rec.TickUpper = lower, upper
	b.store(id, rec)

	b.events.emit(Event{Kind: EventBidWallRepositioned, Pool: id, Currency: b.native, Amount: needed, TickLower: lower, TickUpper: upper})
	b.log.Debug("bid wall repositioned", "pool", id.Hex(), "tickLower", lower, "tickUpper", upper, "native", needed)
	return nil
}

// Close pulls the wall and forwards its funds and everything pending to the
// pool's treasury. Must run inside an engine session.
func (b *BidWall) Close(key amm.PoolKey, nativeIsZero bool) error {
	id := key.ID()
	rec := b.Record(id)
	recovered, err := b.withdraw(key, &rec, nativeIsZero)
	if err != nil {
		return err
	}
	total := new(uint256.Int).Add(recovered, rec.PendingNative)
	if err := b.payTreasury(id, b.native, total); err != nil {
		return err
	}
	rec.PendingNative = new(uint256.Int)
	rec.CumulativeFees = new(uint256.Int)
	b.store(id, rec)

	b.events.emit(Event{Kind: EventBidWallClosed, Pool: id, Account: b.treasury(id), Currency: b.native, Amount: total})
	return nil
}

// Position returns the token amounts the wall holds at the current price and
// the native waiting to be deployed.
func (b *BidWall) Position(id amm.PoolID) (amount0, amount1, pendingNative *uint256.Int, err error) {
	rec := b.Record(id)
	if !rec.Initialized {
		return new(uint256.Int), new(uint256.Int), rec.PendingNative, nil
	}
	sqrtPrice, _, err := b.engine.CurrentPrice(id)
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity := b.engine.PositionLiquidity(id, b.hook, rec.TickLower, rec.TickUpper, bidWallSalt)
	amount0, amount1, err = clmath.AmountsForLiquidity(
		sqrtPrice,
		clmath.MustSqrtRatioAtTick(rec.TickLower),
		clmath.MustSqrtRatioAtTick(rec.TickUpper),
		liquidity,
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return amount0, amount1, rec.PendingNative, nil
}

// withdraw removes the wall's liquidity, keeps the native in the hook and
// sends any launched token it bought to the treasury. It returns the native
// recovered and leaves rec uninitialised.
func (b *BidWall) withdraw(key amm.PoolKey, rec *BidWallRecord, nativeIsZero bool) (*uint256.Int, error) {
	recovered := new(uint256.Int)
	if !rec.Initialized {
		return recovered, nil
	}
	id := key.ID()
	liquidity := b.engine.PositionLiquidity(id, b.hook, rec.TickLower, rec.TickUpper, bidWallSalt)
	rec.Initialized = false
	if liquidity.IsZero() {
		return recovered, nil
	}
	delta, err := b.engine.ModifyLiquidity(b.hook, key, amm.ModifyLiquidityParams{
		TickLower:      rec.TickLower,
		TickUpper:      rec.TickUpper,
		LiquidityDelta: new(big.Int).Neg(liquidity.ToBig()),
		Salt:           bidWallSalt,
	})
	if err != nil {
		return nil, fmt.Errorf("removing bid wall: %w", err)
	}

	other := key.Currency0
	if nativeIsZero {
		other = key.Currency1
	}
	if d := delta.Of(nativeIsZero); d.Sign() > 0 {
		recovered = uint256.MustFromBig(d)
		if err := b.engine.Take(b.hook, b.native, b.hook, recovered); err != nil {
			return nil, err
		}
	}
	if d := delta.Of(!nativeIsZero); d.Sign() > 0 {
		treasury := b.treasury(id)
		if treasury == (common.Address{}) {
			return nil, ErrZeroRecipient
		}
		if err := b.engine.Take(b.hook, other, treasury, uint256.MustFromBig(d)); err != nil {
			return nil, err
		}
	}
	return recovered, nil
}

func (b *BidWall) payTreasury(id amm.PoolID, currency amm.Currency, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	treasury := b.treasury(id)
	if treasury == (common.Address{}) {
		return ErrZeroRecipient
	}
	return b.engine.Transfer(currency, b.hook, treasury, amount)
}

func (b *BidWall) store(id amm.PoolID, rec BidWallRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := rec.clone()
	b.records[id] = &copied
}

func (b *BidWall) setDisabled(id amm.PoolID, disabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[id]
	if !ok {
		fresh := zeroBidWall()
		rec = &fresh
		b.records[id] = rec
	}
	rec.Disabled = disabled
}

type bidWallSnapshot struct {
	record    *BidWallRecord
	threshold ThresholdPolicy
	treasury  *common.Address
}

func (b *BidWall) snapshot(id amm.PoolID) bidWallSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var snap bidWallSnapshot
	if rec, ok := b.records[id]; ok {
		copied := rec.clone()
		snap.record = &copied
	}
	snap.threshold = b.thresholds[id]
	if t, ok := b.treasuries[id]; ok {
		snap.treasury = &t
	}
	return snap
}

func (b *BidWall) restore(id amm.PoolID, snap bidWallSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if snap.record == nil {
		delete(b.records, id)
	} else {
		copied := snap.record.clone()
		b.records[id] = &copied
	}
	if snap.threshold == nil {
		delete(b.thresholds, id)
	} else {
		b.thresholds[id] = snap.threshold
	}
	if snap.treasury == nil {
		delete(b.treasuries, id)
	} else {
		b.treasuries[id] = *snap.treasury
	}
}
