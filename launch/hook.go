// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/event"
	"github.com/luxfi/log"

	"github.com/luxfi/launchmm/amm"
)

// Permissions are the callbacks the hook address must enable
var Permissions = amm.HookPermissions{
	BeforeInitialize:       true,
	BeforeSwap:             true,
	AfterSwap:              true,
	BeforeSwapReturnsDelta: true,
	AfterSwapReturnsDelta:  true,
}

var (
	_ amm.Hooks          = (*Hook)(nil)
	_ amm.InitializeHook = (*Hook)(nil)
	_ amm.Checkpointer   = (*Hook)(nil)
)

// LaunchInfo describes a launched pool
type LaunchInfo struct {
	Key          amm.PoolKey
	Token        amm.Currency
	Creator      common.Address
	Treasury     common.Address
	NativeIsZero bool
}

// poolState serialises trades and admin actions on one pool
type poolState struct {
	mu sync.Mutex

	// set in BeforeSwap, read in AfterSwap of the same trade
	preSwapTick int32
	feeBps      uint32
}

// Hook is the swap hook of every launched pool. It fills buyers from the
// fair launch and from fee inventory, charges and distributes the swap fee
// and maintains the bid wall.
type Hook struct {
	cfg    Config
	engine PoolEngine
	log    log.Logger

	adminMu sync.RWMutex
	owner   common.Address
	admin   AdminConfig

	FairLaunch *FairLaunch
	Netting    *Netting
	Fees       *FeeWaterfall
	BidWall    *BidWall
	Escrow     *Escrow
	Notifier   *Notifier

	events *events

	mu       sync.Mutex
	pools    map[amm.PoolID]*poolState
	launches map[amm.PoolID]LaunchInfo
	tokens   map[amm.Currency]amm.PoolID
}

// New creates a hook bound to engine. The caller registers it with the engine
// under cfg.Address.
func New(cfg Config, admin AdminConfig, engine PoolEngine) (*Hook, error) {
	cfg.setDefaults()
	admin.setDefaults()
	if err := amm.ValidateHookAddress(cfg.Address, Permissions); err != nil {
		return nil, err
	}
	if err := admin.Verify(); err != nil {
		return nil, err
	}
	if admin.DefaultPolicy.ProtocolBps > 0 && admin.Protocol == (common.Address{}) {
		return nil, ErrZeroRecipient
	}

	notifier := NewNotifier(cfg.Log)
	ev := &events{notifier: notifier}
	escrow := NewEscrow(cfg.DB)
	h := &Hook{
		cfg:        cfg,
		engine:     engine,
		log:        cfg.Log,
		owner:      admin.Owner,
		admin:      admin,
		FairLaunch: newFairLaunch(engine, cfg.Address, cfg.FairLaunchWindow, cfg.Now, ev, cfg.Log),
		Netting:    newNetting(engine),
		Fees:       newFeeWaterfall(admin, cfg, engine, escrow, ev),
		BidWall:    newBidWall(engine, cfg, ev),
		Escrow:     escrow,
		Notifier:   notifier,
		events:     ev,
		pools:      make(map[amm.PoolID]*poolState),
		launches:   make(map[amm.PoolID]LaunchInfo),
		tokens:     make(map[amm.Currency]amm.PoolID),
	}
	return h, nil
}

// Address returns the hook's account
func (h *Hook) Address() common.Address { return h.cfg.Address }

// Native returns the currency every launch pairs with
func (h *Hook) Native() amm.Currency { return h.cfg.Native }

// SubscribeEvents delivers committed events to ch. Subscribers must keep up:
// sends block until every channel has received.
func (h *Hook) SubscribeEvents(ch chan<- Event) event.Subscription {
	return h.events.feed.Subscribe(ch)
}

// Launch returns the pool's launch details
func (h *Hook) Launch(id amm.PoolID) (LaunchInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.launches[id]
	return info, ok
}

// Pools lists every launched pool
func (h *Hook) Pools() []amm.PoolID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]amm.PoolID, 0, len(h.launches))
	for id := range h.launches {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hook) pool(id amm.PoolID) *poolState {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, ok := h.pools[id]
	if !ok {
		ps = &poolState{}
		h.pools[id] = ps
	}
	return ps
}

func (h *Hook) launched(id amm.PoolID) (*poolState, LaunchInfo, error) {
	info, ok := h.Launch(id)
	if !ok {
		return nil, LaunchInfo{}, ErrUnknownPool
	}
	return h.pool(id), info, nil
}

// BeforeInitialize only admits pools created by Flaunch
func (h *Hook) BeforeInitialize(sender common.Address, key amm.PoolKey, _ *uint256.Int) error {
	if sender != h.cfg.Address || key.Hooks != h.cfg.Address {
		return ErrDirectInitialize
	}
	return nil
}

// BeforeSwap fills what it can of the trade from the fair launch or the fee
// inventory before the curve sees it.
func (h *Hook) BeforeSwap(sender common.Address, key amm.PoolKey, params amm.SwapParams, hookData []byte) (amm.BeforeSwapDelta, error) {
	id := key.ID()
	ps, info, err := h.launched(id)
	if err != nil {
		return amm.ZeroBeforeSwapDelta(), err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, tick, err := h.engine.CurrentPrice(id)
	if err != nil {
		return amm.ZeroBeforeSwapDelta(), err
	}
	ps.preSwapTick = tick
	ps.feeBps = h.Fees.FeeBps(id, sender, key, params)

	if h.FairLaunch.Scheduled(id) {
		return amm.ZeroBeforeSwapDelta(), ErrFairLaunchNotStarted
	}

	nativeIn := params.ZeroForOne == info.NativeIsZero
	delta := amm.ZeroBeforeSwapDelta()
	remaining := new(big.Int).Set(params.AmountSpecified)

	if h.FairLaunch.IsOpen(id) {
		if !nativeIn {
			return amm.ZeroBeforeSwapDelta(), ErrCannotSellDuringFairLaunch
		}
		native, other, err := h.FairLaunch.Fill(id, remaining, info.NativeIsZero)
		if err != nil {
			return amm.ZeroBeforeSwapDelta(), fmt.Errorf("fair launch fill: %w", err)
		}
		if err := h.fillFromHook(info, params, native, other, ps.feeBps, hookData, &delta, remaining); err != nil {
			return amm.ZeroBeforeSwapDelta(), err
		}
		// sold out: the rest of the trade meets the deployed liquidity
		if remaining.Sign() != 0 {
			if err := h.closeFairLaunch(info); err != nil {
				return amm.ZeroBeforeSwapDelta(), err
			}
		}
	} else if h.FairLaunch.pendingClose(id) {
		if err := h.closeFairLaunch(info); err != nil {
			return amm.ZeroBeforeSwapDelta(), err
		}
	}

	if nativeIn && remaining.Sign() != 0 {
		sqrtPrice, _, err := h.engine.CurrentPrice(id)
		if err != nil {
			return amm.ZeroBeforeSwapDelta(), err
		}
		liquidity, err := h.engine.Liquidity(id)
		if err != nil {
			return amm.ZeroBeforeSwapDelta(), err
		}
		native, other, err := h.Netting.Attempt(id, nativeIn, info.NativeIsZero, remaining, sqrtPrice, params.SqrtPriceLimitX96, liquidity)
		if err != nil {
			return amm.ZeroBeforeSwapDelta(), fmt.Errorf("netting: %w", err)
		}
		if err := h.fillFromHook(info, params, native, other, ps.feeBps, hookData, &delta, remaining); err != nil {
			return amm.ZeroBeforeSwapDelta(), err
		}
	}
	return delta, nil
}

// fillFromHook settles a buy of other launched tokens for native filled by
// the hook itself and charges the fee on it. delta and remaining are updated
// in place.
func (h *Hook) fillFromHook(
	info LaunchInfo,
	params amm.SwapParams,
	native, other *uint256.Int,
	feeBps uint32,
	hookData []byte,
	delta *amm.BeforeSwapDelta,
	remaining *big.Int,
) error {
	if native.IsZero() && other.IsZero() {
		return nil
	}
	nativeCurrency, token := h.cfg.Native, info.Token

	if params.ExactInput() {
		// fee is kept out of the tokens paid out
		fee := mulBps(other, feeBps)
		out := new(uint256.Int).Sub(other, fee)
		if err := h.engine.Take(h.cfg.Address, nativeCurrency, h.cfg.Address, native); err != nil {
			return err
		}
		if err := h.engine.Settle(h.cfg.Address, token, out); err != nil {
			return err
		}
		delta.Specified.Add(delta.Specified, native.ToBig())
		delta.Unspecified.Sub(delta.Unspecified, out.ToBig())
		remaining.Add(remaining, native.ToBig())
		return h.captureFee(info, token, fee, hookData)
	}

	// fee is charged on top of the native paid in
	fee := mulBps(native, feeBps)
	in := new(uint256.Int).Add(native, fee)
	if err := h.engine.Take(h.cfg.Address, nativeCurrency, h.cfg.Address, in); err != nil {
		return err
	}
	if err := h.engine.Settle(h.cfg.Address, token, other); err != nil {
		return err
	}
	delta.Specified.Sub(delta.Specified, other.ToBig())
	delta.Unspecified.Add(delta.Unspecified, in.ToBig())
	remaining.Sub(remaining, other.ToBig())
	return h.captureFee(info, nativeCurrency, fee, hookData)
}

// captureFee pays the referrer from a fee the hook holds and books the rest
// as inventory.
func (h *Hook) captureFee(info LaunchInfo, currency amm.Currency, fee *uint256.Int, hookData []byte) error {
	if fee.IsZero() {
		return nil
	}
	id := info.Key.ID()
	paid := h.Fees.PayReferrer(id, currency, fee, hookData)
	rest := new(uint256.Int).Sub(fee, paid)
	if currency == h.cfg.Native {
		h.Netting.Deposit(id, rest, nil)
	} else {
		h.Netting.Deposit(id, nil, rest)
	}
	h.events.emit(Event{Kind: EventFeeCaptured, Pool: id, Currency: currency, Amount: fee.Clone()})
	return nil
}

// AfterSwap charges the fee on what the curve filled, distributes native fee
// inventory and lets the fee calculator observe the trade.
func (h *Hook) AfterSwap(sender common.Address, key amm.PoolKey, params amm.SwapParams, delta amm.BalanceDelta, hookData []byte) (*big.Int, error) {
	id := key.ID()
	ps, info, err := h.launched(id)
	if err != nil {
		return nil, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	specifiedIs0 := params.SpecifiedIsCurrency0()
	unspecified := delta.Of(!specifiedIs0)
	feeCurrency := key.Currency0
	if specifiedIs0 {
		feeCurrency = key.Currency1
	}
	amount := uint256.MustFromBig(new(big.Int).Abs(unspecified))
	fee := mulBps(amount, ps.feeBps)
	if !fee.IsZero() {
		if err := h.engine.Take(h.cfg.Address, feeCurrency, h.cfg.Address, fee); err != nil {
			return nil, err
		}
		if err := h.captureFee(info, feeCurrency, fee, hookData); err != nil {
			return nil, err
		}
	}

	if err := h.distribute(info, ps.preSwapTick); err != nil {
		return nil, err
	}

	_, tick, err := h.engine.CurrentPrice(id)
	if err != nil {
		return nil, err
	}
	h.Fees.trackTrade(key, params, delta, tick)
	return fee.ToBig(), nil
}

// distribute runs the native fee inventory down the waterfall
func (h *Hook) distribute(info LaunchInfo, preSwapTick int32) error {
	id := info.Key.ID()
	drained := h.Netting.DrainNative(id)
	if drained.IsZero() {
		return nil
	}
	bidWall, creator, protocol := h.Fees.Split(id, drained)

	h.adminMu.RLock()
	protocolRecipient := h.admin.Protocol
	h.adminMu.RUnlock()

	if err := h.Fees.Allocate(id, protocolRecipient, protocol); err != nil {
		return fmt.Errorf("protocol share: %w", err)
	}
	if err := h.Fees.Allocate(id, info.Creator, creator); err != nil {
		return fmt.Errorf("creator share: %w", err)
	}
	if h.BidWall.IsDisabled(id) {
		if err := h.Fees.Allocate(id, info.Creator, bidWall); err != nil {
			return fmt.Errorf("bid wall share: %w", err)
		}
		return nil
	}
	return h.BidWall.Deposit(info.Key, bidWall, preSwapTick, info.NativeIsZero)
}

func (h *Hook) closeFairLaunch(info LaunchInfo) error {
	preserve := h.Netting.Inventory(info.Key.ID()).Other
	escrowed, err := h.Escrow.Total(info.Token)
	if err != nil {
		return err
	}
	preserve.Add(preserve, escrowed)
	if _, err := h.FairLaunch.Close(info.Key, preserve, info.NativeIsZero); err != nil {
		return fmt.Errorf("closing fair launch: %w", err)
	}
	return nil
}

// Checkpoint captures the pool's records, the escrow journal position and
// the pending events so a failed session can restore them.
func (h *Hook) Checkpoint(id amm.PoolID) (revert func(), commit func()) {
	escrowMark := h.Escrow.mark()
	eventMark := h.events.mark()

	fairLaunch := h.FairLaunch.snapshot(id)
	inventory := h.Netting.snapshot(id)
	bidWall := h.BidWall.snapshot(id)
	creatorFee := h.Fees.snapshot(id)

	h.mu.Lock()
	info, launched := h.launches[id]
	h.mu.Unlock()

	revert = func() {
		h.FairLaunch.restore(id, fairLaunch)
		h.Netting.restore(id, inventory)
		h.BidWall.restore(id, bidWall)
		h.Fees.restore(id, creatorFee)

		h.mu.Lock()
		if current, ok := h.launches[id]; ok && !launched {
			delete(h.tokens, current.Token)
			delete(h.launches, id)
		} else if launched {
			h.launches[id] = info
			h.tokens[info.Token] = id
		}
		h.mu.Unlock()

		if err := h.Escrow.revertTo(escrowMark); err != nil {
			h.log.Error("escrow revert failed", "pool", id.Hex(), "err", err)
		}
		h.events.revertTo(eventMark)
	}
	commit = func() {
		h.Escrow.commit(escrowMark)
		h.events.flush()
	}
	return revert, commit
}
