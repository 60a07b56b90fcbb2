// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/launchmm/amm"
)

// Exemption overrides the swap fee for one trading account
type Exemption struct {
	Fee     uint32
	Enabled bool
}

// FeeWaterfall prices the swap fee and splits it between referrer, protocol,
// creator and bid wall. Allocations land in the escrow.
type FeeWaterfall struct {
	mu            sync.RWMutex
	defaultPolicy FeePolicy
	poolPolicies  map[amm.PoolID]FeePolicy
	creatorBps    map[amm.PoolID]uint32
	exemptions    map[common.Address]Exemption
	calculator    FeeCalculator

	maxProtocolBps  uint32
	maxExemptionBps uint32
	referralEscrow  bool

	engine PoolEngine
	hook   common.Address
	native amm.Currency
	escrow *Escrow
	events *events
	log    log.Logger
}

func newFeeWaterfall(admin AdminConfig, cfg Config, engine PoolEngine, escrow *Escrow, ev *events) *FeeWaterfall {
	return &FeeWaterfall{
		defaultPolicy:   admin.DefaultPolicy,
		poolPolicies:    make(map[amm.PoolID]FeePolicy),
		creatorBps:      make(map[amm.PoolID]uint32),
		exemptions:      make(map[common.Address]Exemption),
		maxProtocolBps:  admin.MaxProtocolBps,
		maxExemptionBps: admin.MaxExemptionBps,
		referralEscrow:  cfg.ReferralEscrow,
		engine:          engine,
		hook:            cfg.Address,
		native:          cfg.Native,
		escrow:          escrow,
		events:          ev,
		log:             cfg.Log,
	}
}

// EffectivePolicy is the pool's override when active, else the default
func (w *FeeWaterfall) EffectivePolicy(id amm.PoolID) FeePolicy {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if p, ok := w.poolPolicies[id]; ok && p.Active {
		return p
	}
	return w.defaultPolicy
}

// CreatorBps returns the creator's share of a pool's fees
func (w *FeeWaterfall) CreatorBps(id amm.PoolID) uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.creatorBps[id]
}

// FeeBps is the fee rate charged to sender. A fee calculator may replace
// the policy rate; an enabled exemption applies only when it is lower.
func (w *FeeWaterfall) FeeBps(id amm.PoolID, sender common.Address, key amm.PoolKey, params amm.SwapParams) uint32 {
	bps := w.EffectivePolicy(id).SwapFeeBps

	w.mu.RLock()
	calculator := w.calculator
	exemption, exempt := w.exemptions[sender]
	w.mu.RUnlock()

	if calculator != nil {
		bps = calculator.DetermineFee(key, params, bps)
	}
	if bps > BpsDenominator {
		bps = BpsDenominator
	}
	if exempt && exemption.Enabled && exemption.Fee < bps {
		bps = exemption.Fee
	}
	return bps
}

// SwapFee is amount * bps / 10000
func (w *FeeWaterfall) SwapFee(amount *uint256.Int, bps uint32) *uint256.Int {
	return mulBps(amount, bps)
}

// PayReferrer pays the referrer named in hookData its share of fee, which
// the hook already holds. It returns the share that left the fee flow. A
// failed payment is logged and the share stays with the fee.
func (w *FeeWaterfall) PayReferrer(id amm.PoolID, currency amm.Currency, fee *uint256.Int, hookData []byte) *uint256.Int {
	paid := new(uint256.Int)
	bps := w.EffectivePolicy(id).ReferrerBps
	if bps == 0 || fee.IsZero() {
		return paid
	}
	referrer, ok := DecodeReferrer(hookData)
	if !ok {
		return paid
	}
	share := mulBps(fee, bps)
	if share.IsZero() {
		return paid
	}

	if w.referralEscrow {
		if err := w.escrow.Credit(referrer, currency, share); err != nil {
			w.log.Warn("referral escrow credit failed", "pool", id.Hex(), "referrer", referrer.Hex(), "err", err)
			return paid
		}
	} else if err := w.engine.Transfer(currency, w.hook, referrer, share); err != nil {
		w.log.Warn("referrer payment failed", "pool", id.Hex(), "referrer", referrer.Hex(), "err", err)
		return paid
	}

	w.events.emit(Event{Kind: EventReferrerPaid, Pool: id, Account: referrer, Currency: currency, Amount: share.Clone()})
	return share
}

// Split divides native fees: the protocol takes its share of the whole, the
// creator its share of the remainder, the bid wall the rest.
func (w *FeeWaterfall) Split(id amm.PoolID, amount *uint256.Int) (bidWall, creator, protocol *uint256.Int) {
	remaining := amount.Clone()
	protocol, creator = new(uint256.Int), new(uint256.Int)

	if bps := w.EffectivePolicy(id).ProtocolBps; bps > 0 {
		protocol = mulBps(remaining, bps)
		remaining.Sub(remaining, protocol)
	}
	if bps := w.CreatorBps(id); bps > 0 {
		creator = mulBps(remaining, bps)
		remaining.Sub(remaining, creator)
	}
	return remaining, creator, protocol
}

// Allocate credits native fees to recipient's escrow
func (w *FeeWaterfall) Allocate(id amm.PoolID, recipient common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if recipient == (common.Address{}) {
		return ErrZeroRecipient
	}
	if err := w.escrow.Credit(recipient, w.native, amount); err != nil {
		return err
	}
	w.events.emit(Event{Kind: EventFeeAllocated, Pool: id, Account: recipient, Currency: w.native, Amount: amount.Clone()})
	return nil
}

// withdraw pays out recipient's escrowed currency from the hook's balance.
// Must run inside an engine session.
func (w *FeeWaterfall) withdraw(recipient common.Address, currency amm.Currency, unwrap bool) (*uint256.Int, error) {
	amount, err := w.escrow.Take(recipient, currency)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return amount, nil
	}
	if err := w.engine.Transfer(currency, w.hook, recipient, amount); err != nil {
		return nil, fmt.Errorf("paying escrow to %s: %w", recipient.Hex(), err)
	}
	if unwrap && !currency.IsNative() {
		if err := w.engine.Unwrap(recipient, amount); err != nil {
			return nil, fmt.Errorf("unwrapping escrow for %s: %w", recipient.Hex(), err)
		}
	}
	w.events.emit(Event{Kind: EventWithdrawal, Account: recipient, Currency: currency, Amount: amount.Clone()})
	return amount, nil
}

func (w *FeeWaterfall) setDefaultPolicy(p FeePolicy) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := verifyPolicy(p, w.maxProtocolBps); err != nil {
		return err
	}
	w.defaultPolicy = p
	return nil
}

func (w *FeeWaterfall) setPoolPolicy(id amm.PoolID, p FeePolicy) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := verifyPolicy(p, w.maxProtocolBps); err != nil {
		return err
	}
	w.poolPolicies[id] = p
	return nil
}

func (w *FeeWaterfall) setCreatorFee(id amm.PoolID, bps uint32) error {
	if bps > BpsDenominator {
		return ErrInvalidBps
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.creatorBps[id]; ok {
		return ErrCreatorFeeAlreadySet
	}
	w.creatorBps[id] = bps
	return nil
}

func (w *FeeWaterfall) setExemption(account common.Address, fee uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if fee > w.maxExemptionBps || fee > BpsDenominator {
		return ErrExemptionTooHigh
	}
	w.exemptions[account] = Exemption{Fee: fee, Enabled: true}
	return nil
}

func (w *FeeWaterfall) removeExemption(account common.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.exemptions, account)
}

// Exemption returns the exemption registered for account
func (w *FeeWaterfall) Exemption(account common.Address) Exemption {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.exemptions[account]
}

func (w *FeeWaterfall) setCalculator(c FeeCalculator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calculator = c
}

func (w *FeeWaterfall) trackTrade(key amm.PoolKey, params amm.SwapParams, delta amm.BalanceDelta, tick int32) {
	w.mu.RLock()
	calculator := w.calculator
	w.mu.RUnlock()
	if calculator != nil {
		calculator.TrackTrade(key, params, delta, tick)
	}
}

type creatorFeeSnapshot struct {
	bps uint32
	set bool
}

func (w *FeeWaterfall) snapshot(id amm.PoolID) creatorFeeSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	bps, ok := w.creatorBps[id]
	return creatorFeeSnapshot{bps: bps, set: ok}
}

func (w *FeeWaterfall) restore(id amm.PoolID, snap creatorFeeSnapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !snap.set {
		delete(w.creatorBps, id)
		return
	}
	w.creatorBps[id] = snap.bps
}
