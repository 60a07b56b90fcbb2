// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/launchmm/amm"
	"github.com/luxfi/launchmm/clmath"
)

// FlaunchParams describes a new token launch
type FlaunchParams struct {
	Creator common.Address
	Token   amm.Currency

	// TotalSupply moves from the creator to the hook. FairLaunchSupply of
	// it is sold during the window, the rest backs the launch liquidity.
	TotalSupply      *uint256.Int
	FairLaunchSupply *uint256.Int

	// InitialMarketCap prices TotalSupply in native units
	InitialMarketCap *uint256.Int

	CreatorFeeBps uint32

	// StartsAt is a unix timestamp; zero starts the fair launch now
	StartsAt uint64

	// Treasury receives bid wall proceeds. Defaults to the creator.
	Treasury common.Address
}

// InitialSqrtPrice is the pool price valuing supply at marketCap
func InitialSqrtPrice(marketCap, supply *uint256.Int, nativeIsZero bool) (*uint256.Int, error) {
	if marketCap.IsZero() || supply.IsZero() {
		return nil, ErrMarketCapTooLow
	}
	// price is currency1 per currency0
	num, den := supply.ToBig(), marketCap.ToBig()
	if !nativeIsZero {
		num, den = den, num
	}
	ratio := new(big.Int).Lsh(num, 192)
	ratio.Quo(ratio, den)
	sqrtPrice, overflow := uint256.FromBig(ratio.Sqrt(ratio))
	if overflow || sqrtPrice.Lt(clmath.MinSqrtRatio) || !sqrtPrice.Lt(clmath.MaxSqrtRatio) {
		return nil, fmt.Errorf("%w: initial price out of range", ErrInvariantViolation)
	}
	return sqrtPrice, nil
}

// Flaunch creates the token's pool, takes custody of its supply and opens
// the fair launch.
func (h *Hook) Flaunch(p FlaunchParams) (amm.PoolKey, error) {
	if p.Creator == (common.Address{}) {
		return amm.PoolKey{}, ErrZeroRecipient
	}
	if p.Token == h.cfg.Native || p.Token.IsNative() {
		return amm.PoolKey{}, ErrInvalidPoolKey
	}
	if p.TotalSupply == nil || p.TotalSupply.IsZero() {
		return amm.PoolKey{}, ErrZeroSupply
	}
	fairSupply := new(uint256.Int)
	if p.FairLaunchSupply != nil {
		fairSupply.Set(p.FairLaunchSupply)
	}
	if fairSupply.Gt(p.TotalSupply) {
		return amm.PoolKey{}, ErrSupplyExceedsTotal
	}
	if p.CreatorFeeBps > BpsDenominator {
		return amm.PoolKey{}, ErrInvalidBps
	}
	if p.InitialMarketCap == nil || p.InitialMarketCap.IsZero() || p.InitialMarketCap.Lt(h.cfg.MinMarketCap) {
		return amm.PoolKey{}, ErrMarketCapTooLow
	}

	key := amm.PoolKey{
		Currency0:   h.cfg.Native,
		Currency1:   p.Token,
		TickSpacing: TickSpacing,
		Hooks:       h.cfg.Address,
	}
	nativeIsZero := true
	if p.Token.Less(h.cfg.Native) {
		key.Currency0, key.Currency1 = p.Token, h.cfg.Native
		nativeIsZero = false
	}
	id := key.ID()

	h.mu.Lock()
	_, taken := h.tokens[p.Token]
	h.mu.Unlock()
	if taken {
		return amm.PoolKey{}, ErrTokenAlreadyLaunched
	}

	sqrtPrice, err := InitialSqrtPrice(p.InitialMarketCap, p.TotalSupply, nativeIsZero)
	if err != nil {
		return amm.PoolKey{}, err
	}
	tick, err := clmath.TickAtSqrtRatio(sqrtPrice)
	if err != nil {
		return amm.PoolKey{}, err
	}
	// the pool sits exactly on the fair launch price
	sqrtPrice = clmath.MustSqrtRatioAtTick(tick)

	treasury := p.Treasury
	if treasury == (common.Address{}) {
		treasury = p.Creator
	}
	startsAt := p.StartsAt
	if startsAt == 0 {
		startsAt = uint64(h.cfg.Now().Unix())
	}
	info := LaunchInfo{
		Key:          key,
		Token:        p.Token,
		Creator:      p.Creator,
		Treasury:     treasury,
		NativeIsZero: nativeIsZero,
	}

	err = h.engine.Unlock(h.cfg.Address, func() error {
		h.engine.Checkpoint(h, id)
		ps := h.pool(id)
		ps.mu.Lock()
		defer ps.mu.Unlock()

		if _, err := h.engine.Initialize(h.cfg.Address, key, sqrtPrice); err != nil {
			return fmt.Errorf("initializing pool: %w", err)
		}
		if err := h.engine.Transfer(p.Token, p.Creator, h.cfg.Address, p.TotalSupply); err != nil {
			return fmt.Errorf("collecting supply: %w", err)
		}

		h.mu.Lock()
		h.launches[id] = info
		h.tokens[p.Token] = id
		h.mu.Unlock()

		h.BidWall.setTreasury(id, treasury)
		if p.CreatorFeeBps > 0 {
			if err := h.Fees.setCreatorFee(id, p.CreatorFeeBps); err != nil {
				return err
			}
		}
		h.FairLaunch.Open(id, tick, startsAt, fairSupply)
		h.events.emit(Event{Kind: EventPoolLaunched, Pool: id, Account: p.Creator, Currency: p.Token, Amount: p.TotalSupply.Clone()})
		return nil
	})
	if err != nil {
		return amm.PoolKey{}, err
	}

	h.Notifier.subscribe(id)
	h.log.Info("token launched",
		"pool", id.Hex(),
		"token", p.Token.String(),
		"creator", p.Creator.Hex(),
		"tick", tick,
		"startsAt", startsAt,
	)
	return key, nil
}
