// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package feecalc provides fee calculators that can be attached to a launch
// hook to replace the base swap fee of each trade.
package feecalc

import (
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/launchmm/amm"
	"github.com/luxfi/launchmm/launch"
)

const maxBps uint32 = 10_000

var (
	_ launch.FeeCalculator = (*Static)(nil)
	_ launch.FeeCalculator = (*Volatility)(nil)
)

// Static charges a flat rate. Pools listed in Overrides use their own.
type Static struct {
	Bps       uint32
	Overrides map[amm.PoolID]uint32
}

// DetermineFee implements launch.FeeCalculator
func (s *Static) DetermineFee(key amm.PoolKey, _ amm.SwapParams, _ uint32) uint32 {
	if bps, ok := s.Overrides[key.ID()]; ok {
		return bps
	}
	return s.Bps
}

// TrackTrade implements launch.FeeCalculator
func (*Static) TrackTrade(amm.PoolKey, amm.SwapParams, amm.BalanceDelta, int32) {}

// Observation is a tick sample with its time-weighted accumulator
type Observation struct {
	Timestamp      uint64
	Tick           int32
	TickCumulative int64
}

// VolatilityConfig configures a Volatility calculator
type VolatilityConfig struct {
	// BaseFee is charged on a calm pool. Zero keeps the pool's base fee.
	BaseFee uint32
	// MaxFee caps the result. Zero caps at 100%.
	MaxFee uint32
	// VolatilityScale converts tick deviation to fee: bps = ticks * scale / 10000
	VolatilityScale uint64
	// Window is how far back the time-weighted average tick looks
	Window time.Duration

	Now func() time.Time
	Log log.Logger
}

// Volatility raises the fee while the price sits far from its recent
// time-weighted average tick.
type Volatility struct {
	cfg VolatilityConfig

	mu           sync.Mutex
	observations map[amm.PoolID][]Observation
}

// NewVolatility creates a calculator with no history
func NewVolatility(cfg VolatilityConfig) *Volatility {
	if cfg.Window == 0 {
		cfg.Window = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = log.NewTestLogger(log.InfoLevel)
	}
	return &Volatility{cfg: cfg, observations: make(map[amm.PoolID][]Observation)}
}

func (v *Volatility) now() uint64 {
	return uint64(v.cfg.Now().Unix())
}

// DetermineFee implements launch.FeeCalculator
func (v *Volatility) DetermineFee(key amm.PoolKey, _ amm.SwapParams, baseBps uint32) uint32 {
	base := v.cfg.BaseFee
	if base == 0 {
		base = baseBps
	}

	v.mu.Lock()
	obs := v.observations[key.ID()]
	if len(obs) < 2 {
		v.mu.Unlock()
		return base
	}
	first, last := obs[0], obs[len(obs)-1]
	v.mu.Unlock()

	now := v.now()
	if now <= first.Timestamp {
		return base
	}
	cumulative := last.TickCumulative + int64(last.Tick)*int64(now-last.Timestamp)
	twap := (cumulative - first.TickCumulative) / int64(now-first.Timestamp)

	deviation := int64(last.Tick) - twap
	if deviation < 0 {
		deviation = -deviation
	}
	extra := uint64(deviation) * v.cfg.VolatilityScale / 10_000

	ceiling := v.cfg.MaxFee
	if ceiling == 0 || ceiling > maxBps {
		ceiling = maxBps
	}
	if base >= ceiling || extra >= uint64(ceiling-base) {
		return ceiling
	}
	return base + uint32(extra)
}

// TrackTrade implements launch.FeeCalculator. It records the post-trade tick
// and forgets samples that have fallen out of the window, keeping one anchor
// before it.
func (v *Volatility) TrackTrade(key amm.PoolKey, _ amm.SwapParams, _ amm.BalanceDelta, tick int32) {
	id := key.ID()
	now := v.now()

	v.mu.Lock()
	defer v.mu.Unlock()
	obs := v.observations[id]
	if n := len(obs); n > 0 {
		last := obs[n-1]
		if last.Timestamp == now {
			obs[n-1].Tick = tick
			return
		}
		obs = append(obs, Observation{
			Timestamp:      now,
			Tick:           tick,
			TickCumulative: last.TickCumulative + int64(last.Tick)*int64(now-last.Timestamp),
		})
	} else {
		obs = append(obs, Observation{Timestamp: now, Tick: tick})
	}

	window := uint64(v.cfg.Window / time.Second)
	for len(obs) > 2 && now >= window && obs[1].Timestamp <= now-window {
		obs = obs[1:]
	}
	v.observations[id] = obs
	v.cfg.Log.Debug("volatility sample", "pool", id.Hex(), "tick", tick, "samples", len(obs))
}

// Observations returns the samples held for a pool
func (v *Volatility) Observations(id amm.PoolID) []Observation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Observation(nil), v.observations[id]...)
}
