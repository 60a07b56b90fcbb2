// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/launchmm/amm"
	"github.com/luxfi/launchmm/clmath"
)

// BpsDenominator is 100%
const BpsDenominator = 10_000

// DefaultFairLaunchWindow is how long a fair launch accepts buys
const DefaultFairLaunchWindow = 30 * time.Minute

// Default fee settings
const (
	DefaultSwapFeeBps      uint32 = 100
	DefaultMaxProtocolBps  uint32 = 1_000
	DefaultMaxExemptionBps uint32 = BpsDenominator
)

// PoolEngine is the concentrated-liquidity engine the hook is attached to.
// amm.PoolManager implements it.
type PoolEngine interface {
	Initialize(sender common.Address, key amm.PoolKey, sqrtPriceX96 *uint256.Int) (int32, error)
	Unlock(caller common.Address, fn func() error) error
	Checkpoint(c amm.Checkpointer, id amm.PoolID)

	CurrentPrice(id amm.PoolID) (*uint256.Int, int32, error)
	Liquidity(id amm.PoolID) (*uint256.Int, error)
	PositionLiquidity(id amm.PoolID, owner common.Address, tickLower, tickUpper int32, salt [32]byte) *uint256.Int
	ModifyLiquidity(caller common.Address, key amm.PoolKey, params amm.ModifyLiquidityParams) (amm.BalanceDelta, error)
	PriceSwapStep(sqrtCurrent, sqrtTarget, liquidity, amountRemaining *uint256.Int, exactIn bool, feePips uint32) (clmath.SwapStep, error)

	Take(account common.Address, currency amm.Currency, to common.Address, amount *uint256.Int) error
	Settle(account common.Address, currency amm.Currency, amount *uint256.Int) error
	Transfer(currency amm.Currency, from, to common.Address, amount *uint256.Int) error
	BalanceOf(currency amm.Currency, account common.Address) *uint256.Int
	Unwrap(account common.Address, amount *uint256.Int) error
}

// FeeCalculator can replace the base swap fee of a trade and observes every
// completed trade.
type FeeCalculator interface {
	DetermineFee(key amm.PoolKey, params amm.SwapParams, baseBps uint32) uint32
	TrackTrade(key amm.PoolKey, params amm.SwapParams, delta amm.BalanceDelta, tick int32)
}

// FeePolicy splits the swap fee. SwapFeeBps is charged on the trade amount,
// ReferrerBps on the fee, ProtocolBps on what is left after the referrer.
type FeePolicy struct {
	SwapFeeBps  uint32
	ReferrerBps uint32
	ProtocolBps uint32
	Active      bool
}

// Config configures the hook
type Config struct {
	// Address is the hook's account. Its low bits carry the hook permissions.
	Address common.Address
	// Native is the pool-side native currency every launch pairs with
	Native amm.Currency

	FairLaunchWindow time.Duration
	MinMarketCap     *uint256.Int

	// BidWallThreshold is the default redeploy threshold for every pool
	BidWallThreshold ThresholdPolicy

	// ReferralEscrow credits referrer shares instead of paying them out
	ReferralEscrow bool

	// DB backs the escrow. Defaults to an in-memory database.
	DB database.Database

	Now func() time.Time
	Log log.Logger
}

// AdminConfig holds the owner-managed settings
type AdminConfig struct {
	Owner    common.Address
	Protocol common.Address

	DefaultPolicy   FeePolicy
	MaxProtocolBps  uint32
	MaxExemptionBps uint32
}

// DefaultConfig returns a configuration for the given hook address and native
// currency.
func DefaultConfig(address common.Address, native amm.Currency) Config {
	return Config{
		Address:          address,
		Native:           native,
		FairLaunchWindow: DefaultFairLaunchWindow,
		MinMarketCap:     new(uint256.Int),
		BidWallThreshold: FixedThreshold{Amount: uint256.NewInt(1e15)},
	}
}

// DefaultAdminConfig returns owner settings with the default fee policy
func DefaultAdminConfig(owner, protocol common.Address) AdminConfig {
	return AdminConfig{
		Owner:    owner,
		Protocol: protocol,
		DefaultPolicy: FeePolicy{
			SwapFeeBps:  DefaultSwapFeeBps,
			ProtocolBps: DefaultMaxProtocolBps,
			Active:      true,
		},
		MaxProtocolBps:  DefaultMaxProtocolBps,
		MaxExemptionBps: DefaultMaxExemptionBps,
	}
}

func (c *Config) setDefaults() {
	if c.FairLaunchWindow == 0 {
		c.FairLaunchWindow = DefaultFairLaunchWindow
	}
	if c.MinMarketCap == nil {
		c.MinMarketCap = new(uint256.Int)
	}
	if c.BidWallThreshold == nil {
		c.BidWallThreshold = FixedThreshold{Amount: new(uint256.Int)}
	}
	if c.DB == nil {
		c.DB = memdb.New()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Log == nil {
		c.Log = log.NewTestLogger(log.InfoLevel)
	}
}

func (c *AdminConfig) setDefaults() {
	if c.MaxProtocolBps == 0 {
		c.MaxProtocolBps = DefaultMaxProtocolBps
	}
	if c.MaxExemptionBps == 0 {
		c.MaxExemptionBps = DefaultMaxExemptionBps
	}
}

// Verify checks the fee bounds
func (a AdminConfig) Verify() error {
	if a.MaxProtocolBps > BpsDenominator || a.MaxExemptionBps > BpsDenominator {
		return ErrInvalidBps
	}
	return verifyPolicy(a.DefaultPolicy, a.MaxProtocolBps)
}

func verifyPolicy(p FeePolicy, maxProtocolBps uint32) error {
	if p.SwapFeeBps > BpsDenominator || p.ReferrerBps > BpsDenominator || p.ProtocolBps > BpsDenominator {
		return ErrInvalidBps
	}
	if p.ProtocolBps > maxProtocolBps {
		return ErrProtocolBpsTooHigh
	}
	return nil
}

// mulBps returns amount * bps / 10000, rounded down
func mulBps(amount *uint256.Int, bps uint32) *uint256.Int {
	if amount == nil || amount.IsZero() || bps == 0 {
		return new(uint256.Int)
	}
	out, err := clmath.MulDiv(amount, uint256.NewInt(uint64(bps)), uint256.NewInt(BpsDenominator))
	if err != nil {
		// bps <= 10000 keeps the result below amount
		return amount.Clone()
	}
	return out
}
