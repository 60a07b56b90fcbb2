// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/launchmm/amm"
	"github.com/luxfi/launchmm/clmath"
)

func requireBetween(t *testing.T, got *uint256.Int, lo, hi uint64) {
	t.Helper()
	if got.Lt(uint256.NewInt(lo)) || got.Gt(uint256.NewInt(hi)) {
		t.Fatalf("%s not in [%d, %d]", got.Dec(), lo, hi)
	}
}

func TestFlaunchValidation(t *testing.T) {
	h := newHarness(t, func(cfg *Config, _ *AdminConfig) {
		cfg.MinMarketCap = ether(10)
	})
	valid := func() FlaunchParams {
		return FlaunchParams{
			Creator:          testCreator,
			Token:            testToken,
			TotalSupply:      ether(1_000),
			FairLaunchSupply: ether(100),
			InitialMarketCap: ether(100),
		}
	}
	tests := []struct {
		name   string
		modify func(*FlaunchParams)
		err    error
	}{
		{"zero creator", func(p *FlaunchParams) { p.Creator = common.Address{} }, ErrZeroRecipient},
		{"native token", func(p *FlaunchParams) { p.Token = testNative }, ErrInvalidPoolKey},
		{"zero supply", func(p *FlaunchParams) { p.TotalSupply = new(uint256.Int) }, ErrZeroSupply},
		{"fair supply too large", func(p *FlaunchParams) { p.FairLaunchSupply = ether(1_001) }, ErrSupplyExceedsTotal},
		{"creator fee", func(p *FlaunchParams) { p.CreatorFeeBps = 10_001 }, ErrInvalidBps},
		{"market cap", func(p *FlaunchParams) { p.InitialMarketCap = ether(1) }, ErrMarketCapTooLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.modify(&p)
			_, err := h.hook.Flaunch(p)
			require.ErrorIs(t, err, tt.err)
		})
	}

	h.fund(testCreator, testToken, ether(1_000))
	key, err := h.hook.Flaunch(valid())
	require.NoError(t, err)
	require.Equal(t, testNative, key.Currency0)
	require.Equal(t, testHookAddress, key.Hooks)

	_, err = h.hook.Flaunch(valid())
	require.ErrorIs(t, err, ErrTokenAlreadyLaunched)
}

func TestFlaunchRollsBackOnMissingSupply(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := amm.PoolKey{Currency0: testNative, Currency1: testToken, TickSpacing: TickSpacing, Hooks: testHookAddress}

	_, err := h.hook.Flaunch(FlaunchParams{
		Creator:          testCreator,
		Token:            testToken,
		TotalSupply:      ether(1_000),
		InitialMarketCap: ether(1_000),
	})
	require.ErrorIs(err, amm.ErrInsufficientBalance)

	_, ok := h.hook.Launch(key.ID())
	require.False(ok)
	_, _, err = h.pm.CurrentPrice(key.ID())
	require.Error(err, "pool initialisation is rolled back")
	require.True(h.hook.FairLaunch.Record(key.ID()).Supply.IsZero())

	launched := h.launch(testToken, ether(10))
	require.Equal(key, launched)
}

func TestDirectInitializeRejected(t *testing.T) {
	h := newHarness(t)
	key := amm.PoolKey{Currency0: testNative, Currency1: testToken, TickSpacing: TickSpacing, Hooks: testHookAddress}
	_, err := h.pm.Initialize(testTrader, key, clmath.Q96)
	require.ErrorIs(t, err, ErrDirectInitialize)
}

func TestFairLaunchExactInputBuy(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))
	id := key.ID()

	_, tick, err := h.pm.CurrentPrice(id)
	require.NoError(err)
	require.Zero(tick)

	h.fund(testTrader, testNative, ether(1))
	delta, err := h.buy(key, neg(ether(1)), nil)
	require.NoError(err)
	require.Zero(neg(ether(1)).Cmp(delta.Amount0))

	// one percent of the tokens is kept as fee
	require.Equal(uint64(99e16), h.ledger.BalanceOf(testToken, testTrader).Uint64())
	require.True(h.ledger.BalanceOf(testNative, testTrader).IsZero())
	require.Equal(ether(1), h.ledger.BalanceOf(testNative, testHookAddress))

	rec := h.hook.FairLaunch.Record(id)
	require.Equal(ether(1), rec.Revenue)
	require.Equal(new(uint256.Int).Sub(ether(100_000), ether(1)), rec.Supply)
	require.Equal(uint64(1e16), h.hook.Netting.Inventory(id).Other.Uint64())

	// the curve was not touched
	sqrtPrice, _, err := h.pm.CurrentPrice(id)
	require.NoError(err)
	require.Equal(clmath.Q96, sqrtPrice)
}

func TestFairLaunchExactOutputBuy(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))
	id := key.ID()

	h.fund(testTrader, testNative, ether(2))
	_, err := h.buy(key, ether(1).ToBig(), nil)
	require.NoError(err)

	require.Equal(ether(1), h.ledger.BalanceOf(testToken, testTrader))
	// the fee is paid on top in native
	require.Equal(uint64(99e16), h.ledger.BalanceOf(testNative, testTrader).Uint64())

	// 0.01 native fee: 10% protocol, the rest to the bid wall
	require.Equal(uint64(1e15), h.escrowed(testProtocol, testNative).Uint64())
	require.True(h.hook.Netting.Inventory(id).Native.IsZero())

	wall := h.hook.BidWall.Record(id)
	require.True(wall.Initialized)
	require.Equal(int32(60), wall.TickLower)
	require.Equal(int32(120), wall.TickUpper)
	require.Equal(uint64(9e15), wall.CumulativeFees.Uint64())
	require.False(h.pm.PositionLiquidity(id, testHookAddress, 60, 120, bidWallSalt).IsZero())
}

func TestFairLaunchRejectsSells(t *testing.T) {
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))
	h.fund(testTrader, testToken, ether(1))

	_, err := h.sell(key, neg(ether(1)))
	require.ErrorIs(t, err, ErrCannotSellDuringFairLaunch)
	require.ErrorIs(t, err, ErrPolicyRejection)
}

func TestScheduledLaunchRejectsTrades(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	h.fund(testCreator, testToken, ether(1_000))
	key, err := h.hook.Flaunch(FlaunchParams{
		Creator:          testCreator,
		Token:            testToken,
		TotalSupply:      ether(1_000),
		FairLaunchSupply: ether(100),
		InitialMarketCap: ether(1_000),
		StartsAt:         h.clock.Unix() + 3600,
	})
	require.NoError(err)
	h.fund(testTrader, testNative, ether(1))

	_, err = h.buy(key, neg(ether(1)), nil)
	require.ErrorIs(err, ErrFairLaunchNotStarted)

	h.clock.Advance(time.Hour)
	_, err = h.buy(key, neg(ether(1)), nil)
	require.NoError(err)
}

func TestFairLaunchClosesAfterWindow(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))
	id := key.ID()

	h.fund(testTrader, testNative, ether(2))
	_, err := h.buy(key, neg(ether(1)), nil)
	require.NoError(err)

	h.clock.Advance(DefaultFairLaunchWindow + time.Minute)
	require.False(h.hook.FairLaunch.IsOpen(id))
	require.False(h.hook.FairLaunch.Record(id).Closed)

	_, err = h.buy(key, neg(uint256.NewInt(1e17)), nil)
	require.NoError(err)

	rec := h.hook.FairLaunch.Record(id)
	require.True(rec.Closed)
	require.Equal(h.clock.Unix(), rec.EndsAt)
	require.True(rec.Supply.IsZero())
	requireBetween(t, rec.Revenue, 0, 10)

	// revenue above the price, unsold supply below it
	require.False(h.pm.PositionLiquidity(id, testHookAddress, 60, 120, fairLaunchSalt).IsZero())
	require.False(h.pm.PositionLiquidity(id, testHookAddress, MinGridTick, 0, fairLaunchSalt).IsZero())

	// the fees stay behind as netting inventory
	inv := h.hook.Netting.Inventory(id)
	require.True(h.ledger.BalanceOf(testToken, testHookAddress).Cmp(inv.Other) >= 0)

	// the second buy went through the curve
	requireBetween(t, h.ledger.BalanceOf(testToken, testTrader), 99e16+98e15, 99e16+99e15)
}

func TestSellAfterWindow(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))
	id := key.ID()

	h.fund(testTrader, testNative, ether(1))
	_, err := h.buy(key, neg(ether(1)), nil)
	require.NoError(err)

	h.clock.Advance(DefaultFairLaunchWindow)
	_, err = h.sell(key, neg(uint256.NewInt(1e17)))
	require.NoError(err)
	require.True(h.hook.FairLaunch.Record(id).Closed)

	// the fee on the native paid out: 10% to the protocol, the rest is
	// below the bid wall threshold and waits
	requireBetween(t, h.ledger.BalanceOf(testNative, testTrader), 97e15, 99e15)
	protocol := h.escrowed(testProtocol, testNative)
	requireBetween(t, protocol, 9e13, 1e14)

	wall := h.hook.BidWall.Record(id)
	require.False(wall.Initialized)
	requireBetween(t, wall.PendingNative, 8e14, 9e14)
	require.Equal(wall.PendingNative, wall.CumulativeFees)
}

func TestFairLaunchSoldOutClosesEarly(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(1))
	id := key.ID()

	h.fund(testTrader, testNative, ether(2))
	_, err := h.buy(key, neg(ether(2)), nil)
	require.NoError(err)

	rec := h.hook.FairLaunch.Record(id)
	require.True(rec.Closed)
	require.True(rec.Supply.IsZero())
	require.False(h.hook.FairLaunch.IsOpen(id))
	require.Equal(h.clock.Unix(), rec.EndsAt)

	// half filled by the fair launch, half by the curve
	require.True(h.ledger.BalanceOf(testNative, testTrader).IsZero())
	requireBetween(t, h.ledger.BalanceOf(testToken, testTrader), 197e16, 198e16)

	require.False(h.pm.PositionLiquidity(id, testHookAddress, 60, 120, fairLaunchSalt).IsZero())
	require.True(h.escrowed(testProtocol, testNative).IsZero())

	// later buys are netted against the fee inventory
	before := h.hook.Netting.Inventory(id).Other
	require.False(before.IsZero())

	h.fund(testTrader, testNative, uint256.NewInt(1e17))
	_, err = h.buy(key, neg(uint256.NewInt(1e17)), nil)
	require.NoError(err)

	require.False(h.escrowed(testProtocol, testNative).IsZero())
	require.True(h.hook.Netting.Inventory(id).Native.IsZero())
	require.True(h.hook.BidWall.Record(id).Initialized)
}

func TestNettingStopsAtPriceLimit(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(1))
	id := key.ID()

	h.fund(testTrader, testNative, ether(2))
	_, err := h.buy(key, neg(ether(2)), nil)
	require.NoError(err)
	inventory := h.hook.Netting.Inventory(id).Other
	require.False(inventory.IsZero())

	// a limit one unit past the price leaves no room for a fill
	sqrtPrice, _, err := h.pm.CurrentPrice(id)
	require.NoError(err)
	limit := new(uint256.Int).SubUint64(sqrtPrice, 1)
	tokens := h.ledger.BalanceOf(testToken, testTrader)

	h.fund(testTrader, testNative, uint256.NewInt(1e17))
	_, err = h.swapToLimit(key, true, neg(uint256.NewInt(1e17)), limit, nil)
	require.NoError(err)

	require.Equal(inventory, h.hook.Netting.Inventory(id).Other)
	require.Equal(tokens, h.ledger.BalanceOf(testToken, testTrader))
	requireBetween(t, h.ledger.BalanceOf(testNative, testTrader), 1e17-1_000, 1e17)
}

func TestReferrerPaidFromFee(t *testing.T) {
	require := require.New(t)
	h := newHarness(t, func(_ *Config, admin *AdminConfig) {
		admin.DefaultPolicy.ReferrerBps = 500
	})
	key := h.launch(testToken, ether(100_000))

	h.fund(testTrader, testNative, ether(1))
	_, err := h.buy(key, neg(ether(1)), EncodeReferrer(testReferrer))
	require.NoError(err)

	require.Equal(uint64(5e14), h.ledger.BalanceOf(testToken, testReferrer).Uint64())
	require.Equal(uint64(95e14), h.hook.Netting.Inventory(key.ID()).Other.Uint64())
}

func TestRejectingReferrerDoesNotBlockTrade(t *testing.T) {
	require := require.New(t)
	h := newHarness(t, func(_ *Config, admin *AdminConfig) {
		admin.DefaultPolicy.ReferrerBps = 500
	})
	key := h.launch(testToken, ether(100_000))
	h.ledger.Freeze(testReferrer, true)

	h.fund(testTrader, testNative, ether(1))
	_, err := h.buy(key, neg(ether(1)), EncodeReferrer(testReferrer))
	require.NoError(err)

	require.True(h.ledger.BalanceOf(testToken, testReferrer).IsZero())
	require.Equal(uint64(1e16), h.hook.Netting.Inventory(key.ID()).Other.Uint64())
}

func TestReferralEscrowAndClaim(t *testing.T) {
	require := require.New(t)
	h := newHarness(t, func(cfg *Config, admin *AdminConfig) {
		cfg.ReferralEscrow = true
		admin.DefaultPolicy.ReferrerBps = 500
	})
	key := h.launch(testToken, ether(100_000))

	h.fund(testTrader, testNative, ether(1))
	_, err := h.buy(key, neg(ether(1)), EncodeReferrer(testReferrer))
	require.NoError(err)

	require.True(h.ledger.BalanceOf(testToken, testReferrer).IsZero())
	require.Equal(uint64(5e14), h.escrowed(testReferrer, testToken).Uint64())

	paid, err := h.hook.ClaimReferral(testReferrer, testToken)
	require.NoError(err)
	require.Equal(uint64(5e14), paid.Uint64())
	require.Equal(uint64(5e14), h.ledger.BalanceOf(testToken, testReferrer).Uint64())
	require.True(h.escrowed(testReferrer, testToken).IsZero())

	paid, err = h.hook.ClaimReferral(testReferrer, testToken)
	require.NoError(err)
	require.True(paid.IsZero())
}

func TestWithdrawEscrowedFees(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))
	require.NoError(h.hook.SetCreatorFee(testCreator, key.ID(), 5_000))

	h.fund(testTrader, testNative, ether(2))
	_, err := h.buy(key, ether(1).ToBig(), nil)
	require.NoError(err)

	// protocol 10% of 0.01, creator half of the rest
	require.Equal(uint64(45e14), h.escrowed(testCreator, testNative).Uint64())

	before := h.ledger.BalanceOf(testNative, testCreator)
	paid, err := h.hook.Withdraw(testCreator, false)
	require.NoError(err)
	require.Equal(uint64(45e14), paid.Uint64())
	require.Equal(new(uint256.Int).Add(before, paid), h.ledger.BalanceOf(testNative, testCreator))

	paid, err = h.hook.Withdraw(testProtocol, true)
	require.NoError(err)
	require.Equal(uint64(1e15), paid.Uint64())
	require.True(h.ledger.BalanceOf(testNative, testProtocol).IsZero())
	require.Equal(uint64(1e15), h.ledger.BalanceOf(amm.NativeCurrency, testProtocol).Uint64())

	_, err = h.hook.Withdraw(common.Address{}, false)
	require.ErrorIs(err, ErrZeroRecipient)
}

func TestFeeExemptRouter(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))

	require.ErrorIs(h.hook.SetFeeExemption(testTrader, testRouter, 0), ErrNotOwner)
	require.NoError(h.hook.SetFeeExemption(testOwner, testRouter, 0))

	h.fund(testTrader, testNative, ether(1))
	_, err := h.buy(key, neg(ether(1)), nil)
	require.NoError(err)
	require.Equal(ether(1), h.ledger.BalanceOf(testToken, testTrader))
	require.True(h.hook.Netting.Inventory(key.ID()).Other.IsZero())

	require.NoError(h.hook.RemoveFeeExemption(testOwner, testRouter))
	h.fund(testTrader, testNative, ether(1))
	_, err = h.buy(key, neg(ether(1)), nil)
	require.NoError(err)
	require.Equal(uint64(1e16), h.hook.Netting.Inventory(key.ID()).Other.Uint64())
}

func TestDisabledBidWall(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))
	id := key.ID()

	h.fund(testTrader, testNative, ether(4))
	_, err := h.buy(key, ether(1).ToBig(), nil)
	require.NoError(err)
	require.True(h.hook.BidWall.Record(id).Initialized)

	require.ErrorIs(h.hook.SetBidWallDisabled(testTrader, id, true), ErrNotCreator)
	require.ErrorIs(h.hook.SetBidWallDisabled(testCreator, amm.PoolID{0xff}, true), ErrUnknownPool)

	before := h.ledger.BalanceOf(testNative, testCreator)
	require.NoError(h.hook.SetBidWallDisabled(testCreator, id, true))
	require.True(h.hook.BidWall.IsDisabled(id))
	require.False(h.hook.BidWall.Record(id).Initialized)
	require.True(h.pm.PositionLiquidity(id, testHookAddress, 60, 120, bidWallSalt).IsZero())

	// the wall's native went to the treasury, which defaults to the creator
	recovered := new(uint256.Int).Sub(h.ledger.BalanceOf(testNative, testCreator), before)
	requireBetween(t, recovered, 9e15-100, 9e15)

	// later bid wall shares are credited to the creator
	_, err = h.buy(key, ether(1).ToBig(), nil)
	require.NoError(err)
	require.Equal(uint64(9e15), h.escrowed(testCreator, testNative).Uint64())
	require.False(h.hook.BidWall.Record(id).Initialized)
}

func TestAdminAuthorization(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))
	id := key.ID()

	policy := FeePolicy{SwapFeeBps: 200, ProtocolBps: 500, Active: true}
	err := h.hook.SetPoolPolicy(testTrader, id, policy)
	require.ErrorIs(err, ErrNotOwner)
	require.ErrorIs(err, ErrAuthorization)
	require.ErrorIs(h.hook.SetDefaultPolicy(testTrader, policy), ErrNotOwner)
	require.ErrorIs(h.hook.SetBidWallThreshold(testTrader, id, nil), ErrNotOwner)
	require.ErrorIs(h.hook.SetFeeCalculator(testTrader, nil), ErrNotOwner)
	require.ErrorIs(h.hook.SetProtocolRecipient(testTrader, testTrader), ErrNotOwner)

	require.ErrorIs(h.hook.SetCreatorFee(testTrader, id, 100), ErrNotCreator)
	require.NoError(h.hook.SetCreatorFee(testCreator, id, 100))
	require.ErrorIs(h.hook.SetCreatorFee(testCreator, id, 200), ErrCreatorFeeAlreadySet)

	require.NoError(h.hook.SetPoolPolicy(testOwner, id, policy))
	require.Equal(policy, h.hook.Fees.EffectivePolicy(id))

	require.ErrorIs(h.hook.TransferOwnership(testOwner, common.Address{}), ErrZeroRecipient)
	require.NoError(h.hook.TransferOwnership(testOwner, testTrader))
	require.Equal(testTrader, h.hook.Owner())
	require.ErrorIs(h.hook.SetDefaultPolicy(testOwner, policy), ErrNotOwner)
	require.NoError(h.hook.SetDefaultPolicy(testTrader, policy))
}

func TestFeeCalculatorObservesTrades(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))

	calc := &fixedCalculator{bps: 300}
	require.NoError(h.hook.SetFeeCalculator(testOwner, calc))

	h.fund(testTrader, testNative, ether(1))
	_, err := h.buy(key, neg(ether(1)), nil)
	require.NoError(err)

	require.Equal(1, calc.trades)
	require.Equal(uint64(97e16), h.ledger.BalanceOf(testToken, testTrader).Uint64())
	require.Equal(uint64(3e16), h.hook.Netting.Inventory(key.ID()).Other.Uint64())
}

func TestFailedTradeRollsBack(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(testToken, ether(100_000))
	id := key.ID()

	ch := make(chan Event, 32)
	sub := h.hook.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	// the trader cannot pay for the buy
	h.fund(testTrader, testNative, uint256.NewInt(5e17))
	_, err := h.buy(key, neg(ether(1)), nil)
	require.ErrorIs(err, amm.ErrInsufficientBalance)

	rec := h.hook.FairLaunch.Record(id)
	require.True(rec.Revenue.IsZero())
	require.Equal(ether(100_000), rec.Supply)
	require.True(h.hook.Netting.Inventory(id).Other.IsZero())
	require.True(h.ledger.BalanceOf(testNative, testHookAddress).IsZero())
	require.Equal(uint64(5e17), h.ledger.BalanceOf(testNative, testTrader).Uint64())
	require.Empty(ch, "reverted sessions publish nothing")

	_, err = h.buy(key, neg(uint256.NewInt(5e17)), nil)
	require.NoError(err)
	require.NotEmpty(ch)
	ev := <-ch
	require.Equal(EventFeeCaptured, ev.Kind)
	require.Equal(id, ev.Pool)
	require.Equal(uint64(5e15), ev.Amount.Uint64())
}

func TestNativeAsCurrencyOne(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	key := h.launch(lowToken, ether(100_000))
	id := key.ID()
	require.Equal(lowToken, key.Currency0)

	info, ok := h.hook.Launch(id)
	require.True(ok)
	require.False(info.NativeIsZero)

	h.fund(testTrader, testNative, ether(2))
	_, err := h.buy(key, neg(ether(1)), nil)
	require.NoError(err)
	require.Equal(uint64(99e16), h.ledger.BalanceOf(lowToken, testTrader).Uint64())

	h.clock.Advance(DefaultFairLaunchWindow)
	_, err = h.buy(key, neg(uint256.NewInt(1e17)), nil)
	require.NoError(err)

	require.True(h.hook.FairLaunch.Record(id).Closed)
	// revenue below the price, unsold supply above it
	require.False(h.pm.PositionLiquidity(id, testHookAddress, -60, 0, fairLaunchSalt).IsZero())
	require.False(h.pm.PositionLiquidity(id, testHookAddress, 60, MaxGridTick, fairLaunchSalt).IsZero())
	require.True(h.ledger.BalanceOf(lowToken, testTrader).Gt(uint256.NewInt(99e16)))
}

type recordingSubscriber struct {
	mu         sync.Mutex
	subscribed []amm.PoolID
	removed    []amm.PoolID
	kinds      []EventKind
}

func (s *recordingSubscriber) Subscribe(id amm.PoolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, id)
	return nil
}

func (s *recordingSubscriber) Unsubscribe(id amm.PoolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, id)
	return nil
}

func (s *recordingSubscriber) Notify(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, ev.Kind)
	return nil
}

func TestSubscribers(t *testing.T) {
	require := require.New(t)
	h := newHarness(t)
	sub := &recordingSubscriber{}

	require.ErrorIs(h.hook.AddSubscriber(testTrader, "recorder", sub), ErrNotOwner)
	require.NoError(h.hook.AddSubscriber(testOwner, "recorder", sub))
	require.Equal([]string{"recorder"}, h.hook.Notifier.Names())

	key := h.launch(testToken, ether(100_000))
	require.Equal([]amm.PoolID{key.ID()}, sub.subscribed)
	require.Equal([]EventKind{EventFairLaunchOpened, EventPoolLaunched}, sub.kinds)

	h.fund(testTrader, testNative, ether(1))
	_, err := h.buy(key, neg(ether(1)), nil)
	require.NoError(err)
	require.Contains(sub.kinds, EventFeeCaptured)

	require.NoError(h.hook.RemoveSubscriber(testOwner, "recorder"))
	require.Equal([]amm.PoolID{key.ID()}, sub.removed)
	require.Empty(h.hook.Notifier.Names())
}

func TestUnknownPoolSwapRejected(t *testing.T) {
	h := newHarness(t)
	key := amm.PoolKey{Currency0: testNative, Currency1: testToken, TickSpacing: TickSpacing, Hooks: testHookAddress}
	_, err := h.hook.BeforeSwap(testRouter, key, amm.SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-1)}, nil)
	require.ErrorIs(t, err, ErrUnknownPool)
}
