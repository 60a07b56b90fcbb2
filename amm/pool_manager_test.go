// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/launchmm/clmath"
)

var (
	testToken   = Currency{Address: common.HexToAddress("0x00000000000000000000000000000000000000aa")}
	custodyAddr = common.HexToAddress("0x0000000000000000000000000000000000009010")
	routerAddr  = common.HexToAddress("0x0000000000000000000000000000000000009012")
	lpAddr      = common.HexToAddress("0x0000000000000000000000000000000000001001")
	traderAddr  = common.HexToAddress("0x0000000000000000000000000000000000001002")

	ether = uint256.NewInt(1_000_000_000_000_000_000)
)

func newTestManager(t *testing.T) (*PoolManager, *Router) {
	t.Helper()
	pm := NewPoolManager(custodyAddr, NewLedger(Currency{}), log.NewTestLogger(log.InfoLevel))
	return pm, NewRouter(pm, routerAddr)
}

func nativeKey(hooks common.Address) PoolKey {
	return PoolKey{Currency0: NativeCurrency, Currency1: testToken, Fee: 3000, TickSpacing: 60, Hooks: hooks}
}

func seedLiquidity(t *testing.T, pm *PoolManager, router *Router, key PoolKey) {
	t.Helper()
	l := pm.Ledger()
	require.NoError(t, l.Mint(NativeCurrency, lpAddr, ether))
	require.NoError(t, l.Mint(testToken, lpAddr, ether))
	_, err := router.ModifyLiquidity(lpAddr, key, ModifyLiquidityParams{
		TickLower:      -600,
		TickUpper:      600,
		LiquidityDelta: ether.ToBig(),
	})
	require.NoError(t, err)
}

func TestInitializeValidation(t *testing.T) {
	pm, _ := newTestManager(t)

	unsorted := PoolKey{Currency0: testToken, Currency1: NativeCurrency, TickSpacing: 60}
	_, err := pm.Initialize(lpAddr, unsorted, clmath.Q96)
	require.ErrorIs(t, err, ErrCurrencyNotSorted)

	_, err = pm.Initialize(lpAddr, nativeKey(common.Address{}), clmath.MinSqrtRatio.Clone().SubUint64(clmath.MinSqrtRatio, 1))
	require.ErrorIs(t, err, ErrInvalidSqrtPrice)

	tick, err := pm.Initialize(lpAddr, nativeKey(common.Address{}), clmath.MustSqrtRatioAtTick(-1234))
	require.NoError(t, err)
	require.Equal(t, int32(-1234), tick)

	_, err = pm.Initialize(lpAddr, nativeKey(common.Address{}), clmath.Q96)
	require.ErrorIs(t, err, ErrPoolAlreadyInitialized)

	_, err = pm.Initialize(lpAddr, nativeKey(common.HexToAddress("0xc0")), clmath.Q96)
	require.ErrorIs(t, err, ErrUnregisteredHookAddress)
}

func TestOperationsRequireSession(t *testing.T) {
	pm, _ := newTestManager(t)
	key := nativeKey(common.Address{})
	_, err := pm.Initialize(lpAddr, key, clmath.Q96)
	require.NoError(t, err)

	_, err = pm.Swap(traderAddr, key, SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-1)}, nil)
	require.ErrorIs(t, err, ErrManagerLocked)
	require.ErrorIs(t, pm.Take(traderAddr, NativeCurrency, traderAddr, uint256.NewInt(1)), ErrManagerLocked)
}

func TestAddLiquidityAndSwap(t *testing.T) {
	pm, router := newTestManager(t)
	key := nativeKey(common.Address{})
	_, err := pm.Initialize(lpAddr, key, clmath.Q96)
	require.NoError(t, err)
	seedLiquidity(t, pm, router, key)

	id := key.ID()
	liq, err := pm.Liquidity(id)
	require.NoError(t, err)
	require.Equal(t, ether.Dec(), liq.Dec())
	require.Equal(t, ether.Dec(), pm.PositionLiquidity(id, routerAddr, -600, 600, UserSalt(lpAddr)).Dec())

	in := uint256.NewInt(1_000_000_000_000_000)
	require.NoError(t, pm.Ledger().Mint(NativeCurrency, traderAddr, in))

	delta, err := router.Swap(traderAddr, key, SwapParams{
		ZeroForOne:      true,
		AmountSpecified: new(big.Int).Neg(in.ToBig()),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Neg(in.ToBig()).String(), delta.Amount0.String())
	require.Positive(t, delta.Amount1.Sign())
	require.Negative(t, delta.Amount1.Cmp(in.ToBig()))

	require.True(t, pm.BalanceOf(NativeCurrency, traderAddr).IsZero())
	require.Equal(t, delta.Amount1.String(), pm.BalanceOf(testToken, traderAddr).ToBig().String())

	_, tick, err := pm.CurrentPrice(id)
	require.NoError(t, err)
	require.Negative(t, tick)

	fees0, _ := pm.FeesAccrued(id)
	require.False(t, fees0.IsZero())
}

func TestExactOutputSwap(t *testing.T) {
	pm, router := newTestManager(t)
	key := nativeKey(common.Address{})
	_, err := pm.Initialize(lpAddr, key, clmath.Q96)
	require.NoError(t, err)
	seedLiquidity(t, pm, router, key)

	out := big.NewInt(1_000_000_000_000)
	require.NoError(t, pm.Ledger().Mint(NativeCurrency, traderAddr, ether))

	delta, err := router.Swap(traderAddr, key, SwapParams{ZeroForOne: true, AmountSpecified: out}, nil)
	require.NoError(t, err)
	require.Equal(t, out.String(), delta.Amount1.String())
	require.Negative(t, delta.Amount0.Sign())
	// paid more than received at a 1:1 price with a 0.3% fee
	require.Positive(t, new(big.Int).Neg(delta.Amount0).Cmp(out))
}

func TestSwapCrossesOutOfRange(t *testing.T) {
	pm, router := newTestManager(t)
	key := nativeKey(common.Address{})
	_, err := pm.Initialize(lpAddr, key, clmath.Q96)
	require.NoError(t, err)
	seedLiquidity(t, pm, router, key)

	require.NoError(t, pm.Ledger().Mint(NativeCurrency, traderAddr, ether))
	_, err = router.Swap(traderAddr, key, SwapParams{
		ZeroForOne:        true,
		AmountSpecified:   new(big.Int).Neg(ether.ToBig()),
		SqrtPriceLimitX96: clmath.MustSqrtRatioAtTick(-1200),
	}, nil)
	require.NoError(t, err)

	id := key.ID()
	liq, err := pm.Liquidity(id)
	require.NoError(t, err)
	require.True(t, liq.IsZero())

	_, tick, err := pm.CurrentPrice(id)
	require.NoError(t, err)
	require.Equal(t, int32(-1200), tick)
}

func TestUnlockRollsBackUnsettledSession(t *testing.T) {
	pm, router := newTestManager(t)
	key := nativeKey(common.Address{})
	_, err := pm.Initialize(lpAddr, key, clmath.Q96)
	require.NoError(t, err)
	seedLiquidity(t, pm, router, key)

	id := key.ID()
	sqrtBefore, _, err := pm.CurrentPrice(id)
	require.NoError(t, err)
	reserveBefore := pm.Reserve(testToken)

	err = pm.Unlock(traderAddr, func() error {
		_, err := pm.Swap(traderAddr, key, SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-1_000_000)}, nil)
		if err != nil {
			return err
		}
		// take the output but never pay the input
		return pm.Take(traderAddr, testToken, traderAddr, uint256.NewInt(1))
	})
	require.ErrorIs(t, err, ErrNonZeroDelta)

	sqrtAfter, _, err := pm.CurrentPrice(id)
	require.NoError(t, err)
	require.Equal(t, sqrtBefore.Dec(), sqrtAfter.Dec())
	require.True(t, pm.BalanceOf(testToken, traderAddr).IsZero())
	require.Equal(t, reserveBefore.String(), pm.Reserve(testToken).String())
}

// fillingHook fills exact-input native swaps itself at 1:1 and charges a flat
// fee in the output currency after the swap.
type fillingHook struct {
	pm      *PoolManager
	address common.Address
	fee     *big.Int
	fail    bool

	reverted  int
	committed int
}

func (h *fillingHook) BeforeSwap(_ common.Address, key PoolKey, params SwapParams, _ []byte) (BeforeSwapDelta, error) {
	if h.fail {
		return BeforeSwapDelta{}, errors.New("rejected")
	}
	amount := uint256.MustFromBig(new(big.Int).Neg(params.AmountSpecified))
	if err := h.pm.Take(h.address, key.Currency0, h.address, amount); err != nil {
		return BeforeSwapDelta{}, err
	}
	if err := h.pm.Settle(h.address, key.Currency1, amount); err != nil {
		return BeforeSwapDelta{}, err
	}
	return BeforeSwapDelta{
		Specified:   amount.ToBig(),
		Unspecified: new(big.Int).Neg(amount.ToBig()),
	}, nil
}

func (h *fillingHook) AfterSwap(_ common.Address, key PoolKey, _ SwapParams, delta BalanceDelta, _ []byte) (*big.Int, error) {
	if !delta.IsZero() {
		return nil, errors.New("curve should not be touched")
	}
	if err := h.pm.Take(h.address, key.Currency1, h.address, uint256.MustFromBig(h.fee)); err != nil {
		return nil, err
	}
	return h.fee, nil
}

func (h *fillingHook) Checkpoint(PoolID) (func(), func()) {
	return func() { h.reverted++ }, func() { h.committed++ }
}

func TestHookDeltas(t *testing.T) {
	pm, router := newTestManager(t)
	hookAddr := GenerateHookAddress(lpAddr, [32]byte{7}, HookPermissions{
		BeforeSwap:             true,
		AfterSwap:              true,
		BeforeSwapReturnsDelta: true,
		AfterSwapReturnsDelta:  true,
	})
	hook := &fillingHook{pm: pm, address: hookAddr, fee: big.NewInt(10)}
	require.NoError(t, pm.RegisterHook(hookAddr, hook))

	key := nativeKey(hookAddr)
	_, err := pm.Initialize(lpAddr, key, clmath.Q96)
	require.NoError(t, err)

	require.NoError(t, pm.Ledger().Mint(testToken, hookAddr, uint256.NewInt(1000)))
	require.NoError(t, pm.Ledger().Mint(NativeCurrency, traderAddr, uint256.NewInt(500)))

	delta, err := router.Swap(traderAddr, key, SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-500)}, nil)
	require.NoError(t, err)
	require.Equal(t, "-500", delta.Amount0.String())
	require.Equal(t, "490", delta.Amount1.String())

	require.Equal(t, uint64(490), pm.BalanceOf(testToken, traderAddr).Uint64())
	require.Equal(t, uint64(500), pm.BalanceOf(NativeCurrency, hookAddr).Uint64())
	require.Equal(t, uint64(510), pm.BalanceOf(testToken, hookAddr).Uint64())
	require.Equal(t, 1, hook.committed)
	require.Zero(t, hook.reverted)

	hook.fail = true
	require.NoError(t, pm.Ledger().Mint(NativeCurrency, traderAddr, uint256.NewInt(500)))
	_, err = router.Swap(traderAddr, key, SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-500)}, nil)
	require.Error(t, err)
	require.Equal(t, 1, hook.reverted)
	require.Equal(t, uint64(500), pm.BalanceOf(NativeCurrency, traderAddr).Uint64())
}

func TestHookDeltaCannotFlipSwapDirection(t *testing.T) {
	pm, router := newTestManager(t)
	hookAddr := GenerateHookAddress(lpAddr, [32]byte{8}, HookPermissions{BeforeSwap: true, BeforeSwapReturnsDelta: true})
	require.NoError(t, pm.RegisterHook(hookAddr, &greedyHook{}))

	key := nativeKey(hookAddr)
	_, err := pm.Initialize(lpAddr, key, clmath.Q96)
	require.NoError(t, err)
	require.NoError(t, pm.Ledger().Mint(NativeCurrency, traderAddr, uint256.NewInt(100)))

	_, err = router.Swap(traderAddr, key, SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(-100)}, nil)
	require.ErrorIs(t, err, ErrHookDeltaExceedsSwap)
}

type greedyHook struct{ nopHooks }

func (*greedyHook) BeforeSwap(_ common.Address, _ PoolKey, params SwapParams, _ []byte) (BeforeSwapDelta, error) {
	return BeforeSwapDelta{
		Specified:   new(big.Int).Mul(params.AmountSpecified, big.NewInt(-2)),
		Unspecified: new(big.Int),
	}, nil
}

func TestUnwrap(t *testing.T) {
	wrapped := Currency{Address: common.HexToAddress("0x00000000000000000000000000000000000000ee")}
	l := NewLedger(wrapped)
	require.NoError(t, l.Mint(wrapped, traderAddr, uint256.NewInt(50)))
	require.NoError(t, l.Unwrap(traderAddr, uint256.NewInt(20)))
	require.Equal(t, uint64(30), l.BalanceOf(wrapped, traderAddr).Uint64())
	require.Equal(t, uint64(20), l.BalanceOf(NativeCurrency, traderAddr).Uint64())

	require.ErrorIs(t, NewLedger(Currency{}).Unwrap(traderAddr, uint256.NewInt(1)), ErrNotWrappedNativeAsset)

	l.Freeze(lpAddr, true)
	require.ErrorIs(t, l.Transfer(wrapped, traderAddr, lpAddr, uint256.NewInt(1)), ErrAccountFrozen)
}
