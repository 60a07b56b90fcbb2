// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/launchmm/amm"
	"github.com/luxfi/launchmm/clmath"
)

var (
	testNative = amm.Currency{Address: common.HexToAddress("0x0000000000000000000000000000000000000011")}
	// testToken sorts after the native currency, lowToken before it
	testToken = amm.Currency{Address: common.HexToAddress("0xaa00000000000000000000000000000000000000")}
	lowToken  = amm.Currency{Address: common.HexToAddress("0x0000000000000000000000000000000000000005")}

	testOwner    = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	testProtocol = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	testCreator  = common.HexToAddress("0x0000000000000000000000000000000000000a03")
	testTrader   = common.HexToAddress("0x0000000000000000000000000000000000000a04")
	testReferrer = common.HexToAddress("0x0000000000000000000000000000000000000a05")
	testRouter   = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	testCustody  = common.HexToAddress("0x0000000000000000000000000000000000000b02")

	testHookAddress = amm.GenerateHookAddress(common.HexToAddress("0xde"), [32]byte{1}, Permissions)
)

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

type testEngine struct {
	pm     *amm.PoolManager
	ledger *amm.Ledger
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	ledger := amm.NewLedger(testNative)
	return &testEngine{
		pm:     amm.NewPoolManager(testCustody, ledger, log.NewTestLogger(log.InfoLevel)),
		ledger: ledger,
	}
}

type harness struct {
	*testEngine
	t      *testing.T
	clock  *testClock
	hook   *Hook
	router *amm.Router
}

func newHarness(t *testing.T, configure ...func(*Config, *AdminConfig)) *harness {
	t.Helper()
	te := newTestEngine(t)
	clock := newTestClock()

	cfg := DefaultConfig(testHookAddress, testNative)
	cfg.Now = clock.Now
	cfg.Log = log.NewTestLogger(log.InfoLevel)
	admin := DefaultAdminConfig(testOwner, testProtocol)
	for _, c := range configure {
		c(&cfg, &admin)
	}

	hook, err := New(cfg, admin, te.pm)
	require.NoError(t, err)
	require.NoError(t, te.pm.RegisterHook(testHookAddress, hook))

	return &harness{
		testEngine: te,
		t:          t,
		clock:      clock,
		hook:       hook,
		router:     amm.NewRouter(te.pm, testRouter),
	}
}

// launch flaunches token priced at one native per token with fairSupply on
// sale.
func (h *harness) launch(token amm.Currency, fairSupply *uint256.Int) amm.PoolKey {
	h.t.Helper()
	total := ether(1_000_000)
	require.NoError(h.t, h.ledger.Mint(token, testCreator, total))
	key, err := h.hook.Flaunch(FlaunchParams{
		Creator:          testCreator,
		Token:            token,
		TotalSupply:      total,
		FairLaunchSupply: fairSupply,
		InitialMarketCap: total,
	})
	require.NoError(h.t, err)
	return key
}

func (h *harness) fund(account common.Address, currency amm.Currency, amount *uint256.Int) {
	h.t.Helper()
	require.NoError(h.t, h.ledger.Mint(currency, account, amount))
}

// buy swaps native for the launched token. Negative amounts are exact input.
func (h *harness) buy(key amm.PoolKey, amount *big.Int, hookData []byte) (amm.BalanceDelta, error) {
	return h.swap(key, key.Currency0 == testNative, amount, hookData)
}

// sell swaps the launched token for native
func (h *harness) sell(key amm.PoolKey, amount *big.Int) (amm.BalanceDelta, error) {
	return h.swap(key, key.Currency0 != testNative, amount, nil)
}

func (h *harness) swap(key amm.PoolKey, zeroForOne bool, amount *big.Int, hookData []byte) (amm.BalanceDelta, error) {
	limit := new(uint256.Int).AddUint64(clmath.MinSqrtRatio, 1)
	if !zeroForOne {
		limit = new(uint256.Int).SubUint64(clmath.MaxSqrtRatio, 1)
	}
	return h.swapToLimit(key, zeroForOne, amount, limit, hookData)
}

func (h *harness) swapToLimit(key amm.PoolKey, zeroForOne bool, amount *big.Int, limit *uint256.Int, hookData []byte) (amm.BalanceDelta, error) {
	return h.router.Swap(testTrader, key, amm.SwapParams{
		ZeroForOne:        zeroForOne,
		AmountSpecified:   amount,
		SqrtPriceLimitX96: limit,
	}, hookData)
}

func (h *harness) escrowed(recipient common.Address, currency amm.Currency) *uint256.Int {
	h.t.Helper()
	balance, err := h.hook.Escrow.Balance(recipient, currency)
	require.NoError(h.t, err)
	return balance
}

func neg(x *uint256.Int) *big.Int {
	return new(big.Int).Neg(x.ToBig())
}
