// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm implements a v4-style singleton pool manager: every pool lives
// in one engine, token movements are netted per account during an unlocked
// session and must settle to zero before the session commits. Hooks attach to
// pools through permission bits encoded in the hook address.
package amm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// PoolID is the BLAKE3 digest of a PoolKey.
type PoolID [32]byte

// Hex renders the id for logs.
func (id PoolID) Hex() string {
	return common.Hash(id).Hex()
}

// Currency represents a token. Address(0) is the chain's native coin.
type Currency struct {
	Address common.Address
}

// NativeCurrency is the unwrapped native coin.
var NativeCurrency = Currency{}

// IsNative returns true if this currency is the native coin
func (c Currency) IsNative() bool {
	return c.Address == common.Address{}
}

// Less orders currencies by address
func (c Currency) Less(other Currency) bool {
	return bytes.Compare(c.Address.Bytes(), other.Address.Bytes()) < 0
}

func (c Currency) String() string {
	return c.Address.Hex()
}

// PoolKey uniquely identifies a pool. Currency0 sorts below Currency1.
type PoolKey struct {
	Currency0   Currency
	Currency1   Currency
	Fee         uint32 // LP fee in pips (1e6 = 100%)
	TickSpacing int32
	Hooks       common.Address // zero = no hooks
}

// ID computes the unique pool identifier
func (pk PoolKey) ID() PoolID {
	h := blake3.New()
	h.Write(pk.Currency0.Address.Bytes())
	h.Write(pk.Currency1.Address.Bytes())

	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], pk.Fee)
	h.Write(feeBytes[1:]) // uint24

	var tickBytes [4]byte
	binary.BigEndian.PutUint32(tickBytes[:], uint32(pk.TickSpacing))
	h.Write(tickBytes[1:]) // int24

	h.Write(pk.Hooks.Bytes())

	var id PoolID
	h.Digest().Read(id[:])
	return id
}

// BalanceDelta is a pair of signed amounts seen from an account's side of the
// pool manager. Positive = owed to the account, negative = the account owes.
type BalanceDelta struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// NewBalanceDelta creates a new balance delta
func NewBalanceDelta(amount0, amount1 *big.Int) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Set(amount0),
		Amount1: new(big.Int).Set(amount1),
	}
}

// ZeroBalanceDelta returns a zero balance delta
func ZeroBalanceDelta() BalanceDelta {
	return BalanceDelta{
		Amount0: big.NewInt(0),
		Amount1: big.NewInt(0),
	}
}

// Add combines two balance deltas
func (bd BalanceDelta) Add(other BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Add(bd.Amount0, other.Amount0),
		Amount1: new(big.Int).Add(bd.Amount1, other.Amount1),
	}
}

// Sub subtracts another balance delta
func (bd BalanceDelta) Sub(other BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Sub(bd.Amount0, other.Amount0),
		Amount1: new(big.Int).Sub(bd.Amount1, other.Amount1),
	}
}

// IsZero returns true if both amounts are zero
func (bd BalanceDelta) IsZero() bool {
	return bd.Amount0.Sign() == 0 && bd.Amount1.Sign() == 0
}

// Of returns the amount for one side of the pool.
func (bd BalanceDelta) Of(zero bool) *big.Int {
	if zero {
		return bd.Amount0
	}
	return bd.Amount1
}

// BeforeSwapDelta is what a hook claims from a swap before it reaches the
// curve, from the hook's side: Specified is in the currency of the swap's
// specified amount, Unspecified in the other one. Positive = owed to the hook.
type BeforeSwapDelta struct {
	Specified   *big.Int
	Unspecified *big.Int
}

// ZeroBeforeSwapDelta returns an empty hook delta
func ZeroBeforeSwapDelta() BeforeSwapDelta {
	return BeforeSwapDelta{Specified: big.NewInt(0), Unspecified: big.NewInt(0)}
}

// SwapParams contains parameters for a swap
type SwapParams struct {
	ZeroForOne        bool         // true = swap currency0 for currency1
	AmountSpecified   *big.Int     // Negative = exact input, Positive = exact output
	SqrtPriceLimitX96 *uint256.Int // Price limit (sqrt(price) * 2^96)
}

// ExactInput reports whether the specified amount is the input.
func (p SwapParams) ExactInput() bool {
	return p.AmountSpecified.Sign() < 0
}

// SpecifiedIsCurrency0 reports which currency the specified amount is in.
func (p SwapParams) SpecifiedIsCurrency0() bool {
	return p.ExactInput() == p.ZeroForOne
}

// ModifyLiquidityParams contains parameters for adding/removing liquidity
type ModifyLiquidityParams struct {
	TickLower      int32
	TickUpper      int32
	LiquidityDelta *big.Int // Positive = add, Negative = remove
	Salt           [32]byte // Position salt for uniqueness
}

// Pool represents the state of a liquidity pool
type Pool struct {
	Key          PoolKey
	SqrtPriceX96 *uint256.Int
	Tick         int32
	Liquidity    *uint256.Int
	// LP fees are retained by the engine; positions do not accrue them.
	FeesAccrued0 *uint256.Int
	FeesAccrued1 *uint256.Int

	ticks  map[int32]*tickInfo
	bitmap *TickBitmap
}

type tickInfo struct {
	liquidityGross *uint256.Int
	liquidityNet   *big.Int
}

func newPool(key PoolKey, sqrtPriceX96 *uint256.Int, tick int32) *Pool {
	return &Pool{
		Key:          key,
		SqrtPriceX96: sqrtPriceX96.Clone(),
		Tick:         tick,
		Liquidity:    new(uint256.Int),
		FeesAccrued0: new(uint256.Int),
		FeesAccrued1: new(uint256.Int),
		ticks:        make(map[int32]*tickInfo),
		bitmap:       NewTickBitmap(),
	}
}

func (p *Pool) clone() *Pool {
	c := &Pool{
		Key:          p.Key,
		SqrtPriceX96: p.SqrtPriceX96.Clone(),
		Tick:         p.Tick,
		Liquidity:    p.Liquidity.Clone(),
		FeesAccrued0: p.FeesAccrued0.Clone(),
		FeesAccrued1: p.FeesAccrued1.Clone(),
		ticks:        make(map[int32]*tickInfo, len(p.ticks)),
		bitmap:       p.bitmap.clone(),
	}
	for t, info := range p.ticks {
		c.ticks[t] = &tickInfo{
			liquidityGross: info.liquidityGross.Clone(),
			liquidityNet:   new(big.Int).Set(info.liquidityNet),
		}
	}
	return c
}

// Position represents a liquidity position
type Position struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int
}

// PositionKey computes the unique position identifier
func PositionKey(id PoolID, owner common.Address, tickLower, tickUpper int32, salt [32]byte) [32]byte {
	h := blake3.New()
	h.Write(id[:])
	h.Write(owner.Bytes())

	var tickBytes [8]byte
	binary.BigEndian.PutUint32(tickBytes[:4], uint32(tickLower))
	binary.BigEndian.PutUint32(tickBytes[4:], uint32(tickUpper))
	h.Write(tickBytes[:])
	h.Write(salt[:])

	var key [32]byte
	h.Digest().Read(key[:])
	return key
}

// Errors - pool manager
var (
	ErrPoolNotInitialized      = errors.New("pool not initialized")
	ErrPoolAlreadyInitialized  = errors.New("pool already initialized")
	ErrInvalidTickRange        = errors.New("invalid tick range")
	ErrInvalidTickSpacing      = errors.New("invalid tick spacing")
	ErrInsufficientLiquidity   = errors.New("insufficient liquidity")
	ErrPriceLimitReached       = errors.New("price limit already exceeded")
	ErrPriceLimitOutOfBounds   = errors.New("price limit out of bounds")
	ErrInvalidFee              = errors.New("invalid fee")
	ErrCurrencyNotSorted       = errors.New("currencies not sorted")
	ErrManagerLocked           = errors.New("pool manager is locked")
	ErrNonZeroDelta            = errors.New("non-zero balance delta after settlement")
	ErrReserveUnderflow        = errors.New("custody reserve underflow")
	ErrInvalidSqrtPrice        = errors.New("invalid sqrt price")
	ErrSwapAmountZero          = errors.New("swap amount cannot be zero")
	ErrHookDeltaExceedsSwap    = errors.New("hook delta exceeds swap amount")
	ErrLiquidityDeltaZero      = errors.New("liquidity delta cannot be zero")
	ErrTickLiquidityOverflow   = errors.New("tick liquidity overflow")
	ErrAmountOverflow          = errors.New("amount overflows int128")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrAccountFrozen           = errors.New("account cannot receive transfers")
	ErrNotWrappedNativeAsset   = errors.New("currency is not the wrapped native asset")
	ErrUnregisteredHookAddress = errors.New("hook address not registered")
)
