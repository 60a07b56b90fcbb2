// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package clmath implements the fixed-point arithmetic of concentrated
// liquidity pools: tick <-> sqrt price conversion, token amount deltas
// between prices, liquidity sizing and the single swap step.
//
// Prices are Q64.96 square roots held in 256-bit unsigned integers. All
// multiplications that could exceed 256 bits go through MulDiv, which keeps
// a 512-bit intermediate.
package clmath

import (
	"errors"

	"github.com/holiman/uint256"
)

// Tick bounds of the price grid: 1.0001^tick must fit in Q64.96.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// MaxFeePips is the fee denominator used by the swap step (100%).
const MaxFeePips uint32 = 1_000_000

var (
	// Q64 = 2^64
	Q64 = new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	// Q96 = 2^96, the Q64.96 unit
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	// Q128 = 2^128
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	// Q192 = 2^192, the unit of a squared Q64.96 price
	Q192 = new(uint256.Int).Lsh(uint256.NewInt(1), 192)

	// MinSqrtRatio is SqrtRatioAtTick(MinTick)
	MinSqrtRatio = uint256.NewInt(4295128739)
	// MaxSqrtRatio is SqrtRatioAtTick(MaxTick)
	MaxSqrtRatio = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")

	// MaxUint128 bounds liquidity values
	MaxUint128 = new(uint256.Int).Sub(Q128, uint256.NewInt(1))
	// MaxUint160 bounds sqrt prices
	MaxUint160 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))

	maxUint256 = new(uint256.Int).SetAllOne()
)

var (
	ErrTickOutOfRange       = errors.New("tick out of range")
	ErrSqrtPriceOutOfRange  = errors.New("sqrt price out of range")
	ErrDivisionByZero       = errors.New("division by zero")
	ErrMulDivOverflow       = errors.New("mulDiv overflow")
	ErrPriceOverflow        = errors.New("sqrt price overflow")
	ErrNotEnoughLiquidity   = errors.New("not enough liquidity")
	ErrLiquidityOverflow    = errors.New("liquidity overflows uint128")
	ErrZeroLiquidity        = errors.New("liquidity is zero")
	ErrInvalidPriceOrdering = errors.New("lower sqrt price must be non-zero")
)
