// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clmath

import "github.com/holiman/uint256"

func toUint128(v *uint256.Int) (*uint256.Int, error) {
	if v.Gt(MaxUint128) {
		return nil, ErrLiquidityOverflow
	}
	return v, nil
}

// LiquidityForAmount0 returns the liquidity a range [sqrtA, sqrtB] supports
// when funded with amount0 of currency0 only.
func LiquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return new(uint256.Int), nil
	}
	intermediate, err := MulDiv(sqrtA, sqrtB, Q96)
	if err != nil {
		return nil, err
	}
	l, err := MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return toUint128(l)
}

// LiquidityForAmount1 returns the liquidity a range [sqrtA, sqrtB] supports
// when funded with amount1 of currency1 only.
func LiquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return new(uint256.Int), nil
	}
	l, err := MulDiv(amount1, Q96, new(uint256.Int).Sub(sqrtB, sqrtA))
	if err != nil {
		return nil, err
	}
	return toUint128(l)
}

// LiquidityForAmounts returns the maximum liquidity for the given amounts at
// the current price.
func LiquidityForAmounts(sqrtP, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	switch {
	case !sqrtP.Gt(sqrtA):
		return LiquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtP.Lt(sqrtB):
		l0, err := LiquidityForAmount0(sqrtP, sqrtB, amount0)
		if err != nil {
			return nil, err
		}
		l1, err := LiquidityForAmount1(sqrtA, sqrtP, amount1)
		if err != nil {
			return nil, err
		}
		if l0.Lt(l1) {
			return l0, nil
		}
		return l1, nil
	default:
		return LiquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

// AmountsForLiquidity returns the token amounts represented by liquidity over
// [sqrtA, sqrtB] at price sqrtP, rounded down.
func AmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	amount0, amount1 = new(uint256.Int), new(uint256.Int)
	switch {
	case !sqrtP.Gt(sqrtA):
		amount0, err = Amount0Delta(sqrtA, sqrtB, liquidity, false)
	case sqrtP.Lt(sqrtB):
		if amount0, err = Amount0Delta(sqrtP, sqrtB, liquidity, false); err != nil {
			return nil, nil, err
		}
		amount1, err = Amount1Delta(sqrtA, sqrtP, liquidity, false)
	default:
		amount1, err = Amount1Delta(sqrtA, sqrtB, liquidity, false)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}
