// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clmath

import "github.com/holiman/uint256"

// QuoteAtTick converts baseAmount into the other currency at the fixed price
// 1.0001^tick, rounding down. baseIsToken0 selects whether the price ratio is
// applied directly (base is currency0) or inverted.
//
// Squaring the sqrt price overflows 256 bits above 2^128, so large prices are
// squared through MulDiv into Q128 instead of Q192.
func QuoteAtTick(tick int32, baseAmount *uint256.Int, baseIsToken0 bool) (*uint256.Int, error) {
	return quoteAtTick(tick, baseAmount, baseIsToken0, false)
}

// QuoteAtTickRoundingUp is QuoteAtTick rounded up. Use it when the quote is
// what a buyer must pay.
func QuoteAtTickRoundingUp(tick int32, baseAmount *uint256.Int, baseIsToken0 bool) (*uint256.Int, error) {
	return quoteAtTick(tick, baseAmount, baseIsToken0, true)
}

func quoteAtTick(tick int32, baseAmount *uint256.Int, baseIsToken0, roundUp bool) (*uint256.Int, error) {
	mulDiv := MulDiv
	if roundUp {
		mulDiv = MulDivRoundingUp
	}
	sqrtP, err := SqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}

	if !sqrtP.Gt(MaxUint128) {
		ratioX192 := new(uint256.Int).Mul(sqrtP, sqrtP)
		if baseIsToken0 {
			return mulDiv(ratioX192, baseAmount, Q192)
		}
		return mulDiv(Q192, baseAmount, ratioX192)
	}

	// a multiplied ratio rounds with the quote, a dividing one against it
	squareRatio := MulDiv
	if roundUp && baseIsToken0 {
		squareRatio = MulDivRoundingUp
	}
	ratioX128, err := squareRatio(sqrtP, sqrtP, Q64)
	if err != nil {
		return nil, err
	}
	if baseIsToken0 {
		return mulDiv(ratioX128, baseAmount, Q128)
	}
	return mulDiv(Q128, baseAmount, ratioX128)
}
