// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clmath

import "github.com/holiman/uint256"

func sortPrices(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}

// Amount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB), the
// amount of currency0 held between two prices.
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return nil, ErrInvalidPriceOrdering
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		t, err := MulDivRoundingUp(numerator1, numerator2, sqrtB)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(t, sqrtA)
	}
	t, err := MulDiv(numerator1, numerator2, sqrtB)
	if err != nil {
		return nil, err
	}
	return t.Div(t, sqrtA), nil
}

// Amount1Delta returns liquidity * (sqrtB - sqrtA), the amount of currency1
// held between two prices.
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return MulDivRoundingUp(liquidity, diff, Q96)
	}
	return MulDiv(liquidity, diff, Q96)
}

// nextSqrtPriceFromAmount0RoundingUp moves the price by an amount of currency0,
// always rounding up so the pool never gives away value.
func nextSqrtPriceFromAmount0RoundingUp(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return sqrtP.Clone(), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	product, overflow := new(uint256.Int).MulOverflow(amount, sqrtP)

	if add {
		if !overflow {
			denominator, carry := new(uint256.Int).AddOverflow(numerator1, product)
			if !carry {
				return MulDivRoundingUp(numerator1, sqrtP, denominator)
			}
		}
		// numerator1 / (numerator1/sqrtP + amount)
		denominator := new(uint256.Int).Div(numerator1, sqrtP)
		denominator, carry := denominator.AddOverflow(denominator, amount)
		if carry {
			return nil, ErrPriceOverflow
		}
		return DivRoundingUp(numerator1, denominator)
	}

	if overflow || !numerator1.Gt(product) {
		return nil, ErrPriceOverflow
	}
	denominator := new(uint256.Int).Sub(numerator1, product)
	next, err := MulDivRoundingUp(numerator1, sqrtP, denominator)
	if err != nil {
		return nil, err
	}
	if next.Gt(MaxUint160) {
		return nil, ErrPriceOverflow
	}
	return next, nil
}

// nextSqrtPriceFromAmount1RoundingDown moves the price by an amount of
// currency1, always rounding down.
func nextSqrtPriceFromAmount1RoundingDown(sqrtP, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if add {
		var quotient *uint256.Int
		if !amount.Gt(MaxUint160) {
			quotient = new(uint256.Int).Lsh(amount, 96)
			quotient.Div(quotient, liquidity)
		} else {
			var err error
			if quotient, err = MulDiv(amount, Q96, liquidity); err != nil {
				return nil, err
			}
		}
		next, carry := new(uint256.Int).AddOverflow(sqrtP, quotient)
		if carry || next.Gt(MaxUint160) {
			return nil, ErrPriceOverflow
		}
		return next, nil
	}

	var (
		quotient *uint256.Int
		err      error
	)
	if !amount.Gt(MaxUint160) {
		quotient, err = DivRoundingUp(new(uint256.Int).Lsh(amount, 96), liquidity)
	} else {
		quotient, err = MulDivRoundingUp(amount, Q96, liquidity)
	}
	if err != nil {
		return nil, err
	}
	if !sqrtP.Gt(quotient) {
		return nil, ErrNotEnoughLiquidity
	}
	return new(uint256.Int).Sub(sqrtP, quotient), nil
}

// NextSqrtPriceFromInput returns the price after adding amountIn of the input
// currency (currency0 when zeroForOne).
func NextSqrtPriceFromInput(sqrtP, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtP.IsZero() {
		return nil, ErrInvalidPriceOrdering
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0RoundingUp(sqrtP, liquidity, amountIn, true)
	}
	return nextSqrtPriceFromAmount1RoundingDown(sqrtP, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the price after removing amountOut of the
// output currency (currency1 when zeroForOne).
func NextSqrtPriceFromOutput(sqrtP, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtP.IsZero() {
		return nil, ErrInvalidPriceOrdering
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount1RoundingDown(sqrtP, liquidity, amountOut, false)
	}
	return nextSqrtPriceFromAmount0RoundingUp(sqrtP, liquidity, amountOut, false)
}
