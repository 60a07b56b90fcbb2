// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clmath

import (
	"errors"

	"github.com/holiman/uint256"
)

var ErrInvalidFeePips = errors.New("fee pips must be below 1e6 for exact output")

// SwapStep is the result of swapping within a single price range.
type SwapStep struct {
	SqrtPriceNext *uint256.Int
	AmountIn      *uint256.Int
	AmountOut     *uint256.Int
	FeeAmount     *uint256.Int
}

// ComputeSwapStep swaps amountRemaining (input when exactIn, output otherwise)
// from sqrtCurrent toward sqrtTarget over constant liquidity. The direction is
// implied by the two prices. feePips is charged on the input, over 1e6.
func ComputeSwapStep(
	sqrtCurrent *uint256.Int,
	sqrtTarget *uint256.Int,
	liquidity *uint256.Int,
	amountRemaining *uint256.Int,
	exactIn bool,
	feePips uint32,
) (SwapStep, error) {
	var (
		step       SwapStep
		err        error
		zeroForOne = !sqrtCurrent.Lt(sqrtTarget)
		maxFee     = uint256.NewInt(uint64(MaxFeePips))
		fee        = uint256.NewInt(uint64(feePips))
	)
	if feePips > MaxFeePips || (!exactIn && feePips == MaxFeePips) {
		return step, ErrInvalidFeePips
	}
	feeComplement := new(uint256.Int).Sub(maxFee, fee)

	amountIn := func(from, to *uint256.Int) (*uint256.Int, error) {
		if zeroForOne {
			return Amount0Delta(to, from, liquidity, true)
		}
		return Amount1Delta(from, to, liquidity, true)
	}
	amountOut := func(from, to *uint256.Int) (*uint256.Int, error) {
		if zeroForOne {
			return Amount1Delta(to, from, liquidity, false)
		}
		return Amount0Delta(from, to, liquidity, false)
	}

	if exactIn {
		lessFee, err := MulDiv(amountRemaining, feeComplement, maxFee)
		if err != nil {
			return step, err
		}
		if step.AmountIn, err = amountIn(sqrtCurrent, sqrtTarget); err != nil {
			return step, err
		}
		if !lessFee.Lt(step.AmountIn) {
			step.SqrtPriceNext = sqrtTarget.Clone()
			if feePips == MaxFeePips {
				step.FeeAmount = step.AmountIn.Clone()
			} else if step.FeeAmount, err = MulDivRoundingUp(step.AmountIn, fee, feeComplement); err != nil {
				return step, err
			}
		} else {
			step.AmountIn = lessFee
			if step.SqrtPriceNext, err = NextSqrtPriceFromInput(sqrtCurrent, liquidity, lessFee, zeroForOne); err != nil {
				return step, err
			}
			step.FeeAmount = new(uint256.Int).Sub(amountRemaining, lessFee)
		}
		if step.AmountOut, err = amountOut(sqrtCurrent, step.SqrtPriceNext); err != nil {
			return step, err
		}
		return step, nil
	}

	if step.AmountOut, err = amountOut(sqrtCurrent, sqrtTarget); err != nil {
		return step, err
	}
	if !amountRemaining.Lt(step.AmountOut) {
		step.SqrtPriceNext = sqrtTarget.Clone()
	} else {
		step.AmountOut = amountRemaining.Clone()
		if step.SqrtPriceNext, err = NextSqrtPriceFromOutput(sqrtCurrent, liquidity, amountRemaining, zeroForOne); err != nil {
			return step, err
		}
	}
	if step.AmountIn, err = amountIn(sqrtCurrent, step.SqrtPriceNext); err != nil {
		return step, err
	}
	if step.FeeAmount, err = MulDivRoundingUp(step.AmountIn, fee, feeComplement); err != nil {
		return step, err
	}
	return step, nil
}
