// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package launch

import "github.com/luxfi/launchmm/clmath"

// TickSpacing is the spacing of every launched pool
const TickSpacing int32 = 60

// MinGridTick and MaxGridTick are the engine bounds rounded inward to the grid
const (
	MinGridTick = clmath.MinTick / TickSpacing * TickSpacing
	MaxGridTick = clmath.MaxTick / TickSpacing * TickSpacing
)

// AlignTick snaps tick onto the spacing grid. Out-of-range ticks are clamped
// to the grid bounds. A tick that is not aligned is floored, plus one spacing
// unless roundDown is set.
func AlignTick(tick int32, roundDown bool) int32 {
	if tick < MinGridTick {
		return MinGridTick
	}
	if tick > MaxGridTick {
		return MaxGridTick
	}
	if tick%TickSpacing == 0 {
		return tick
	}
	floor := tick / TickSpacing * TickSpacing
	if tick < 0 {
		floor -= TickSpacing
	}
	if roundDown {
		return floor
	}
	return floor + TickSpacing
}

// nativeSideRange is the one-spacing range next to tick that holds only the
// native currency. Positions above the price hold currency0 only, positions
// below it currency1 only.
func nativeSideRange(tick int32, nativeIsZero bool) (lower, upper int32) {
	if nativeIsZero {
		lower = AlignTick(tick+1, false)
		return lower, lower + TickSpacing
	}
	upper = AlignTick(tick, true)
	return upper - TickSpacing, upper
}

// otherSideRange runs from next to tick out to the far grid bound on the
// side holding only the non-native currency.
func otherSideRange(tick int32, nativeIsZero bool) (lower, upper int32) {
	if nativeIsZero {
		return MinGridTick, AlignTick(tick, true)
	}
	return AlignTick(tick+1, false), MaxGridTick
}

// singleSided reports whether [lower, upper) holds only currency0 (above the
// price) or only currency1 (below it) at tick.
func singleSided(tick, lower, upper int32, holdsZero bool) bool {
	if lower >= upper || lower < MinGridTick || upper > MaxGridTick {
		return false
	}
	if holdsZero {
		return tick < lower
	}
	return tick >= upper
}
