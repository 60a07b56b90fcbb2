// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clmath

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSqrtRatioAtTickKnownValues(t *testing.T) {
	tests := []struct {
		tick int32
		want string
	}{
		{tick: 0, want: "79228162514264337593543950336"},
		{tick: 1, want: "79232123823359799118286999568"},
		{tick: -1, want: "79224201403219477170569942574"},
		{tick: MinTick, want: "4295128739"},
		{tick: MaxTick, want: "1461446703485210103287273052203988822378723970342"},
	}
	for _, tt := range tests {
		got, err := SqrtRatioAtTick(tt.tick)
		require.NoError(t, err)
		require.Equal(t, tt.want, got.Dec(), "tick %d", tt.tick)
	}
}

func TestSqrtRatioAtTickBounds(t *testing.T) {
	_, err := SqrtRatioAtTick(MinTick - 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
	_, err = SqrtRatioAtTick(MaxTick + 1)
	require.ErrorIs(t, err, ErrTickOutOfRange)
}

func TestSqrtRatioMonotonic(t *testing.T) {
	prev := MustSqrtRatioAtTick(-1200)
	for tick := int32(-1199); tick <= 1200; tick += 7 {
		cur := MustSqrtRatioAtTick(tick)
		require.True(t, cur.Gt(prev), "tick %d", tick)
		prev = cur
	}
}

func TestTickAtSqrtRatioRoundTrip(t *testing.T) {
	for _, tick := range []int32{MinTick, -887220, -60000, -61, -60, -1, 0, 1, 59, 60, 12345, 200000, 887220, MaxTick - 1} {
		sqrtP := MustSqrtRatioAtTick(tick)
		got, err := TickAtSqrtRatio(sqrtP)
		require.NoError(t, err)
		require.Equal(t, tick, got)

		// one unit below the boundary belongs to the previous tick
		if tick > MinTick {
			below := new(uint256.Int).SubUint64(sqrtP, 1)
			got, err = TickAtSqrtRatio(below)
			require.NoError(t, err)
			require.Equal(t, tick-1, got)
		}
	}
}

func TestTickAtSqrtRatioBounds(t *testing.T) {
	_, err := TickAtSqrtRatio(new(uint256.Int).SubUint64(MinSqrtRatio, 1))
	require.ErrorIs(t, err, ErrSqrtPriceOutOfRange)
	_, err = TickAtSqrtRatio(MaxSqrtRatio)
	require.ErrorIs(t, err, ErrSqrtPriceOutOfRange)

	got, err := TickAtSqrtRatio(new(uint256.Int).SubUint64(MaxSqrtRatio, 1))
	require.NoError(t, err)
	require.Equal(t, MaxTick-1, got)
}
