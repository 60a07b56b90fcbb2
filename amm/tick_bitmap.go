// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "math/bits"

// =============================================================================
// Tick Bitmap for Concentrated Liquidity
// =============================================================================

// TickBitmap tracks which ticks of a pool carry liquidity. Ticks are
// compressed by the pool's spacing; each word stores 256 compressed ticks as
// four little-endian uint64 limbs. Not safe for concurrent use: the pool
// manager guards it.
type TickBitmap struct {
	words map[int16][4]uint64
}

// NewTickBitmap creates a new tick bitmap.
func NewTickBitmap() *TickBitmap {
	return &TickBitmap{words: make(map[int16][4]uint64)}
}

func (tb *TickBitmap) clone() *TickBitmap {
	c := &TickBitmap{words: make(map[int16][4]uint64, len(tb.words))}
	for k, v := range tb.words {
		c.words[k] = v
	}
	return c
}

// compress divides tick by spacing rounding toward negative infinity.
func compress(tick, tickSpacing int32) int32 {
	c := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		c--
	}
	return c
}

// position splits a compressed tick into word and bit. The arithmetic shift
// floors negatives.
func position(compressed int32) (int16, uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

// FlipTick toggles the tick's initialized state. tick must be a multiple of
// tickSpacing.
func (tb *TickBitmap) FlipTick(tick, tickSpacing int32) {
	wp, bp := position(tick / tickSpacing)
	word := tb.words[wp]
	word[bp/64] ^= 1 << (bp % 64)
	if word == ([4]uint64{}) {
		delete(tb.words, wp)
		return
	}
	tb.words[wp] = word
}

// IsInitialized returns whether a tick is initialized.
func (tb *TickBitmap) IsInitialized(tick, tickSpacing int32) bool {
	if tick%tickSpacing != 0 {
		return false
	}
	wp, bp := position(tick / tickSpacing)
	return tb.words[wp][bp/64]&(1<<(bp%64)) != 0
}

// NextInitializedTickWithinOneWord returns the next initialized tick at or
// below tick (lte) or strictly above it, looking only inside the word that
// holds the start. When nothing is found the word boundary is returned with
// initialized=false so the swap loop can step word by word.
func (tb *TickBitmap) NextInitializedTickWithinOneWord(tick, tickSpacing int32, lte bool) (int32, bool) {
	compressed := compress(tick, tickSpacing)

	if lte {
		wp, bp := position(compressed)
		word := tb.words[wp]
		// bits at or below bp
		for limb := int(bp / 64); limb >= 0; limb-- {
			w := word[limb]
			if limb == int(bp/64) {
				shift := bp%64 + 1
				if shift < 64 {
					w &= 1<<shift - 1
				}
			}
			if w != 0 {
				msb := int32(limb*64 + 63 - bits.LeadingZeros64(w))
				return (compressed - (int32(bp) - msb)) * tickSpacing, true
			}
		}
		return (compressed - int32(bp)) * tickSpacing, false
	}

	wp, bp := position(compressed + 1)
	word := tb.words[wp]
	// bits at or above bp
	for limb := int(bp / 64); limb < 4; limb++ {
		w := word[limb]
		if limb == int(bp/64) {
			w &^= 1<<(bp%64) - 1
		}
		if w != 0 {
			lsb := int32(limb*64 + bits.TrailingZeros64(w))
			return (compressed + 1 + (lsb - int32(bp))) * tickSpacing, true
		}
	}
	return (compressed + 1 + (255 - int32(bp))) * tickSpacing, false
}
