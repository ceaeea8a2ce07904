// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

// Package huffman assigns canonical prefix codes to per-symbol code lengths
// and derives length-limited code lengths from symbol histograms.
package huffman

import (
	"math/bits"

	"github.com/pkg/errors"
)

// MaxCodeLen is the longest code length a DEFLATE64 stream can transmit.
const MaxCodeLen = 15

var (
	ErrOversubscribed = errors.New("huffman: oversubscribed code lengths")
	ErrIncomplete     = errors.New("huffman: incomplete code lengths")
	ErrCodeTooLong    = errors.New("huffman: code length out of range")
)

// CanonicalCodes assigns the canonical code of every symbol with a nonzero
// length in lens and stores it bit reversed in codes, which is the order the
// bits appear in a DEFLATE stream. codes must be at least as long as lens.
//
// An all-zero lens is valid and assigns nothing. A single code of length 1
// is accepted even though it leaves half of the code space unused; any
// other incomplete set returns ErrIncomplete after the codes are assigned.
func CanonicalCodes(lens []uint8, codes []uint16) error {
	var blCount [MaxCodeLen + 1]int
	maxBits := uint8(0)
	used := 0
	for _, l := range lens {
		if l > MaxCodeLen {
			return ErrCodeTooLong
		}
		if l == 0 {
			continue
		}
		blCount[l]++
		used++
		if l > maxBits {
			maxBits = l
		}
	}

	// Remaining code space, scaled to the current length.
	left := 1
	for n := 1; n <= MaxCodeLen; n++ {
		left <<= 1
		left -= blCount[n]
		if left < 0 {
			return ErrOversubscribed
		}
	}

	var nextCode [MaxCodeLen + 1]uint16
	code := uint16(0)
	for n := uint8(1); n <= maxBits; n++ {
		code = (code + uint16(blCount[n-1])) << 1
		nextCode[n] = code
	}
	for i, l := range lens {
		if l == 0 {
			continue
		}
		codes[i] = bits.Reverse16(nextCode[l]) >> (16 - l)
		nextCode[l]++
	}

	if used > 0 && left > 0 && !(used == 1 && maxBits == 1) {
		return ErrIncomplete
	}
	return nil
}
