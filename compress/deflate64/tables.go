// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

import "sync"

const (
	maxNumLit          = 286 // HLIT upper bound
	maxNumDist         = 32  // HDIST upper bound, 30 in plain DEFLATE
	numFixedLit        = 288 // fixed literal/length alphabet incl. the two unused codes
	numCodeLengthCodes = 19
	endOfBlock         = 256

	// Bounds checked before a back-reference is replayed.
	maxMatchLength   = 65536
	maxMatchDistance = 65538

	// Longest copy a single length symbol can describe (code 285, 3+0xffff).
	// The block decoder only decodes a new symbol with this much room left
	// in the window.
	maxCopyLength = 3 + 0xffff
)

// codeOrder is the order in which code length code lengths are transmitted.
var codeOrder = [numCodeLengthCodes]uint8{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

// rfcLookupTable holds the base values and extra bit counts of the length
// (symbols 257-285) and distance (codes 0-31) alphabets. Length code 285
// carries 16 extra bits on top of base 3 in DEFLATE64.
var rfcLookupTable = struct {
	LenExtraBitCount  [29]uint8
	LenStart          [29]uint16
	DistExtraBitCount [maxNumDist]uint8
	DistStart         [maxNumDist]uint32
}{
	LenExtraBitCount: [29]uint8{
		0, 0, 0, 0, 0, 0, 0, 0,
		1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4,
		5, 5, 5, 5, 16,
	},
	LenStart: [29]uint16{
		3, 4, 5, 6, 7, 8, 9, 10,
		11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115,
		131, 163, 195, 227, 3,
	},
	DistExtraBitCount: [maxNumDist]uint8{
		0, 0, 0, 0, 1, 1, 2, 2,
		3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10,
		11, 11, 12, 12, 13, 13, 14, 14,
	},
	DistStart: [maxNumDist]uint32{
		1, 2, 3, 4, 5, 7, 9, 13,
		17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073,
		4097, 6145, 8193, 12289, 16385, 24577, 32769, 49153,
	},
}

// staticDistanceTable maps the 5 raw bits read for a distance in a fixed
// Huffman block to the distance code they encode.
var staticDistanceTable = [32]uint8{
	0x00, 0x10, 0x08, 0x18, 0x04, 0x14, 0x0c, 0x1c,
	0x02, 0x12, 0x0a, 0x1a, 0x06, 0x16, 0x0e, 0x1e,
	0x01, 0x11, 0x09, 0x19, 0x05, 0x15, 0x0d, 0x1d,
	0x03, 0x13, 0x0b, 0x1b, 0x07, 0x17, 0x0f, 0x1f,
}

var (
	fixedOnce       sync.Once
	fixedLitLenCode huffmanDecoder
)

// fixedLitLenDecoder returns the literal/length table of fixed Huffman
// blocks: 0-143 use 8 bits, 144-255 9 bits, 256-279 7 bits, 280-287 8 bits.
func fixedLitLenDecoder() *huffmanDecoder {
	fixedOnce.Do(func() {
		var lens [numFixedLit]uint8
		for i := range lens {
			switch {
			case i < 144:
				lens[i] = 8
			case i < 256:
				lens[i] = 9
			case i < 280:
				lens[i] = 7
			default:
				lens[i] = 8
			}
		}
		if err := fixedLitLenCode.init(lens[:]); err != nil {
			panic("deflate64: invalid fixed literal/length table")
		}
	})
	return &fixedLitLenCode
}
