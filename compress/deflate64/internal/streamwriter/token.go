// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package streamwriter

import "math/bits"

const (
	numLitCodes  = 286
	numDistCodes = 32
	endOfBlock   = 256

	// length code 285 carries 16 extra bits on top of base 3
	longLengthCode  = 285
	longLengthBase  = 3
	longLengthExtra = 16
	maxShortLength  = 258
)

var lenBase = [28]uint16{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227,
}

var lenExtra = [28]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5,
}

var distBase = [numDistCodes]uint32{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289,
	16385, 24577, 32769, 49153,
}

var distExtra = [numDistCodes]uint8{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13, 14, 14,
}

// Token is a literal or a back-reference of a compressed block.
type Token struct {
	lit      byte
	length   int // 0 for a literal
	distance int
	long     bool // always use length code 285
}

// Lit returns a literal token.
func Lit(b byte) Token {
	return Token{lit: b}
}

// Literals returns one literal token per byte of p.
func Literals(p []byte) []Token {
	toks := make([]Token, len(p))
	for i, b := range p {
		toks[i] = Lit(b)
	}
	return toks
}

// Match returns a back-reference using the shortest length code for length.
// Lengths above 258 are written with code 285.
func Match(length, distance int) Token {
	return Token{length: length, distance: distance}
}

// LongMatch returns a back-reference whose length is always written with
// code 285 and 16 extra bits.
func LongMatch(length, distance int) Token {
	return Token{length: length, distance: distance, long: true}
}

// IsMatch reports whether t is a back-reference.
func (t Token) IsMatch() bool {
	return t.length > 0
}

// lengthCode returns the literal/length symbol, extra bits value and extra
// bit count of the token's length.
func (t Token) lengthCode() (sym int, extra uint32, n uint8) {
	if t.long || t.length > maxShortLength {
		return longLengthCode, uint32(t.length - longLengthBase), longLengthExtra
	}
	for i := len(lenBase) - 1; i >= 0; i-- {
		if int(lenBase[i]) <= t.length {
			return endOfBlock + 1 + i, uint32(t.length - int(lenBase[i])), lenExtra[i]
		}
	}
	panic("streamwriter: length below 3")
}

func (t Token) distanceCode() (code int, extra uint32, n uint8) {
	for i := numDistCodes - 1; i >= 0; i-- {
		if int(distBase[i]) <= t.distance {
			return i, uint32(t.distance - int(distBase[i])), distExtra[i]
		}
	}
	panic("streamwriter: distance below 1")
}

// reverse5 returns the fixed Huffman code of a distance code as written to
// the stream.
func reverse5(code int) uint32 {
	return uint32(bits.Reverse8(uint8(code)) >> 3)
}

// Expand appends the bytes toks decode to onto dst, which holds the output
// produced so far.
func Expand(dst []byte, toks []Token) []byte {
	for _, t := range toks {
		if !t.IsMatch() {
			dst = append(dst, t.lit)
			continue
		}
		for i := 0; i < t.length; i++ {
			dst = append(dst, dst[len(dst)-t.distance])
		}
	}
	return dst
}
