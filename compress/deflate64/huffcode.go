// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

import (
	"github.com/intel/inflate64/compress/deflate64/internal/huffman"
)

// Lookup table layout. A chunk is symbol<<huffmanValueShift | code length.
// Codes longer than huffmanChunkBits store a link index instead of the
// symbol and a length of huffmanChunkBits+1; the remaining bits index the
// link table.
const (
	huffmanChunkBits  = 9
	huffmanNumChunks  = 1 << huffmanChunkBits
	huffmanCountMask  = 15
	huffmanValueShift = 4
)

// huffmanDecoder decodes one canonical prefix code alphabet.
type huffmanDecoder struct {
	min      uint // shortest code length, 0 for an empty table
	chunks   [huffmanNumChunks]uint32
	links    [][]uint32
	linkMask uint32
	codes    [numFixedLit]uint16
}

// init builds the table from per-symbol code lengths (0 = unused). An empty
// table is valid; decoding from it yields ErrInvalidSymbol.
func (h *huffmanDecoder) init(lengths []uint8) error {
	if len(lengths) > len(h.codes) {
		return ErrInvalidCodeLengths
	}
	if err := huffman.CanonicalCodes(lengths, h.codes[:len(lengths)]); err != nil {
		return ErrInvalidCodeLengths
	}

	h.chunks = [huffmanNumChunks]uint32{}
	h.links = h.links[:0]
	h.min, h.linkMask = 0, 0

	max := uint(0)
	for _, n := range lengths {
		if n == 0 {
			continue
		}
		if h.min == 0 || uint(n) < h.min {
			h.min = uint(n)
		}
		if uint(n) > max {
			max = uint(n)
		}
	}
	if max == 0 {
		return nil
	}
	if max > huffmanChunkBits {
		h.linkMask = 1<<(max-huffmanChunkBits) - 1
	}

	for sym, n := range lengths {
		if n == 0 {
			continue
		}
		code := uint32(h.codes[sym])
		chunk := uint32(sym)<<huffmanValueShift | uint32(n)
		if n <= huffmanChunkBits {
			for off := code; off < huffmanNumChunks; off += 1 << n {
				h.chunks[off] = chunk
			}
			continue
		}

		j := code & (huffmanNumChunks - 1)
		if h.chunks[j] == 0 {
			h.chunks[j] = uint32(len(h.links))<<huffmanValueShift | (huffmanChunkBits + 1)
			h.links = append(h.links, make([]uint32, h.linkMask+1))
		}
		linktab := h.links[h.chunks[j]>>huffmanValueShift]
		for off := code >> huffmanChunkBits; off < uint32(len(linktab)); off += 1 << (n - huffmanChunkBits) {
			linktab[off] = chunk
		}
	}
	return nil
}

// decode reads the next symbol. It returns errEndInput without consuming
// bits when the input ends inside a code, and ErrInvalidSymbol for bit
// patterns that are not a code of the table. Input is pulled one byte at a
// time and only while the buffered bits are a strict prefix of a code, so no
// byte past the end of the symbol is pulled.
func (h *huffmanDecoder) decode(c *bitCursor) (int, error) {
	if !c.loadBits(h.min) {
		return 0, errEndInput
	}
	for {
		chunk := h.chunks[c.bits&(huffmanNumChunks-1)]
		n := uint(chunk & huffmanCountMask)
		if n > huffmanChunkBits {
			chunk = h.links[chunk>>huffmanValueShift][uint32(c.bits>>huffmanChunkBits)&h.linkMask]
			n = uint(chunk & huffmanCountMask)
		}
		if n == 0 {
			return 0, ErrInvalidSymbol
		}
		if n <= c.bitsLen {
			c.dropBits(n)
			return int(chunk >> huffmanValueShift), nil
		}
		if !c.loadBits(c.bitsLen + 1) {
			return 0, errEndInput
		}
	}
}
