// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

// Package streamwriter writes raw DEFLATE64 streams block by block. It exists
// to build decoder test fixtures: callers choose every block type, code
// length and token, including streams that are deliberately corrupt.
package streamwriter

import (
	"github.com/intel/inflate64/compress/deflate64/internal/huffman"
)

const (
	numRepeat3_6     = 16
	zeroRepeat3_10   = 17
	zeroRepeat11_138 = 18

	maxStoredLength = 0xffff
)

var hclenOrder = [19]uint8{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// Code is a prefix code in stream order: Bits holds the code bit reversed
// so it can be written LSB first.
type Code struct {
	Bits uint16
	Len  uint8
}

// Alphabet maps symbols to their codes. Unused symbols have Len 0.
type Alphabet []Code

// NewAlphabet assigns canonical codes to lens. Incomplete code sets are
// returned as they are so corrupt streams can be written.
func NewAlphabet(lens []uint8) (Alphabet, error) {
	codes := make([]uint16, len(lens))
	if err := huffman.CanonicalCodes(lens, codes); err != nil && err != huffman.ErrIncomplete {
		return nil, err
	}
	a := make(Alphabet, len(lens))
	for i, l := range lens {
		a[i] = Code{Bits: codes[i], Len: l}
	}
	return a, nil
}

var fixedLit = func() Alphabet {
	var lens [288]uint8
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
	a, err := NewAlphabet(lens[:])
	if err != nil {
		panic(err)
	}
	return a
}()

// Writer appends blocks to an in-memory stream.
type Writer struct {
	buf     BitBuf
	lit     Alphabet
	dist    Alphabet // nil in fixed blocks
	limiter huffman.LengthLimiter
	rle     []uint8 // code length symbols followed by their extra bits
	clHist  [19]uint32
}

// New returns an empty Writer.
func New() *Writer {
	return &Writer{}
}

// Reset discards everything written so far.
func (w *Writer) Reset() {
	w.buf.reset()
	w.lit, w.dist = nil, nil
}

// Bits writes the low n bits of v.
func (w *Writer) Bits(v uint32, n uint8) {
	w.buf.WriteBit(v, n)
}

// Symbol writes the code of sym from a.
func (w *Writer) Symbol(a Alphabet, sym int) {
	c := a[sym]
	w.buf.WriteBit(uint32(c.Bits), c.Len)
}

// Bytes pads the stream to a byte boundary and returns it.
func (w *Writer) Bytes() []byte {
	w.buf.flushLastByte()
	return w.buf.output
}

func (w *Writer) blockHeader(final bool, btype uint32) {
	if final {
		w.buf.WriteBit(1, 1)
	} else {
		w.buf.WriteBit(0, 1)
	}
	w.buf.WriteBit(btype, 2)
}

// Stored writes data as stored blocks of at most 65535 bytes. Only the
// last block carries final.
func (w *Writer) Stored(data []byte, final bool) {
	for {
		n := len(data)
		if n > maxStoredLength {
			n = maxStoredLength
		}
		last := n == len(data)
		w.blockHeader(final && last, 0)
		w.buf.writeBytes([]byte{byte(n), byte(n >> 8), ^byte(n), ^byte(n >> 8)})
		w.buf.writeBytes(data[:n])
		data = data[n:]
		if last {
			return
		}
	}
}

// Fixed starts a fixed Huffman block.
func (w *Writer) Fixed(final bool) {
	w.blockHeader(final, 1)
	w.lit, w.dist = fixedLit, nil
}

// DynamicPreamble starts a dynamic block and writes HLIT, HDIST, HCLEN and
// the code length code lengths clLens (indexed by symbol). It returns the
// code length alphabet; the caller writes the literal/length and distance
// code lengths with it.
func (w *Writer) DynamicPreamble(final bool, hlit, hdist int, clLens [19]uint8) (Alphabet, error) {
	cl, err := NewAlphabet(clLens[:])
	if err != nil {
		return nil, err
	}
	num := len(hclenOrder)
	for num > 4 && clLens[hclenOrder[num-1]] == 0 {
		num--
	}

	w.blockHeader(final, 2)
	w.buf.WriteBit(uint32(hlit-257), 5)
	w.buf.WriteBit(uint32(hdist-1), 5)
	w.buf.WriteBit(uint32(num-4), 4)
	for _, sym := range hclenOrder[:num] {
		w.buf.WriteBit(uint32(clLens[sym]), 3)
	}
	return cl, nil
}

// Dynamic starts a dynamic Huffman block with the given code lengths. The
// lengths are run-length coded with repeat codes 16, 17 and 18. Lengths
// that do not form a complete code produce a corrupt header.
func (w *Writer) Dynamic(litLens, distLens []uint8, final bool) error {
	hlit := len(litLens)
	for hlit > 257 && litLens[hlit-1] == 0 {
		hlit--
	}
	hdist := len(distLens)
	for hdist > 1 && distLens[hdist-1] == 0 {
		hdist--
	}
	lits := make([]uint8, max(hlit, 257))
	copy(lits, litLens[:hlit])
	dists := make([]uint8, max(hdist, 1))
	copy(dists, distLens[:hdist])

	w.rle = w.rle[:0]
	w.clHist = [19]uint32{}
	w.alphabet(lits)
	w.alphabet(dists)

	var clLens [19]uint8
	w.limiter.Lengths(w.clHist[:], 7, clLens[:])
	cl, err := w.DynamicPreamble(final, len(lits), len(dists), clLens)
	if err != nil {
		return err
	}
	for i := 0; i < len(w.rle); i++ {
		sym := w.rle[i]
		w.Symbol(cl, int(sym))
		switch sym {
		case numRepeat3_6:
			i++
			w.buf.WriteBit(uint32(w.rle[i]), 2)
		case zeroRepeat3_10:
			i++
			w.buf.WriteBit(uint32(w.rle[i]), 3)
		case zeroRepeat11_138:
			i++
			w.buf.WriteBit(uint32(w.rle[i]), 7)
		}
	}

	if w.lit, err = NewAlphabet(lits); err != nil {
		return err
	}
	if w.dist, err = NewAlphabet(dists); err != nil {
		return err
	}
	return nil
}

// DynamicFor starts a dynamic block whose codes are built from the symbol
// frequencies of toks.
func (w *Writer) DynamicFor(toks []Token, final bool) error {
	var litHist [numLitCodes]uint32
	var distHist [numDistCodes]uint32
	litHist[endOfBlock] = 1
	for _, t := range toks {
		if !t.IsMatch() {
			litHist[t.lit]++
			continue
		}
		sym, _, _ := t.lengthCode()
		code, _, _ := t.distanceCode()
		litHist[sym]++
		distHist[code]++
	}

	var litLens [numLitCodes]uint8
	var distLens [numDistCodes]uint8
	w.limiter.Lengths(litHist[:], huffman.MaxCodeLen, litLens[:])
	if w.limiter.Lengths(distHist[:], huffman.MaxCodeLen, distLens[:]) == 0 {
		distLens[0] = 1
	}
	return w.Dynamic(litLens[:], distLens[:], final)
}

// alphabet run-length codes one run of code lengths into w.rle.
func (w *Writer) alphabet(lens []uint8) {
	for start := 0; start < len(lens); {
		end := start + 1
		for end < len(lens) && lens[end] == lens[start] {
			end++
		}
		if lens[start] == 0 {
			w.zeroRepeat(end - start)
		} else {
			w.numRepeat(lens[start], end-start)
		}
		start = end
	}
}

func (w *Writer) numRepeat(num byte, repeated int) {
	for repeated != 0 {
		switch {
		case repeated <= 3:
			for i := 0; i < repeated; i++ {
				w.rle = append(w.rle, num)
			}
			w.clHist[num] += uint32(repeated)
			repeated = 0
		case repeated <= 7:
			w.clHist[num]++
			w.clHist[numRepeat3_6]++
			w.rle = append(w.rle, num, numRepeat3_6, uint8(repeated-4))
			repeated = 0
		default:
			w.clHist[num]++
			w.clHist[numRepeat3_6]++
			w.rle = append(w.rle, num, numRepeat3_6, 3)
			repeated -= 7
		}
	}
}

func (w *Writer) zeroRepeat(repeated int) {
	for repeated != 0 {
		switch {
		case repeated < 3:
			for i := 0; i < repeated; i++ {
				w.rle = append(w.rle, 0)
			}
			w.clHist[0] += uint32(repeated)
			repeated = 0
		case repeated < 11:
			w.clHist[zeroRepeat3_10]++
			w.rle = append(w.rle, zeroRepeat3_10, byte(repeated-3))
			repeated = 0
		case repeated < 139:
			w.clHist[zeroRepeat11_138]++
			w.rle = append(w.rle, zeroRepeat11_138, byte(repeated-11))
			repeated = 0
		default:
			w.clHist[zeroRepeat11_138]++
			w.rle = append(w.rle, zeroRepeat11_138, 138-11)
			repeated -= 138
		}
	}
}

// Literal writes one literal with the codes of the current block.
func (w *Writer) Literal(b byte) {
	w.Symbol(w.lit, int(b))
}

// Code writes literal/length symbol sym of the current block, including
// symbols no token maps to.
func (w *Writer) Code(sym int) {
	w.Symbol(w.lit, sym)
}

// Tokens writes toks with the codes of the current block.
func (w *Writer) Tokens(toks []Token) {
	for _, t := range toks {
		if !t.IsMatch() {
			w.Literal(t.lit)
			continue
		}
		sym, extra, n := t.lengthCode()
		w.Symbol(w.lit, sym)
		w.buf.WriteBit(extra, n)

		code, extra, n := t.distanceCode()
		if w.dist == nil {
			w.buf.WriteBit(reverse5(code), 5)
		} else {
			w.Symbol(w.dist, code)
		}
		w.buf.WriteBit(extra, n)
	}
}

// EndOfBlock writes the end-of-block symbol of the current block.
func (w *Writer) EndOfBlock() {
	w.Symbol(w.lit, endOfBlock)
}

// FixedBlock writes a complete fixed Huffman block.
func (w *Writer) FixedBlock(toks []Token, final bool) {
	w.Fixed(final)
	w.Tokens(toks)
	w.EndOfBlock()
}

// DynamicBlock writes a complete dynamic Huffman block with codes built
// for toks.
func (w *Writer) DynamicBlock(toks []Token, final bool) error {
	if err := w.DynamicFor(toks, final); err != nil {
		return err
	}
	w.Tokens(toks)
	w.EndOfBlock()
	return nil
}
