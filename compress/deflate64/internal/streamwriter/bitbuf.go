// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package streamwriter

// BitBuf collects LSB-first bit fields into bytes.
type BitBuf struct {
	output []byte
	bits   uint64
	bitLen uint
}

func (b *BitBuf) reset() {
	b.output = b.output[:0]
	b.bits = 0
	b.bitLen = 0
}

// WriteBit appends the low count bits of code. count must not exceed 32.
func (b *BitBuf) WriteBit(code uint32, count uint8) {
	b.bits |= uint64(code&(1<<count-1)) << b.bitLen
	b.bitLen += uint(count)
	for b.bitLen >= 8 {
		b.output = append(b.output, byte(b.bits))
		b.bits >>= 8
		b.bitLen -= 8
	}
}

// flushLastByte pads the pending bits with zeros to a byte boundary.
func (b *BitBuf) flushLastByte() {
	if b.bitLen == 0 {
		return
	}
	b.output = append(b.output, byte(b.bits))
	b.bits = 0
	b.bitLen = 0
}

// writeBytes appends byte aligned data.
func (b *BitBuf) writeBytes(p []byte) {
	b.flushLastByte()
	b.output = append(b.output, p...)
}
