// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

// bitCursor pulls LSB-first bit fields out of the caller's input. Bytes are
// pulled one at a time and only when a read needs them, so once the final
// block ends fewer than 8 bits are buffered and every whole byte after the
// stream is left in the input.
//
// Invariant: bits above bitsLen are zero.
type bitCursor struct {
	input   []byte // unread input of the current Inflate call
	bits    uint64 // buffered bits, next bit in the LSB
	bitsLen uint   // number of valid bits in bits
	read    int64  // bytes pulled from every input so far
}

func (c *bitCursor) reset() {
	*c = bitCursor{}
}

// loadBits pulls input bytes until at least n bits are buffered. It reports
// whether that succeeded; on failure the pulled bytes stay buffered.
func (c *bitCursor) loadBits(n uint) bool {
	for c.bitsLen < n {
		if len(c.input) == 0 {
			return false
		}
		c.bits |= uint64(c.input[0]) << c.bitsLen
		c.input = c.input[1:]
		c.bitsLen += 8
		c.read++
	}
	return true
}

// dropBits discards n buffered bits. n must not exceed bitsLen.
func (c *bitCursor) dropBits(n uint) {
	c.bits >>= n
	c.bitsLen -= n
}

// readBits consumes the next n (n <= 32) bits, or returns errEndInput
// without consuming anything.
func (c *bitCursor) readBits(n uint8) (uint32, error) {
	if !c.loadBits(uint(n)) {
		return 0, errEndInput
	}
	v := uint32(c.bits & (1<<n - 1))
	c.dropBits(uint(n))
	return v, nil
}

// alignToByte drops the bits left in the current partial byte.
func (c *bitCursor) alignToByte() {
	c.dropBits(c.bitsLen % 8)
}

// availableBytes returns how many whole bytes can be read after alignment.
func (c *bitCursor) availableBytes() int {
	return int(c.bitsLen/8) + len(c.input)
}

// readBytes fills dst with byte aligned data, buffered bytes first, and
// returns the number of bytes copied.
func (c *bitCursor) readBytes(dst []byte) int {
	n := 0
	for c.bitsLen >= 8 && n < len(dst) {
		dst[n] = byte(c.bits)
		c.dropBits(8)
		n++
	}
	m := copy(dst[n:], c.input)
	c.input = c.input[m:]
	c.read += int64(m)
	return n + m
}
