// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

const (
	windowSize = 1 << 18 // holds the 64 KiB history plus undelivered output
	windowMask = windowSize - 1
)

// window is the sliding history of produced output. It is a ring buffer:
// hist[end] is the next byte to write, the unread bytes before end have not
// been copied to the caller yet.
//
// Invariant: 0 <= unread <= filled <= windowSize.
type window struct {
	hist   []byte
	end    int // write position
	filled int // bytes usable as back-reference history, saturates at windowSize
	unread int // bytes not yet delivered by copyTo
}

func (w *window) init() {
	if w.hist == nil {
		w.hist = make([]byte, windowSize)
	}
	w.end, w.filled, w.unread = 0, 0, 0
}

func (w *window) freeBytes() int {
	return windowSize - w.unread
}

func (w *window) availableBytes() int {
	return w.unread
}

func (w *window) advance(n int) {
	w.end = (w.end + n) & windowMask
	w.unread += n
	w.filled += n
	if w.filled > windowSize {
		w.filled = windowSize
	}
}

// writeByte appends a literal. The caller checks freeBytes first.
func (w *window) writeByte(b byte) {
	w.hist[w.end] = b
	w.advance(1)
}

// writeLengthDistance appends length bytes copied from distance bytes back.
// The ranges may overlap: distance 1 repeats the last byte. The caller
// checks freeBytes first.
func (w *window) writeLengthDistance(length, distance int) error {
	if distance <= 0 || distance > w.filled {
		return ErrInvalidDistance
	}
	src := (w.end - distance) & windowMask
	for length > 0 {
		n := length
		if n > distance {
			// the source must already be written
			n = distance
		}
		if n > windowSize-w.end {
			n = windowSize - w.end
		}
		if n > windowSize-src {
			n = windowSize - src
		}
		copy(w.hist[w.end:w.end+n], w.hist[src:src+n])
		src = (src + n) & windowMask
		w.advance(n)
		length -= n
	}
	return nil
}

// copyTo moves as many undelivered bytes as fit into dst.
func (w *window) copyTo(dst []byte) int {
	n := w.unread
	if n > len(dst) {
		n = len(dst)
	}
	if n == 0 {
		return 0
	}
	start := (w.end - w.unread) & windowMask
	first := copy(dst[:n], w.hist[start:])
	copy(dst[first:n], w.hist[:n-first])
	w.unread -= n
	return n
}

// copyFrom copies up to n raw bytes of a stored block from the cursor,
// bounded by the free space and the available input.
func (w *window) copyFrom(c *bitCursor, n int) int {
	if free := w.freeBytes(); n > free {
		n = free
	}
	if avail := c.availableBytes(); n > avail {
		n = avail
	}
	copied := 0
	for copied < n {
		chunk := n - copied
		if chunk > windowSize-w.end {
			chunk = windowSize - w.end
		}
		m := c.readBytes(w.hist[w.end : w.end+chunk])
		if m == 0 {
			break
		}
		w.advance(m)
		copied += m
	}
	return copied
}
