// Copyright (c) 2023, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package huffman

import "sort"

type symCount struct {
	sym   uint16
	count uint32
}

// LengthLimiter computes minimum-redundancy code lengths that do not exceed
// a length limit. A LengthLimiter should be reused to avoid allocations.
type LengthLimiter struct {
	counts    []symCount
	w         []uint32
	lenCounts []int
}

// Lengths writes into lens the code length of every symbol of histogram,
// never longer than limit, and returns the number of symbols in use.
// Symbols with a zero count get length 0. A single used symbol gets length 1.
func (l *LengthLimiter) Lengths(histogram []uint32, limit int, lens []uint8) int {
	l.counts = l.counts[:0]
	for i, v := range histogram {
		if v != 0 {
			l.counts = append(l.counts, symCount{sym: uint16(i), count: v})
		}
	}
	for i := range lens {
		lens[i] = 0
	}
	num := len(l.counts)
	if num == 0 {
		return 0
	}

	// Heaviest first, ties broken by symbol so results are deterministic.
	sort.Slice(l.counts, func(i, j int) bool {
		if l.counts[i].count != l.counts[j].count {
			return l.counts[i].count > l.counts[j].count
		}
		return l.counts[i].sym < l.counts[j].sym
	})

	l.w = l.w[:0]
	for _, c := range l.counts {
		l.w = append(l.w, c.count)
	}
	maxLen := int(moffatCodeLens(l.w))
	if maxLen <= limit {
		for i, v := range l.w {
			lens[l.counts[i].sym] = uint8(v)
		}
		return num
	}

	if cap(l.lenCounts) < maxLen+1 {
		l.lenCounts = make([]int, maxLen+1)
	}
	l.lenCounts = l.lenCounts[:maxLen+1]
	for i := range l.lenCounts {
		l.lenCounts[i] = 0
	}
	for _, v := range l.w {
		l.lenCounts[v]++
	}
	enforceMaxLen(l.lenCounts, limit)

	// Shortest lengths go to the heaviest symbols.
	idx := 0
	for length := 1; length <= limit; length++ {
		for j := 0; j < l.lenCounts[length]; j++ {
			lens[l.counts[idx].sym] = uint8(length)
			idx++
		}
	}
	return num
}

// enforceMaxLen folds every length above maxLen into maxLen and then splits
// shorter codes until the Kraft sum equals 2^maxLen again.
func enforceMaxLen(lenCounts []int, maxLen int) {
	for i := maxLen + 1; i < len(lenCounts); i++ {
		lenCounts[maxLen] += lenCounts[i]
		lenCounts[i] = 0
	}

	total := 0
	for i := 1; i <= maxLen; i++ {
		total += lenCounts[i] << (maxLen - i)
	}
	for total != 1<<maxLen {
		lenCounts[maxLen]--
		for i := maxLen - 1; i > 0; i-- {
			if lenCounts[i] != 0 {
				lenCounts[i]--
				lenCounts[i+1] += 2
				break
			}
		}
		total--
	}
}

// moffatCodeLens replaces the weights in w, sorted in decreasing order, with
// their code lengths and returns the longest one. It is the in-place
// algorithm of Moffat and Katajainen, "In-Place Calculation of
// Minimum-Redundancy Codes".
func moffatCodeLens(w []uint32) uint32 {
	n := len(w)
	switch n {
	case 0:
		return 0
	case 1:
		w[0] = 1
		return 1
	}

	// Phase 1: build the tree, internal nodes store parent pointers.
	leaf := n - 1
	root := n - 1
	for next := n - 1; next >= 1; next-- {
		if leaf < 0 || (root > next && w[root] < w[leaf]) {
			w[next] = w[root]
			w[root] = uint32(next)
			root--
		} else {
			w[next] = w[leaf]
			leaf--
		}

		if leaf < 0 || (root > next && w[root] < w[leaf]) {
			w[next] += w[root]
			w[root] = uint32(next)
			root--
		} else {
			w[next] += w[leaf]
			leaf--
		}
	}

	// Phase 2: internal node depths.
	w[1] = 0
	for next := 2; next <= n-1; next++ {
		w[next] = w[w[next]] + 1
	}

	// Phase 3: leaf depths.
	avail := 1
	used := 0
	depth := uint32(0)
	root = 1
	next := 0
	for avail > 0 {
		for ; root < n && w[root] == depth; root++ {
			used++
		}
		for ; avail > used; avail-- {
			w[next] = depth
			next++
		}
		avail = 2 * used
		depth++
		used = 0
	}
	return w[n-1]
}
