// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sw "github.com/intel/inflate64/compress/deflate64/internal/streamwriter"
)

// inflateChunked feeds stream to f inStep bytes at a time and drains it
// through an outStep sized buffer. It returns the output and the number of
// input bytes consumed.
func inflateChunked(f *Inflater, stream []byte, inStep, outStep int) ([]byte, int, error) {
	var out []byte
	buf := make([]byte, outStep)
	pos := 0
	for {
		end := pos + inStep
		if end > len(stream) {
			end = len(stream)
		}
		consumed, written, err := f.Inflate(stream[pos:end], buf)
		pos += consumed
		out = append(out, buf[:written]...)
		if err != nil {
			return out, pos, err
		}
		if f.Finished() {
			return out, pos, nil
		}
		if consumed == 0 && written == 0 && end == len(stream) {
			return out, pos, io.ErrUnexpectedEOF
		}
	}
}

func inflateAll(t *testing.T, stream []byte, opts ...Option) []byte {
	t.Helper()
	out, consumed, err := inflateChunked(NewInflater(opts...), stream, len(stream)+1, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, len(stream), consumed)
	return out
}

func randomText(rng *rand.Rand, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = "acgt"[rng.Intn(4)]
	}
	return p
}

// randomTokens returns tokens with back-references up to the full DEFLATE64
// window and lengths above 258.
func randomTokens(rng *rand.Rand, n int) []sw.Token {
	var toks []sw.Token
	produced := 0
	for len(toks) < n {
		if produced < 3 || rng.Intn(2) == 0 {
			toks = append(toks, sw.Lit(byte(rng.Intn(256))))
			produced++
			continue
		}
		maxDist := produced
		if maxDist > 65536 {
			maxDist = 65536
		}
		length := 3 + rng.Intn(300)
		if rng.Intn(50) == 0 {
			length = 3 + rng.Intn(maxMatchLength-2)
		}
		toks = append(toks, sw.Match(length, 1+rng.Intn(maxDist)))
		produced += length
	}
	return toks
}

func requireCorrupt(t *testing.T, err error, kind error) *CorruptInputError {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "got %v, want %v", err, kind)
	var cerr *CorruptInputError
	require.True(t, errors.As(err, &cerr))
	return cerr
}

func TestInflateStoredRoundTrip(t *testing.T) {
	data := []byte("hello, stored world")
	w := sw.New()
	w.Stored(data, true)

	assert.Equal(t, data, inflateAll(t, w.Bytes()))
}

func TestInflateStoredLarge(t *testing.T) {
	data := randomText(rand.New(rand.NewSource(1)), 300000)
	w := sw.New()
	w.Stored(data, true)

	assert.Equal(t, data, inflateAll(t, w.Bytes()))
}

func TestInflateStoredComplementMismatch(t *testing.T) {
	stream := []byte{0x01, 0x05, 0x00, 0x00, 0x00, 'h', 'e', 'l', 'l', 'o'}
	f := NewInflater()
	out := make([]byte, 64)
	_, written, err := f.Inflate(stream, out)

	requireCorrupt(t, err, ErrInvalidBlockLength)
	assert.Equal(t, 0, written)
	assert.True(t, f.Errored())
	assert.False(t, f.Finished())
}

func TestInflateFixedLiterals(t *testing.T) {
	data := []byte("a fixed huffman block holding only literals")
	w := sw.New()
	w.FixedBlock(sw.Literals(data), true)

	assert.Equal(t, data, inflateAll(t, w.Bytes()))
}

func TestInflateBackReference(t *testing.T) {
	w := sw.New()
	w.FixedBlock([]sw.Token{sw.Lit('A'), sw.Match(4, 1)}, true)

	assert.Equal(t, "AAAAA", string(inflateAll(t, w.Bytes())))
}

func TestInflateLengthExtension(t *testing.T) {
	for _, v := range []int{0, 1, 255, 256, 1000, 65533} {
		w := sw.New()
		w.FixedBlock([]sw.Token{sw.Lit('x'), sw.LongMatch(3+v, 1)}, true)

		out := inflateAll(t, w.Bytes())
		require.Len(t, out, 1+3+v, "extra bits %d", v)
		assert.Equal(t, bytes.Repeat([]byte{'x'}, 1+3+v), out)
	}
}

func TestInflateHandAssembledBlock(t *testing.T) {
	// fixed block: 'a' 'b' 'c', code 285 with extra 65000, distance code 2, end of block
	stream := []byte{0x4b, 0x4c, 0x4a, 0x1e, 0x45, 0xef, 0x47, 0x00}

	out := inflateAll(t, stream)
	want := bytes.Repeat([]byte("abc"), 65006/3+1)[:65006]
	assert.True(t, bytes.Equal(want, out))
}

func TestInflateLengthTooLong(t *testing.T) {
	for _, length := range []int{65537, 65538} {
		w := sw.New()
		w.FixedBlock([]sw.Token{sw.Lit('x'), sw.LongMatch(length, 1)}, true)

		_, _, err := inflateChunked(NewInflater(), w.Bytes(), 1<<20, 1<<20)
		requireCorrupt(t, err, ErrInvalidLength)
	}
}

func TestInflateLongDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	history := randomText(rng, 65536)
	toks := []sw.Token{
		sw.Match(100, 65536),
		sw.Match(300, 49153),
		sw.Match(5000, 32769),
		sw.Lit('z'),
		sw.Match(60000, 40000),
	}
	want := sw.Expand(append([]byte(nil), history...), toks)

	t.Run("fixed", func(t *testing.T) {
		w := sw.New()
		w.Stored(history, false)
		w.FixedBlock(toks, true)
		assert.Equal(t, want, inflateAll(t, w.Bytes()))
	})
	t.Run("dynamic", func(t *testing.T) {
		w := sw.New()
		w.Stored(history, false)
		require.NoError(t, w.DynamicBlock(toks, true))
		assert.Equal(t, want, inflateAll(t, w.Bytes()))
	})
}

func TestInflateDistanceTooFar(t *testing.T) {
	w := sw.New()
	w.FixedBlock([]sw.Token{sw.Lit('a'), sw.Match(3, 2)}, true)

	_, _, err := inflateChunked(NewInflater(), w.Bytes(), 1<<20, 1<<20)
	requireCorrupt(t, err, ErrInvalidDistance)
}

func TestInflateDistanceAcrossBlocks(t *testing.T) {
	w := sw.New()
	w.Stored([]byte("abc"), false)
	w.FixedBlock([]sw.Token{sw.Match(6, 3)}, false)
	require.NoError(t, w.DynamicBlock([]sw.Token{sw.Lit('d'), sw.Match(4, 4)}, true))

	assert.Equal(t, "abcabcabcdabcd", string(inflateAll(t, w.Bytes())))
}

func TestInflateReservedBlockType(t *testing.T) {
	f := NewInflater()
	consumed, written, err := f.Inflate([]byte{0x07, 0x00}, make([]byte, 16))

	cerr := requireCorrupt(t, err, ErrReservedBlockType)
	assert.Equal(t, int64(1), cerr.Offset)
	assert.Equal(t, 1, consumed)
	assert.Equal(t, 0, written)
}

func TestInflateFixedInvalidSymbols(t *testing.T) {
	for _, sym := range []int{286, 287} {
		w := sw.New()
		w.Fixed(true)
		w.Literal('a')
		w.Code(sym)

		_, _, err := inflateChunked(NewInflater(), w.Bytes(), 1<<20, 1<<20)
		requireCorrupt(t, err, ErrInvalidSymbol)
	}
}

func TestInflateErrorIsTerminal(t *testing.T) {
	w := sw.New()
	w.FixedBlock([]sw.Token{sw.Lit('a'), sw.Match(3, 2)}, true)
	stream := append(w.Bytes(), 0x01, 0x02, 0x03)

	f := NewInflater()
	out := make([]byte, 64)
	_, _, err := f.Inflate(stream, out)
	requireCorrupt(t, err, ErrInvalidDistance)
	first := f.Err()
	totalIn := f.TotalIn()

	for i := 0; i < 3; i++ {
		consumed, _, err := f.Inflate(stream, out)
		assert.Equal(t, 0, consumed)
		assert.Same(t, first, err)
		assert.Equal(t, totalIn, f.TotalIn())
		assert.True(t, f.Errored())
	}
}

func TestInflateTrailingData(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	toks := randomTokens(rng, 500)
	trailer := []byte("TRAILER")

	for name, build := range map[string]func(w *sw.Writer){
		"stored":  func(w *sw.Writer) { w.Stored([]byte("data"), true) },
		"fixed":   func(w *sw.Writer) { w.FixedBlock(toks, true) },
		"dynamic": func(w *sw.Writer) { require.NoError(t, w.DynamicBlock(toks, true)) },
	} {
		t.Run(name, func(t *testing.T) {
			w := sw.New()
			build(w)
			stream := w.Bytes()
			input := append(append([]byte(nil), stream...), trailer...)

			for _, step := range []int{1, 3, len(input)} {
				f := NewInflater()
				_, consumed, err := inflateChunked(f, input, step, 4096)
				require.NoError(t, err)
				assert.Equal(t, len(stream), consumed, "input step %d", step)
				assert.Equal(t, int64(len(stream)), f.TotalIn())
			}
		})
	}
}

func multiBlockStream(t *testing.T, rng *rand.Rand) ([]byte, []byte) {
	t.Helper()
	var want []byte
	w := sw.New()

	a := randomTokens(rng, 1000)
	w.FixedBlock(a, false)
	want = sw.Expand(want, a)

	stored := randomText(rng, 70000)
	w.Stored(stored, false)
	want = append(want, stored...)

	b := randomTokens(rng, 1000)
	require.NoError(t, w.DynamicBlock(b, false))
	want = sw.Expand(want, b)

	w.Stored(nil, false)
	c := sw.Literals(randomText(rng, 100))
	require.NoError(t, w.DynamicBlock(c, true))
	want = sw.Expand(want, c)
	return w.Bytes(), want
}

func TestInflateChunking(t *testing.T) {
	stream, want := multiBlockStream(t, rand.New(rand.NewSource(4)))

	for _, inStep := range []int{1, 2, 7, 64, 4096, len(stream)} {
		for _, outStep := range []int{1, 5, 100, 70000} {
			if inStep == 1 && outStep == 1 {
				continue
			}
			out, consumed, err := inflateChunked(NewInflater(), stream, inStep, outStep)
			require.NoError(t, err, "in %d out %d", inStep, outStep)
			assert.Equal(t, len(stream), consumed, "in %d out %d", inStep, outStep)
			assert.True(t, bytes.Equal(want, out), "in %d out %d", inStep, outStep)
		}
	}
}

func TestInflateConservation(t *testing.T) {
	stream, want := multiBlockStream(t, rand.New(rand.NewSource(5)))
	f := NewInflater()

	out, _, err := inflateChunked(f, stream, 1000, 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), f.TotalOut())
	assert.Equal(t, len(want), len(out))
	assert.Equal(t, 0, f.AvailableOutput())
	assert.True(t, f.Finished())
}

func TestInflateSizeCap(t *testing.T) {
	stream, want := multiBlockStream(t, rand.New(rand.NewSource(6)))

	for _, limit := range []int{0, 1, 100, 65536, len(want) - 1, len(want), len(want) + 10} {
		f := NewInflater(WithUncompressedSize(int64(limit)))
		out, _, err := inflateChunked(f, stream, 777, 5000)
		require.NoError(t, err, "limit %d", limit)

		n := limit
		if n > len(want) {
			n = len(want)
		}
		assert.True(t, bytes.Equal(want[:n], out), "limit %d", limit)
		assert.True(t, f.Finished(), "limit %d", limit)
		assert.Equal(t, int64(n), f.TotalOut())
	}
}

func TestInflateFinishedExactlyAtCap(t *testing.T) {
	data := randomText(rand.New(rand.NewSource(7)), 1000)
	w := sw.New()
	w.Stored(data, true)
	stream := w.Bytes()

	f := NewInflater(WithUncompressedSize(500))
	out := make([]byte, 499)
	_, written, err := f.Inflate(stream, out)
	require.NoError(t, err)
	assert.Equal(t, 499, written)
	assert.False(t, f.Finished())

	_, written, err = f.Inflate(nil, out)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.True(t, f.Finished())
	assert.Equal(t, 0, f.AvailableOutput())
	assert.Equal(t, data[499], out[0])
}

func TestInflateEmptyOutput(t *testing.T) {
	w := sw.New()
	w.Stored([]byte("abc"), true)

	f := NewInflater()
	consumed, written, err := f.Inflate(w.Bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
	assert.Equal(t, 0, written)
}

func TestInflateReset(t *testing.T) {
	w := sw.New()
	w.FixedBlock([]sw.Token{sw.Lit('a'), sw.Match(3, 2)}, true)
	bad := w.Bytes()

	good := sw.New()
	good.FixedBlock(sw.Literals([]byte("fresh start")), true)

	f := NewInflater()
	_, _, err := inflateChunked(f, bad, 1<<20, 1<<20)
	require.Error(t, err)

	f.Reset()
	assert.False(t, f.Errored())
	assert.NoError(t, f.Err())
	assert.Equal(t, int64(0), f.TotalIn())

	out, _, err := inflateChunked(f, good.Bytes(), 1<<20, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "fresh start", string(out))
}
