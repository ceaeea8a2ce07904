// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

import (
	"bufio"
	"bytes"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sw "github.com/intel/inflate64/compress/deflate64/internal/streamwriter"
)

// compress returns a DEFLATE stream of data. The text produced by
// randomText never repeats 258 bytes, so the stream has no length code 285
// and decodes the same way as DEFLATE64.
func compress(t testing.TB, data []byte, level int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestReader(t *testing.T) {
	text := randomText(rand.New(rand.NewSource(1)), 300000)
	levels := []int{
		flate.NoCompression, flate.BestSpeed, flate.DefaultCompression,
		flate.BestCompression, flate.HuffmanOnly,
	}
	for _, level := range levels {
		input := compress(t, text, level)
		r := NewReader(bytes.NewReader(input))
		data, err := io.ReadAll(r)
		require.NoError(t, err, "level %d", level)
		assert.True(t, bytes.Equal(text, data), "level %d", level)
		assert.NoError(t, r.Close())
	}
}

func TestReaderIOTest(t *testing.T) {
	stream, want := multiBlockStream(t, rand.New(rand.NewSource(2)))
	assert.NoError(t, iotest.TestReader(NewReader(bytes.NewReader(stream)), want))
}

func TestReaderSmallReads(t *testing.T) {
	stream, want := multiBlockStream(t, rand.New(rand.NewSource(3)))

	r := NewReader(iotest.OneByteReader(bytes.NewReader(stream)))
	data, err := io.ReadAll(iotest.HalfReader(r))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, data))
}

func TestReaderLastBytes(t *testing.T) {
	text := randomText(rand.New(rand.NewSource(4)), 4096)
	for rest := 1; rest < 16; rest++ {
		input := compress(t, text[:256*rest], flate.DefaultCompression)
		trailer := make([]byte, rest)
		rand.New(rand.NewSource(int64(rest))).Read(trailer)
		input = append(input, trailer...)

		br := bufio.NewReader(bytes.NewReader(input))
		data, err := io.ReadAll(NewReader(br))
		require.NoError(t, err)
		assert.Equal(t, text[:256*rest], data)

		left, err := io.ReadAll(br)
		require.NoError(t, err)
		assert.Equal(t, trailer, left, "rest %d", rest)
	}
}

func TestReaderTruncated(t *testing.T) {
	stream, _ := multiBlockStream(t, rand.New(rand.NewSource(5)))
	for _, n := range []int{0, 1, 10, len(stream) / 2, len(stream) - 1} {
		_, err := io.ReadAll(NewReader(bytes.NewReader(stream[:n])))
		assert.Equal(t, io.ErrUnexpectedEOF, err, "length %d", n)
	}
}

func TestReaderCorrupt(t *testing.T) {
	w := sw.New()
	w.Stored([]byte("fine"), false)
	w.FixedBlock([]sw.Token{sw.Match(3, 10)}, true)

	r := NewReader(bytes.NewReader(w.Bytes()))
	data, err := io.ReadAll(r)
	requireCorrupt(t, err, ErrInvalidDistance)
	assert.Equal(t, "fine", string(data))

	n, again := r.Read(make([]byte, 10))
	assert.Equal(t, 0, n)
	assert.Equal(t, err, again)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestReaderInputError(t *testing.T) {
	_, err := io.ReadAll(NewReader(failingReader{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestReaderReset(t *testing.T) {
	a := compress(t, []byte("first stream"), flate.BestSpeed)
	b := compress(t, []byte("second stream"), flate.BestSpeed)

	r := NewReader(bytes.NewReader(a))
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "first stream", string(data))

	require.NoError(t, r.(Resetter).Reset(bytes.NewReader(b)))
	data, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "second stream", string(data))
}

func TestReaderSizeCap(t *testing.T) {
	text := randomText(rand.New(rand.NewSource(6)), 100000)
	input := compress(t, text, flate.DefaultCompression)

	r := NewReader(bytes.NewReader(input), WithUncompressedSize(12345))
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, text[:12345], data)
}

func BenchmarkReader(b *testing.B) {
	text := randomText(rand.New(rand.NewSource(7)), 1<<20)
	input := compress(b, text, flate.DefaultCompression)
	r := NewReader(bytes.NewReader(input))

	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.(Resetter).Reset(bytes.NewReader(input)); err != nil {
			b.Fatal(err)
		}
		if _, err := io.Copy(io.Discard, r); err != nil {
			b.Fatal(err)
		}
	}
}
