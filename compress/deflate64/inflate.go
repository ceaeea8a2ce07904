// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

// Package deflate64 implements a streaming decompressor for DEFLATE64
// ("Enhanced Deflate", ZIP compression method 9).
//
// DEFLATE64 is DEFLATE with a 64 KiB window, distance codes 30 and 31, and a
// length code 285 that carries 16 extra bits instead of meaning 258. The
// Inflater decodes raw block data pushed by the caller in chunks of any size
// and never blocks; NewReader adapts it to io.Reader.
package deflate64

import (
	"github.com/sirupsen/logrus"
)

type blockType uint8

const (
	blockStored blockType = iota
	blockFixed
	blockDynamic
)

func (t blockType) String() string {
	switch t {
	case blockStored:
		return "stored"
	case blockFixed:
		return "fixed"
	case blockDynamic:
		return "dynamic"
	}
	return "reserved"
}

// inflaterState records where decoding paused.
type inflaterState uint8

const (
	stateReadingBFinal inflaterState = iota
	stateReadingBType

	// dynamic block header
	stateReadingNumLitCodes
	stateReadingNumDistCodes
	stateReadingNumCodeLengthCodes
	stateReadingCodeLengthCodes
	stateReadingTreeCodesBefore
	stateReadingTreeCodesAfter

	// compressed block body
	stateDecodeTop
	stateHaveInitialLength
	stateHaveFullLength
	stateHaveDistCode

	// stored block
	stateStoredAligning
	stateStoredByte1
	stateStoredByte2
	stateStoredByte3
	stateStoredByte4
	stateStoredCopying

	stateDone
	stateDataError
)

func (s inflaterState) terminal() bool {
	return s == stateDone || s == stateDataError
}

// Option configures an Inflater.
type Option func(*Inflater)

// WithUncompressedSize caps the total output at n bytes. The Inflater
// finishes as soon as n bytes were delivered, whatever the stream holds
// beyond that point.
func WithUncompressedSize(n int64) Option {
	return func(f *Inflater) {
		if n < 0 {
			n = 0
		}
		f.limit = n
	}
}

// WithLogger sets the logger used for block level debug messages.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Inflater) {
		if l != nil {
			f.log = l
		}
	}
}

// Inflater is a resumable DEFLATE64 decoder. Inflate may be called with
// input and output split at arbitrary points; all progress is kept in the
// Inflater. An Inflater must not be used from several goroutines at once.
type Inflater struct {
	in    bitCursor
	out   window
	state inflaterState
	err   error

	final bool // current block is the last one
	btype blockType

	// dynamic header
	litCodeCount        int
	distCodeCount       int
	codeLengthCodeCount int
	loopCounter         int
	codeLengthCodes     [numCodeLengthCodes]uint8
	codeList            [maxNumLit + maxNumDist]uint8
	codeListLen         int
	repeatSym           int

	codeLengthTable huffmanDecoder
	litLenTable     huffmanDecoder
	distTable       huffmanDecoder
	hl              *huffmanDecoder // literal/length table of the current block
	hd              *huffmanDecoder // distance table, nil for fixed blocks

	// pending back-reference
	extraBits uint8
	length    int
	distCode  int

	// stored block
	storedHeader    [4]byte
	storedRemaining int

	limit    int64 // output cap, -1 for none
	totalOut int64

	log logrus.FieldLogger
}

// NewInflater returns an Inflater ready to decode a new stream.
func NewInflater(opts ...Option) *Inflater {
	f := &Inflater{
		limit: -1,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.Reset()
	return f
}

// Reset discards all decoding state so the Inflater can decode a new
// stream. Options and the window allocation are kept.
func (f *Inflater) Reset() {
	f.in.reset()
	f.out.init()
	f.state = stateReadingBFinal
	f.err = nil
	f.final = false
	f.hl, f.hd = nil, nil
	f.codeListLen = 0
	f.loopCounter = 0
	f.storedRemaining = 0
	f.totalOut = 0
	if f.limit == 0 {
		f.state = stateDone
	}
}

// Finished reports whether the final block was decoded, or the output cap
// was reached, and all output up to that point was delivered.
func (f *Inflater) Finished() bool {
	return f.state == stateDone && f.AvailableOutput() == 0
}

// Errored reports whether the stream was found to be corrupt.
func (f *Inflater) Errored() bool {
	return f.state == stateDataError
}

// Err returns the *CorruptInputError that stopped decoding, if any.
func (f *Inflater) Err() error {
	return f.err
}

// AvailableOutput returns the number of decoded bytes waiting to be
// delivered by the next Inflate call.
func (f *Inflater) AvailableOutput() int {
	n := f.out.availableBytes()
	if f.limit >= 0 {
		if rest := f.limit - f.totalOut; int64(n) > rest {
			n = int(rest)
		}
	}
	return n
}

// TotalIn returns the number of input bytes consumed so far.
func (f *Inflater) TotalIn() int64 {
	return f.in.read
}

// TotalOut returns the number of bytes delivered so far.
func (f *Inflater) TotalOut() int64 {
	return f.totalOut
}

// Inflate decodes input into output. It returns the number of input bytes
// consumed and output bytes written. It stops when output is full, when
// input is exhausted (consumed == len(input)), or when the stream ended.
// Unconsumed input must be passed again on the next call.
//
// A corrupt stream returns a *CorruptInputError along with the output
// decoded before the error; the Inflater then stays errored and later calls
// consume nothing.
func (f *Inflater) Inflate(input, output []byte) (consumed, written int, err error) {
	f.in.input = input
	defer func() {
		consumed = len(input) - len(f.in.input)
		f.in.input = nil
	}()

	for {
		written += f.drain(output[written:])
		if f.state == stateDataError {
			return 0, written, f.err
		}
		if written == len(output) || f.state == stateDone {
			return 0, written, nil
		}

		switch err := f.decode(); err {
		case nil, errOutputOverflow:
		case errEndInput:
			return 0, written, nil
		default:
			f.fail(err)
			written += f.drain(output[written:])
			return 0, written, f.err
		}
	}
}

// drain copies window content to dst honoring the output cap.
func (f *Inflater) drain(dst []byte) int {
	if f.limit >= 0 {
		if rest := f.limit - f.totalOut; int64(len(dst)) > rest {
			dst = dst[:rest]
		}
	}
	n := f.out.copyTo(dst)
	f.totalOut += int64(n)
	if f.limit >= 0 && f.totalOut >= f.limit && f.state != stateDataError {
		f.state = stateDone
	}
	return n
}

// decode runs state transitions until one of them cannot make progress or
// a terminal state is reached.
func (f *Inflater) decode() error {
	for !f.state.terminal() {
		if err := f.transition(); err != nil {
			return err
		}
	}
	return nil
}

// transition performs the work of the current state. A nil error means the
// decoder moved on to a new state; errEndInput and errOutputOverflow pause
// decoding, any other error is a data error.
func (f *Inflater) transition() error {
	switch f.state {
	case stateReadingBFinal, stateReadingBType:
		return f.readBlockHeader()
	case stateReadingNumLitCodes, stateReadingNumDistCodes, stateReadingNumCodeLengthCodes,
		stateReadingCodeLengthCodes, stateReadingTreeCodesBefore, stateReadingTreeCodesAfter:
		return f.readDynamicHeader()
	case stateDecodeTop:
		return f.decodeTop()
	case stateHaveInitialLength:
		return f.readLengthExtra()
	case stateHaveFullLength:
		return f.readDistanceCode()
	case stateHaveDistCode:
		return f.copyMatch()
	case stateStoredAligning, stateStoredByte1, stateStoredByte2, stateStoredByte3, stateStoredByte4:
		return f.readStoredHeader()
	case stateStoredCopying:
		return f.copyStored()
	}
	return nil
}

func (f *Inflater) readBlockHeader() error {
	if f.state == stateReadingBFinal {
		v, err := f.in.readBits(1)
		if err != nil {
			return err
		}
		f.final = v == 1
		f.state = stateReadingBType
	}

	v, err := f.in.readBits(2)
	if err != nil {
		return err
	}
	f.btype = blockType(v)
	f.log.WithFields(logrus.Fields{
		"final":  f.final,
		"type":   f.btype,
		"offset": f.in.read,
	}).Debug("deflate64: block header")

	switch f.btype {
	case blockStored:
		f.state = stateStoredAligning
	case blockFixed:
		f.hl, f.hd = fixedLitLenDecoder(), nil
		f.state = stateDecodeTop
	case blockDynamic:
		f.state = stateReadingNumLitCodes
	default:
		return ErrReservedBlockType
	}
	return nil
}

// endBlock moves on after an end-of-block symbol or a fully copied stored
// block.
func (f *Inflater) endBlock() {
	if f.final {
		f.state = stateDone
		return
	}
	f.state = stateReadingBFinal
}

func (f *Inflater) fail(err error) {
	f.err = &CorruptInputError{Offset: f.in.read, Err: err}
	f.state = stateDataError
	f.log.WithFields(logrus.Fields{
		"offset": f.in.read,
		"output": f.totalOut,
	}).WithError(err).Debug("deflate64: corrupt input")
}
