// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

// This file parses the header of a dynamic Huffman block: the three counts,
// the code length code, and the run-length coded literal/length and distance
// code lengths. Every read may run out of input; progress is kept in the
// Inflater so the next call resumes at the same field.
package deflate64

func (f *Inflater) readDynamicHeader() error {
	switch f.state {
	case stateReadingNumLitCodes:
		v, err := f.in.readBits(5)
		if err != nil {
			return err
		}
		f.litCodeCount = int(v) + 257
		if f.litCodeCount > maxNumLit {
			return ErrInvalidHeader
		}
		f.state = stateReadingNumDistCodes

	case stateReadingNumDistCodes:
		v, err := f.in.readBits(5)
		if err != nil {
			return err
		}
		f.distCodeCount = int(v) + 1
		f.state = stateReadingNumCodeLengthCodes

	case stateReadingNumCodeLengthCodes:
		v, err := f.in.readBits(4)
		if err != nil {
			return err
		}
		f.codeLengthCodeCount = int(v) + 4
		f.codeLengthCodes = [numCodeLengthCodes]uint8{}
		f.loopCounter = 0
		f.state = stateReadingCodeLengthCodes

	case stateReadingCodeLengthCodes:
		for f.loopCounter < f.codeLengthCodeCount {
			v, err := f.in.readBits(3)
			if err != nil {
				return err
			}
			f.codeLengthCodes[codeOrder[f.loopCounter]] = uint8(v)
			f.loopCounter++
		}
		if err := f.codeLengthTable.init(f.codeLengthCodes[:]); err != nil {
			return err
		}
		if f.codeLengthTable.min == 0 {
			return ErrInvalidCodeLengths
		}
		f.codeListLen = 0
		f.state = stateReadingTreeCodesBefore

	case stateReadingTreeCodesBefore:
		return f.readCodeLengths()

	case stateReadingTreeCodesAfter:
		if err := f.readRepeat(); err != nil {
			return err
		}
		f.state = stateReadingTreeCodesBefore
	}
	return nil
}

// readCodeLengths decodes code lengths until all HLIT+HDIST of them are
// known or a repeat code needs its extra bits.
func (f *Inflater) readCodeLengths() error {
	total := f.litCodeCount + f.distCodeCount
	for f.codeListLen < total {
		sym, err := f.codeLengthTable.decode(&f.in)
		if err != nil {
			return err
		}
		if sym < 16 {
			f.codeList[f.codeListLen] = uint8(sym)
			f.codeListLen++
			continue
		}
		if sym == 16 && f.codeListLen == 0 {
			return ErrInvalidRepeat
		}
		f.repeatSym = sym
		f.state = stateReadingTreeCodesAfter
		return nil
	}
	return f.buildDynamicTables()
}

// readRepeat reads the extra bits of the pending repeat code and expands it.
func (f *Inflater) readRepeat() error {
	var (
		nbits uint8
		base  int
		value uint8
	)
	switch f.repeatSym {
	case 16:
		nbits, base = 2, 3
		value = f.codeList[f.codeListLen-1]
	case 17:
		nbits, base = 3, 3
	default:
		nbits, base = 7, 11
	}
	v, err := f.in.readBits(nbits)
	if err != nil {
		return err
	}
	rep := base + int(v)
	if f.codeListLen+rep > f.litCodeCount+f.distCodeCount {
		return ErrInvalidRepeat
	}
	for i := 0; i < rep; i++ {
		f.codeList[f.codeListLen] = value
		f.codeListLen++
	}
	return nil
}

// buildDynamicTables splits the decoded code lengths into the two alphabets
// and builds their decoding tables.
func (f *Inflater) buildDynamicTables() error {
	lit := f.codeList[:f.litCodeCount]
	dist := f.codeList[f.litCodeCount : f.litCodeCount+f.distCodeCount]
	if lit[endOfBlock] == 0 {
		return ErrMissingEndOfBlock
	}
	if err := f.litLenTable.init(lit); err != nil {
		return err
	}
	if err := f.distTable.init(dist); err != nil {
		return err
	}
	f.hl, f.hd = &f.litLenTable, &f.distTable
	f.state = stateDecodeTop
	return nil
}
