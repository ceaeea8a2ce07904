// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

import "encoding/binary"

// decodeTop decodes literals into the window until it reaches an end of
// block, a length symbol, or the window has no room for the longest copy.
func (f *Inflater) decodeTop() error {
	for {
		if f.out.freeBytes() < maxCopyLength {
			return errOutputOverflow
		}
		sym, err := f.hl.decode(&f.in)
		if err != nil {
			return err
		}
		switch {
		case sym < endOfBlock:
			f.out.writeByte(byte(sym))
		case sym == endOfBlock:
			f.endBlock()
			return nil
		default:
			code := sym - endOfBlock - 1
			if code >= len(rfcLookupTable.LenStart) {
				return ErrInvalidSymbol
			}
			f.length = int(rfcLookupTable.LenStart[code])
			f.extraBits = rfcLookupTable.LenExtraBitCount[code]
			f.state = stateHaveInitialLength
			return nil
		}
	}
}

func (f *Inflater) readLengthExtra() error {
	v, err := f.in.readBits(f.extraBits)
	if err != nil {
		return err
	}
	f.length += int(v)
	f.state = stateHaveFullLength
	return nil
}

func (f *Inflater) readDistanceCode() error {
	if f.hd == nil {
		// fixed block: 5 raw bits, most significant first
		v, err := f.in.readBits(5)
		if err != nil {
			return err
		}
		f.distCode = int(staticDistanceTable[v])
	} else {
		code, err := f.hd.decode(&f.in)
		if err != nil {
			return err
		}
		f.distCode = code
	}
	if f.distCode >= maxNumDist {
		return ErrInvalidSymbol
	}
	f.state = stateHaveDistCode
	return nil
}

// copyMatch reads the distance extra bits and replays the back-reference.
func (f *Inflater) copyMatch() error {
	v, err := f.in.readBits(rfcLookupTable.DistExtraBitCount[f.distCode])
	if err != nil {
		return err
	}
	distance := int(rfcLookupTable.DistStart[f.distCode]) + int(v)
	if f.length > maxMatchLength {
		return ErrInvalidLength
	}
	if distance > maxMatchDistance {
		return ErrInvalidDistance
	}
	if err := f.out.writeLengthDistance(f.length, distance); err != nil {
		return err
	}
	f.state = stateDecodeTop
	return nil
}

func (f *Inflater) readStoredHeader() error {
	if f.state == stateStoredAligning {
		f.in.alignToByte()
		f.state = stateStoredByte1
	}
	for f.state <= stateStoredByte4 {
		v, err := f.in.readBits(8)
		if err != nil {
			return err
		}
		f.storedHeader[f.state-stateStoredByte1] = byte(v)
		f.state++
	}

	n := binary.LittleEndian.Uint16(f.storedHeader[0:])
	nn := binary.LittleEndian.Uint16(f.storedHeader[2:])
	if nn != ^n {
		return ErrInvalidBlockLength
	}
	f.storedRemaining = int(n)
	f.log.WithField("length", n).Debug("deflate64: stored block")
	return nil
}

func (f *Inflater) copyStored() error {
	for f.storedRemaining > 0 {
		f.storedRemaining -= f.out.copyFrom(&f.in, f.storedRemaining)
		if f.storedRemaining == 0 {
			break
		}
		if f.out.freeBytes() == 0 {
			return errOutputOverflow
		}
		if f.in.availableBytes() == 0 {
			return errEndInput
		}
	}
	f.endBlock()
	return nil
}
