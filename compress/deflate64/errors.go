// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

import (
	"fmt"

	"github.com/pkg/errors"
)

// Data errors. Inflate returns them wrapped in a *CorruptInputError.
var (
	ErrReservedBlockType  = errors.New("reserved block type")
	ErrInvalidHeader      = errors.New("invalid dynamic block header")
	ErrInvalidCodeLengths = errors.New("invalid code lengths")
	ErrMissingEndOfBlock  = errors.New("missing end-of-block code")
	ErrInvalidRepeat      = errors.New("invalid code length repeat")
	ErrInvalidBlockLength = errors.New("stored block length mismatch")
	ErrInvalidSymbol      = errors.New("invalid symbol")
	ErrInvalidDistance    = errors.New("invalid distance")
	ErrInvalidLength      = errors.New("invalid length")
)

var (
	errEndInput       = errors.New("end of input")
	errOutputOverflow = errors.New("output overflow")
)

// A CorruptInputError reports corrupt DEFLATE64 data. Offset is the number
// of input bytes consumed when the problem was found.
type CorruptInputError struct {
	Offset int64
	Err    error
}

func (e *CorruptInputError) Error() string {
	return fmt.Sprintf("deflate64: corrupt input before offset %d: %v", e.Offset, e.Err)
}

func (e *CorruptInputError) Unwrap() error {
	return e.Err
}
