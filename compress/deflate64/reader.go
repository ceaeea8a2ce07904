// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Resetter resets a ReadCloser returned by NewReader to read a new stream
// from r, reusing its buffers.
type Resetter interface {
	Reset(r io.Reader) error
}

// NewReader returns a ReadCloser that decompresses the raw DEFLATE64 stream
// read from r. If r is a *bufio.Reader, the bytes after the end of the
// stream are left unread in it. The returned ReadCloser also implements
// Resetter.
func NewReader(r io.Reader, opts ...Option) io.ReadCloser {
	d := &decompressor{state: NewInflater(opts...)}
	d.setInput(r)
	return d
}

type decompressor struct {
	state *Inflater
	rBuf  *bufio.Reader
	err   error
}

func (d *decompressor) setInput(under io.Reader) {
	if ur, ok := under.(*bufio.Reader); ok {
		d.rBuf = ur
		return
	}
	if d.rBuf != nil {
		d.rBuf.Reset(under)
	} else {
		d.rBuf = bufio.NewReader(under)
	}
}

func (d *decompressor) Reset(under io.Reader) error {
	d.setInput(under)
	d.err = nil
	d.state.Reset()
	return nil
}

func (d *decompressor) Close() error {
	return nil
}

func (d *decompressor) Read(b []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if len(b) == 0 {
		return 0, nil
	}
	for {
		var peekErr error
		if d.rBuf.Buffered() == 0 {
			_, peekErr = d.rBuf.Peek(1)
		}
		input, _ := d.rBuf.Peek(d.rBuf.Buffered())

		consumed, written, err := d.state.Inflate(input, b)
		if _, derr := d.rBuf.Discard(consumed); derr != nil {
			d.err = errors.Wrap(derr, "deflate64: discard input")
			return written, d.err
		}
		if err != nil {
			d.err = err
			return written, err
		}
		if d.state.Finished() {
			d.err = io.EOF
			if written > 0 {
				return written, nil
			}
			return 0, io.EOF
		}
		if written > 0 {
			return written, nil
		}

		if peekErr != nil && consumed == len(input) {
			if peekErr == io.EOF {
				d.err = io.ErrUnexpectedEOF
			} else {
				d.err = errors.Wrap(peekErr, "deflate64: read input")
			}
			return 0, d.err
		}
	}
}
