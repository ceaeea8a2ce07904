// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

package deflate64

import (
	"archive/zip"
	"io"
	"sync"
)

// ZipMethod is the ZIP compression method number of DEFLATE64.
const ZipMethod uint16 = 9

// Decompressor has the signature of zip.Decompressor.
func Decompressor(r io.Reader) io.ReadCloser {
	return NewReader(r)
}

// RegisterZip makes z able to open DEFLATE64 entries.
func RegisterZip(z *zip.Reader) {
	z.RegisterDecompressor(ZipMethod, Decompressor)
}

var registerOnce sync.Once

// Register installs the DEFLATE64 decompressor for every zip.Reader of the
// program. It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		zip.RegisterDecompressor(ZipMethod, Decompressor)
	})
}
