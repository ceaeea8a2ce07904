// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

// Package extract runs one inflate64 invocation: it opens the source,
// decodes it, writes the result and checks its digest.
package extract

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/docker/go-units"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/intel/inflate64/compress/deflate64"
	"github.com/intel/inflate64/internal/config"
)

// ErrChecksumMismatch is returned when the decoded data does not match
// --expect.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Result describes a finished extraction.
type Result struct {
	Written int64
	Digest  string // empty when checksums are disabled
}

type Extractor struct {
	cfg    *config.Config
	log    *logrus.Entry
	stdin  io.Reader
	stdout io.Writer
}

type Option func(*Extractor)

func WithStdin(r io.Reader) Option {
	return func(e *Extractor) { e.stdin = r }
}

func WithStdout(w io.Writer) Option {
	return func(e *Extractor) { e.stdout = w }
}

func WithLogger(l *logrus.Entry) Option {
	return func(e *Extractor) { e.log = l }
}

func New(cfg *config.Config, opts ...Option) (*Extractor, error) {
	if cfg == nil || cfg.CLI == nil || cfg.TOML == nil {
		return nil, errors.New("config cannot be nil")
	}

	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}

	e := &Extractor{
		cfg:    cfg,
		log:    logrus.WithField("pkg", "extract"),
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Run decodes the configured input to the configured output. It stops early
// with ctx.Err() when ctx is cancelled.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	in := e.cfg.TOML.Inflate

	src, err := e.openSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst, closeDst, err := e.openDestination()
	if err != nil {
		return nil, err
	}

	sum := newChecksum(in.Checksum)
	w := bufio.NewWriterSize(dst, int(in.BufferSize))

	var out io.Writer = w
	if sum != nil {
		out = io.MultiWriter(w, sum)
	}

	buf := make([]byte, in.BufferSize)
	n, err := io.CopyBuffer(out, &ctxReader{ctx: ctx, r: src}, buf)
	if err != nil {
		err = errors.Wrap(err, "error extracting")
	} else {
		err = errors.Wrap(w.Flush(), "error writing output")
	}
	if cerr := closeDst(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "error closing output")
	}
	if err != nil {
		e.log.WithError(err).WithField("written", n).Debug("extraction failed")
		return &Result{Written: n}, err
	}

	res := &Result{Written: n}
	if sum != nil {
		res.Digest = sum.String()
	}

	e.log.WithFields(logrus.Fields{
		"input":  e.inputName(),
		"output": e.outputName(),
		"size":   units.HumanSize(float64(n)),
		"digest": res.Digest,
	}).Info("extracted")

	if expect := e.cfg.CLI.Expect; expect != "" && expect != res.Digest {
		return res, errors.Wrapf(ErrChecksumMismatch, "got %s, want %s", res.Digest, expect)
	}

	return res, nil
}

// openSource returns the decoded stream.
func (e *Extractor) openSource() (io.ReadCloser, error) {
	in := e.cfg.TOML.Inflate

	if e.cfg.CLI.Entry != "" {
		rc, err := e.openEntry()
		if err != nil {
			return nil, err
		}
		if in.MaxOutput > 0 {
			return readCloser{io.LimitReader(rc, int64(in.MaxOutput)), rc}, nil
		}
		return rc, nil
	}

	var (
		raw    io.Reader = e.stdin
		closer io.Closer = io.NopCloser(e.stdin)
	)
	if name := e.cfg.CLI.Input; name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, errors.Wrap(err, "error opening input")
		}
		raw, closer = f, f
	}

	opts := []deflate64.Option{deflate64.WithLogger(e.log)}
	if in.MaxOutput > 0 {
		opts = append(opts, deflate64.WithUncompressedSize(int64(in.MaxOutput)))
	}

	r := deflate64.NewReader(bufio.NewReaderSize(raw, int(in.BufferSize)), opts...)
	return readCloser{r, closer}, nil
}

func (e *Extractor) openEntry() (io.ReadCloser, error) {
	z, err := zip.OpenReader(e.cfg.CLI.Input)
	if err != nil {
		return nil, errors.Wrap(err, "error opening archive")
	}
	deflate64.RegisterZip(&z.Reader)

	for _, f := range z.File {
		if f.Name != e.cfg.CLI.Entry {
			continue
		}

		e.log.WithFields(logrus.Fields{
			"entry":      f.Name,
			"method":     f.Method,
			"compressed": units.HumanSize(float64(f.CompressedSize64)),
		}).Debug("opening zip entry")

		if f.Method != deflate64.ZipMethod {
			e.log.Warnf("entry %s uses method %d, not DEFLATE64", f.Name, f.Method)
		}

		rc, err := f.Open()
		if err != nil {
			z.Close()
			return nil, errors.Wrapf(err, "error opening entry %s", f.Name)
		}
		return readCloser{rc, multiCloser{rc, z}}, nil
	}

	z.Close()
	return nil, errors.Errorf("entry %s not found in %s", e.cfg.CLI.Entry, e.cfg.CLI.Input)
}

func (e *Extractor) openDestination() (io.Writer, func() error, error) {
	name := e.cfg.CLI.Output
	if name == "" || name == "-" {
		return e.stdout, func() error { return nil }, nil
	}

	f, err := os.Create(name)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating output")
	}
	return f, f.Close, nil
}

func (e *Extractor) inputName() string {
	name := e.cfg.CLI.Input
	if name == "" || name == "-" {
		name = "stdin"
	}
	if e.cfg.CLI.Entry != "" {
		name += ":" + e.cfg.CLI.Entry
	}
	return name
}

func (e *Extractor) outputName() string {
	if name := e.cfg.CLI.Output; name != "" && name != "-" {
		return name
	}
	return "stdout"
}

// checksum is a running digest in "algorithm:hex" notation.
type checksum interface {
	io.Writer
	String() string
}

func newChecksum(name string) checksum {
	switch name {
	case config.ChecksumSHA256:
		return &sha256Sum{d: digest.Canonical.Digester()}
	case config.ChecksumXXH64:
		return &xxh64Sum{h: xxhash.New()}
	}
	return nil
}

type sha256Sum struct {
	d digest.Digester
}

func (s *sha256Sum) Write(p []byte) (int, error) { return s.d.Hash().Write(p) }
func (s *sha256Sum) String() string              { return s.d.Digest().String() }

type xxh64Sum struct {
	h *xxhash.Digest
}

func (s *xxh64Sum) Write(p []byte) (int, error) { return s.h.Write(p) }
func (s *xxh64Sum) String() string {
	return fmt.Sprintf("%s:%016x", config.ChecksumXXH64, s.h.Sum64())
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

type readCloser struct {
	io.Reader
	io.Closer
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
