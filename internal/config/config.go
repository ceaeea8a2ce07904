// Copyright (c) 2024, Intel Corporation.
// SPDX-License-Identifier: BSD-3-Clause

// Package config assembles the inflate64 command configuration from CLI
// flags, INFLATE64_* environment variables, an optional .env file and an
// optional TOML file. Flags take precedence over the TOML file.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"github.com/opencontainers/go-digest"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	EnvVarPrefix = "INFLATE64"

	ChecksumSHA256 = "sha256"
	ChecksumXXH64  = "xxh64"
	ChecksumNone   = "none"

	DefaultBufferSize = Size(64 * units.KiB)
	DefaultChecksum   = ChecksumSHA256
	DefaultLogLevel   = "info"

	MinBufferSize = Size(4 * units.KiB)
	MaxBufferSize = Size(64 * units.MiB)
)

var (
	// VERSION gets set during build
	VERSION = "0.0.0"

	validChecksums = map[string]struct{}{
		ChecksumSHA256: {},
		ChecksumXXH64:  {},
		ChecksumNone:   {},
	}

	xxh64Digest = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

type Config struct {
	CLI  *CLI
	TOML *TOML
}

type TOML struct {
	Inflate *TOMLInflate `toml:"inflate"`
}

type TOMLInflate struct {
	BufferSize Size   `toml:"buffer_size"`
	MaxOutput  Size   `toml:"max_output"` // 0 means no cap
	LogLevel   string `toml:"log_level"`
	Checksum   string `toml:"checksum"`
}

type CLI struct {
	Input      string `kong:"arg,optional,help='Raw DEFLATE64 stream or ZIP archive (default: stdin)'"`
	Entry      string `kong:"help='Name of the ZIP entry to extract from INPUT',short='e'"`
	Output     string `kong:"help='Output file (default: stdout)',short='o'"`
	MaxOutput  string `kong:"help='Stop after this many decoded bytes (e.g. 10MB)',short='m'"`
	Checksum   string `kong:"help='Checksum of the decoded data: sha256, xxh64 or none',short='s'"`
	Expect     string `kong:"help='Fail unless the decoded data has this digest (e.g. sha256:...)',short='x'"`
	BufferSize string `kong:"help='I/O buffer size (e.g. 64KiB)',short='b'"`
	ConfigFile string `kong:"name='config',help='Path to the TOML config file',type='path',short='c'"`

	Debug   bool             `kong:"help='Enable debug output',short='d'"`
	Quiet   bool             `kong:"help='Only log warnings and errors',short='q'"`
	Version kong.VersionFlag `help:"Show version and exit" short:"v" env:"-"`
}

// New parses args (without the program name) and returns the merged,
// validated configuration.
func New(args []string, opts ...kong.Option) (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	cli, err := readCLIArgs(args, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing CLI args")
	}

	tomlConfig := &TOML{}
	if cli.ConfigFile != "" {
		tomlConfig, err = readTOML(cli.ConfigFile)
		if err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	if err := setTOMLDefaults(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error setting TOML defaults")
	}

	cfg := &Config{
		CLI:  cli,
		TOML: tomlConfig,
	}

	if err := applyCLIOverrides(cfg); err != nil {
		return nil, errors.Wrap(err, "error applying CLI args")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Validate(c *Config) error {
	if err := validateCLIArgs(c.CLI); err != nil {
		return errors.Wrap(err, "error validating CLI args")
	}

	if err := validateTOML(c.TOML); err != nil {
		return errors.Wrap(err, "error validating toml config")
	}

	if err := validateExpect(c.CLI.Expect, c.TOML.Inflate.Checksum); err != nil {
		return errors.Wrap(err, "error validating --expect")
	}

	return nil
}

// LogLevel returns the level to run with. --debug and --quiet win over the
// config file.
func (c *Config) LogLevel() logrus.Level {
	switch {
	case c.CLI.Debug:
		return logrus.DebugLevel
	case c.CLI.Quiet:
		return logrus.WarnLevel
	}
	lvl, err := logrus.ParseLevel(c.TOML.Inflate.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func readCLIArgs(args []string, opts ...kong.Option) (*CLI, error) {
	cli := &CLI{}

	opts = append([]kong.Option{
		kong.Name("inflate64"),
		kong.Description("Decompress DEFLATE64 streams and ZIP method 9 entries"),
		kong.UsageOnError(),
		kong.DefaultEnvars(EnvVarPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"version": VERSION,
		},
	}, opts...)

	parser, err := kong.New(cli, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "error building CLI parser")
	}

	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}

	if err := validateCLIArgs(cli); err != nil {
		return nil, errors.Wrap(err, "error validating args")
	}

	return cli, nil
}

func readTOML(file string) (*TOML, error) {
	// Attempt to load file
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}

	tomlConfig := &TOML{}

	if err := toml.Unmarshal(data, tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error parsing TOML config")
	}

	return tomlConfig, nil
}

func setTOMLDefaults(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if t.Inflate == nil {
		t.Inflate = &TOMLInflate{}
	}

	if t.Inflate.BufferSize == 0 {
		t.Inflate.BufferSize = DefaultBufferSize
	}

	if t.Inflate.LogLevel == "" {
		t.Inflate.LogLevel = DefaultLogLevel
	}

	return nil
}

// applyCLIOverrides copies the flags that shadow [inflate] settings.
func applyCLIOverrides(c *Config) error {
	in := c.TOML.Inflate

	if c.CLI.BufferSize != "" {
		n, err := units.RAMInBytes(c.CLI.BufferSize)
		if err != nil {
			return errors.Wrap(err, "invalid --buffer-size")
		}
		in.BufferSize = Size(n)
	}

	if c.CLI.MaxOutput != "" {
		n, err := units.RAMInBytes(c.CLI.MaxOutput)
		if err != nil {
			return errors.Wrap(err, "invalid --max-output")
		}
		in.MaxOutput = Size(n)
	}

	if c.CLI.Checksum != "" {
		in.Checksum = c.CLI.Checksum
	}

	// An expected digest picks its own algorithm unless one was named.
	if in.Checksum == "" {
		in.Checksum = DefaultChecksum
		if alg, _, ok := strings.Cut(c.CLI.Expect, ":"); ok {
			in.Checksum = alg
		}
	}

	return nil
}

func validateCLIArgs(cli *CLI) error {
	if cli == nil {
		return errors.New("config cannot be nil")
	}

	if cli.Entry != "" && (cli.Input == "" || cli.Input == "-") {
		return errors.New("--entry needs a ZIP archive as INPUT")
	}

	if cli.Debug && cli.Quiet {
		return errors.New("--debug and --quiet are mutually exclusive")
	}

	return nil
}

func validateTOML(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if err := validateTOMLInflate(t.Inflate); err != nil {
		return errors.Wrap(err, "inflate error(s)")
	}

	return nil
}

func validateTOMLInflate(c *TOMLInflate) error {
	if c == nil {
		return errors.New("inflate cannot be empty")
	}

	if c.BufferSize < MinBufferSize || c.BufferSize > MaxBufferSize {
		return errors.Errorf("inflate.buffer_size must be between %s and %s", MinBufferSize, MaxBufferSize)
	}

	if c.MaxOutput < 0 {
		return errors.New("inflate.max_output cannot be negative")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Errorf("inflate.log_level %s is invalid", c.LogLevel)
	}

	if _, ok := validChecksums[c.Checksum]; !ok {
		return errors.Errorf("inflate.checksum %s is invalid", c.Checksum)
	}

	return nil
}

func validateExpect(expect, checksum string) error {
	if expect == "" {
		return nil
	}

	alg, encoded, ok := strings.Cut(expect, ":")
	if !ok {
		return errors.Errorf("digest %s has no algorithm prefix", expect)
	}

	if alg != checksum {
		return errors.Errorf("digest algorithm %s does not match checksum %s", alg, checksum)
	}

	switch alg {
	case ChecksumSHA256:
		if _, err := digest.Parse(expect); err != nil {
			return errors.Wrap(err, "invalid sha256 digest")
		}
	case ChecksumXXH64:
		if !xxh64Digest.MatchString(encoded) {
			return errors.Errorf("xxh64 digest %s must be 16 lowercase hex digits", encoded)
		}
	default:
		return errors.Errorf("cannot verify %s digests", alg)
	}

	return nil
}

// Size is a byte count written in human notation ("64KiB", "10MB").
type Size int64

func (s Size) String() string {
	return units.BytesSize(float64(s))
}

func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Size) UnmarshalText(text []byte) error {
	n, err := units.RAMInBytes(string(text))
	if err != nil {
		return err
	}
	*s = Size(n)
	return nil
}
