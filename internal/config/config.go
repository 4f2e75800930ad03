// config.go: command-line configuration parsing
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package config parses echofan's command-line surface with
// github.com/agilira/flash-flags and the size-string grammar
// popularized across the AGILira fragments.
package config

import (
	"strconv"
	"strings"

	flashflags "github.com/agilira/flash-flags"

	"github.com/agilira/echofan/internal/errs"
)

const defaultBufSize = 1024

// Config is the fully parsed, validated command-line configuration.
type Config struct {
	// Names is the ordered, non-empty list of synthetic fan-out device
	// names to register, in the order given on the command line.
	Names []string
	// Source is the path to the underlying character device.
	Source string
	// BufSize is the ring capacity in bytes.
	BufSize int
	// Help is set when -h/--help was requested; callers should print
	// usage and exit 0 without registering any device.
	Help bool
}

// Parse parses args (excluding the program name, as in os.Args[1:])
// into a Config. Missing -n/--name or -S/--source, or an unparseable
// --bufsize, is returned as a configuration error; the caller prints it
// and exits nonzero before any device is registered.
func Parse(args []string) (*Config, error) {
	fs := flashflags.New("echofan")
	help := fs.Bool("help", false, "print help text and exit")
	fs.BoolVar(help, "h", false, "print help text and exit (shorthand)")
	name := fs.String("name", "", "comma-separated list of synthetic device names")
	fs.StringVar(name, "n", "", "comma-separated list of synthetic device names (shorthand)")
	src := fs.String("source", "", "path to the source character device")
	fs.StringVar(src, "S", "", "path to the source character device (shorthand)")
	bufsize := fs.String("bufsize", "", "ring capacity in bytes (default 1024)")

	if err := fs.Parse(args); err != nil {
		return nil, errs.Configf("parsing flags: %v", err)
	}

	cfg := &Config{Help: *help}
	if cfg.Help {
		return cfg, nil
	}

	if strings.TrimSpace(*name) == "" {
		return nil, errs.Config("missing mandatory flag: -n/--name")
	}
	if strings.TrimSpace(*src) == "" {
		return nil, errs.Config("missing mandatory flag: -S/--source")
	}

	cfg.Names = splitNames(*name)
	if len(cfg.Names) == 0 {
		return nil, errs.Config("-n/--name must list at least one device name")
	}
	cfg.Source = *src

	size := defaultBufSize
	if strings.TrimSpace(*bufsize) != "" {
		parsed, err := ParseSize(*bufsize)
		if err != nil {
			return nil, errs.Configf("invalid --bufsize %q: %v", *bufsize, err)
		}
		if parsed <= 0 {
			return nil, errs.Configf("--bufsize must be positive, got %q", *bufsize)
		}
		size = int(parsed)
	}
	cfg.BufSize = size

	return cfg, nil
}

// Usage returns the help text printed for -h/--help, ahead of the device
// framework's own help output.
func Usage() string {
	return `Usage: echofan -n NAME[,NAME...] -S SOURCE [--bufsize SIZE]

  -h, --help         print this help text and the device framework's help
  -n, --name NAME    comma-separated list of synthetic device names (required)
  -S, --source NAME  path to the source character device (required)
  --bufsize SIZE     ring capacity in bytes (default 1024)
`
}

// splitNames splits a comma-separated device name list, dropping blanks
// produced by stray commas or surrounding whitespace.
func splitNames(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseSize converts size strings like "1024", "4KB", "1M" to a byte
// count for --bufsize.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errs.New("empty size string")
	}

	if val, err := strconv.ParseInt(s, 10, 64); err == nil {
		return val, nil
	}

	upper := strings.ToUpper(s)
	var multiplier int64
	var numStr string

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier, numStr = 1024, upper[:len(upper)-2]
	case strings.HasSuffix(upper, "MB"):
		multiplier, numStr = 1024*1024, upper[:len(upper)-2]
	case strings.HasSuffix(upper, "GB"):
		multiplier, numStr = 1024*1024*1024, upper[:len(upper)-2]
	case strings.HasSuffix(upper, "K"):
		multiplier, numStr = 1024, upper[:len(upper)-1]
	case strings.HasSuffix(upper, "M"):
		multiplier, numStr = 1024*1024, upper[:len(upper)-1]
	case strings.HasSuffix(upper, "G"):
		multiplier, numStr = 1024*1024*1024, upper[:len(upper)-1]
	default:
		return 0, errs.Newf("unknown size suffix in %q (supported: KB/K, MB/M, GB/G)", s)
	}

	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, errs.Newf("invalid size number in %q: %v", s, err)
	}
	result := val * multiplier
	if result < 0 {
		return 0, errs.Newf("size %q too large", s)
	}
	return result, nil
}
