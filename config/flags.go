package config

import (
	"flag"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// Flags command line options. Paper and WebAddr override the loaded
// configuration only when given.
type Flags struct {
	ConfigPath string
	Setup      bool
	Paper      *bool
	WebAddr    string
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string) (Flags, error) {
	var f Flags

	fs := flag.NewFlagSet("updown", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the configuration wizard before starting")
	fs.Var(optionalBool{dst: &f.Paper}, "paper", "paper trading; --paper=false only monitors markets")
	fs.StringVar(&f.WebAddr, "web", "", "status web server address, e.g. :8080")

	if err := fs.Parse(args); err != nil {
		return Flags{}, errors.Wrap(err, "parse flags")
	}
	return f, nil
}

// Apply overrides cfg with the flags that were set.
func (f Flags) Apply(cfg *Config) {
	if f.Paper != nil {
		cfg.Paper = *f.Paper
	}
	if f.WebAddr != "" {
		cfg.WebAddr = f.WebAddr
	}
}

// optionalBool bool flag that records whether it was set at all.
type optionalBool struct {
	dst **bool
}

func (b optionalBool) String() string {
	if b.dst == nil || *b.dst == nil {
		return ""
	}
	return strconv.FormatBool(**b.dst)
}

func (b optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.dst = &v
	return nil
}

func (b optionalBool) IsBoolFlag() bool { return true }
