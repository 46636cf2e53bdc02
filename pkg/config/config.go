// Package config loads and saves the load generator's small key=value
// config file, using the same line-scanning style (bufio.Scanner plus
// strings.Cut) as the /proc parsing in pkg/probe.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ja7ad/loadgen/pkg/sysutil"
)

// ErrUnreadable is wrapped into the error Load returns when the config file
// cannot be opened.
var ErrUnreadable = errors.New("config: unreadable file")

// Config is the effective CPU/memory targets and verbosity flag, either
// supplied on the command line or loaded from a file.
type Config struct {
	CPUUsagePct int     // integer percent, "cpu_usage"
	MemUsagePct float64 // floating percent, "mem_usage"
	Verbose     bool
}

// Load reads path and returns the Config described by its recognised keys.
// Unknown keys are ignored; `#`-prefixed lines and blank lines are skipped.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	defer f.Close()

	var cfg Config
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "cpu_usage":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.CPUUsagePct = sysutil.ClampInt(n, 0, 100)
			}
		case "mem_usage":
			if n, err := strconv.ParseFloat(val, 64); err == nil {
				cfg.MemUsagePct = sysutil.ClampF(n, 0, 100)
			}
		case "verbose":
			cfg.Verbose = parseBool(val)
		}
	}
	if err := sc.Err(); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return cfg, nil
}

// Save writes cfg to path in the same format Load reads, in a fixed
// cpu_usage, mem_usage, verbose line order so a file written by one
// version of the tool still reads cleanly in another.
func Save(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "cpu_usage=%d\n", cfg.CPUUsagePct)
	fmt.Fprintf(w, "mem_usage=%s\n", strconv.FormatFloat(cfg.MemUsagePct, 'f', -1, 64))
	fmt.Fprintf(w, "verbose=%s\n", strconv.FormatBool(cfg.Verbose))
	return w.Flush()
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true
	default:
		return false
	}
}
