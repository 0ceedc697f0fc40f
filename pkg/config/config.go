package config

import (
	"fmt"

	"github.com/xplshn/ccc/pkg/cli"
)

type Warning int

const (
	WarnOverflow Warning = iota
	WarnUnreachableCode
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Config carries every pipeline-wide setting. It is constructed once by
// the driver and passed explicitly to each stage; no stage keeps ambient
// global state.
type Config struct {
	OptLevel   int // 0 = no optimization, 1 = constant folding
	ModuleName string
	SourceFile string
	Triple     string
	DataLayout string

	Warnings   map[Warning]Info
	WarningMap map[string]Warning
}

func NewConfig() *Config {
	cfg := &Config{
		ModuleName: "ccc_output",
		SourceFile: "ccc_output",
		Triple:     "x86_64-unknown-linux-gnu",
		DataLayout: "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128",
		Warnings:   make(map[Warning]Info),
		WarningMap: make(map[string]Warning),
	}

	warnings := map[Warning]Info{
		WarnOverflow:        {"overflow", true, "Warn when an integer constant is out of range."},
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements that can never execute."},
	}

	cfg.Warnings = warnings
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

func (c *Config) SetOptLevel(level int) error {
	if level < 0 || level > 1 {
		return fmt.Errorf("unsupported optimization level %d (supported: 0, 1)", level)
	}
	c.OptLevel = level
	return nil
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetupFlagGroups registers -W<warning> / -Wno-<warning> toggles with
// the flag set and returns the entries so the driver can apply them
// after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) []cli.FlagGroupEntry {
	entries := make([]cli.FlagGroupEntry, WarnCount)
	for wt := Warning(0); wt < WarnCount; wt++ {
		info := c.Warnings[wt]
		entries[wt] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  new(bool),
			Disabled: new(bool),
		}
	}
	fs.AddFlagGroup("Warnings", "Diagnostic toggles.", "warning", "Available warnings:", entries)
	return entries
}
