package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

const everything = "everything"

// Config holds the parameters of the count and filter commands. It can be
// loaded from a yaml file; flags set on the command line or through the
// environment overwrite the values of the file.
type Config struct {
	File            string   `yaml:"file"`
	Hashtags        []string `yaml:"tags"`
	CaseInsensitive bool     `yaml:"case-insensitive"`

	// count: windows and horizon in seconds, horizon may be "everything"
	Windows    []int64 `yaml:"k"`
	Horizon    string  `yaml:"horizon"`
	WithActual bool    `yaml:"with-actual"`

	// filter
	Bits                uint   `yaml:"bits"`
	Hashes              uint   `yaml:"hashes"`
	Mode                string `yaml:"mode"`
	CountFalsePositives bool   `yaml:"count-false-positives"`
	RedisURI            string `yaml:"redis-uri"`
}

func defaultConfig() *Config {
	return &Config{
		Horizon: everything,
		Bits:    100,
		Hashes:  2,
		Mode:    "any",
	}
}

func loadConfig(c *cli.Context) (*Config, error) {
	cfg := defaultConfig()
	if path := c.String("config"); path != "" {
		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("invalid config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("unmarshalling config file error: %w", err)
		}
	}

	if c.IsSet("file") {
		cfg.File = c.String("file")
	}
	if c.IsSet("tag") {
		cfg.Hashtags = c.StringSlice("tag")
	}
	if c.IsSet("case-insensitive") {
		cfg.CaseInsensitive = c.Bool("case-insensitive")
	}
	if c.IsSet("k") {
		cfg.Windows = c.Int64Slice("k")
	}
	if c.IsSet("horizon") {
		cfg.Horizon = c.String("horizon")
	}
	if c.IsSet("with-actual") {
		cfg.WithActual = c.Bool("with-actual")
	}
	if c.IsSet("bits") {
		cfg.Bits = c.Uint("bits")
	}
	if c.IsSet("hashes") {
		cfg.Hashes = c.Uint("hashes")
	}
	if c.IsSet("mode") {
		cfg.Mode = c.String("mode")
	}
	if c.IsSet("count-false-positives") {
		cfg.CountFalsePositives = c.Bool("count-false-positives")
	}
	if c.IsSet("redis-uri") {
		cfg.RedisURI = c.String("redis-uri")
	}

	if cfg.File == "" {
		return nil, fmt.Errorf("a tweet file is required")
	}
	if len(cfg.Hashtags) == 0 {
		return nil, fmt.Errorf("at least one hashtag is required")
	}
	return cfg, nil
}

// horizonMillis converts the horizon to milliseconds. "everything" retains
// every tweet up to _now_.
func (cfg *Config) horizonMillis(now time.Time) (int64, error) {
	if cfg.Horizon == everything {
		return now.UnixMilli(), nil
	}
	seconds, err := strconv.ParseInt(cfg.Horizon, 10, 64)
	if err != nil || seconds < 1 {
		return 0, fmt.Errorf("horizon should be a positive number of seconds or %q, got %q", everything, cfg.Horizon)
	}
	return seconds * 1000, nil
}

func (cfg *Config) windowsMillis() []int64 {
	ks := make([]int64, len(cfg.Windows))
	for i, k := range cfg.Windows {
		ks[i] = k * 1000
	}
	return ks
}
