// Command dgimstat counts and filters hashtags in a file of tweets, one JSON
// record per line.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/kwertop/dgimstat"
	"github.com/kwertop/dgimstat/filters"
	"github.com/kwertop/dgimstat/tracker"
)

func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "tweet file, one JSON record per line",
			EnvVars: []string{"DGIMSTAT_FILE"},
		},
		&cli.StringSliceFlag{
			Name:    "tag",
			Aliases: []string{"t"},
			Usage:   "hashtag to look for, without #",
			EnvVars: []string{"DGIMSTAT_TAGS"},
		},
		&cli.BoolFlag{
			Name:    "case-insensitive",
			Aliases: []string{"i"},
			Usage:   "match hashtags ignoring case",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "dgimstat",
		Usage: "approximate hashtag counts over sliding windows of a tweet stream",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "yaml file with the command parameters; flags overwrite its values",
				EnvVars: []string{"DGIMSTAT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "one of panic, fatal, error, warn, info, debug, trace",
				EnvVars: []string{"DGIMSTAT_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "text or json",
				EnvVars: []string{"DGIMSTAT_LOG_FORMAT"},
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			{
				Name:   "count",
				Usage:  "count hashtags over the latest k seconds of the stream",
				Action: countAction,
				Flags: append([]cli.Flag{
					&cli.Int64SliceFlag{
						Name:    "k",
						Usage:   "window in seconds, repeatable",
						EnvVars: []string{"DGIMSTAT_K"},
					},
					&cli.StringFlag{
						Name:    "horizon",
						Usage:   "retention horizon in seconds, or everything",
						EnvVars: []string{"DGIMSTAT_HORIZON"},
					},
					&cli.BoolFlag{
						Name:  "with-actual",
						Usage: "also count exactly and print the error",
					},
				}, sharedFlags()...),
			},
			{
				Name:   "filter",
				Usage:  "select the tweets carrying the hashtags using a Bloom filter",
				Action: filterAction,
				Flags: append([]cli.Flag{
					&cli.UintFlag{
						Name:    "bits",
						Usage:   "size of the Bloom filter in bits",
						EnvVars: []string{"DGIMSTAT_BITS"},
					},
					&cli.UintFlag{
						Name:  "hashes",
						Usage: "number of hash functions of the Bloom filter",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "any: one hashtag has to match, every: all hashtags have to match",
					},
					&cli.BoolFlag{
						Name:  "count-false-positives",
						Usage: "keep the trained hashtags to count false positives",
					},
					&cli.StringFlag{
						Name:    "redis-uri",
						Usage:   "keep the Bloom filter in Redis, e.g. redis://localhost:6379/0",
						EnvVars: []string{"DGIMSTAT_REDIS_URI"},
					},
				}, sharedFlags()...),
			},
		},
	}
}

func setupLogging(c *cli.Context) error {
	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	switch c.String("log-format") {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", c.String("log-format"))
	}
	log.SetOutput(c.App.ErrWriter)
	return nil
}

func countAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	horizon, err := cfg.horizonMillis(time.Now())
	if err != nil {
		return err
	}
	if len(cfg.Windows) == 0 {
		return fmt.Errorf("at least one window k is required")
	}
	out := c.App.Writer
	renderParameters(out, [][]string{
		{"Tweet file", cfg.File},
		{"Hashtags", strings.Join(cfg.Hashtags, ", ")},
		{"Case insensitive", strconv.FormatBool(cfg.CaseInsensitive)},
		{"Windows k (ms)", fmt.Sprint(cfg.windowsMillis())},
		{"Horizon n (ms)", strconv.FormatInt(horizon, 10)},
		{"Compare to actual", strconv.FormatBool(cfg.WithActual)},
	})

	t, err := tracker.New(tracker.Config{
		Hashtags:        cfg.Hashtags,
		Horizon:         horizon,
		CaseInsensitive: cfg.CaseInsensitive,
		WithActual:      cfg.WithActual,
	}, log.StandardLogger())
	if err != nil {
		return err
	}

	f, err := os.Open(cfg.File)
	if err != nil {
		return err
	}
	defer f.Close()

	var steps []step
	start := time.Now()
	stats, err := t.Analyze(c.Context, f)
	if err != nil {
		return err
	}
	steps = append(steps, step{"Processing tweet file", time.Since(start)})
	log.WithFields(log.Fields{"tweets": stats.Tweets, "skipped": stats.Skipped}).Info("tweets parsed")

	start = time.Now()
	frequencies, err := t.Report(c.Context, cfg.windowsMillis())
	if err != nil {
		return err
	}
	steps = append(steps, step{"Counting", time.Since(start)})

	renderFrequencies(out, frequencies, cfg.WithActual)
	renderTimings(out, steps)
	return nil
}

func newBloomFilter(cfg *Config) (*filters.BloomFilter, error) {
	if cfg.RedisURI == "" {
		return filters.NewMemBloomFilter(cfg.Bits, cfg.Hashes)
	}
	options, err := dgimstat.ParseRedisURI(cfg.RedisURI)
	if err != nil {
		return nil, err
	}
	dgimstat.MakeRedisClient(*options)
	return filters.NewRedisBloomFilter(cfg.Bits, cfg.Hashes)
}

func filterAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	mode, err := filters.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	var steps []step
	start := time.Now()
	bloom, err := newBloomFilter(cfg)
	if err != nil {
		return err
	}
	hf := filters.NewHashtagFilter(bloom, filters.HashtagFilterConfig{
		Mode:                mode,
		CaseInsensitive:     cfg.CaseInsensitive,
		CountFalsePositives: cfg.CountFalsePositives,
	})
	if err := hf.Train(cfg.Hashtags...); err != nil {
		return err
	}
	steps = append(steps, step{"Training Bloom filter", time.Since(start)})

	out := c.App.Writer
	parameters := [][]string{
		{"Tweet file", cfg.File},
		{"Training hashtags", strings.Join(cfg.Hashtags, ", ")},
		{"Filter size (bits)", strconv.FormatUint(uint64(bloom.GetCap()), 10)},
		{"Hash functions", strconv.FormatUint(uint64(bloom.GetNumHashes()), 10)},
		{"Case insensitive", strconv.FormatBool(cfg.CaseInsensitive)},
		{"Mode", mode.String()},
		{"Count false positives", strconv.FormatBool(cfg.CountFalsePositives)},
	}
	if key := bloom.GetMetadataKey(); key != "" {
		parameters = append(parameters, []string{"Redis metadata key", key})
	}
	renderParameters(out, parameters)

	f, err := os.Open(cfg.File)
	if err != nil {
		return err
	}
	defer f.Close()

	start = time.Now()
	accepted, err := tracker.FilterTweets(c.Context, f, hf, log.StandardLogger())
	if err != nil {
		return err
	}
	steps = append(steps, step{"Analyzing tweet file", time.Since(start)})
	log.WithFields(log.Fields{
		"accepted":      len(accepted),
		"positive-rate": bloom.BloomPositiveRate(),
	}).Info("tweets filtered")

	renderFilterStats(out, hf.Stats(), cfg.CountFalsePositives)
	renderTimings(out, steps)
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
