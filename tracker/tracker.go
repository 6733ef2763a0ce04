/*
Package tracker counts how often a set of hashtags occurred recently in a
tweet stream. Every hashtag gets its own DGIM window counter and, when the
error has to be measured, an exact counter fed with the same events.
*/
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kwertop/dgimstat/source"
	"github.com/kwertop/dgimstat/window"
)

// Config holds the settings of a Tracker
type Config struct {
	Hashtags        []string
	Horizon         int64
	CaseInsensitive bool
	// WithActual keeps exact counters next to the DGIM ones
	WithActual bool
}

// AnalyzeStats summarizes a call to Analyze
type AnalyzeStats struct {
	Tweets  uint64
	Skipped uint64
}

// Frequency is the count of a hashtag among the latest K milliseconds
type Frequency struct {
	Hashtag string
	K       int64
	Approx  uint64
	// Actual, AbsError and RelError are only set when HasActual is true.
	// RelError is a percentage and NaN when Actual is 0.
	HasActual bool
	Actual    uint64
	AbsError  int64
	RelError  float64
}

// Tracker feeds tweets into per hashtag counters
type Tracker struct {
	config   Config
	hashtags []string
	approx   *window.Registry
	exact    *window.Registry
	log      log.FieldLogger
}

// New creates a Tracker for the hashtags of _config_
func New(config Config, logger log.FieldLogger) (*Tracker, error) {
	hashtags := lo.Uniq(config.Hashtags)
	if len(hashtags) == 0 {
		return nil, fmt.Errorf("dgimstat: at least one hashtag is required: %w", window.ErrInvalidConfiguration)
	}
	approx, err := window.NewRegistry(config.Horizon)
	if err != nil {
		return nil, err
	}
	t := &Tracker{config: config, hashtags: hashtags, approx: approx, log: logger}
	if config.WithActual {
		if t.exact, err = window.NewRegistryWithFactory(config.Horizon, window.NewExactCounterFactory()); err != nil {
			return nil, err
		}
	}
	for _, h := range hashtags {
		if err := t.approx.Add(h); err != nil {
			return nil, err
		}
		if t.exact != nil {
			if err := t.exact.Add(h); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// Hashtags returns the tracked hashtags in the order they were configured
func (t *Tracker) Hashtags() []string {
	return t.hashtags
}

// Analyze reads JSON lines tweets from _r_ and records, for every tracked
// hashtag, whether each tweet mentions it. Tweets without timestamp are
// skipped. It stops at the first malformed record.
func (t *Tracker) Analyze(ctx context.Context, r io.Reader) (AnalyzeStats, error) {
	var stats AnalyzeStats
	decoder := source.NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		tweet, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		stats.Tweets++
		if !tweet.HasTimestamp() {
			t.log.WithFields(log.Fields{"line": decoder.Line(), "id": tweet.ID}).Warn("tweet without timestamp ignored")
			stats.Skipped++
			continue
		}
		if err := t.insert(tweet); err != nil {
			return stats, err
		}
	}
	t.log.WithFields(log.Fields{"tweets": stats.Tweets, "skipped": stats.Skipped}).Debug("tweet stream analyzed")
	return stats, nil
}

func (t *Tracker) insert(tweet *source.Tweet) error {
	for _, h := range t.hashtags {
		mentioned := tweet.HasHashtag(h, t.config.CaseInsensitive)
		if err := t.approx.Insert(h, tweet.Timestamp, mentioned); err != nil {
			return err
		}
		if t.exact != nil {
			if err := t.exact.Insert(h, tweet.Timestamp, mentioned); err != nil {
				return err
			}
		}
	}
	return nil
}

// Frequency returns how often _hashtag_ occurred among the latest _k_ milliseconds
func (t *Tracker) Frequency(hashtag string, k int64) (Frequency, error) {
	f := Frequency{Hashtag: hashtag, K: k}
	var err error
	if f.Approx, err = t.approx.Count(hashtag, k); err != nil {
		return f, err
	}
	if t.exact == nil {
		return f, nil
	}
	if f.Actual, err = t.exact.Count(hashtag, k); err != nil {
		return f, err
	}
	f.HasActual = true
	f.AbsError = int64(f.Approx) - int64(f.Actual)
	f.RelError = math.NaN()
	if f.Actual > 0 {
		f.RelError = float64(f.AbsError) / float64(f.Actual) * 100
	}
	return f, nil
}

// Report computes the frequency of every tracked hashtag for every window in
// _ks_ concurrently. Results are ordered by window, then by hashtag.
func (t *Tracker) Report(ctx context.Context, ks []int64) ([]Frequency, error) {
	results := make([]Frequency, len(ks)*len(t.hashtags))
	g, gCtx := errgroup.WithContext(ctx)
	for i, k := range ks {
		for j, h := range t.hashtags {
			slot, k, h := i*len(t.hashtags)+j, k, h
			g.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}
				f, err := t.Frequency(h, k)
				if err != nil {
					return fmt.Errorf("dgimstat: frequency of #%s at %d: %w", h, k, err)
				}
				results[slot] = f
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
