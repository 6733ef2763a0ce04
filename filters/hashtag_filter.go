package filters

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Mode selects how the verdicts for the hashtags of a tweet are combined
type Mode int

const (
	// ModeAny accepts a tweet when at least one of its hashtags passes the filter
	ModeAny Mode = iota
	// ModeEvery accepts a tweet when all of its hashtags pass the filter.
	// A tweet without hashtags is rejected.
	ModeEvery
)

func (m Mode) String() string {
	switch m {
	case ModeAny:
		return "any"
	case ModeEvery:
		return "every"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts "any" or "every" into a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "any":
		return ModeAny, nil
	case "every":
		return ModeEvery, nil
	default:
		return ModeAny, fmt.Errorf("dgimstat: unknown filter mode %q, should be any or every", s)
	}
}

// HashtagFilterConfig holds the options of a HashtagFilter
type HashtagFilterConfig struct {
	Mode                Mode
	CaseInsensitive     bool
	CountFalsePositives bool
}

// FilterStats summarizes the tweets checked since the last Reset
type FilterStats struct {
	Analyzed          uint64
	Accepted          uint64
	Discarded         uint64
	FalsePositives    uint64
	CollidingHashtags []string
}

// HashtagFilter selects the tweets carrying trained hashtags using a Bloom
// filter. As a Bloom filter answers "maybe" for some untrained hashtags, the
// filter optionally keeps the exact trained set to count false positives.
type HashtagFilter struct {
	filter    BaseFilter
	config    HashtagFilterConfig
	trained   map[string]struct{}
	colliding map[string]struct{}
	stats     FilterStats
	lock      sync.Mutex
}

// NewHashtagFilter creates a HashtagFilter on top of _filter_, usually a BloomFilter
func NewHashtagFilter(filter BaseFilter, config HashtagFilterConfig) *HashtagFilter {
	return &HashtagFilter{
		filter:    filter,
		config:    config,
		trained:   make(map[string]struct{}),
		colliding: make(map[string]struct{}),
	}
}

func (f *HashtagFilter) normalize(hashtag string) string {
	if f.config.CaseInsensitive {
		return strings.ToLower(hashtag)
	}
	return hashtag
}

// Train inserts _hashtags_ into the filter
func (f *HashtagFilter) Train(hashtags ...string) error {
	normalized := lo.Uniq(lo.Map(hashtags, func(h string, _ int) string { return f.normalize(h) }))
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, h := range normalized {
		if err := f.filter.InsertString(h); err != nil {
			return fmt.Errorf("dgimstat: error while training hashtag %q: %w", h, err)
		}
		f.trained[h] = struct{}{}
	}
	return nil
}

// Trained returns the sorted trained hashtags after normalization
func (f *HashtagFilter) Trained() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	trained := lo.Keys(f.trained)
	sort.Strings(trained)
	return trained
}

func (f *HashtagFilter) passes(hashtag string) (bool, error) {
	return f.filter.LookupString(f.normalize(hashtag))
}

func (f *HashtagFilter) isTrained(hashtag string) bool {
	_, ok := f.trained[f.normalize(hashtag)]
	return ok
}

// Check reports whether a tweet with _hashtags_ is accepted and updates the statistics
func (f *HashtagFilter) Check(hashtags []string) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.stats.Analyzed++
	var accepted bool
	var err error
	switch f.config.Mode {
	case ModeEvery:
		accepted, err = f.checkEvery(hashtags)
	default:
		accepted, err = f.checkAny(hashtags)
	}
	if err != nil {
		return false, err
	}
	if accepted {
		f.stats.Accepted++
	} else {
		f.stats.Discarded++
	}
	return accepted, nil
}

func (f *HashtagFilter) checkAny(hashtags []string) (bool, error) {
	for _, h := range hashtags {
		ok, err := f.passes(h)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		// only the first passing hashtag is judged
		if f.config.CountFalsePositives && !f.isTrained(h) {
			f.stats.FalsePositives++
			f.colliding[h] = struct{}{}
		}
		return true, nil
	}
	return false, nil
}

func (f *HashtagFilter) checkEvery(hashtags []string) (bool, error) {
	if len(hashtags) == 0 {
		return false, nil
	}
	for _, h := range hashtags {
		ok, err := f.passes(h)
		if err != nil || !ok {
			return false, err
		}
	}
	if f.config.CountFalsePositives {
		untrained := lo.Filter(hashtags, func(h string, _ int) bool { return !f.isTrained(h) })
		for _, h := range untrained {
			f.colliding[h] = struct{}{}
		}
		if len(untrained) > 0 {
			f.stats.FalsePositives++
		}
	}
	return true, nil
}

// Stats returns the statistics of the tweets checked since the last Reset
func (f *HashtagFilter) Stats() FilterStats {
	f.lock.Lock()
	defer f.lock.Unlock()
	stats := f.stats
	stats.CollidingHashtags = lo.Keys(f.colliding)
	sort.Strings(stats.CollidingHashtags)
	return stats
}

// Reset clears the statistics; the trained hashtags are kept
func (f *HashtagFilter) Reset() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.stats = FilterStats{}
	f.colliding = make(map[string]struct{})
}

// Config returns the options the filter was created with
func (f *HashtagFilter) Config() HashtagFilterConfig {
	return f.config
}
