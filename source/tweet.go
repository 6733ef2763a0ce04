// Package source reads tweets from JSON lines streams.
package source

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/kwertop/dgimstat/window"
)

// Tweet is the part of a tweet the counters and filters look at
type Tweet struct {
	ID int64
	// Timestamp is in milliseconds since the epoch, window.MissingTimestamp
	// when the record has none
	Timestamp int64
	Hashtags  []string
}

// ParseTweet extracts a Tweet from a single JSON record. The record must be valid JSON.
func ParseTweet(record []byte) *Tweet {
	fields := gjson.GetManyBytes(record, "id", "timestamp_ms", "entities.hashtags.#.text")
	hashtags := lo.FilterMap(fields[2].Array(), func(r gjson.Result, _ int) (string, bool) {
		return r.String(), r.String() != ""
	})
	return &Tweet{
		ID:        fields[0].Int(),
		Timestamp: parseTimestamp(fields[1]),
		Hashtags:  lo.Uniq(hashtags),
	}
}

func parseTimestamp(r gjson.Result) int64 {
	switch r.Type {
	case gjson.Number:
		if r.Int() >= 0 {
			return r.Int()
		}
	case gjson.String:
		if ts, err := strconv.ParseInt(r.Str, 10, 64); err == nil && ts >= 0 {
			return ts
		}
	}
	return window.MissingTimestamp
}

// HasTimestamp reports whether the tweet carries a usable timestamp
func (t *Tweet) HasTimestamp() bool {
	return t.Timestamp != window.MissingTimestamp
}

// HasHashtag reports whether _hashtag_ is mentioned in the tweet
func (t *Tweet) HasHashtag(hashtag string, caseInsensitive bool) bool {
	return lo.ContainsBy(t.Hashtags, func(h string) bool {
		if caseInsensitive {
			return strings.EqualFold(h, hashtag)
		}
		return h == hashtag
	})
}
