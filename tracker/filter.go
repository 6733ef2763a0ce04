package tracker

import (
	"context"
	"errors"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/kwertop/dgimstat/filters"
	"github.com/kwertop/dgimstat/source"
)

// FilterTweets reads JSON lines tweets from _r_ and returns those accepted by _f_.
// The statistics of _f_ are reset first.
func FilterTweets(ctx context.Context, r io.Reader, f *filters.HashtagFilter, logger log.FieldLogger) ([]*source.Tweet, error) {
	f.Reset()
	var accepted []*source.Tweet
	decoder := source.NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}
		tweet, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return accepted, err
		}
		ok, err := f.Check(tweet.Hashtags)
		if err != nil {
			return accepted, err
		}
		if ok {
			accepted = append(accepted, tweet)
		}
	}
	stats := f.Stats()
	logger.WithFields(log.Fields{
		"analyzed":  stats.Analyzed,
		"accepted":  stats.Accepted,
		"discarded": stats.Discarded,
	}).Debug("tweet stream filtered")
	return accepted, nil
}
