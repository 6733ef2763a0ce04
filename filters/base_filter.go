/*
Package filters provides the probabilistic Bloom filter and the hashtag
pre-filter built on it, which selects tweets carrying trained hashtags.
*/
package filters

// BaseFilter is the set membership surface shared by the filters
type BaseFilter interface {
	InsertString(element string) error
	LookupString(element string) (bool, error)
}
