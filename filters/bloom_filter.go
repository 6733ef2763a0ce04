package filters

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/dgryski/go-metro"
	"github.com/kwertop/dgimstat"
	"github.com/kwertop/dgimstat/bitset"
	"github.com/kwertop/dgimstat/internal/util"
)

const hashSeed = 1373

// The BloomFilter data structure. It mainly has two fields: _size_ and _numHashes_
// _size_ denotes the number of bits of the bloom filter
// _numHashes_ denotes the number of hashing functions applied on the entrant element
// during insertion or lookup.
// _filter_ is the bitset backing internally the bloom filter. It can either be a
// BitSetMem (in-memory) or BitSetRedis (redis-backed).
// _metadataKey_ is the Redis hash describing a Redis backed filter
// _lock_ synchronizes read/write on an in-memory BitSetMem. It's not used for
// BitSetRedis as Redis runs commands one at a time
type BloomFilter struct {
	size        uint
	numHashes   uint
	filter      bitset.IBitSet
	metadataKey string
	lock        sync.RWMutex
}

// NewBloomFilterWithBitSet creates and returns a new BloomFilter
// _size_ is the number of bits of the bloom filter
// _numHashes_ is the number of hashing functions to be applied on the entrant
// _filter_ is either BitSetMem or BitSetRedis
// _metadataKey_ is needed if the filter is of type BitSetRedis otherwise it's overlooked
func NewBloomFilterWithBitSet(size, numHashes uint, filter bitset.IBitSet, metadataKey string) (*BloomFilter, error) {
	if !bitset.IsBitSetMem(filter) && metadataKey == "" {
		return nil, fmt.Errorf("dgimstat: error initializing filter as metadataKey is blank for BitSetRedis")
	}
	if filter.Size() != size {
		return nil, fmt.Errorf("dgimstat: error initializing filter as size of bitset %v doesn't match with size %v passed", filter.Size(), size)
	}
	return &BloomFilter{
		size:        util.Max(size, 1),
		numHashes:   util.Max(numHashes, 1),
		filter:      filter,
		metadataKey: metadataKey,
	}, nil
}

// NewMemBloomFilter creates an in-memory BloomFilter of _size_ bits using _numHashes_ hashes
func NewMemBloomFilter(size, numHashes uint) (*BloomFilter, error) {
	size = util.Max(size, 1)
	return NewBloomFilterWithBitSet(size, numHashes, bitset.NewBitSetMem(size), "")
}

// NewMemBloomFilterWithParameters creates an in-memory BloomFilter sized for
// _numItems_ items at false positive rate _errorRate_
func NewMemBloomFilterWithParameters(numItems uint, errorRate float64) (*BloomFilter, error) {
	size := util.CalculateFilterSize(numItems, errorRate)
	return NewMemBloomFilter(size, util.CalculateNumHashes(size, numItems))
}

// NewRedisBloomFilter creates a Redis backed BloomFilter of _size_ bits using
// _numHashes_ hashes. Its metadata is stored in a Redis hash under a random key
// which can be retrieved using GetMetadataKey.
func NewRedisBloomFilter(size, numHashes uint) (*BloomFilter, error) {
	size = util.Max(size, 1)
	numHashes = util.Max(numHashes, 1)
	filter, err := bitset.NewBitSetRedis(size)
	if err != nil {
		return nil, err
	}
	metadataKey := util.GenerateRandomString(16)
	metadata := map[string]interface{}{
		"size":      size,
		"numHashes": numHashes,
		"bitsetKey": filter.Key(),
	}
	err = dgimstat.GetRedisClient().HSet(context.Background(), metadataKey, metadata).Err()
	if err != nil {
		return nil, fmt.Errorf("dgimstat: error while creating bloom filter redis: %w", err)
	}
	return NewBloomFilterWithBitSet(size, numHashes, filter, metadataKey)
}

// NewRedisBloomFilterWithParameters creates a Redis backed BloomFilter sized for
// _numItems_ items at false positive rate _errorRate_
func NewRedisBloomFilterWithParameters(numItems uint, errorRate float64) (*BloomFilter, error) {
	size := util.CalculateFilterSize(numItems, errorRate)
	return NewRedisBloomFilter(size, util.CalculateNumHashes(size, numItems))
}

// NewRedisBloomFilterFromKey attaches to the Redis backed BloomFilter described
// by the hash at _metadataKey_
func NewRedisBloomFilterFromKey(metadataKey string) (*BloomFilter, error) {
	values, err := dgimstat.GetRedisClient().HGetAll(context.Background(), metadataKey).Result()
	if err != nil {
		return nil, fmt.Errorf("dgimstat: error while fetching hash from redis: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("dgimstat: no bloom filter stored at key %s", metadataKey)
	}
	size, err := strconv.ParseUint(values["size"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dgimstat: invalid bloom filter size: %w", err)
	}
	numHashes, err := strconv.ParseUint(values["numHashes"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dgimstat: invalid bloom filter hash count: %w", err)
	}
	filter, err := bitset.FromRedisKey(values["bitsetKey"])
	if err != nil {
		return nil, err
	}
	return &BloomFilter{
		size:        uint(size),
		numHashes:   uint(numHashes),
		filter:      filter,
		metadataKey: metadataKey,
	}, nil
}

// Insert writes new _data_ in the bloom filter
func (bloomFilter *BloomFilter) Insert(data []byte) error {
	indexes := bloomFilter.indexes(data)
	if bitset.IsBitSetMem(bloomFilter.filter) {
		bloomFilter.lock.Lock()
		defer bloomFilter.lock.Unlock()
	}
	_, err := bloomFilter.filter.InsertMulti(indexes)
	return err
}

// Lookup returns true if the corresponding bits in the bitset for _data_ are set,
// otherwise false
func (bloomFilter *BloomFilter) Lookup(data []byte) (bool, error) {
	indexes := bloomFilter.indexes(data)
	if bitset.IsBitSetMem(bloomFilter.filter) {
		bloomFilter.lock.RLock()
		defer bloomFilter.lock.RUnlock()
	}
	result, err := bloomFilter.filter.HasMulti(indexes)
	if err != nil {
		return false, err
	}
	for _, ok := range result {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// InsertString accepts string value as _data_ for inserting into the Bloom filter
func (bloomFilter *BloomFilter) InsertString(data string) error {
	return bloomFilter.Insert([]byte(data))
}

// LookupString accepts string value as _data_ to lookup the Bloom filter
func (bloomFilter *BloomFilter) LookupString(data string) (bool, error) {
	return bloomFilter.Lookup([]byte(data))
}

// GetCap returns the size of the bloom filter
func (bloomFilter *BloomFilter) GetCap() uint {
	return bloomFilter.size
}

// GetNumHashes returns the number of hash functions used in the bloom filter
func (bloomFilter *BloomFilter) GetNumHashes() uint {
	return bloomFilter.numHashes
}

// GetMetadataKey returns the Redis key of the metadata of a Redis backed filter
func (bloomFilter *BloomFilter) GetMetadataKey() string {
	return bloomFilter.metadataKey
}

// BloomPositiveRate returns the false positive rate expected from the bits set so far
func (bloomFilter *BloomFilter) BloomPositiveRate() float64 {
	length, _ := bloomFilter.filter.BitCount()
	return math.Pow(1-math.Exp(-float64(length)/float64(bloomFilter.size)), float64(bloomFilter.numHashes))
}

// Equals checks if two BloomFilter's are equal
func (aFilter *BloomFilter) Equals(bFilter *BloomFilter) (bool, error) {
	if aFilter.size != bFilter.size || aFilter.numHashes != bFilter.numHashes {
		return false, nil
	}
	return aFilter.filter.Equals(bFilter.filter)
}

// internal type used to marshal BloomFilter
type bloomFilterType struct {
	M uint            `json:"m"`
	K uint            `json:"k"`
	B json.RawMessage `json:"b"`
}

// Export JSON marshals an in-memory BloomFilter. The bits of a Redis backed
// filter already live in Redis and aren't exported.
func (bloomFilter *BloomFilter) Export() ([]byte, error) {
	mem, ok := bloomFilter.filter.(*bitset.BitSetMem)
	if !ok {
		return nil, fmt.Errorf("dgimstat: export isn't supported for redis backed filters, use metadata key %s", bloomFilter.metadataKey)
	}
	bloomFilter.lock.RLock()
	defer bloomFilter.lock.RUnlock()
	bits, err := mem.Export()
	if err != nil {
		return nil, err
	}
	return json.Marshal(bloomFilterType{bloomFilter.size, bloomFilter.numHashes, bits})
}

func (bloomFilter *BloomFilter) indexes(data []byte) []uint {
	hash1, hash2 := metro.Hash128(data, hashSeed)
	indexes := make([]uint, bloomFilter.numHashes)
	for i := range indexes {
		j := uint64(i)
		// enhanced double hashing
		indexes[i] = uint((hash1 + j*hash2 + (j*j*j-j)/6) % uint64(bloomFilter.size))
	}
	return indexes
}
