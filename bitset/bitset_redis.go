package bitset

import (
	"context"
	"fmt"

	"github.com/kwertop/dgimstat"
	"github.com/kwertop/dgimstat/internal/util"
	"github.com/redis/go-redis/v9"
)

// BitSetRedis is the Redis backed implementation of IBitSet.
// _size_ is the number of bits in the bitset
// _key_ is the Redis key of the string holding the bits.
// All bit operations are done on the string stored at _key_, see
// https://redis.io/docs/data-types/bitmaps/
type BitSetRedis struct {
	size uint
	key  string
}

// NewBitSetRedis allocates a zeroed bitset of _size_ bits under a random key
func NewBitSetRedis(size uint) (*BitSetRedis, error) {
	key := util.GenerateRandomString(16)
	zeros := make([]byte, (size+7)/8)
	err := dgimstat.GetRedisClient().Set(context.Background(), key, string(zeros), 0).Err()
	if err != nil {
		return nil, fmt.Errorf("dgimstat: error while creating redis bitset: %w", err)
	}
	return &BitSetRedis{size, key}, nil
}

// FromRedisKey attaches to the bitset already stored at _key_
func FromRedisKey(key string) (*BitSetRedis, error) {
	n, err := dgimstat.GetRedisClient().StrLen(context.Background(), key).Result()
	if err != nil {
		return nil, fmt.Errorf("dgimstat: error while reading redis bitset %s: %w", key, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("dgimstat: no bitset stored at key %s", key)
	}
	return &BitSetRedis{uint(n) * 8, key}, nil
}

// Size returns the size of the bitset saved in redis
func (bitSet *BitSetRedis) Size() uint {
	return bitSet.size
}

// Key gives the key at which the bitset is saved in redis
func (bitSet *BitSetRedis) Key() string {
	return bitSet.key
}

// Has checks if the bit at index _index_ is set
func (bitSet *BitSetRedis) Has(index uint) (bool, error) {
	val, err := dgimstat.GetRedisClient().GetBit(context.Background(), bitSet.key, int64(index)).Result()
	if err != nil {
		return false, err
	}
	return val != 0, nil
}

// HasMulti checks the bits at every index of _indexes_ in one pipeline
func (bitSet *BitSetRedis) HasMulti(indexes []uint) ([]bool, error) {
	if len(indexes) == 0 {
		return nil, fmt.Errorf("dgimstat: at least 1 index is required")
	}
	ctx := context.Background()
	pipe := dgimstat.GetRedisClient().Pipeline()
	values := make([]*redis.IntCmd, len(indexes))
	for i := range indexes {
		values[i] = pipe.GetBit(ctx, bitSet.key, int64(indexes[i]))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	result := make([]bool, len(values))
	for i := range values {
		result[i] = values[i].Val() != 0
	}
	return result, nil
}

// Insert sets the bit at index specified by _index_
func (bitSet *BitSetRedis) Insert(index uint) (bool, error) {
	err := dgimstat.GetRedisClient().SetBit(context.Background(), bitSet.key, int64(index), 1).Err()
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertMulti sets the bits at every index of _indexes_ in one pipeline
func (bitSet *BitSetRedis) InsertMulti(indexes []uint) (bool, error) {
	if len(indexes) == 0 {
		return false, fmt.Errorf("dgimstat: at least 1 index is required")
	}
	ctx := context.Background()
	pipe := dgimstat.GetRedisClient().Pipeline()
	for i := range indexes {
		pipe.SetBit(ctx, bitSet.key, int64(indexes[i]), 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// BitCount returns the total number of set bits in the bitset saved in redis
func (bitSet *BitSetRedis) BitCount() (uint, error) {
	bitRange := &redis.BitCount{Start: 0, End: -1}
	val, err := dgimstat.GetRedisClient().BitCount(context.Background(), bitSet.key, bitRange).Result()
	if err != nil {
		return 0, err
	}
	return uint(val), nil
}

// Equals checks if two BitSetRedis hold the same bits
func (bitSet *BitSetRedis) Equals(otherBitSet IBitSet) (bool, error) {
	other, ok := otherBitSet.(*BitSetRedis)
	if !ok {
		return false, fmt.Errorf("dgimstat: invalid bitset type %T, should be *BitSetRedis", otherBitSet)
	}
	ctx := context.Background()
	aVal, err := dgimstat.GetRedisClient().Get(ctx, bitSet.key).Result()
	if err != nil {
		return false, err
	}
	bVal, err := dgimstat.GetRedisClient().Get(ctx, other.key).Result()
	if err != nil {
		return false, err
	}
	return aVal == bVal, nil
}

// Delete removes the bitset from Redis
func (bitSet *BitSetRedis) Delete() error {
	return dgimstat.GetRedisClient().Del(context.Background(), bitSet.key).Err()
}
