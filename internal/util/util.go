/*
Package util holds the small numeric and byte helpers shared by the
dgimstat packages.
*/
package util

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

var (
	src     = rand.NewSource(time.Now().UnixNano())
	srcLock sync.Mutex
)

// MaxPower is the largest exponent whose power of two still fits a uint64
// without touching the sign bit of the int64 timestamps it is compared with.
const MaxPower = 62

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const (
	letterIdxBits = 6                    // 6 bits to represent a letter index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits
)

// Number is the set of types Max and Min operate on
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint8 | ~uint32 | ~uint64 | ~float64
}

// Max returns the larger of _x_ and _y_
func Max[T Number](x, y T) T {
	if x > y {
		return x
	}
	return y
}

// Min returns the smaller of _x_ and _y_
func Min[T Number](x, y T) T {
	if x < y {
		return x
	}
	return y
}

// Log2Ceil returns the smallest p such that 2^p >= n. It returns 0 for n <= 1.
func Log2Ceil(n int64) int {
	if n <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(n))))
}

// CalculateFilterSize returns the number of bits a Bloom filter needs to hold
// _length_ items with false positive rate _errorRate_
func CalculateFilterSize(length uint, errorRate float64) uint {
	return uint(math.Ceil(-((float64(length) * math.Log(errorRate)) / math.Pow(math.Log(2), 2))))
}

// CalculateNumHashes returns the optimal number of hash functions for a
// Bloom filter of _size_ bits holding _length_ items
func CalculateNumHashes(size, length uint) uint {
	if length == 0 {
		return 1
	}
	return uint(math.Ceil(float64(size/length) * math.Log(2)))
}

// GenerateRandomString returns a random alphabetic string of length _n_,
// used to name Redis keys
func GenerateRandomString(n int) string {
	srcLock.Lock()
	defer srcLock.Unlock()
	b := make([]byte, n)
	// A src.Int63() generates 63 random bits, enough for letterIdxMax characters!
	for i, cache, remain := n-1, src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}
	return string(b)
}
