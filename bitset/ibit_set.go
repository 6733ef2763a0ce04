/*
Package bitset implements the bitsets backing the Bloom filter, both in-memory
and in Redis. For in-memory, https://github.com/bits-and-blooms/bitset is used
while for Redis the bitmap commands (SETBIT, GETBIT, BITCOUNT) are used.
*/
package bitset

type IBitSet interface {
	// Size returns the number of bits in the bitset
	Size() uint

	// Has returns true if the bit is set at index, else false
	Has(index uint) (bool, error)

	// HasMulti returns the state of the bits at the indices in indexes
	HasMulti(indexes []uint) ([]bool, error)

	// Insert sets the bit at index to true
	Insert(index uint) (bool, error)

	// InsertMulti sets the bits at the indices passed in the indexes array
	InsertMulti(indexes []uint) (bool, error)

	// Equals checks if two bitsets are equal
	Equals(otherBitSet IBitSet) (bool, error)

	// BitCount returns the total number of set bits in the bitset
	BitCount() (uint, error)
}

// IsBitSetMem reports whether _t_ is an in-memory bitset
func IsBitSetMem(t interface{}) bool {
	_, ok := t.(*BitSetMem)
	return ok
}
