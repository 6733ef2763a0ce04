package bitset

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// BitSetMem is the in-memory implementation of IBitSet.
// _size_ is the number of bits in the bitset
// _set_ is the bitset implementation adopted from https://github.com/bits-and-blooms/bitset
type BitSetMem struct {
	set  *bitset.BitSet
	size uint
}

// NewBitSetMem creates a new BitSetMem of size _size_
func NewBitSetMem(size uint) *BitSetMem {
	return &BitSetMem{bitset.New(size), size}
}

// FromDataMem creates a BitSetMem holding the words in _data_
func FromDataMem(data []uint64) *BitSetMem {
	return &BitSetMem{bitset.From(data), uint(len(data) * 64)}
}

// Size returns the size of the bitset
func (bitSet *BitSetMem) Size() uint {
	return bitSet.size
}

// Has checks if the bit at index _index_ is set
func (bitSet *BitSetMem) Has(index uint) (bool, error) {
	return bitSet.set.Test(index), nil
}

// HasMulti checks the bits at every index of _indexes_
func (bitSet *BitSetMem) HasMulti(indexes []uint) ([]bool, error) {
	result := make([]bool, len(indexes))
	for i, index := range indexes {
		result[i] = bitSet.set.Test(index)
	}
	return result, nil
}

// Insert sets the bit at index specified by _index_
func (bitSet *BitSetMem) Insert(index uint) (bool, error) {
	bitSet.set.Set(index)
	return true, nil
}

// InsertMulti sets the bits at every index of _indexes_
func (bitSet *BitSetMem) InsertMulti(indexes []uint) (bool, error) {
	for _, index := range indexes {
		bitSet.set.Set(index)
	}
	return true, nil
}

// BitCount returns the total number of set bits in the bitset
func (bitSet *BitSetMem) BitCount() (uint, error) {
	return bitSet.set.Count(), nil
}

// Export returns the json marshalling of the bitset
func (bitSet *BitSetMem) Export() ([]byte, error) {
	return bitSet.set.MarshalJSON()
}

// Equals checks if two BitSetMem are equal or not
func (bitSet *BitSetMem) Equals(otherBitSet IBitSet) (bool, error) {
	other, ok := otherBitSet.(*BitSetMem)
	if !ok {
		return false, fmt.Errorf("dgimstat: invalid bitset type %T, should be *BitSetMem", otherBitSet)
	}
	return bitSet.set.Equal(other.set), nil
}
