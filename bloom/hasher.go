package bloom

import "github.com/zeebo/xxh3"

// hasher produces the k independent hash positions for one Add/Test call,
// using the XXH3 hash keyed by an incrementing seed, as documented on
// Filter.Add. bitCount is always a power of two (NewFilter/
// NewFilterFromBloomBytes round up to one), so each 64-bit hash is reduced
// to a position by masking off the low bits instead of by discard-and-retry.
type hasher struct {
	bitCount  uint64
	hashCount uint64
	data      []byte

	seed  uint64
	found uint64
	value uint64
}

// newHasher returns a hasher that will yield hashCount valid positions into
// a bit array of bitCount bits for data.
func newHasher(bitCount, hashCount uint64, data []byte) *hasher {
	return &hasher{
		bitCount:  bitCount,
		hashCount: hashCount,
		data:      data,
		seed:      1,
	}
}

// Next advances to the next hash position, returning false once hashCount
// positions have been produced.
func (h *hasher) Next() bool {
	if h.found >= h.hashCount {
		return false
	}
	h.value = xxh3.HashSeed(h.data, h.seed) & (h.bitCount - 1)
	h.seed++
	h.found++
	return true
}

// Value returns the hash position produced by the most recent Next call.
func (h *hasher) Value() uint64 {
	return h.value
}
