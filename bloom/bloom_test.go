package bloom

import (
	"fmt"
	"testing"

	"gotest.tools/assert"
)

func TestFilterTestsTrueForEverythingAdded(t *testing.T) {
	n := uint64(500)
	bitCount, hashCount := EstimateParameters(n, 0.001)
	f := NewFilter(bitCount, hashCount)

	items := make([][]byte, n)
	for i := range items {
		items[i] = []byte(fmt.Sprintf("item-%d", i))
		f.Add(items[i])
	}

	for _, item := range items {
		assert.Assert(t, f.Test(item))
	}
}

func TestFilterFalsePositiveRateIsBounded(t *testing.T) {
	n := uint64(1000)
	targetFPR := 0.01
	bitCount, hashCount := EstimateParameters(n, targetFPR)
	f := NewFilter(bitCount, hashCount)

	for i := uint64(0); i < n; i++ {
		f.Add([]byte(fmt.Sprintf("present-%d", i)))
	}

	falsePositives := 0
	trials := 10000
	for i := 0; i < trials; i++ {
		if f.Test([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}

	// Generous upper bound: an order of magnitude above the target rate is
	// enough slack to make this non-flaky while still catching a broken
	// hasher (which would saturate to ~100%).
	observed := float64(falsePositives) / float64(trials)
	assert.Assert(t, observed < targetFPR*10, "observed fpr %v too high", observed)
}

func TestFilterNewFromBloomBytesRoundTrips(t *testing.T) {
	bitCount, hashCount := EstimateParameters(50, 0.01)
	f := NewFilter(bitCount, hashCount)
	f.Add([]byte("a"))
	f.Add([]byte("b"))

	restored := NewFilterFromBloomBytes(f.BitCount(), f.HashCount(), f.Bytes())
	assert.Assert(t, restored.Test([]byte("a")))
	assert.Assert(t, restored.Test([]byte("b")))
	assert.Assert(t, !restored.Test([]byte("never-added")))
}

func TestNewFilterWithEstimatesMatchesManualParameters(t *testing.T) {
	bitCount, hashCount := EstimateParameters(12, 0.001)
	f := NewFilterWithEstimates(12, 0.001)

	assert.Equal(t, f.BitCount(), nextPowerOfTwo(bitCount))
	assert.Equal(t, f.HashCount(), hashCount)
}

func TestFPPDecreasesAsBitCountGrows(t *testing.T) {
	small := NewFilter(8, 2)
	large := NewFilter(4096, 4)

	for i := uint64(0); i < 4; i++ {
		data := []byte(fmt.Sprintf("x-%d", i))
		small.Add(data)
		large.Add(data)
	}

	assert.Assert(t, large.FPP(4) < small.FPP(4))
}

func TestPopCountTracksBitsSet(t *testing.T) {
	f := NewFilter(256, 3)
	assert.Equal(t, f.PopCount(), uint64(0))

	f.Add([]byte("seed"))
	assert.Assert(t, f.PopCount() > 0)
	assert.Assert(t, f.PopCount() <= f.HashCount())
}

func TestNextPowerOfTwoRoundsUp(t *testing.T) {
	assert.Equal(t, nextPowerOfTwo(0), uint64(1))
	assert.Equal(t, nextPowerOfTwo(1), uint64(1))
	assert.Equal(t, nextPowerOfTwo(8), uint64(8))
	assert.Equal(t, nextPowerOfTwo(9), uint64(16))
}
