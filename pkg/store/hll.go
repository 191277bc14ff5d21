package store

import (
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/kelvindb/kelvin/pkg/container"
)

// Dense HyperLogLog cardinality sketch over a container.Blob, used by
// PFADD/PFCOUNT/PFMERGE: a reserved header followed by a flat array of
// hllRegisters 6-bit counters, matching the HLLBytesSize layout in kind.go.
// It is deliberately a separate algorithm from the bits-and-blooms/bloom
// filter wired in digest.go — a Bloom filter answers "definitely absent or
// maybe present" over a fixed set, while an HLL estimates the
// distinct-element count of a stream; the two are not interchangeable
// despite both being probabilistic sketches.
const (
	hllPrecision  = 14
	hllRegisters  = 1 << hllPrecision // 16384
	hllHeaderSize = 16
	hllRegBits    = 6
	hllRegMask    = (1 << hllRegBits) - 1
)

func hllRegisterGet(blob *container.Blob, idx int) uint8 {
	bitOffset := idx * hllRegBits
	byteOffset := hllHeaderSize + bitOffset/8
	shift := uint(bitOffset % 8)

	lo, _ := blob.At(byteOffset)
	hi, hasHi := blob.At(byteOffset + 1)
	var combined uint16 = uint16(lo)
	if hasHi {
		combined |= uint16(hi) << 8
	}
	return uint8((combined >> shift) & hllRegMask)
}

func hllRegisterSet(blob *container.Blob, idx int, value uint8) {
	bitOffset := idx * hllRegBits
	byteOffset := hllHeaderSize + bitOffset/8
	shift := uint(bitOffset % 8)

	lo, _ := blob.At(byteOffset)
	hi, hasHi := blob.At(byteOffset + 1)
	combined := uint16(lo) | uint16(hi)<<8
	combined &^= hllRegMask << shift
	combined |= (uint16(value) & hllRegMask) << shift
	blob.SetAt(byteOffset, byte(combined))
	if hasHi { // The last register fits in the final byte; never grow the buffer.
		blob.SetAt(byteOffset+1, byte(combined>>8))
	}
}

// hllRank returns the position (1-indexed) of the least-significant set bit
// of the hash's upper bits, i.e. the length of the run of trailing zeros
// plus one, capped at 64-hllPrecision+1.
func hllRank(tail uint64) uint8 {
	maxRank := uint8(64 - hllPrecision + 1)
	if tail == 0 {
		return maxRank
	}
	rank := uint8(bits.TrailingZeros64(tail) + 1)
	if rank > maxRank {
		rank = maxRank
	}
	return rank
}

// PFAdd adds element to the sketch held in blob. Returns true if any
// register changed (i.e. a future PFCOUNT could change).
func PFAdd(blob *container.Blob, element []byte) bool {
	h := xxhash.Sum64(element)
	idx := int(h & (hllRegisters - 1))
	rank := hllRank(h >> hllPrecision)
	if current := hllRegisterGet(blob, idx); rank > current {
		hllRegisterSet(blob, idx, rank)
		return true
	}
	return false
}

// PFCount estimates the number of distinct elements added to blob, using
// the standard HLL harmonic-mean estimator with small-range linear-counting
// correction.
func PFCount(blob *container.Blob) uint64 {
	const m = float64(hllRegisters)
	alpha := 0.7213 / (1 + 1.079/m)

	sum := 0.0
	zeroRegisters := 0
	for idx := range hllRegisters {
		reg := hllRegisterGet(blob, idx)
		sum += 1.0 / float64(uint64(1)<<reg)
		if reg == 0 {
			zeroRegisters++
		}
	}

	estimate := alpha * m * m / sum
	if estimate <= 2.5*m && zeroRegisters > 0 {
		return uint64(math.Round(m * math.Log(m/float64(zeroRegisters))))
	}
	return uint64(math.Round(estimate))
}

// PFMerge writes into dst the register-wise maximum of dst and every blob
// in srcs, i.e. the sketch of the union of the sources' streams.
func PFMerge(dst *container.Blob, srcs ...*container.Blob) {
	for idx := range hllRegisters {
		best := hllRegisterGet(dst, idx)
		for _, src := range srcs {
			if r := hllRegisterGet(src, idx); r > best {
				best = r
			}
		}
		if best != hllRegisterGet(dst, idx) {
			hllRegisterSet(dst, idx, best)
		}
	}
}
