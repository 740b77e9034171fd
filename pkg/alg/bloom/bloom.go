// Package bloom provides a probabilistic set membership filter for exact
// duplicate detection over document text.
//
// A Bloom filter answers "definitely not seen" or "possibly seen" with a
// tunable false-positive rate, in constant space regardless of how much
// text flows through. The exact-dedup pass keeps one filter for the whole
// run and never clears it.
//
// Bit positions are derived with the double-hashing technique of Kirsch
// and Mitzenmacher (2006): two base hashes from one FNV-128a digest yield
// k positions via h1 + i*h2 mod m.
package bloom

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"math/bits"
)

const (
	// bitsPerWord is the number of bits in each uint64 word.
	bitsPerWord = 64

	// ln2Squared is ln(2) squared, used in the optimal bit-array size formula.
	ln2Squared = math.Ln2 * math.Ln2

	// halfDigest is the byte offset splitting the FNV-128a digest in two.
	halfDigest = 8
)

var (
	// ErrZeroN is returned when the expected element count is zero.
	ErrZeroN = errors.New("bloom: n must be positive")

	// ErrInvalidFP is returned when fp is not in the open interval (0, 1).
	ErrInvalidFP = errors.New("bloom: fp must be in the open interval (0, 1)")
)

// Filter is a fixed-size Bloom filter. It is not safe for concurrent use:
// the exact-dedup pass owns it from a single consumer goroutine, because
// the membership decision and the insertion must be atomic anyway.
type Filter struct {
	words []uint64
	m     uint // Total bits.
	k     uint // Number of hash functions.
	count uint // Number of added elements.
}

// NewWithEstimates creates a filter sized for n expected elements at a
// false-positive rate of fp.
func NewWithEstimates(n uint, fp float64) (*Filter, error) {
	if n == 0 {
		return nil, ErrZeroN
	}

	if fp <= 0 || fp >= 1 {
		return nil, ErrInvalidFP
	}

	m := optimalM(n, fp)
	k := optimalK(m, n)

	return &Filter{
		words: make([]uint64, (m+bitsPerWord-1)/bitsPerWord),
		m:     m,
		k:     k,
	}, nil
}

// BitCount returns the size of the bit array in bits.
func (f *Filter) BitCount() uint {
	return f.m
}

// HashCount returns the number of hash functions.
func (f *Filter) HashCount() uint {
	return f.k
}

// Count returns the number of elements added so far.
func (f *Filter) Count() uint {
	return f.count
}

// Test reports whether data is possibly in the filter. False guarantees
// the element was never added.
func (f *Filter) Test(data []byte) bool {
	h1, h2 := hashKernel(data)

	for i := range f.k {
		pos := (h1 + uint64(i)*h2) % uint64(f.m)
		if f.words[pos/bitsPerWord]&(1<<(pos%bitsPerWord)) == 0 {
			return false
		}
	}

	return true
}

// Add inserts data into the filter.
func (f *Filter) Add(data []byte) {
	h1, h2 := hashKernel(data)

	for i := range f.k {
		pos := (h1 + uint64(i)*h2) % uint64(f.m)
		f.words[pos/bitsPerWord] |= 1 << (pos % bitsPerWord)
	}

	f.count++
}

// TestAndAdd tests membership and inserts in one pass over the bit
// positions. Returns true when the element was possibly present already.
func (f *Filter) TestAndAdd(data []byte) bool {
	h1, h2 := hashKernel(data)

	present := true

	for i := range f.k {
		pos := (h1 + uint64(i)*h2) % uint64(f.m)
		wordIdx := pos / bitsPerWord
		bitMask := uint64(1) << (pos % bitsPerWord)

		if f.words[wordIdx]&bitMask == 0 {
			present = false
			f.words[wordIdx] |= bitMask
		}
	}

	f.count++

	return present
}

// FillRatio returns the fraction of set bits, in [0, 1]. Useful for
// spotting an undersized filter at the end of a run.
func (f *Filter) FillRatio() float64 {
	total := uint(0)
	for _, word := range f.words {
		total += uint(bits.OnesCount64(word))
	}

	return float64(total) / float64(f.m)
}

// optimalM computes the bit-array size for n elements at false-positive
// rate fp: m = ceil(-n * ln(fp) / ln(2)^2).
func optimalM(n uint, fp float64) uint {
	return uint(math.Ceil(-float64(n) * math.Log(fp) / ln2Squared))
}

// optimalK computes the hash-function count: k = round(m/n * ln 2).
func optimalK(m, n uint) uint {
	k := uint(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		return 1
	}

	return k
}

// hashKernel derives two 64-bit hashes from one FNV-128a digest. The step
// hash is forced odd so it is never zero.
func hashKernel(data []byte) (h1, h2 uint64) {
	h := fnv.New128a()
	_, _ = h.Write(data)
	sum := h.Sum(nil)

	h1 = binary.BigEndian.Uint64(sum[:halfDigest])
	h2 = binary.BigEndian.Uint64(sum[halfDigest:]) | 1

	return h1, h2
}
