// Package lsh provides a banded Locality-Sensitive Hashing index over
// MinHash signatures for near-duplicate candidate retrieval.
//
// Signatures are split into numBands contiguous bands of bandWidth values.
// Two documents land in the same bucket of a band when that band hashes
// identically, which makes candidate retrieval O(bucket) instead of O(N^2)
// pairwise comparison. Candidates are confirmed by estimated Jaccard
// similarity against the retained signatures.
//
// Documents are identified by dense 0-based integer ids and inserted in id
// order. Buckets hold ids by value; signatures are retained in a chunked
// lz4-compressed arena so queries can Jaccard-filter without keeping the
// raw vectors resident.
package lsh

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/textfang/pkg/alg/minhash"
	"github.com/Sumatoshi-tech/textfang/pkg/alg/unionfind"
)

const (
	// AllBands selects every band for indexing and querying.
	AllBands = -1

	// bandSeparatorSize is the byte width of the band-index prefix hashed
	// ahead of each band for domain separation.
	bandSeparatorSize = 8

	// bytesPerValue is the encoded size of one signature value.
	bytesPerValue = 4
)

var (
	// ErrInvalidParams is returned when numBands or bandWidth is not positive.
	ErrInvalidParams = errors.New("lsh: numBands and bandWidth must be positive")

	// ErrInvalidThreshold is returned when the Jaccard threshold is outside (0, 1].
	ErrInvalidThreshold = errors.New("lsh: jaccard threshold must be in (0, 1]")

	// ErrInvalidBand is returned when bandID is outside [-1, numBands-1].
	ErrInvalidBand = errors.New("lsh: band id out of range")

	// ErrSizeMismatch is returned when a signature length does not equal
	// numBands * bandWidth.
	ErrSizeMismatch = errors.New("lsh: signature size must equal numBands * bandWidth")

	// ErrLengthMismatch is returned when ids and signatures differ in count.
	ErrLengthMismatch = errors.New("lsh: ids and signatures must have equal length")
)

// Index is a banded LSH index. A bulk insert fans out across the bands
// with per-band locks; calls themselves must arrive in id order because
// the signature arena is keyed by append position. Queries take read
// locks only and may run concurrently with each other.
type Index struct {
	numBands  int
	bandWidth int
	threshold float64
	bandID    int
	shards    []bandShard
	sigs      *sigStore
}

// bandShard is one band's bucket map guarded by its own lock.
type bandShard struct {
	mu      sync.RWMutex
	buckets map[uint64][]uint32
}

// New creates an index with numBands bands of bandWidth values each.
// threshold is the minimum estimated Jaccard for a query match. bandID
// selects a single band for sharded indexing across machines, or AllBands.
func New(numBands, bandWidth int, threshold float64, bandID int) (*Index, error) {
	if numBands <= 0 || bandWidth <= 0 {
		return nil, ErrInvalidParams
	}

	if threshold <= 0 || threshold > 1 {
		return nil, ErrInvalidThreshold
	}

	if bandID < AllBands || bandID >= numBands {
		return nil, ErrInvalidBand
	}

	shards := make([]bandShard, numBands)
	for i := range shards {
		shards[i].buckets = make(map[uint64][]uint32)
	}

	return &Index{
		numBands:  numBands,
		bandWidth: bandWidth,
		threshold: threshold,
		bandID:    bandID,
		shards:    shards,
		sigs:      newSigStore(numBands * bandWidth),
	}, nil
}

// Permutations returns the expected signature length.
func (idx *Index) Permutations() int {
	return idx.numBands * idx.bandWidth
}

// Size returns the number of signatures inserted so far.
func (idx *Index) Size() int {
	return idx.sigs.Len()
}

// BulkInsert indexes each signature under every participating band.
// Ids must continue the dense id sequence in order; signatures are
// retained for later Jaccard filtering.
func (idx *Index) BulkInsert(ids []int, sigs [][]uint32) error {
	if len(ids) != len(sigs) {
		return ErrLengthMismatch
	}

	for _, sig := range sigs {
		if len(sig) != idx.Permutations() {
			return ErrSizeMismatch
		}
	}

	idx.sigs.Append(sigs)

	var group errgroup.Group

	for _, band := range idx.participatingBands() {
		group.Go(func() error {
			shard := &idx.shards[band]

			shard.mu.Lock()
			defer shard.mu.Unlock()

			for i, sig := range sigs {
				h := bandHash(sig, band, idx.bandWidth)
				shard.buckets[h] = append(shard.buckets[h], uint32(ids[i]))
			}

			return nil
		})
	}

	return group.Wait()
}

// BulkQuery returns, for each probe signature, the sorted set of indexed
// ids that share at least one band bucket with the probe and whose
// estimated Jaccard similarity is at or above the index threshold.
// Matches are deduplicated across bands; a document matches itself.
func (idx *Index) BulkQuery(sigs [][]uint32) ([][]int, error) {
	for _, sig := range sigs {
		if len(sig) != idx.Permutations() {
			return nil, ErrSizeMismatch
		}
	}

	results := make([][]int, len(sigs))

	var group errgroup.Group

	group.SetLimit(runtime.GOMAXPROCS(0))

	for i, sig := range sigs {
		group.Go(func() error {
			results[i] = idx.query(sig)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// query collects candidates from every participating band, then filters by
// estimated Jaccard against the retained signatures.
func (idx *Index) query(sig []uint32) []int {
	seen := make(map[uint32]struct{})

	for _, band := range idx.participatingBands() {
		h := bandHash(sig, band, idx.bandWidth)
		shard := &idx.shards[band]

		shard.mu.RLock()

		for _, id := range shard.buckets[h] {
			seen[id] = struct{}{}
		}

		shard.mu.RUnlock()
	}

	result := make([]int, 0, len(seen))

	for id := range seen {
		stored := idx.sigs.Get(int(id))
		if stored == nil {
			continue
		}

		if minhash.Similarity(sig, stored) >= idx.threshold {
			result = append(result, int(id))
		}
	}

	slices.Sort(result)

	return result
}

// BulkRemove drops the given ids from every band bucket they appear in.
// Their retained signatures stay in the arena but can no longer surface
// as candidates.
func (idx *Index) BulkRemove(ids []int) {
	sigs := make([][]uint32, len(ids))
	for i, id := range ids {
		sigs[i] = idx.sigs.Get(id)
	}

	for _, band := range idx.participatingBands() {
		shard := &idx.shards[band]

		shard.mu.Lock()

		for i, id := range ids {
			sig := sigs[i]
			if sig == nil {
				continue
			}

			h := bandHash(sig, band, idx.bandWidth)
			bucket := shard.buckets[h]
			bucket = slices.DeleteFunc(bucket, func(member uint32) bool {
				return member == uint32(id)
			})

			if len(bucket) == 0 {
				delete(shard.buckets, h)
			} else {
				shard.buckets[h] = bucket
			}
		}

		shard.mu.Unlock()
	}
}

// Clusters unions every multi-member bucket into a disjoint-set of size n,
// seeded from the bucket's lowest id. A cluster confined to one bucket is
// rooted at its lowest id; a cluster spanning several buckets is not
// guaranteed to be. Must only be called after all inserts have finished.
func (idx *Index) Clusters(n int) *unionfind.UnionFind {
	uf := unionfind.New(n)

	for _, band := range idx.participatingBands() {
		shard := &idx.shards[band]

		shard.mu.RLock()

		for _, bucket := range shard.buckets {
			if len(bucket) < 2 {
				continue
			}

			lowest := slices.Min(bucket)
			for _, id := range bucket {
				if id != lowest {
					uf.Union(int(lowest), int(id))
				}
			}
		}

		shard.mu.RUnlock()
	}

	return uf
}

// participatingBands returns the band indices this index operates on.
func (idx *Index) participatingBands() []int {
	if idx.bandID != AllBands {
		return []int{idx.bandID}
	}

	bands := make([]int, idx.numBands)
	for i := range bands {
		bands[i] = i
	}

	return bands
}

// bandHash computes the FNV-1a hash of one signature band, prefixed with
// the band index for domain separation between bands.
func bandHash(sig []uint32, band, bandWidth int) uint64 {
	h := fnv.New64a()

	var buf [bandSeparatorSize]byte

	binary.BigEndian.PutUint64(buf[:], uint64(band))
	_, _ = h.Write(buf[:])

	start := band * bandWidth
	for _, v := range sig[start : start+bandWidth] {
		binary.LittleEndian.PutUint32(buf[:bytesPerValue], v)
		_, _ = h.Write(buf[:bytesPerValue])
	}

	return h.Sum64()
}
