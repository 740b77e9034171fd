package lsh

import (
	"encoding/binary"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// chunkDocs is the number of signatures packed into one compressed chunk.
// Signature vectors of neighboring documents share plenty of byte-level
// structure, so block compression recovers most of the arena's footprint
// while keeping decompression local to one chunk per lookup.
const chunkDocs = 256

// sigStore is an append-only arena of fixed-length uint32 signatures keyed
// by dense document id. Full chunks are held lz4-compressed; the tail chunk
// stays raw until it fills. Safe for concurrent Append and Get.
type sigStore struct {
	mu           sync.RWMutex
	permutations int
	chunks       [][]byte
	active       []uint32
	count        int
}

func newSigStore(permutations int) *sigStore {
	return &sigStore{permutations: permutations}
}

// Len returns the number of stored signatures.
func (s *sigStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.count
}

// Append stores the signatures in order, sealing chunks as they fill.
func (s *sigStore) Append(sigs [][]uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sig := range sigs {
		s.active = append(s.active, sig...)
		s.count++

		if len(s.active) == chunkDocs*s.permutations {
			s.chunks = append(s.chunks, compressUint32Block(s.active))
			s.active = s.active[:0]
		}
	}
}

// Get returns the signature of id, or nil when id was never stored.
// The returned slice is freshly allocated and owned by the caller.
func (s *sigStore) Get(id int) []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 0 || id >= s.count {
		return nil
	}

	chunk := id / chunkDocs
	offset := (id % chunkDocs) * s.permutations

	if chunk == len(s.chunks) {
		out := make([]uint32, s.permutations)
		copy(out, s.active[offset:offset+s.permutations])

		return out
	}

	block := decompressUint32Block(s.chunks[chunk], chunkDocs*s.permutations)
	if block == nil {
		return nil
	}

	return block[offset : offset+s.permutations]
}

// compressUint32Block packs values little-endian and compresses them with
// an lz4 block. Falls back to storing raw bytes with a zero-byte marker if
// the block is incompressible.
func compressUint32Block(values []uint32) []byte {
	raw := make([]byte, len(values)*bytesPerValue)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*bytesPerValue:], v)
	}

	dst := make([]byte, 1+lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, dst[1:], nil)
	if err != nil || written == 0 || written >= len(raw) {
		stored := make([]byte, 1+len(raw))
		copy(stored[1:], raw)

		return stored
	}

	dst[0] = 1

	return dst[:1+written]
}

// decompressUint32Block reverses compressUint32Block into count values.
func decompressUint32Block(block []byte, count int) []uint32 {
	if len(block) == 0 {
		return nil
	}

	raw := block[1:]

	if block[0] == 1 {
		buf := make([]byte, count*bytesPerValue)

		n, err := lz4.UncompressBlock(raw, buf)
		if err != nil || n != len(buf) {
			return nil
		}

		raw = buf
	}

	if len(raw) != count*bytesPerValue {
		return nil
	}

	values := make([]uint32, count)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(raw[i*bytesPerValue:])
	}

	return values
}
