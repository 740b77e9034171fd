package zio

import (
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// DefaultShardSize is the uncompressed byte count that triggers shard
// rotation when no explicit size is configured.
const DefaultShardSize = 1 << 30

// SplitWriter writes JSONL lines into numbered zstd shards named
// <prefix>.<n>.zst, rotating to the next shard once the running
// uncompressed total exceeds the configured size.
//
// Rotation is checked before a record is written, never between a line and
// its newline, so no record straddles two shards.
type SplitWriter struct {
	prefix      string
	shardSize   int
	level       zstd.EncoderLevel
	concurrency int
	file        *os.File
	encoder     *zstd.Encoder
	written     int
	shard       int
}

// NewSplitWriter opens <prefix>.1.zst with the given rotation size,
// zstd compression level (1-22) and encoder worker count.
func NewSplitWriter(prefix string, shardSize, level, concurrency int) (*SplitWriter, error) {
	w := &SplitWriter{
		prefix:      prefix,
		shardSize:   shardSize,
		level:       zstd.EncoderLevelFromZstd(level),
		concurrency: concurrency,
	}

	if err := w.openShard(1); err != nil {
		return nil, err
	}

	return w, nil
}

// openShard creates the numbered shard file and its encoder.
func (w *SplitWriter) openShard(n int) error {
	path := fmt.Sprintf("%s.%d.zst", w.prefix, n)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create shard %q: %w", path, err)
	}

	encoder, err := zstd.NewWriter(file,
		zstd.WithEncoderLevel(w.level),
		zstd.WithEncoderConcurrency(w.concurrency),
	)
	if err != nil {
		_ = file.Close()

		return fmt.Errorf("zstd encoder for %q: %w", path, err)
	}

	w.file = file
	w.encoder = encoder
	w.shard = n
	w.written = 0

	return nil
}

// closeShard flushes and closes the current encoder and file.
func (w *SplitWriter) closeShard() error {
	if err := w.encoder.Close(); err != nil {
		_ = w.file.Close()

		return fmt.Errorf("close shard %d of %q: %w", w.shard, w.prefix, err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close shard %d of %q: %w", w.shard, w.prefix, err)
	}

	return nil
}

// WriteLine writes one record and its terminating newline, rotating first
// when the current shard has exceeded its size.
func (w *SplitWriter) WriteLine(line []byte) error {
	if w.written > w.shardSize {
		if err := w.closeShard(); err != nil {
			return err
		}

		if err := w.openShard(w.shard + 1); err != nil {
			return err
		}
	}

	if _, err := w.encoder.Write(line); err != nil {
		return fmt.Errorf("write shard %d of %q: %w", w.shard, w.prefix, err)
	}

	if _, err := w.encoder.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("write shard %d of %q: %w", w.shard, w.prefix, err)
	}

	w.written += len(line) + 1

	return nil
}

// Shards returns the number of shards opened so far.
func (w *SplitWriter) Shards() int {
	return w.shard
}

// Close flushes and closes the current shard.
func (w *SplitWriter) Close() error {
	return w.closeShard()
}
