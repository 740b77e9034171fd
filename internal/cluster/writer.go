package cluster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zstd"
)

// writerBufferSize is the buffer in front of the zstd encoder; parents
// arrays are written one small token at a time.
const writerBufferSize = 1 << 20

// Writer emits a zstd-compressed cluster artifact.
type Writer struct {
	encoder *zstd.Encoder
	buf     *bufio.Writer
}

// NewWriter wraps w in a zstd encoder at the given compression level.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	encoder, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("cluster: zstd encoder: %w", err)
	}

	return &Writer{
		encoder: encoder,
		buf:     bufio.NewWriterSize(encoder, writerBufferSize),
	}, nil
}

// WriteHeader writes the record-count header line.
func (w *Writer) WriteHeader(n int) error {
	if _, err := fmt.Fprintf(w.buf, "%d\n", n); err != nil {
		return fmt.Errorf("cluster: write header: %w", err)
	}

	return nil
}

// WriteParents writes the parents array as a single whitespace-separated
// line.
func (w *Writer) WriteParents(parents []uint32) error {
	for i, p := range parents {
		if i > 0 {
			if err := w.buf.WriteByte(' '); err != nil {
				return fmt.Errorf("cluster: write parents: %w", err)
			}
		}

		if _, err := w.buf.WriteString(strconv.FormatUint(uint64(p), 10)); err != nil {
			return fmt.Errorf("cluster: write parents: %w", err)
		}
	}

	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("cluster: write parents: %w", err)
	}

	return nil
}

// WriteQueryRecord writes one query-form record: the ids matching one
// document's probe.
func (w *Writer) WriteQueryRecord(ids []int) error {
	for i, id := range ids {
		if i > 0 {
			if err := w.buf.WriteByte(' '); err != nil {
				return fmt.Errorf("cluster: write record: %w", err)
			}
		}

		if _, err := w.buf.WriteString(strconv.Itoa(id)); err != nil {
			return fmt.Errorf("cluster: write record: %w", err)
		}
	}

	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("cluster: write record: %w", err)
	}

	return nil
}

// WriteDiscard writes the DISCARD sentinel record for one document.
func (w *Writer) WriteDiscard() error {
	if _, err := w.buf.WriteString(DiscardToken + "\n"); err != nil {
		return fmt.Errorf("cluster: write discard: %w", err)
	}

	return nil
}

// Close flushes the buffer and finishes the zstd frame.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("cluster: flush: %w", err)
	}

	if err := w.encoder.Close(); err != nil {
		return fmt.Errorf("cluster: close encoder: %w", err)
	}

	return nil
}
