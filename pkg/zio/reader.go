// Package zio provides the compressed line I/O used by the corpus
// pipeline: streaming zstd JSONL readers that feed bounded channels, a
// size-rotating zstd shard writer and a line-wise paste over parallel
// compressed files.
//
// Producers run on their own goroutine per input stream so decompression
// overlaps with downstream CPU work; the bounded channel is the only
// backpressure mechanism. All read errors are fatal to the stream and name
// the offending file.
package zio

import (
	"bufio"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

const (
	// scanBufferSize is the initial line scanner buffer.
	scanBufferSize = 64 * 1024

	// maxLineSize bounds a single JSONL line. Document text runs to
	// hundreds of kilobytes; anything near this limit is corruption.
	maxLineSize = 256 * 1024 * 1024
)

// LineScanner reads newline-separated lines from one zstd-compressed file.
type LineScanner struct {
	path    string
	file    *os.File
	decoder *zstd.Decoder
	scanner *bufio.Scanner
}

// OpenLines opens a zstd-compressed file for line scanning.
func OpenLines(path string) (*LineScanner, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	decoder, err := zstd.NewReader(file)
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("uncompressed or corrupted file %q: %w", path, err)
	}

	scanner := bufio.NewScanner(decoder)
	scanner.Buffer(make([]byte, scanBufferSize), maxLineSize)

	return &LineScanner{
		path:    path,
		file:    file,
		decoder: decoder,
		scanner: scanner,
	}, nil
}

// Scan advances to the next line. It returns false at EOF or on error;
// check Err afterwards.
func (s *LineScanner) Scan() bool {
	return s.scanner.Scan()
}

// Line returns the current line. The slice is only valid until the next
// Scan call.
func (s *LineScanner) Line() []byte {
	return s.scanner.Bytes()
}

// Err returns the first error encountered while scanning, naming the file.
func (s *LineScanner) Err() error {
	if err := s.scanner.Err(); err != nil {
		return fmt.Errorf("read %q: %w", s.path, err)
	}

	return nil
}

// Close releases the decoder and the underlying file.
func (s *LineScanner) Close() error {
	s.decoder.Close()

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close %q: %w", s.path, err)
	}

	return nil
}

// streamLines feeds every line of every file, in order, to emit. The
// emitted slice is a private copy.
func streamLines(files []string, emit func(line []byte)) error {
	for _, path := range files {
		scanner, err := OpenLines(path)
		if err != nil {
			return err
		}

		for scanner.Scan() {
			line := make([]byte, len(scanner.Line()))
			copy(line, scanner.Line())
			emit(line)
		}

		scanErr := scanner.Err()
		closeErr := scanner.Close()

		if scanErr != nil {
			return scanErr
		}

		if closeErr != nil {
			return closeErr
		}
	}

	return nil
}
