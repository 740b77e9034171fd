package zio

// BatchCapacity is the bound of the batch channel. Batches are large and
// the consumer is much slower than the reader, so a capacity of one batch
// of lookahead is all the pipelining that pays off.
const BatchCapacity = 1

// BatchReader streams a file list on a producer goroutine, grouping lines
// into fixed-size batches pushed over a bounded channel.
//
// Consume the channel to exhaustion, then check Err: a read failure closes
// the channel early and leaves the error behind.
type BatchReader struct {
	batches chan [][]byte
	err     error
}

// NewBatchReader starts the producer over files, emitting batches of up to
// batchSize lines. The final batch may be short.
func NewBatchReader(files []string, batchSize int) *BatchReader {
	r := &BatchReader{batches: make(chan [][]byte, BatchCapacity)}

	go func() {
		defer close(r.batches)

		batch := make([][]byte, 0, batchSize)

		err := streamLines(files, func(line []byte) {
			batch = append(batch, line)
			if len(batch) == batchSize {
				r.batches <- batch
				batch = make([][]byte, 0, batchSize)
			}
		})
		// The write is ordered before close; receivers observe it after
		// the channel is drained.
		r.err = err

		if err == nil && len(batch) > 0 {
			r.batches <- batch
		}
	}()

	return r
}

// Batches returns the channel of line batches. It is closed when all
// files are exhausted or a read fails.
func (r *BatchReader) Batches() <-chan [][]byte {
	return r.batches
}

// Err returns the failure that terminated the stream, if any. Only valid
// after the batch channel has been drained.
func (r *BatchReader) Err() error {
	return r.err
}

// LineReader streams single lines over a bounded channel. Used by the
// exact-dedup pass, where the consumer decision is sequential and the
// channel capacity is the read-ahead.
type LineReader struct {
	lines chan []byte
	err   error
}

// NewLineReader starts the producer over files with the given channel
// capacity.
func NewLineReader(files []string, capacity int) *LineReader {
	r := &LineReader{lines: make(chan []byte, capacity)}

	go func() {
		defer close(r.lines)

		r.err = streamLines(files, func(line []byte) {
			r.lines <- line
		})
	}()

	return r
}

// Lines returns the channel of lines.
func (r *LineReader) Lines() <-chan []byte {
	return r.lines
}

// Err returns the failure that terminated the stream, if any. Only valid
// after the line channel has been drained.
func (r *LineReader) Err() error {
	return r.err
}
