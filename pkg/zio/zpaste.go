package zio

import (
	"bytes"
	"fmt"
	"io"
)

// pasteSeparator joins the columns of a pasted line.
const pasteSeparator = '\t'

// Paste concatenates parallel zstd-compressed files line by line,
// tab-separated, like the unix paste command over compressed inputs.
// Inputs that run out early contribute empty columns until every input is
// exhausted.
type Paste struct {
	scanners []*LineScanner
	buf      bytes.Buffer
}

// NewPaste opens every input file for pasting.
func NewPaste(files []string) (*Paste, error) {
	scanners := make([]*LineScanner, 0, len(files))

	for _, path := range files {
		scanner, err := OpenLines(path)
		if err != nil {
			for _, s := range scanners {
				_ = s.Close()
			}

			return nil, err
		}

		scanners = append(scanners, scanner)
	}

	return &Paste{scanners: scanners}, nil
}

// Next produces the next pasted line. It returns ok=false once every
// input is exhausted.
func (p *Paste) Next() (line []byte, ok bool, err error) {
	p.buf.Reset()

	produced := false

	for i, scanner := range p.scanners {
		if scanner.Scan() {
			p.buf.Write(scanner.Line())

			produced = true
		} else if scanErr := scanner.Err(); scanErr != nil {
			return nil, false, scanErr
		}

		// Separator also for empty columns, but not after the last.
		if i != len(p.scanners)-1 {
			p.buf.WriteByte(pasteSeparator)
		}
	}

	if !produced {
		return nil, false, nil
	}

	return p.buf.Bytes(), true, nil
}

// WriteTo pastes every remaining line to w, newline-terminated.
func (p *Paste) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for {
		line, ok, err := p.Next()
		if err != nil {
			return total, err
		}

		if !ok {
			return total, nil
		}

		n, err := w.Write(append(line, '\n'))
		total += int64(n)

		if err != nil {
			return total, fmt.Errorf("write pasted line: %w", err)
		}
	}
}

// Close closes every input.
func (p *Paste) Close() error {
	var firstErr error

	for _, scanner := range p.scanners {
		if err := scanner.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
