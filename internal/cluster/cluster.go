// Package cluster serializes and parses the cluster artifact that links
// the indexing pass to the filter pass.
//
// The artifact is zstd-compressed text. The first line carries the record
// count N (extra tokens on the header line are ignored). The body is
// either a whitespace-separated parents array — the indexer's default
// output, one or more arrays when per-band shards are merged — or one
// query record per source document, each a whitespace-separated id list or
// the literal DISCARD token.
package cluster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/Sumatoshi-tech/textfang/pkg/alg/unionfind"
)

// DiscardToken marks a document that belongs to an over-large cluster and
// must not survive filtering.
const DiscardToken = "DISCARD"

var (
	// ErrEmptyFile is returned when the artifact has no header line.
	ErrEmptyFile = errors.New("cluster: empty cluster file")

	// ErrBadHeader is returned when the header line does not start with a
	// record count.
	ErrBadHeader = errors.New("cluster: unreadable cluster header")

	// ErrBadToken is returned for a record token that is neither an id nor
	// DISCARD.
	ErrBadToken = errors.New("cluster: non-numeric token")

	// ErrIDOutOfRange is returned when a record id is not below the header
	// record count.
	ErrIDOutOfRange = errors.New("cluster: document id out of range")

	// ErrTooManyRecords is returned when a query-form artifact has more
	// records than the header promised documents.
	ErrTooManyRecords = errors.New("cluster: more query records than documents")
)

// Read opens and parses a cluster artifact into a union-find over its N
// documents.
func Read(path string) (*unionfind.UnionFind, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("uncompressed or corrupted file %q: %w", path, err)
	}
	defer decoder.Close()

	uf, err := Parse(decoder)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", path, err)
	}

	return uf, nil
}

// Parse reads an uncompressed cluster artifact.
//
// The first content record decides the form: a numeric record with exactly
// N tokens is a parents array (later arrays, produced by per-band shard
// runs, are merged by union); anything else is the query form, where
// record i unions document i with every listed id and DISCARD unions it
// under document 0 so it can never be its own parent.
func Parse(r io.Reader) (*unionfind.UnionFind, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, headerBufferSize), maxRecordSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}

		return nil, ErrEmptyFile
	}

	header := strings.Fields(scanner.Text())
	if len(header) == 0 {
		return nil, ErrBadHeader
	}

	n, err := strconv.Atoi(header[0])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadHeader, header[0])
	}

	uf := unionfind.New(n)

	parser := recordParser{uf: uf, n: n}
	for scanner.Scan() {
		if err := parser.record(strings.Fields(scanner.Text())); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return uf, nil
}

const (
	// headerBufferSize is the initial scanner buffer.
	headerBufferSize = 64 * 1024

	// maxRecordSize bounds one record line; a full parents array for 10^8
	// documents fits in about 1 GiB of text.
	maxRecordSize = 2 * 1024 * 1024 * 1024
)

// recordParser consumes artifact records one line at a time, deciding the
// form on the first content record.
type recordParser struct {
	uf          *unionfind.UnionFind
	n           int
	sawFirst    bool
	parentsForm bool
	queryIdx    int
}

func (p *recordParser) record(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	if !p.sawFirst {
		p.sawFirst = true
		p.parentsForm = len(tokens) == p.n && allNumeric(tokens)

		if p.parentsForm {
			return p.assignParents(tokens)
		}

		return p.queryRecord(tokens)
	}

	if p.parentsForm {
		// Stray headers appear when per-band artifacts are concatenated.
		if len(tokens) == 1 {
			return nil
		}

		return p.mergeParents(tokens)
	}

	return p.queryRecord(tokens)
}

// assignParents installs the first parents array directly.
func (p *recordParser) assignParents(tokens []string) error {
	parents := p.uf.Parents()

	for j, tok := range tokens {
		id, err := p.parseID(tok)
		if err != nil {
			return err
		}

		parents[j] = uint32(id)
	}

	return nil
}

// mergeParents unions a further parents array — a per-band shard — into
// the accumulated clustering.
func (p *recordParser) mergeParents(tokens []string) error {
	if len(tokens) != p.n {
		return fmt.Errorf("%w: parents array of %d entries, want %d",
			ErrBadHeader, len(tokens), p.n)
	}

	for j, tok := range tokens {
		id, err := p.parseID(tok)
		if err != nil {
			return err
		}

		if id != int(p.uf.Parents()[j]) {
			p.uf.Union(j, id)
		}
	}

	return nil
}

// queryRecord applies record i: every listed id joins document i's
// cluster; DISCARD pushes document i under document 0 unconditionally.
func (p *recordParser) queryRecord(tokens []string) error {
	if p.queryIdx >= p.n {
		return ErrTooManyRecords
	}

	i := p.queryIdx
	p.queryIdx++

	for _, tok := range tokens {
		if strings.HasPrefix(tok, DiscardToken) {
			p.uf.Union(0, i)

			return nil
		}

		id, err := p.parseID(tok)
		if err != nil {
			return err
		}

		if id != i {
			p.uf.Union(i, id)
		}
	}

	return nil
}

func (p *recordParser) parseID(tok string) (int, error) {
	id, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadToken, tok)
	}

	if id < 0 || id >= p.n {
		return 0, fmt.Errorf("%w: %d of %d", ErrIDOutOfRange, id, p.n)
	}

	return id, nil
}

func allNumeric(tokens []string) bool {
	for _, tok := range tokens {
		if _, err := strconv.Atoi(tok); err != nil {
			return false
		}
	}

	return true
}
