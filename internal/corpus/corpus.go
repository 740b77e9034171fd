// Package corpus defines the JSONL record contract shared by every
// pipeline stage.
//
// A record is one JSON object per line with at least a "text" field; every
// other field is opaque and preserved byte for byte. The filter stages
// never re-serialize records: the id rewrite and the cluster-size splice
// edit the raw line under strict validation, because parsing and
// re-encoding multi-hundred-kilobyte text fields roughly halves
// throughput.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	// ErrMissingIDPrefix is returned when an id rewrite was requested on a
	// line that does not begin with {"id":<digits>, .
	ErrMissingIDPrefix = errors.New(`corpus: line does not start with {"id":<digits>,`)

	// ErrMissingClosingBrace is returned when a cluster-size splice was
	// requested on a line that does not end with }.
	ErrMissingClosingBrace = errors.New("corpus: line does not end with }")
)

// idPrefix matches the anchored leading id field of a record.
var idPrefix = regexp.MustCompile(`^\{"id":[0-9]+,`)

// TextRecord decodes only the text field of a record, ignoring the rest.
type TextRecord struct {
	Text string `json:"text"`
}

// ParseText extracts the text field of a JSONL line.
func ParseText(line []byte) (string, error) {
	var rec TextRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return "", fmt.Errorf("corpus: parse document: %w", err)
	}

	return rec.Text, nil
}

// RewriteID replaces the anchored {"id":<digits>, prefix with the given
// id, leaving every other byte of the line untouched.
func RewriteID(line []byte, id int) ([]byte, error) {
	loc := idPrefix.FindIndex(line)
	if loc == nil {
		return nil, ErrMissingIDPrefix
	}

	prefix := fmt.Sprintf(`{"id":%d,`, id)

	out := make([]byte, 0, len(prefix)+len(line)-loc[1])
	out = append(out, prefix...)
	out = append(out, line[loc[1]:]...)

	return out, nil
}

// SpliceClusterSize inserts ,"cluster_size":<size> before the closing
// brace of the line. The line must end with } and no trailing whitespace.
func SpliceClusterSize(line []byte, size int) ([]byte, error) {
	if len(line) == 0 || line[len(line)-1] != '}' {
		return nil, ErrMissingClosingBrace
	}

	field := `,"cluster_size":` + strconv.Itoa(size)

	out := make([]byte, 0, len(line)+len(field))
	out = append(out, line[:len(line)-1]...)
	out = append(out, field...)
	out = append(out, '}')

	return out, nil
}
