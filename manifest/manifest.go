package manifest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is one data row of the input CSV.
type Record struct {
	Name string
	SKU  string
	URL  string
}

// InputError indicates the manifest file itself is unusable: missing,
// unreadable, empty, malformed, or carrying the wrong header.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid manifest %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// requiredColumns are the header columns every manifest must carry, matched
// case-insensitively and in any order. Extra columns are ignored.
var requiredColumns = []string{"name", "sku", "url"}

// Reader parses a CSV manifest into a sequence of records. It is a single
// pass over the file handle; it cannot be restarted.
type Reader struct {
	path string
	f    *os.File
	cr   *csv.Reader
	cols map[string]int // lowercased column name --> index
}

// Open opens the manifest at the given path and validates its header. It
// returns an *InputError if the file is missing, unreadable, empty, or its
// header lacks a required column.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputError{Path: path, Err: err}
	}

	r := &Reader{
		path: path,
		f:    f,
		cr:   csv.NewReader(skipBOM(f)),
	}

	// Rows narrower than the header surface as empty fields rather than
	// parse errors.
	r.cr.FieldsPerRecord = -1

	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}

	return r, nil
}

func (r *Reader) readHeader() error {
	header, err := r.cr.Read()
	if err == io.EOF {
		return &InputError{Path: r.path, Err: errors.New("empty file")}
	}
	if err != nil {
		return &InputError{Path: r.path, Err: err}
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, want := range requiredColumns {
		if _, ok := cols[want]; !ok {
			return &InputError{
				Path: r.path,
				Err:  fmt.Errorf("header missing required column %q", want),
			}
		}
	}

	r.cols = cols
	return nil
}

// Next returns the next record in the manifest. It returns io.EOF after the
// last row. Rows with an empty URL field are returned as-is; skipping them
// is the caller's decision.
func (r *Reader) Next() (Record, error) {
	row, err := r.cr.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, &InputError{Path: r.path, Err: err}
	}

	return Record{
		Name: r.field(row, "name"),
		SKU:  r.field(row, "sku"),
		URL:  r.field(row, "url"),
	}, nil
}

// ReadAll drains the reader and returns the remaining records.
func (r *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
}

func (r *Reader) Close() error {
	return r.f.Close()
}

func (r *Reader) field(row []string, col string) string {
	i := r.cols[col]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// skipBOM discards a leading UTF-8 byte order mark if present. Spreadsheet
// exports commonly prepend one.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}
