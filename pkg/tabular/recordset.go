// Package tabular reads, reconciles and writes the tab-separated files
// which cBioPortal imports as study data.
//
// Cells are handled as literal strings. No quoting is interpreted:
// cBioPortal data files are plain TSV and a quote character is part of the value.
package tabular

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	separator = "\t"
	newline   = "\n"
)

// RecordSet is an ordered sequence of rows sharing one header.
//
// Each row has exactly as many cells as the header has columns.
type RecordSet struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// Row is a view of a row in a RecordSet.
type Row struct {
	rs    *RecordSet
	cells []string
}

// Get returns the value of the column.
//
// When the record set has no such column, it returns ("", false).
func (r Row) Get(column string) (string, bool) {
	i, ok := r.rs.index[column]
	if !ok {
		return "", false
	}
	return r.cells[i], true
}

// Cells returns a copy of values in header order.
func (r Row) Cells() []string {
	return slices.Clone(r.cells)
}

// New creates a record set from a header and rows.
//
// Rows shorter than the header are padded with empty cells.
// Blank cells beyond the header are dropped.
// Rows with values beyond the header, and a header with empty or duplicated names, are MalformedInputError.
func New(header []string, rows ...[]string) (*RecordSet, error) {
	index, err := indexOf(header)
	if err != nil {
		return nil, err
	}
	rs := &RecordSet{header: slices.Clone(header), index: index}
	for n, row := range rows {
		if err := rs.append(row); err != nil {
			return nil, malformed("row %d: %s", n+1, err)
		}
	}
	return rs, nil
}

func indexOf(header []string) (map[string]int, error) {
	if len(header) == 0 {
		return nil, malformed("no header")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			return nil, malformed("column %d has no name", i+1)
		}
		if _, dup := index[name]; dup {
			return nil, malformed("column %q is duplicated", name)
		}
		index[name] = i
	}
	return index, nil
}

func (rs *RecordSet) append(cells []string) error {
	cells = trimTrailingBlank(cells, len(rs.header))
	if len(cells) > len(rs.header) {
		return fmt.Errorf("expected %d fields, saw %d", len(rs.header), len(cells))
	}
	row := make([]string, len(rs.header))
	copy(row, cells)
	rs.rows = append(rs.rows, row)
	return nil
}

// trimTrailingBlank drops blank cells at the end of cells, keeping at least width cells.
//
// Spreadsheet exports often end lines with a separator.
func trimTrailingBlank(cells []string, width int) []string {
	n := len(cells)
	for n > width && strings.TrimSpace(cells[n-1]) == "" {
		n -= 1
	}
	return cells[:n]
}

// Parse reads tab-separated text. The first non-blank line is the header.
//
// Blank lines are skipped and "\r\n" line endings are accepted.
// Blank cells at the end of the header and of rows are ignored,
// but a row with values beyond the header, or an unnamed column between named ones,
// is MalformedInputError.
// Empty input, or input without a usable header, is MalformedInputError.
func Parse(r io.Reader) (*RecordSet, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var rs *RecordSet
	lineno := 0
	for sc.Scan() {
		lineno += 1
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, separator)
		if rs == nil {
			cells = trimTrailingBlank(cells, 0)
			index, err := indexOf(cells)
			if err != nil {
				return nil, err
			}
			rs = &RecordSet{header: cells, index: index}
			continue
		}
		if err := rs.append(cells); err != nil {
			return nil, malformed("line %d: %s", lineno, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, malformed("empty input")
	}
	return rs, nil
}

// ParseString is Parse for in-memory text.
func ParseString(s string) (*RecordSet, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile reads a snapshot file.
func ParseFile(path string) (*RecordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func (rs *RecordSet) Header() []string {
	return slices.Clone(rs.header)
}

func (rs *RecordSet) Len() int {
	return len(rs.rows)
}

func (rs *RecordSet) Row(i int) Row {
	return Row{rs: rs, cells: rs.rows[i]}
}

func (rs *RecordSet) Rows() []Row {
	rows := make([]Row, len(rs.rows))
	for i := range rs.rows {
		rows[i] = rs.Row(i)
	}
	return rows
}

// HasColumns tells whether every column is in the header.
func (rs *RecordSet) HasColumns(columns ...string) bool {
	for _, c := range columns {
		if _, ok := rs.index[c]; !ok {
			return false
		}
	}
	return true
}

// Dedup returns a record set without exact-duplicate rows.
//
// The first occurrence of each row is kept and row order is preserved.
func (rs *RecordSet) Dedup() *RecordSet {
	out := &RecordSet{header: rs.header, index: rs.index}
	seen := make(map[string]struct{}, len(rs.rows))
	for _, row := range rs.rows {
		k := tupleOf(row)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.rows = append(out.rows, row)
	}
	return out
}

// WriteTo writes the header and rows as tab-separated lines.
func (rs *RecordSet) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	written := int64(0)
	for _, line := range append([][]string{rs.header}, rs.rows...) {
		n, err := bw.WriteString(strings.Join(line, separator) + newline)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

func (rs *RecordSet) String() string {
	sb := new(strings.Builder)
	rs.WriteTo(sb)
	return sb.String()
}

// WriteFileAtomic replaces the file at path with the record set.
//
// Content is written to a temporary file in the same directory and renamed,
// so readers never see a partially written snapshot.
func WriteFileAtomic(path string, rs *RecordSet) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := rs.WriteTo(w)
		return err
	})
}

// WriteTextAtomic is WriteFileAtomic for free text, like meta files.
func WriteTextAtomic(path string, content string) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, content)
		return err
	})
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	committed = true
	return nil
}

// tupleOf encodes cells into a comparable value.
//
// Cells never contain "\n" (it is the line separator), so it is used as a delimiter.
func tupleOf(cells []string) string {
	return strings.Join(cells, newline)
}
