package tabular

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

const (
	ColumnPatientID  = "PATIENT_ID"
	ColumnResourceID = "RESOURCE_ID"
)

// MergeKey is the ordered set of columns whose values identify a row on reconciliation.
type MergeKey []string

var (
	KeyPatient         = MergeKey{ColumnPatientID}
	KeyResource        = MergeKey{ColumnResourceID}
	KeyPatientResource = MergeKey{ColumnPatientID, ColumnResourceID}
)

func (k MergeKey) String() string {
	return strings.Join(k, "+")
}

// Variant is a kind of submitted table. Each variant has its own merge key.
type Variant string

const (
	// timeline of a case. keyed by PATIENT_ID.
	VariantTimeline Variant = "timeline"

	// resource definitions of a study. keyed by RESOURCE_ID.
	VariantResourceDefinition Variant = "resource_definition"

	// resources attached to patients. keyed by PATIENT_ID and RESOURCE_ID.
	VariantResourcePatient Variant = "resource_patient"
)

func (v Variant) Key() (MergeKey, error) {
	switch v {
	case VariantTimeline:
		return KeyPatient, nil
	case VariantResourceDefinition:
		return KeyResource, nil
	case VariantResourcePatient:
		return KeyPatientResource, nil
	}
	return nil, fmt.Errorf("unknown merge variant: %q", string(v))
}

var ErrKeyColumnsMissing = errors.New("key columns are missing")

// Warner receives warnings. echo.Logger satisfies this.
type Warner interface {
	Warnf(format string, args ...interface{})
}

type nopWarner struct{}

func (nopWarner) Warnf(string, ...interface{}) {}

// Report describes what a merge did.
type Report struct {
	// rows in the snapshot before merge
	Existing int

	// rows in the snapshot replaced by incoming rows with the same key
	Replaced int

	// rows submitted
	Incoming int

	// exact duplicates removed from the result
	Duplicates int

	// true when the snapshot was thrown away because it could not be reconciled
	Discarded bool
}

type Merger struct {
	log Warner
}

// NewMerger creates a Merger which reports warnings to log.
//
// log can be nil; then warnings are dropped.
func NewMerger(log Warner) *Merger {
	if log == nil {
		log = nopWarner{}
	}
	return &Merger{log: log}
}

// MergeFile reconciles newData with the snapshot at snapshotPath.
//
// Rows in the snapshot having the same key as any row in newData are replaced.
// The result has the remaining snapshot rows first, followed by all rows of newData,
// without exact duplicates.
//
// When the snapshot does not exist, the result is newData without duplicates.
// When the snapshot is empty, unreadable as a table, or lacks some key columns,
// it is discarded with a warning and the result is newData alone.
//
// The snapshot file is not modified.
func (m *Merger) MergeFile(newData string, snapshotPath string, key MergeKey) (*RecordSet, Report, error) {
	incoming, err := ParseString(newData)
	if err != nil {
		return nil, Report{}, err
	}

	existing, err := ParseFile(snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		out := incoming.Dedup()
		return out, Report{
			Incoming:   incoming.Len(),
			Duplicates: incoming.Len() - out.Len(),
		}, nil
	}
	var merr *MalformedInputError
	if errors.As(err, &merr) {
		m.log.Warnf(
			"Previous file %s can not be read as a table (%s). Previous file will be overwritten.",
			snapshotPath, merr.Reason,
		)
		return discard(incoming, 0)
	} else if err != nil {
		return nil, Report{}, err
	}

	out, rep, err := Combine(existing, incoming, key)
	if errors.Is(err, ErrKeyColumnsMissing) {
		m.log.Warnf(
			"Previous file %s does not have the required key columns (%s). Previous file will be overwritten.",
			snapshotPath, key,
		)
		return discard(incoming, existing.Len())
	} else if err != nil {
		return nil, Report{}, err
	}
	return out, rep, nil
}

func discard(incoming *RecordSet, existing int) (*RecordSet, Report, error) {
	out := incoming.Dedup()
	return out, Report{
		Existing:   existing,
		Incoming:   incoming.Len(),
		Duplicates: incoming.Len() - out.Len(),
		Discarded:  true,
	}, nil
}

// Combine reconciles two record sets in memory.
//
// Both record sets should have all key columns. Otherwise, it returns ErrKeyColumnsMissing.
//
// The header of the result is the header of existing followed by columns only incoming has.
// Cells for columns a row did not have are empty.
func Combine(existing, incoming *RecordSet, key MergeKey) (*RecordSet, Report, error) {
	if len(key) == 0 {
		return nil, Report{}, errors.New("merge key is empty")
	}
	if !existing.HasColumns(key...) || !incoming.HasColumns(key...) {
		return nil, Report{}, fmt.Errorf("%w: %s", ErrKeyColumnsMissing, key)
	}

	header := existing.Header()
	for _, c := range incoming.header {
		if _, ok := existing.index[c]; !ok {
			header = append(header, c)
		}
	}
	combined, err := New(header)
	if err != nil {
		return nil, Report{}, err
	}

	replaced := make(map[string]struct{}, incoming.Len())
	for _, row := range incoming.rows {
		replaced[incoming.keyOf(row, key)] = struct{}{}
	}

	rep := Report{Existing: existing.Len(), Incoming: incoming.Len()}
	for _, row := range existing.rows {
		if _, ok := replaced[existing.keyOf(row, key)]; ok {
			rep.Replaced += 1
			continue
		}
		combined.rows = append(combined.rows, combined.align(existing, row))
	}
	for _, row := range incoming.rows {
		combined.rows = append(combined.rows, combined.align(incoming, row))
	}

	out := combined.Dedup()
	rep.Duplicates = combined.Len() - out.Len()
	return out, rep, nil
}

func (rs *RecordSet) keyOf(row []string, key MergeKey) string {
	values := make([]string, len(key))
	for i, k := range key {
		values[i] = row[rs.index[k]]
	}
	return tupleOf(values)
}

// align converts a row of src into the column order of rs.
func (rs *RecordSet) align(src *RecordSet, row []string) []string {
	out := make([]string, len(rs.header))
	for i, c := range rs.header {
		if j, ok := src.index[c]; ok {
			out[i] = row[j]
		}
	}
	return out
}
