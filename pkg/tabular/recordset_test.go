package tabular_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/eosc4cancer/cbiobridge/pkg/tabular"
)

func TestParse(t *testing.T) {
	type then struct {
		header []string
		rows   [][]string
	}

	for name, testcase := range map[string]struct {
		when string
		then then
	}{
		"header only": {
			when: "PATIENT_ID\tDATA\n",
			then: then{header: []string{"PATIENT_ID", "DATA"}, rows: [][]string{}},
		},
		"CRLF and blank lines": {
			when: "\r\nPATIENT_ID\tDATA\r\n1\ta\r\n\r\n2\tb\r\n",
			then: then{
				header: []string{"PATIENT_ID", "DATA"},
				rows:   [][]string{{"1", "a"}, {"2", "b"}},
			},
		},
		"short rows are padded": {
			when: "A\tB\tC\n1\n2\t3\n",
			then: then{
				header: []string{"A", "B", "C"},
				rows:   [][]string{{"1", "", ""}, {"2", "3", ""}},
			},
		},
		"trailing separators on header and rows": {
			when: "PATIENT_ID\tDATA\t\n1\ta\t\n2\tb\t\t \n3\n",
			then: then{
				header: []string{"PATIENT_ID", "DATA"},
				rows:   [][]string{{"1", "a"}, {"2", "b"}, {"3", ""}},
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			rs, err := tabular.ParseString(testcase.when)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(rs.Header(), testcase.then.header) {
				t.Errorf("header: (actual, expected) = (%v, %v)", rs.Header(), testcase.then.header)
			}
			if rows := cellsOf(rs); !equalRows(rows, testcase.then.rows) {
				t.Errorf("rows: (actual, expected) = (%v, %v)", rows, testcase.then.rows)
			}
		})
	}

	for name, when := range map[string]string{
		"empty":                         "",
		"duplicate column":              "A\tA\n1\t2\n",
		"empty column":                  "A\t\tB\n",
		"too wide row":                  "A\n1\t2\n",
		"trailing separator then value": "A\tB\t\n1\t2\t3\n",
		"unnamed middle column":         "A\t\tB\t\n",
		// quotes are literal. a tab in quotes still separates cells.
		"quoted tab": "A\tB\n\"x\ty\"\tz\n",
	} {
		t.Run("malformed: "+name, func(t *testing.T) {
			_, err := tabular.ParseString(when)
			var merr *tabular.MalformedInputError
			if !errors.As(err, &merr) {
				t.Errorf("expected MalformedInputError, but %v", err)
			}
		})
	}
}

func TestRow_Get(t *testing.T) {
	rs, err := tabular.ParseString("PATIENT_ID\tRESOURCE_ID\nP1\tR1\n")
	if err != nil {
		t.Fatal(err)
	}
	row := rs.Row(0)
	if v, ok := row.Get("RESOURCE_ID"); !ok || v != "R1" {
		t.Errorf("Get(RESOURCE_ID) = (%s, %v)", v, ok)
	}
	if _, ok := row.Get("MISSING"); ok {
		t.Error("Get(MISSING) should not be found")
	}
	if !rs.HasColumns(tabular.KeyPatientResource...) {
		t.Error("HasColumns should be true")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	rs, err := tabular.New(
		[]string{"PATIENT_ID", "DATA"},
		[]string{"3", "old3"}, []string{"1", "new1"},
	)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "data_timeline_x.txt")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := tabular.WriteFileAtomic(path, rs); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := "PATIENT_ID\tDATA\n3\told3\n1\tnew1\n"
	if string(content) != expected {
		t.Errorf("content: (actual, expected) = (%q, %q)", string(content), expected)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files are left: %v", entries)
	}

	t.Run("written file can be parsed back", func(t *testing.T) {
		back, err := tabular.ParseFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !equalRows(cellsOf(back), cellsOf(rs)) {
			t.Errorf("(actual, expected) = (%v, %v)", cellsOf(back), cellsOf(rs))
		}
	})

	t.Run("meta text is written as is", func(t *testing.T) {
		meta := filepath.Join(dir, "meta_timeline_x.txt")
		if err := tabular.WriteTextAtomic(meta, "cancer_study_identifier: s1\n"); err != nil {
			t.Fatal(err)
		}
		content, err := os.ReadFile(meta)
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != "cancer_study_identifier: s1\n" {
			t.Errorf("unexpected content: %q", string(content))
		}
	})
}
