// Package study locates study directories on disk.
//
// A study directory is a direct child of the study root, having `meta_study.txt`
// with a line `cancer_study_identifier: <study id>`.
package study

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	xe "github.com/eosc4cancer/cbiobridge/pkg/errors"
)

const (
	MetaStudyFile = "meta_study.txt"

	identifierField = "cancer_study_identifier"

	// IncrementalImportDir is the directory under the study root
	// where data for incremental import is staged.
	IncrementalImportDir = "incremental_import"
)

var (
	ErrStudyNotFound  = errors.New("study directory not found")
	ErrAmbiguousStudy = errors.New("study directory is ambiguous")
	ErrInvalidStudyID = errors.New("invalid study id")
)

type StudyNotFoundError struct {
	StudyID string
	Root    string
}

func (e *StudyNotFoundError) Error() string {
	return fmt.Sprintf("no directory found for study %s in %s", e.StudyID, e.Root)
}

func (e *StudyNotFoundError) Unwrap() error {
	return ErrStudyNotFound
}

// AmbiguousStudyError tells that more than one directory declare the same study.
//
// This is a data-integrity issue and needs a fix by hand.
type AmbiguousStudyError struct {
	StudyID    string
	Root       string
	Candidates []string
}

func (e *AmbiguousStudyError) Error() string {
	return fmt.Sprintf(
		"multiple directories found for study %s in %s: %s",
		e.StudyID, e.Root, strings.Join(e.Candidates, ", "),
	)
}

func (e *AmbiguousStudyError) Unwrap() error {
	return ErrAmbiguousStudy
}

// Resolve finds the directory of the study in root.
//
// Subdirectories without meta_study.txt are skipped.
// Symlinks to directories are followed.
//
// # Returns
//
// - string: path of the study directory.
//
// - error: *StudyNotFoundError if no directory matches,
// *AmbiguousStudyError if two or more match, or other errors on reading root.
func Resolve(studyID string, root string) (string, error) {
	if err := ValidateID(studyID); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", xe.Wrap(err)
	}

	want := identifierField + ": " + studyID
	candidates := []string{}
	for _, ent := range entries {
		dir := filepath.Join(root, ent.Name())
		if !isDir(dir, ent) {
			continue
		}
		ok, err := declares(filepath.Join(dir, MetaStudyFile), want)
		if err != nil {
			return "", xe.Wrap(err)
		}
		if ok {
			candidates = append(candidates, dir)
		}
	}

	switch len(candidates) {
	case 0:
		return "", &StudyNotFoundError{StudyID: studyID, Root: root}
	case 1:
		return candidates[0], nil
	default:
		return "", &AmbiguousStudyError{StudyID: studyID, Root: root, Candidates: candidates}
	}
}

// isDir tells whether the entry is a directory, following a symlink.
//
// Broken symlinks are not directories.
func isDir(path string, ent fs.DirEntry) bool {
	if ent.IsDir() {
		return true
	}
	if ent.Type()&fs.ModeSymlink == 0 {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

// declares tells whether the meta file has the line.
//
// A missing meta file is not an error; it just does not declare anything.
func declares(metaFile string, line string) (bool, error) {
	f, err := os.Open(metaFile)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == line {
			return true, nil
		}
	}
	return false, sc.Err()
}

// IncrementalDir returns the staging directory for incremental import of the study.
//
// The directory may not exist yet.
func IncrementalDir(root string, studyID string) (string, error) {
	if err := ValidateID(studyID); err != nil {
		return "", err
	}
	return filepath.Join(root, IncrementalImportDir, studyID), nil
}

// ValidateID rejects study ids which cannot be a single path element.
func ValidateID(studyID string) error {
	switch {
	case strings.TrimSpace(studyID) == "":
		return fmt.Errorf("%w: empty", ErrInvalidStudyID)
	case studyID == "." || studyID == "..":
		return fmt.Errorf("%w: %q", ErrInvalidStudyID, studyID)
	case strings.ContainsAny(studyID, `/\`), strings.ContainsRune(studyID, 0):
		return fmt.Errorf("%w: %q has a path separator", ErrInvalidStudyID, studyID)
	}
	return nil
}
