package bids

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/fmriprep-go/internal/fsutil"
)

// Layout is an indexed view of a BIDS dataset: the root directory plus the
// NIfTI files discovered under it. Derivative and source trees are not
// indexed.
type Layout struct {
	Root  string
	files []string
}

// NewLayout indexes the dataset rooted at the given directory.
func NewLayout(root string) (*Layout, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access BIDS root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("BIDS root %s is not a directory", root)
	}

	files, err := fsutil.FindFilesBySuffix(root, []string{".nii", ".nii.gz"}, "derivatives", "sourcedata", "code")
	if err != nil {
		return nil, fmt.Errorf("failed to index BIDS dataset at %s: %w", root, err)
	}

	return &Layout{Root: root, files: files}, nil
}

// Files returns every indexed file path in lexical order.
func (l *Layout) Files() []string {
	files := make([]string, len(l.files))
	copy(files, l.files)
	return files
}

// Subjects returns the sorted, de-duplicated subject labels present in the
// index.
func (l *Layout) Subjects() []string {
	seen := make(map[string]bool)
	var subjects []string
	for _, path := range l.files {
		e := ParseEntities(path)
		if e.Subject != "" && !seen[e.Subject] {
			seen[e.Subject] = true
			subjects = append(subjects, e.Subject)
		}
	}
	return subjects
}

// subjectFiles returns the indexed files belonging to one subject label.
func (l *Layout) subjectFiles(subjectID string) []string {
	label := strings.TrimPrefix(subjectID, "sub-")
	var files []string
	for _, path := range l.files {
		if ParseEntities(path).Subject == label {
			files = append(files, path)
		}
	}
	return files
}

// FixMultiT1wSourceName derives the canonical source name for a subject with
// one or more T1-weighted images: the directory of the first image joined
// with the plain sub-<label>_T1w file name. The input may be a single path
// or a list of paths; it is exposed as an edge transform.
func FixMultiT1wSourceName(in any) any {
	var first string
	switch v := in.(type) {
	case string:
		first = v
	case []string:
		if len(v) == 0 {
			return ""
		}
		first = v[0]
	default:
		return ""
	}
	subject := ParseEntities(first).Subject
	return filepath.Join(filepath.Dir(first), fmt.Sprintf("sub-%s_T1w.nii.gz", subject))
}
