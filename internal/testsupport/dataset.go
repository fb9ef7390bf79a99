// Package testsupport provides helpers for building synthetic BIDS datasets
// in tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// NewBIDSDataset creates a temporary BIDS dataset containing the given
// root-relative file paths and returns its root directory. Parent
// directories are created as needed; each file holds a short placeholder.
func NewBIDSDataset(t *testing.T, files ...string) string {
	t.Helper()

	root := t.TempDir()
	description := filepath.Join(root, "dataset_description.json")
	if err := os.WriteFile(description, []byte(`{"Name": "test dataset", "BIDSVersion": "1.2.0"}`), 0o644); err != nil {
		t.Fatalf("failed to write dataset description: %v", err)
	}

	for _, file := range files {
		path := filepath.Join(root, filepath.FromSlash(file))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", file, err)
		}
		if err := os.WriteFile(path, []byte("synthetic image\n"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", file, err)
		}
	}
	return root
}
