package interfaces

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/fmriprep-go/internal/engine"
)

// FreeSurferDir prepares the shared FreeSurfer subjects directory under the
// derivatives tree and provisions the requested template subjects. One
// instance serves every subject of the run.
type FreeSurferDir struct {
	// Derivatives is the run's output directory.
	Derivatives string
	// Spaces lists the surface template spaces to provision (fsaverage
	// variants plus fsnative when requested; fsnative needs no template).
	Spaces []string
	// FreesurferHome, when set, is the installation to copy template
	// subjects from.
	FreesurferHome string
}

func (f *FreeSurferDir) InputFields() []string  { return nil }
func (f *FreeSurferDir) OutputFields() []string { return []string{"subjects_dir"} }

func (f *FreeSurferDir) Run(_ context.Context, _ engine.Values) (engine.Values, error) {
	subjectsDir := filepath.Join(f.Derivatives, "freesurfer")
	if err := os.MkdirAll(subjectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create subjects directory: %w", err)
	}

	for _, space := range f.Spaces {
		if space == "fsnative" {
			continue
		}
		target := filepath.Join(subjectsDir, space)
		if _, err := os.Stat(target); err == nil {
			continue
		}
		source := filepath.Join(f.FreesurferHome, "subjects", space)
		if info, err := os.Stat(source); err == nil && info.IsDir() {
			if err := copyTree(source, target); err != nil {
				return nil, fmt.Errorf("failed to provision template subject %s: %w", space, err)
			}
			continue
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, fmt.Errorf("failed to provision template subject %s: %w", space, err)
		}
	}

	return engine.Values{"subjects_dir": subjectsDir}, nil
}

// copyTree duplicates a directory tree, following the layout of the source.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, contents, 0o644)
	})
}
