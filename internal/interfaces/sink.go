package interfaces

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/fmriprep-go/internal/bids"
	"github.com/vk/fmriprep-go/internal/engine"
)

// DerivativesDataSink files a produced artifact into the derivatives tree,
// named after the source file it documents plus a desc- label.
//
// OutPathBase selects the namespace directory under the base. Sub-workflow
// factories construct sinks under their own namespace; the subject-level
// builder re-labels every ds_* node to the pipeline's namespace after
// assembly.
type DerivativesDataSink struct {
	BaseDirectory string
	Desc          string
	OutPathBase   string
}

func (d *DerivativesDataSink) InputFields() []string {
	return []string{"in_file", "source_file"}
}

func (d *DerivativesDataSink) OutputFields() []string { return []string{"out_file"} }

func (d *DerivativesDataSink) Run(_ context.Context, in engine.Values) (engine.Values, error) {
	inFile, _ := in["in_file"].(string)
	sourceFile, _ := in["source_file"].(string)
	if inFile == "" {
		return nil, fmt.Errorf("derivatives sink received no in_file")
	}
	if sourceFile == "" {
		return nil, fmt.Errorf("derivatives sink received no source_file")
	}

	e := bids.ParseEntities(sourceFile)
	if e.Subject == "" {
		return nil, fmt.Errorf("source file %s carries no subject entity", sourceFile)
	}

	destDir := filepath.Join(d.BaseDirectory, d.OutPathBase, "sub-"+e.Subject, "figures")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory: %w", err)
	}

	destName := derivedName(sourceFile, d.Desc, filepath.Ext(inFile))
	destPath := filepath.Join(destDir, destName)

	contents, err := os.ReadFile(inFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", inFile, err)
	}
	if err := os.WriteFile(destPath, contents, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return engine.Values{"out_file": destPath}, nil
}

// derivedName builds the destination file name: the source base name with
// its imaging extension stripped, a desc- entity appended before the
// suffix, and the artifact's own extension.
func derivedName(sourceFile, desc, ext string) string {
	base := filepath.Base(sourceFile)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".nii")

	if desc == "" {
		return base + ext
	}

	// Insert desc- before the trailing suffix segment when one exists.
	if idx := strings.LastIndex(base, "_"); idx >= 0 {
		return base[:idx] + "_desc-" + desc + base[idx:] + ext
	}
	return base + "_desc-" + desc + ext
}
