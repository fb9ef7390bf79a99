package bids

import (
	"path/filepath"
	"strings"
)

// Entities are the key-value fields parsed from a BIDS file name, e.g.
// sub-01_ses-2_task-rest_run-1_bold.nii.gz.
type Entities struct {
	Subject     string
	Session     string
	Task        string
	Acquisition string
	Run         string
	Echo        string
	// Suffix is the trailing modality label, e.g. "T1w" or "bold".
	Suffix string
}

// ParseEntities extracts the entities from a file path. Unknown key-value
// pairs are ignored; the last underscore-separated segment becomes the
// suffix.
func ParseEntities(path string) Entities {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".nii")

	var e Entities
	segments := strings.Split(name, "_")
	for i, segment := range segments {
		key, value, found := strings.Cut(segment, "-")
		if !found {
			if i == len(segments)-1 {
				e.Suffix = segment
			}
			continue
		}
		switch key {
		case "sub":
			e.Subject = value
		case "ses":
			e.Session = value
		case "task":
			e.Task = value
		case "acq":
			e.Acquisition = value
		case "run":
			e.Run = value
		case "echo":
			e.Echo = value
		}
	}
	return e
}
