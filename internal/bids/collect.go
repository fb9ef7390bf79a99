package bids

import (
	"sort"
	"strconv"
)

// SubjectData is one subject's discovered input files, partitioned by
// modality. Discovery happens once per run; the struct is treated as
// immutable afterward.
type SubjectData struct {
	T1w   []string
	T2w   []string
	Bold  []string
	Sbref []string
	ROI   []string
	Flair []string
	Fmap  []string
}

// Collect gathers the indexed files for one subject and partitions them by
// modality. A non-empty taskID restricts functional runs (BOLD and
// single-band references) to that task; a positive echoIdx restricts BOLD
// runs to that echo in multi-echo series.
func Collect(layout *Layout, subjectID, taskID string, echoIdx int) *SubjectData {
	data := &SubjectData{}

	for _, path := range layout.subjectFiles(subjectID) {
		e := ParseEntities(path)
		switch e.Suffix {
		case "T1w":
			data.T1w = append(data.T1w, path)
		case "T2w":
			data.T2w = append(data.T2w, path)
		case "FLAIR":
			data.Flair = append(data.Flair, path)
		case "roi":
			data.ROI = append(data.ROI, path)
		case "bold":
			if taskID != "" && e.Task != taskID {
				continue
			}
			if echoIdx > 0 && e.Echo != strconv.Itoa(echoIdx) {
				continue
			}
			data.Bold = append(data.Bold, path)
		case "sbref":
			if taskID != "" && e.Task != taskID {
				continue
			}
			data.Sbref = append(data.Sbref, path)
		case "phasediff", "phase1", "phase2", "magnitude", "magnitude1", "magnitude2", "fieldmap", "epi":
			data.Fmap = append(data.Fmap, path)
		}
	}

	sort.Strings(data.T1w)
	sort.Strings(data.T2w)
	sort.Strings(data.Bold)
	sort.Strings(data.Sbref)
	sort.Strings(data.ROI)
	sort.Strings(data.Flair)
	sort.Strings(data.Fmap)
	return data
}
