package interfaces

import (
	"context"

	"github.com/vk/fmriprep-go/internal/bids"
	"github.com/vk/fmriprep-go/internal/engine"
)

// BIDSDataGrabber exposes a subject's pre-collected file lists as output
// ports. Discovery happens at build time; the node only hands the lists to
// its downstream consumers.
type BIDSDataGrabber struct {
	SubjectData *bids.SubjectData
	AnatOnly    bool
}

func (g *BIDSDataGrabber) InputFields() []string { return nil }

func (g *BIDSDataGrabber) OutputFields() []string {
	return []string{"t1w", "t2w", "bold", "sbref", "roi", "flair", "fmap"}
}

func (g *BIDSDataGrabber) Run(_ context.Context, _ engine.Values) (engine.Values, error) {
	out := engine.Values{
		"t1w":   g.SubjectData.T1w,
		"t2w":   g.SubjectData.T2w,
		"sbref": g.SubjectData.Sbref,
		"roi":   g.SubjectData.ROI,
		"flair": g.SubjectData.Flair,
		"fmap":  g.SubjectData.Fmap,
	}
	if !g.AnatOnly {
		out["bold"] = g.SubjectData.Bold
	}
	return out, nil
}

// BIDSInfo parses the BIDS entities out of a single file name.
type BIDSInfo struct {
	BIDSDir string
}

func (b *BIDSInfo) InputFields() []string { return []string{"in_file"} }

func (b *BIDSInfo) OutputFields() []string {
	return []string{"subject", "session", "task", "acquisition", "run", "echo"}
}

func (b *BIDSInfo) Run(_ context.Context, in engine.Values) (engine.Values, error) {
	path, _ := in["in_file"].(string)
	e := bids.ParseEntities(path)
	return engine.Values{
		"subject":     e.Subject,
		"session":     e.Session,
		"task":        e.Task,
		"acquisition": e.Acquisition,
		"run":         e.Run,
		"echo":        e.Echo,
	}, nil
}
