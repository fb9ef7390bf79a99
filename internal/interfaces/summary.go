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

// SubjectSummary renders the subject/session reportlet: which files were
// found, which output spaces were requested, and whether surface
// reconstruction is part of the run.
type SubjectSummary struct {
	StdSpaces  []string
	NstdSpaces []string
}

func (s *SubjectSummary) InputFields() []string {
	return []string{"subjects_dir", "subject_id", "t1w", "t2w", "bold"}
}

func (s *SubjectSummary) OutputFields() []string { return []string{"out_report"} }

func (s *SubjectSummary) Run(ctx context.Context, in engine.Values) (engine.Values, error) {
	subjectID, _ := in["subject_id"].(string)
	t1w := stringList(in["t1w"])
	t2w := stringList(in["t2w"])
	bold := stringList(in["bold"])

	tasks := make(map[string]int)
	for _, run := range bold {
		task := bids.ParseEntities(run).Task
		if task == "" {
			task = "<none>"
		}
		tasks[task]++
	}
	var taskLines []string
	for task, count := range tasks {
		taskLines = append(taskLines, fmt.Sprintf("<li>Task %s: %d run(s)</li>", task, count))
	}

	var b strings.Builder
	b.WriteString("<h3>Subject summary</h3>\n<ul>\n")
	fmt.Fprintf(&b, "<li>Subject ID: %s</li>\n", subjectID)
	fmt.Fprintf(&b, "<li>Structural images: %d T1-weighted, %d T2-weighted</li>\n", len(t1w), len(t2w))
	fmt.Fprintf(&b, "<li>Functional series: %d</li>\n<ul>\n%s\n</ul>\n", len(bold), strings.Join(taskLines, "\n"))
	fmt.Fprintf(&b, "<li>Standard output spaces: %s</li>\n", strings.Join(s.StdSpaces, ", "))
	fmt.Fprintf(&b, "<li>Non-standard output spaces: %s</li>\n", strings.Join(s.NstdSpaces, ", "))
	if dir, ok := in["subjects_dir"].(string); ok && dir != "" {
		fmt.Fprintf(&b, "<li>FreeSurfer subjects directory: %s</li>\n", dir)
	} else {
		b.WriteString("<li>Surface reconstruction: not performed</li>\n")
	}
	b.WriteString("</ul>\n")

	report, err := writeReport(ctx, "summary.html", b.String())
	if err != nil {
		return nil, err
	}
	return engine.Values{"out_report": report}, nil
}

// AboutSummary renders the provenance reportlet: tool version and the exact
// command line of this run.
type AboutSummary struct {
	Version string
	Command string
}

func (a *AboutSummary) InputFields() []string  { return nil }
func (a *AboutSummary) OutputFields() []string { return []string{"out_report"} }

func (a *AboutSummary) Run(ctx context.Context, _ engine.Values) (engine.Values, error) {
	body := fmt.Sprintf("<h3>About</h3>\n<ul>\n<li>Version: %s</li>\n<li>Command: <code>%s</code></li>\n</ul>\n",
		a.Version, a.Command)
	report, err := writeReport(ctx, "about.html", body)
	if err != nil {
		return nil, err
	}
	return engine.Values{"out_report": report}, nil
}

// writeReport places a rendered reportlet in the node's scratch directory
// and returns its path.
func writeReport(ctx context.Context, name, body string) (string, error) {
	dir, err := engine.ScratchDir(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write reportlet %s: %w", name, err)
	}
	return path, nil
}

// stringList coerces a port value into a string slice, accepting a scalar
// string as a one-element list.
func stringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
