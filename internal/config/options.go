package config

import (
	"errors"
	"fmt"
)

// Options is the complete run-wide option set consumed by the workflow
// builders. Fields are grouped the way the command line exposes them; every
// field is a primitive or a simple container so the builders stay decoupled
// from the CLI and config-file layers.
type Options struct {
	// Dataset and output locations.
	BIDSDir   string
	OutputDir string
	WorkDir   string

	// Participant selection.
	SubjectList []string
	TaskID      string
	EchoIdx     int // 0 selects all echoes

	// Workflow toggles.
	AnatOnly     bool
	Debug        bool
	FreeSurfer   bool
	Hires        bool
	Longitudinal bool
	LowMem       bool
	Ignore       []string // steps to skip: "slicetiming", "fieldmaps"

	// Resource budget.
	OmpNthreads int
	Nprocs      int
	MemoryGB    float64 // 0 disables the memory budget

	// Output spaces and skull-stripping.
	OutputSpaces        OutputSpaces
	SkullStripTemplate  Space
	SkullStripFixedSeed bool

	// BOLD-to-T1w registration and distortion correction.
	BoldToT1wDOF int
	UseBBR       *bool // nil means decide from the registration result
	UseSyn       bool
	ForceSyn     bool
	FmapBspline  bool
	FmapDemean   bool
	T2sCoreg     bool
	DummyScans   *int // nil means auto-detect

	// Confounds and ICA-AROMA.
	RegressorsAllComps bool
	RegressorsDVARSTh  float64
	RegressorsFDTh     float64
	UseAroma           bool
	AromaMelodicDim    int
	ErrOnAromaWarn     bool

	// Surface outputs.
	CiftiOutput      bool
	MedialSurfaceNaN bool

	// Unique identifier for this execution instance.
	RunUUID string
}

// DefaultOptions returns an Options populated with the documented defaults.
// Dataset locations and the subject list must still be filled in by the
// caller.
func DefaultOptions() *Options {
	return &Options{
		FreeSurfer:   true,
		Hires:        true,
		FmapDemean:   true,
		OmpNthreads:  1,
		Nprocs:       1,
		BoldToT1wDOF: 6,
		OutputSpaces: OutputSpaces{
			{Name: "MNI152NLin2009cAsym", Modifiers: map[string]string{}},
		},
		SkullStripTemplate: Space{Name: "OASIS30ANTs", Modifiers: map[string]string{}},
		RegressorsDVARSTh:  1.5,
		RegressorsFDTh:     0.5,
		AromaMelodicDim:    -200,
	}
}

// Validate checks the option set for internal consistency. It returns the
// first problem found.
func (o *Options) Validate() error {
	if o.BIDSDir == "" {
		return errors.New("bids directory is required")
	}
	if o.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if o.WorkDir == "" {
		return errors.New("work directory is required")
	}
	if len(o.SubjectList) == 0 {
		return errors.New("at least one participant label is required")
	}
	if o.OmpNthreads < 1 {
		return fmt.Errorf("omp-nthreads must be positive, got %d", o.OmpNthreads)
	}
	if o.Nprocs < 1 {
		return fmt.Errorf("nprocs must be positive, got %d", o.Nprocs)
	}
	if o.EchoIdx < 0 {
		return fmt.Errorf("echo-idx must not be negative, got %d", o.EchoIdx)
	}
	switch o.BoldToT1wDOF {
	case 6, 9, 12:
	default:
		return fmt.Errorf("bold2t1w-dof must be 6, 9 or 12, got %d", o.BoldToT1wDOF)
	}
	if len(o.OutputSpaces) == 0 {
		return errors.New("at least one output space is required")
	}
	if o.SkullStripTemplate.Name == "" {
		return errors.New("skull-strip template is required")
	}
	for _, step := range o.Ignore {
		switch step {
		case "slicetiming", "fieldmaps":
		default:
			return fmt.Errorf("unknown ignore step %q", step)
		}
	}
	return nil
}
