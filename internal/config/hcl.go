package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// optionsFile mirrors the top-level structure of a run-config file: a single
// options block.
type optionsFile struct {
	Options *optionsBlock `hcl:"options,block"`
}

// optionsBlock lists the attributes a run-config file may set. Every
// attribute is optional so a file only overrides what it names; unset
// attributes leave the caller's defaults untouched.
type optionsBlock struct {
	BIDSDir   *string `hcl:"bids_dir,optional"`
	OutputDir *string `hcl:"output_dir,optional"`
	WorkDir   *string `hcl:"work_dir,optional"`

	ParticipantLabels []string `hcl:"participant_labels,optional"`
	TaskID            *string  `hcl:"task_id,optional"`
	EchoIdx           *int     `hcl:"echo_idx,optional"`

	AnatOnly     *bool    `hcl:"anat_only,optional"`
	Debug        *bool    `hcl:"debug,optional"`
	FreeSurfer   *bool    `hcl:"freesurfer,optional"`
	Hires        *bool    `hcl:"hires,optional"`
	Longitudinal *bool    `hcl:"longitudinal,optional"`
	LowMem       *bool    `hcl:"low_mem,optional"`
	Ignore       []string `hcl:"ignore,optional"`

	OmpNthreads *int     `hcl:"omp_nthreads,optional"`
	Nprocs      *int     `hcl:"nprocs,optional"`
	MemoryGB    *float64 `hcl:"memory_gb,optional"`

	OutputSpaces        *string `hcl:"output_spaces,optional"`
	SkullStripTemplate  *string `hcl:"skull_strip_template,optional"`
	SkullStripFixedSeed *bool   `hcl:"skull_strip_fixed_seed,optional"`

	BoldToT1wDOF *int  `hcl:"bold2t1w_dof,optional"`
	UseBBR       *bool `hcl:"use_bbr,optional"`
	UseSyn       *bool `hcl:"use_syn,optional"`
	ForceSyn     *bool `hcl:"force_syn,optional"`
	FmapBspline  *bool `hcl:"fmap_bspline,optional"`
	FmapDemean   *bool `hcl:"fmap_demean,optional"`
	T2sCoreg     *bool `hcl:"t2s_coreg,optional"`
	DummyScans   *int  `hcl:"dummy_scans,optional"`

	RegressorsAllComps *bool    `hcl:"regressors_all_comps,optional"`
	RegressorsDVARSTh  *float64 `hcl:"regressors_dvars_th,optional"`
	RegressorsFDTh     *float64 `hcl:"regressors_fd_th,optional"`
	UseAroma           *bool    `hcl:"use_aroma,optional"`
	AromaMelodicDim    *int     `hcl:"aroma_melodic_dim,optional"`
	ErrOnAromaWarn     *bool    `hcl:"err_on_aroma_warn,optional"`

	CiftiOutput      *bool `hcl:"cifti_output,optional"`
	MedialSurfaceNaN *bool `hcl:"medial_surface_nan,optional"`
}

// LoadHCL reads an HCL run-config file and applies the attributes it sets
// onto opts. Expressions in the file may reference process environment
// variables through the env namespace, e.g. bids_dir = env.BIDS_DIR.
func LoadHCL(path string, opts *Options) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse run config %s: %w", path, diags)
	}

	var decoded optionsFile
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &decoded); diags.HasErrors() {
		return fmt.Errorf("failed to decode run config %s: %w", path, diags)
	}
	if decoded.Options == nil {
		return fmt.Errorf("run config %s contains no options block", path)
	}

	return decoded.Options.apply(opts)
}

// evalContext builds the expression scope for run-config files: a single
// env object holding the process environment.
func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			continue
		}
		env[key] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(env)},
	}
}

func (b *optionsBlock) apply(opts *Options) error {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&opts.BIDSDir, b.BIDSDir)
	setString(&opts.OutputDir, b.OutputDir)
	setString(&opts.WorkDir, b.WorkDir)
	if b.ParticipantLabels != nil {
		opts.SubjectList = b.ParticipantLabels
	}
	setString(&opts.TaskID, b.TaskID)
	setInt(&opts.EchoIdx, b.EchoIdx)

	setBool(&opts.AnatOnly, b.AnatOnly)
	setBool(&opts.Debug, b.Debug)
	setBool(&opts.FreeSurfer, b.FreeSurfer)
	setBool(&opts.Hires, b.Hires)
	setBool(&opts.Longitudinal, b.Longitudinal)
	setBool(&opts.LowMem, b.LowMem)
	if b.Ignore != nil {
		opts.Ignore = b.Ignore
	}

	setInt(&opts.OmpNthreads, b.OmpNthreads)
	setInt(&opts.Nprocs, b.Nprocs)
	setFloat(&opts.MemoryGB, b.MemoryGB)

	if b.OutputSpaces != nil {
		spaces, err := ParseSpaces(*b.OutputSpaces)
		if err != nil {
			return fmt.Errorf("invalid output_spaces: %w", err)
		}
		opts.OutputSpaces = spaces
	}
	if b.SkullStripTemplate != nil {
		spaces, err := ParseSpaces(*b.SkullStripTemplate)
		if err != nil || len(spaces) != 1 {
			return fmt.Errorf("skull_strip_template must name exactly one template: %q", *b.SkullStripTemplate)
		}
		opts.SkullStripTemplate = spaces[0]
	}
	setBool(&opts.SkullStripFixedSeed, b.SkullStripFixedSeed)

	setInt(&opts.BoldToT1wDOF, b.BoldToT1wDOF)
	if b.UseBBR != nil {
		opts.UseBBR = b.UseBBR
	}
	setBool(&opts.UseSyn, b.UseSyn)
	setBool(&opts.ForceSyn, b.ForceSyn)
	setBool(&opts.FmapBspline, b.FmapBspline)
	setBool(&opts.FmapDemean, b.FmapDemean)
	setBool(&opts.T2sCoreg, b.T2sCoreg)
	if b.DummyScans != nil {
		opts.DummyScans = b.DummyScans
	}

	setBool(&opts.RegressorsAllComps, b.RegressorsAllComps)
	setFloat(&opts.RegressorsDVARSTh, b.RegressorsDVARSTh)
	setFloat(&opts.RegressorsFDTh, b.RegressorsFDTh)
	setBool(&opts.UseAroma, b.UseAroma)
	setInt(&opts.AromaMelodicDim, b.AromaMelodicDim)
	setBool(&opts.ErrOnAromaWarn, b.ErrOnAromaWarn)

	setBool(&opts.CiftiOutput, b.CiftiOutput)
	setBool(&opts.MedialSurfaceNaN, b.MedialSurfaceNaN)

	return nil
}
