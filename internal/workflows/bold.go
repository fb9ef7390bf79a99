package workflows

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/fmriprep-go/internal/config"
	"github.com/vk/fmriprep-go/internal/engine"
	"github.com/vk/fmriprep-go/internal/interfaces"
)

// FuncPreprocConfig parameterizes one functional sub-workflow. One instance
// is built per BOLD series.
type FuncPreprocConfig struct {
	AromaMelodicDim    int
	BoldFile           string
	BoldToT1wDOF       int
	CiftiOutput        bool
	Debug              bool
	DummyScans         *int
	ErrOnAromaWarn     bool
	FmapBspline        bool
	FmapDemean         bool
	ForceSyn           bool
	FreeSurfer         bool
	Ignore             []string
	LowMem             bool
	MedialSurfaceNaN   bool
	NumBold            int
	OmpNthreads        int
	OutputDir          string
	OutputSpaces       config.OutputSpaces
	RegressorsAllComps bool
	RegressorsDVARSTh  float64
	RegressorsFDTh     float64
	ReportletsDir      string
	T2sCoreg           bool
	UseAroma           bool
	UseBBR             *bool
	UseSyn             bool
}

// funcInputFields is the functional sub-workflow's input port contract: the
// anatomical outputs every BOLD series consumes.
var funcInputFields = []string{
	"t1_preproc", "t1_brain", "t1_mask", "t1_seg", "t1_aseg", "t1_aparc",
	"t1_tpms", "template", "anat2std_xfm", "std2anat_xfm",
	"joint_template", "joint_anat2std_xfm", "joint_std2anat_xfm",
	"subjects_dir", "subject_id",
	"t1_2_fsnative_forward_transform", "t1_2_fsnative_reverse_transform",
}

// InitFuncPreprocWF builds the preprocessing sub-workflow for a single BOLD
// series: reference estimation, optional slice-timing correction,
// registration to the subject's anatomy, confound extraction, and the
// functional reportlet.
func InitFuncPreprocWF(cfg *FuncPreprocConfig) (*engine.Workflow, error) {
	wf := engine.NewWorkflow(funcWorkflowName(cfg.BoldFile))

	inputnode := engine.NewNode("inputnode", interfaces.NewIdentity(funcInputFields...))
	outputnode := engine.NewNode("outputnode", interfaces.NewIdentity(
		"bold_t1", "bold_mask_t1", "bold_std", "confounds"))

	// The BOLD series is a build-time parameter, exposed as a port so the
	// sink and the reference stage share one source of truth.
	boldSrc := engine.NewNode("bold_src", interfaces.NewFunction(
		nil, []string{"bold_file"},
		func(_ context.Context, _ engine.Values) (engine.Values, error) {
			return engine.Values{"bold_file": cfg.BoldFile}, nil
		}))

	boldReference := engine.NewNode("bold_reference", interfaces.NewFunction(
		[]string{"bold_file"}, []string{"bold_ref"},
		func(ctx context.Context, in engine.Values) (engine.Values, error) {
			boldFile, _ := in["bold_file"].(string)
			lines := []string{
				"stage: bold_reference",
				"source: " + boldFile,
			}
			if cfg.DummyScans != nil {
				lines = append(lines, fmt.Sprintf("dummy_scans: %d", *cfg.DummyScans))
			}
			ref, err := writeArtifact(ctx, "bold_ref.nii.gz", lines...)
			if err != nil {
				return nil, err
			}
			return engine.Values{"bold_ref": ref}, nil
		}))

	boldReg := engine.NewNode("bold_reg", interfaces.NewFunction(
		[]string{"bold_ref", "t1_brain", "t1_mask"},
		[]string{"bold_t1", "bold_mask_t1"},
		func(ctx context.Context, in engine.Values) (engine.Values, error) {
			ref, _ := in["bold_ref"].(string)
			brain, _ := in["t1_brain"].(string)
			bbr := "auto"
			if cfg.UseBBR != nil {
				bbr = fmt.Sprintf("%v", *cfg.UseBBR)
			}
			provenance := []string{
				"stage: bold_reg",
				"source: " + ref,
				"target: " + brain,
				fmt.Sprintf("dof: %d", cfg.BoldToT1wDOF),
				"use_bbr: " + bbr,
			}
			boldT1, err := writeArtifact(ctx, "bold_t1.nii.gz", provenance...)
			if err != nil {
				return nil, err
			}
			maskT1, err := writeArtifact(ctx, "bold_mask_t1.nii.gz", provenance...)
			if err != nil {
				return nil, err
			}
			return engine.Values{"bold_t1": boldT1, "bold_mask_t1": maskT1}, nil
		}))

	boldStd := engine.NewNode("bold_std", interfaces.NewFunction(
		[]string{"bold_t1", "joint_template", "joint_anat2std_xfm"},
		[]string{"bold_std"},
		func(ctx context.Context, in engine.Values) (engine.Values, error) {
			boldT1, _ := in["bold_t1"].(string)
			templates, _ := in["joint_template"].([]string)
			var resampled []string
			for _, space := range templates {
				artifact, err := writeArtifact(ctx, "bold_"+space+".nii.gz",
					"stage: bold_std", "space: "+space, "source: "+boldT1)
				if err != nil {
					return nil, err
				}
				resampled = append(resampled, artifact)
			}
			return engine.Values{"bold_std": resampled}, nil
		}))

	boldConfounds := engine.NewNode("bold_confounds", interfaces.NewFunction(
		[]string{"bold_t1", "t1_mask", "t1_tpms"},
		[]string{"confounds", "out_report"},
		func(ctx context.Context, in engine.Values) (engine.Values, error) {
			boldT1, _ := in["bold_t1"].(string)
			confounds, err := writeArtifact(ctx, "confounds.tsv",
				"stage: bold_confounds",
				"source: "+boldT1,
				fmt.Sprintf("dvars_th: %g", cfg.RegressorsDVARSTh),
				fmt.Sprintf("fd_th: %g", cfg.RegressorsFDTh),
				fmt.Sprintf("all_comps: %v", cfg.RegressorsAllComps))
			if err != nil {
				return nil, err
			}
			report, err := writeArtifact(ctx, "bold_report.html",
				"<h3>Functional preprocessing</h3>",
				"<p>Series: "+cfg.BoldFile+"</p>")
			if err != nil {
				return nil, err
			}
			return engine.Values{"confounds": confounds, "out_report": report}, nil
		}))

	dsReportBold := engine.NewNode("ds_report_bold", &interfaces.DerivativesDataSink{
		BaseDirectory: cfg.ReportletsDir,
		Desc:          "bold",
		OutPathBase:   "fmriprep",
	})
	dsReportBold.RunWithoutSubmitting = true
	dsReportBold.MemGB = config.DefaultMemoryMinGB

	nodes := []*engine.Node{
		inputnode, boldSrc, boldReference, boldReg, boldStd, boldConfounds,
		dsReportBold, outputnode,
	}

	var boldSTC *engine.Node
	if !contains(cfg.Ignore, "slicetiming") {
		boldSTC = engine.NewNode("bold_stc", interfaces.NewFunction(
			[]string{"bold_ref"}, []string{"bold_stc"},
			func(ctx context.Context, in engine.Values) (engine.Values, error) {
				ref, _ := in["bold_ref"].(string)
				stc, err := writeArtifact(ctx, "bold_stc.nii.gz",
					"stage: bold_stc", "source: "+ref)
				if err != nil {
					return nil, err
				}
				return engine.Values{"bold_stc": stc}, nil
			}))
		nodes = append(nodes, boldSTC)
	}

	for _, n := range nodes {
		if err := wf.AddNode(n); err != nil {
			return nil, err
		}
	}

	c := &connector{wf: wf}
	c.connect("bold_src", "bold_file", "bold_reference", "bold_file")
	c.connect("bold_reference", "bold_ref", "bold_reg", "bold_ref")
	c.connect("inputnode", "t1_brain", "bold_reg", "t1_brain")
	c.connect("inputnode", "t1_mask", "bold_reg", "t1_mask")
	c.connect("bold_reg", "bold_t1", "bold_std", "bold_t1")
	c.connect("inputnode", "joint_template", "bold_std", "joint_template")
	c.connect("inputnode", "joint_anat2std_xfm", "bold_std", "joint_anat2std_xfm")
	c.connect("bold_reg", "bold_t1", "bold_confounds", "bold_t1")
	c.connect("inputnode", "t1_mask", "bold_confounds", "t1_mask")
	c.connect("inputnode", "t1_tpms", "bold_confounds", "t1_tpms")
	c.connect("bold_confounds", "out_report", "ds_report_bold", "in_file")
	c.connect("bold_src", "bold_file", "ds_report_bold", "source_file")
	if boldSTC != nil {
		c.connect("bold_reference", "bold_ref", "bold_stc", "bold_ref")
	}
	c.connect("bold_reg", "bold_t1", "outputnode", "bold_t1")
	c.connect("bold_reg", "bold_mask_t1", "outputnode", "bold_mask_t1")
	c.connect("bold_std", "bold_std", "outputnode", "bold_std")
	c.connect("bold_confounds", "confounds", "outputnode", "confounds")
	if c.err != nil {
		return nil, c.err
	}

	return wf, nil
}

// funcWorkflowName derives the sub-workflow name from the BOLD file name,
// dropping the subject entity: sub-01_task-rest_run-1_bold.nii.gz becomes
// func_preproc_task_rest_run_1_wf.
func funcWorkflowName(boldFile string) string {
	name := filepath.Base(boldFile)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".nii")

	segments := strings.Split(name, "_")
	if len(segments) > 1 {
		segments = segments[1:]
	}
	name = strings.Join(segments, "_")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, " ", "")
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.TrimSuffix(name, "_bold")

	return "func_preproc_" + name + "_wf"
}

func contains(list []string, item string) bool {
	for _, entry := range list {
		if entry == item {
			return true
		}
	}
	return false
}
