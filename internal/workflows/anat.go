package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/fmriprep-go/internal/bids"
	"github.com/vk/fmriprep-go/internal/config"
	"github.com/vk/fmriprep-go/internal/engine"
	"github.com/vk/fmriprep-go/internal/interfaces"
)

// AnatPreprocConfig parameterizes the anatomical sub-workflow.
type AnatPreprocConfig struct {
	BIDSRoot            string
	Debug               bool
	FreeSurfer          bool
	Hires               bool
	Longitudinal        bool
	NumT1w              int
	OmpNthreads         int
	OutputDir           string
	OutputSpaces        config.OutputSpaces // standard (template-based) spaces only
	ReportletsDir       string
	SkullStripFixedSeed bool
	SkullStripTemplate  config.Space
}

// anatOutputFields is the anatomical sub-workflow's output port contract,
// consumed verbatim by every functional sub-workflow.
var anatOutputFields = []string{
	"t1_preproc", "t1_brain", "t1_mask", "t1_seg", "t1_aseg", "t1_aparc",
	"t1_tpms", "template", "forward_transform", "reverse_transform",
	"joint_template", "joint_forward_transform", "joint_reverse_transform",
	"subjects_dir", "subject_id",
	"t1_2_fsnative_forward_transform", "t1_2_fsnative_reverse_transform",
}

// InitAnatPreprocWF builds the anatomical preprocessing sub-workflow:
// template construction over the subject's T1-weighted images, brain
// extraction, tissue segmentation, spatial normalization to the requested
// standard spaces, and (optionally) surface reconstruction outputs.
//
// The surface-reconstruction ports of the output node stay unconnected when
// FreeSurfer is disabled; downstream consumers tolerate the absent values.
func InitAnatPreprocWF(name string, cfg *AnatPreprocConfig) (*engine.Workflow, error) {
	wf := engine.NewWorkflow(name)

	inputnode := engine.NewNode("inputnode", interfaces.NewIdentity(
		"t1w", "t2w", "roi", "flair", "subjects_dir", "subject_id"))
	outputnode := engine.NewNode("outputnode", interfaces.NewIdentity(anatOutputFields...))

	anatTemplate := engine.NewNode("anat_template", interfaces.NewFunction(
		[]string{"t1w"}, []string{"t1_preproc", "t1_template"},
		func(ctx context.Context, in engine.Values) (engine.Values, error) {
			t1w, _ := in["t1w"].([]string)
			if len(t1w) == 0 {
				return nil, fmt.Errorf("anatomical template stage received no T1w images")
			}
			var preproc []string
			for i := range t1w {
				artifact, err := writeArtifact(ctx, fmt.Sprintf("t1_conformed_%d.nii.gz", i),
					"stage: anat_template",
					"source: "+t1w[i],
					fmt.Sprintf("num_t1w: %d", cfg.NumT1w),
					fmt.Sprintf("longitudinal: %v", cfg.Longitudinal))
				if err != nil {
					return nil, err
				}
				preproc = append(preproc, artifact)
			}
			return engine.Values{"t1_preproc": preproc, "t1_template": preproc[0]}, nil
		}))

	skullstrip := engine.NewNode("skullstrip", interfaces.NewFunction(
		[]string{"t1_template"}, []string{"t1_brain", "t1_mask"},
		func(ctx context.Context, in engine.Values) (engine.Values, error) {
			template, _ := in["t1_template"].(string)
			provenance := []string{
				"stage: skullstrip",
				"source: " + template,
				"template: " + cfg.SkullStripTemplate.Name,
				fmt.Sprintf("fixed_seed: %v", cfg.SkullStripFixedSeed),
				fmt.Sprintf("omp_nthreads: %d", cfg.OmpNthreads),
			}
			brain, err := writeArtifact(ctx, "t1_brain.nii.gz", provenance...)
			if err != nil {
				return nil, err
			}
			mask, err := writeArtifact(ctx, "t1_mask.nii.gz", provenance...)
			if err != nil {
				return nil, err
			}
			return engine.Values{"t1_brain": brain, "t1_mask": mask}, nil
		}))

	segment := engine.NewNode("segment", interfaces.NewFunction(
		[]string{"t1_brain"}, []string{"t1_seg", "t1_tpms"},
		func(ctx context.Context, in engine.Values) (engine.Values, error) {
			brain, _ := in["t1_brain"].(string)
			seg, err := writeArtifact(ctx, "t1_seg.nii.gz", "stage: segment", "source: "+brain)
			if err != nil {
				return nil, err
			}
			var tpms []string
			for _, tissue := range []string{"csf", "gm", "wm"} {
				tpm, err := writeArtifact(ctx, "t1_tpm_"+tissue+".nii.gz",
					"stage: segment", "tissue: "+tissue, "source: "+brain)
				if err != nil {
					return nil, err
				}
				tpms = append(tpms, tpm)
			}
			return engine.Values{"t1_seg": seg, "t1_tpms": tpms}, nil
		}))

	normalize := engine.NewNode("normalize", interfaces.NewFunction(
		[]string{"t1_brain"},
		[]string{"template", "forward_transform", "reverse_transform",
			"joint_template", "joint_forward_transform", "joint_reverse_transform"},
		func(ctx context.Context, in engine.Values) (engine.Values, error) {
			brain, _ := in["t1_brain"].(string)
			names := cfg.OutputSpaces.Names()
			var jointTemplates []string
			var forwards, reverses []string
			for _, space := range names {
				fwd, err := writeArtifact(ctx, "anat2"+space+"_xfm.h5",
					"stage: normalize", "space: "+space, "source: "+brain)
				if err != nil {
					return nil, err
				}
				rev, err := writeArtifact(ctx, space+"2anat_xfm.h5",
					"stage: normalize", "space: "+space, "source: "+brain)
				if err != nil {
					return nil, err
				}
				jointTemplates = append(jointTemplates, space)
				forwards = append(forwards, fwd)
				reverses = append(reverses, rev)
			}
			out := engine.Values{
				"joint_template":          jointTemplates,
				"joint_forward_transform": forwards,
				"joint_reverse_transform": reverses,
			}
			// The first requested space is the primary one.
			if len(names) > 0 {
				out["template"] = names[0]
				out["forward_transform"] = forwards[0]
				out["reverse_transform"] = reverses[0]
			}
			return out, nil
		}))

	anatReport := engine.NewNode("anat_report", interfaces.NewFunction(
		[]string{"t1_seg"}, []string{"out_report"},
		func(ctx context.Context, in engine.Values) (engine.Values, error) {
			seg, _ := in["t1_seg"].(string)
			report, err := writeArtifact(ctx, "anat_report.html",
				"<h3>Anatomical preprocessing</h3>",
				"<p>Segmentation: "+seg+"</p>")
			if err != nil {
				return nil, err
			}
			return engine.Values{"out_report": report}, nil
		}))

	// Sinks constructed here default to the anatomical namespace; the
	// subject-level builder re-labels them after assembly.
	dsAnatReport := engine.NewNode("ds_anat_report", &interfaces.DerivativesDataSink{
		BaseDirectory: cfg.ReportletsDir,
		Desc:          "seg",
		OutPathBase:   "smriprep",
	})
	dsAnatReport.RunWithoutSubmitting = true
	dsAnatReport.MemGB = config.DefaultMemoryMinGB

	nodes := []*engine.Node{inputnode, anatTemplate, skullstrip, segment, normalize, anatReport, dsAnatReport, outputnode}

	var surfaceRecon *engine.Node
	if cfg.FreeSurfer {
		surfaceRecon = engine.NewNode("surface_recon", interfaces.NewFunction(
			[]string{"t1_brain", "subjects_dir", "subject_id"},
			[]string{"t1_aseg", "t1_aparc",
				"t1_2_fsnative_forward_transform", "t1_2_fsnative_reverse_transform"},
			func(ctx context.Context, in engine.Values) (engine.Values, error) {
				brain, _ := in["t1_brain"].(string)
				subjectID, _ := in["subject_id"].(string)
				provenance := []string{
					"stage: surface_recon",
					"source: " + brain,
					"subject_id: " + subjectID,
					fmt.Sprintf("hires: %v", cfg.Hires),
				}
				aseg, err := writeArtifact(ctx, "aseg.nii.gz", provenance...)
				if err != nil {
					return nil, err
				}
				aparc, err := writeArtifact(ctx, "aparc.nii.gz", provenance...)
				if err != nil {
					return nil, err
				}
				fwd, err := writeArtifact(ctx, "t1_2_fsnative_fwd.lta", provenance...)
				if err != nil {
					return nil, err
				}
				rev, err := writeArtifact(ctx, "t1_2_fsnative_rev.lta", provenance...)
				if err != nil {
					return nil, err
				}
				return engine.Values{
					"t1_aseg":                         aseg,
					"t1_aparc":                        aparc,
					"t1_2_fsnative_forward_transform": fwd,
					"t1_2_fsnative_reverse_transform": rev,
				}, nil
			}))
		nodes = append(nodes, surfaceRecon)
	}

	for _, n := range nodes {
		if err := wf.AddNode(n); err != nil {
			return nil, err
		}
	}

	c := &connector{wf: wf}
	c.connect("inputnode", "t1w", "anat_template", "t1w")
	c.connect("anat_template", "t1_template", "skullstrip", "t1_template")
	c.connect("skullstrip", "t1_brain", "segment", "t1_brain")
	c.connect("skullstrip", "t1_brain", "normalize", "t1_brain")
	c.connect("segment", "t1_seg", "anat_report", "t1_seg")
	c.connect("anat_report", "out_report", "ds_anat_report", "in_file")
	c.connectWith("inputnode", "t1w", "ds_anat_report", "source_file", bids.FixMultiT1wSourceName)

	c.connect("anat_template", "t1_preproc", "outputnode", "t1_preproc")
	c.connect("skullstrip", "t1_brain", "outputnode", "t1_brain")
	c.connect("skullstrip", "t1_mask", "outputnode", "t1_mask")
	c.connect("segment", "t1_seg", "outputnode", "t1_seg")
	c.connect("segment", "t1_tpms", "outputnode", "t1_tpms")
	c.connect("normalize", "template", "outputnode", "template")
	c.connect("normalize", "forward_transform", "outputnode", "forward_transform")
	c.connect("normalize", "reverse_transform", "outputnode", "reverse_transform")
	c.connect("normalize", "joint_template", "outputnode", "joint_template")
	c.connect("normalize", "joint_forward_transform", "outputnode", "joint_forward_transform")
	c.connect("normalize", "joint_reverse_transform", "outputnode", "joint_reverse_transform")
	c.connect("inputnode", "subjects_dir", "outputnode", "subjects_dir")
	c.connect("inputnode", "subject_id", "outputnode", "subject_id")

	if cfg.FreeSurfer {
		c.connect("inputnode", "subjects_dir", "surface_recon", "subjects_dir")
		c.connect("inputnode", "subject_id", "surface_recon", "subject_id")
		c.connect("skullstrip", "t1_brain", "surface_recon", "t1_brain")
		c.connect("surface_recon", "t1_aseg", "outputnode", "t1_aseg")
		c.connect("surface_recon", "t1_aparc", "outputnode", "t1_aparc")
		c.connect("surface_recon", "t1_2_fsnative_forward_transform",
			"outputnode", "t1_2_fsnative_forward_transform")
		c.connect("surface_recon", "t1_2_fsnative_reverse_transform",
			"outputnode", "t1_2_fsnative_reverse_transform")
	}
	if c.err != nil {
		return nil, c.err
	}

	return wf, nil
}

// writeArtifact places a stage artifact in the node's scratch directory and
// returns its path. Artifacts carry their provenance as plain-text lines.
func writeArtifact(ctx context.Context, name string, lines ...string) (string, error) {
	dir, err := engine.ScratchDir(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	return path, nil
}
