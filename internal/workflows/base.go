package workflows

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/fmriprep-go/internal/bids"
	"github.com/vk/fmriprep-go/internal/config"
	"github.com/vk/fmriprep-go/internal/engine"
	"github.com/vk/fmriprep-go/internal/interfaces"
	"github.com/vk/fmriprep-go/internal/version"
)

// Data-availability failures during per-subject assembly. Both are fatal to
// that subject's workflow; there is no partial-result fallback.
var (
	// ErrMissingBOLD marks a subject with no BOLD series when functional
	// processing was requested.
	ErrMissingBOLD = errors.New("no BOLD images found")
	// ErrMissingT1w marks a subject with no T1-weighted images.
	ErrMissingT1w = errors.New("no T1w images found")
)

// InitFMRIPrepWF organizes the full run: one sub-workflow per subject, plus
// a single shared FreeSurfer subjects-directory preparation node when
// surface reconstruction is enabled.
func InitFMRIPrepWF(opts *config.Options, layout *bids.Layout) (*engine.Workflow, error) {
	wf := engine.NewWorkflow("fmriprep_wf")
	wf.SetBaseDir(opts.WorkDir)

	var fsdirName string
	if opts.FreeSurfer {
		var spaces []string
		for _, space := range opts.OutputSpaces.Names() {
			if strings.HasPrefix(space, "fsaverage") {
				spaces = append(spaces, space)
			}
		}
		if opts.OutputSpaces.Has("fsnative") {
			spaces = append(spaces, "fsnative")
		}

		fsdirName = "fsdir_run_" + strings.ReplaceAll(opts.RunUUID, "-", "_")
		fsdir := engine.NewNode(fsdirName, &interfaces.FreeSurferDir{
			Derivatives:    opts.OutputDir,
			Spaces:         spaces,
			FreesurferHome: os.Getenv("FREESURFER_HOME"),
		})
		fsdir.RunWithoutSubmitting = true
		if err := wf.AddNode(fsdir); err != nil {
			return nil, err
		}
	}

	reportletsDir := filepath.Join(opts.WorkDir, "reportlets")
	for _, subjectID := range opts.SubjectList {
		name := "single_subject_" + subjectID + "_wf"
		subjectWF, err := InitSingleSubjectWF(opts, layout, name, subjectID, reportletsDir)
		if err != nil {
			return nil, err
		}

		subjectWF.Settings().Set("execution", "crashdump_dir",
			filepath.Join(opts.OutputDir, "fmriprep", "sub-"+subjectID, "log", opts.RunUUID))
		subjectWF.PropagateSettings()

		if err := wf.AddWorkflow(subjectWF); err != nil {
			return nil, err
		}
		if opts.FreeSurfer {
			if err := wf.Connect(fsdirName, "subjects_dir", name, "inputnode.subjects_dir"); err != nil {
				return nil, err
			}
		}
	}

	return wf, nil
}

// InitSingleSubjectWF organizes one subject's preprocessing: it collects and
// reports information about the subject, runs anatomical preprocessing once,
// and functional preprocessing once per BOLD series.
func InitSingleSubjectWF(opts *config.Options, layout *bids.Layout, name, subjectID, reportletsDir string) (*engine.Workflow, error) {
	subjectData := bids.Collect(layout, subjectID, opts.TaskID, opts.EchoIdx)

	// Both availability checks always run, in this order.
	if !opts.AnatOnly && len(subjectData.Bold) == 0 {
		task := opts.TaskID
		if task == "" {
			task = "<all>"
		}
		return nil, fmt.Errorf("%w for participant %s and task %s; all workflows require BOLD images",
			ErrMissingBOLD, subjectID, task)
	}
	if len(subjectData.T1w) == 0 {
		return nil, fmt.Errorf("%w for participant %s; all workflows require T1w images",
			ErrMissingT1w, subjectID)
	}

	wf := engine.NewWorkflow(name)

	stdSpaces := opts.OutputSpaces.Standard()

	inputnode := engine.NewNode("inputnode", interfaces.NewIdentity("subjects_dir"))

	bidssrc := engine.NewNode("bidssrc", &interfaces.BIDSDataGrabber{
		SubjectData: subjectData,
		AnatOnly:    opts.AnatOnly,
	})

	bidsInfo := engine.NewNode("bids_info", &interfaces.BIDSInfo{BIDSDir: layout.Root})

	summary := engine.NewNode("summary", &interfaces.SubjectSummary{
		StdSpaces:  stdSpaces.Names(),
		NstdSpaces: opts.OutputSpaces.Nonstandard(),
	})
	summary.RunWithoutSubmitting = true
	summary.MemGB = config.DefaultMemoryMinGB

	about := engine.NewNode("about", &interfaces.AboutSummary{
		Version: version.Version,
		Command: strings.Join(os.Args, " "),
	})
	about.RunWithoutSubmitting = true
	about.MemGB = config.DefaultMemoryMinGB

	dsReportSummary := engine.NewNode("ds_report_summary", &interfaces.DerivativesDataSink{
		BaseDirectory: reportletsDir,
		Desc:          "summary",
		OutPathBase:   "fmriprep",
	})
	dsReportSummary.RunWithoutSubmitting = true
	dsReportSummary.MemGB = config.DefaultMemoryMinGB

	dsReportAbout := engine.NewNode("ds_report_about", &interfaces.DerivativesDataSink{
		BaseDirectory: reportletsDir,
		Desc:          "about",
		OutPathBase:   "fmriprep",
	})
	dsReportAbout.RunWithoutSubmitting = true
	dsReportAbout.MemGB = config.DefaultMemoryMinGB

	// Preprocessing of T1w, including registration to the standard spaces.
	anatPreprocWF, err := InitAnatPreprocWF("anat_preproc_wf", &AnatPreprocConfig{
		BIDSRoot:            layout.Root,
		Debug:               opts.Debug,
		FreeSurfer:          opts.FreeSurfer,
		Hires:               opts.Hires,
		Longitudinal:        opts.Longitudinal,
		NumT1w:              len(subjectData.T1w),
		OmpNthreads:         opts.OmpNthreads,
		OutputDir:           opts.OutputDir,
		OutputSpaces:        stdSpaces,
		ReportletsDir:       reportletsDir,
		SkullStripFixedSeed: opts.SkullStripFixedSeed,
		SkullStripTemplate:  opts.SkullStripTemplate,
	})
	if err != nil {
		return nil, err
	}

	for _, n := range []*engine.Node{inputnode, bidssrc, bidsInfo, summary, about, dsReportSummary, dsReportAbout} {
		if err := wf.AddNode(n); err != nil {
			return nil, err
		}
	}
	if err := wf.AddWorkflow(anatPreprocWF); err != nil {
		return nil, err
	}

	c := &connector{wf: wf}
	c.connect("inputnode", "subjects_dir", "anat_preproc_wf", "inputnode.subjects_dir")
	c.connectWith("bidssrc", "t1w", "bids_info", "in_file", bids.FixMultiT1wSourceName)
	c.connect("inputnode", "subjects_dir", "summary", "subjects_dir")
	c.connect("bidssrc", "t1w", "summary", "t1w")
	c.connect("bidssrc", "t2w", "summary", "t2w")
	c.connect("bidssrc", "bold", "summary", "bold")
	c.connect("bids_info", "subject", "summary", "subject_id")
	c.connectWith("bids_info", "subject", "anat_preproc_wf", "inputnode.subject_id", prefixT)
	c.connect("bidssrc", "t1w", "anat_preproc_wf", "inputnode.t1w")
	c.connect("bidssrc", "t2w", "anat_preproc_wf", "inputnode.t2w")
	c.connect("bidssrc", "roi", "anat_preproc_wf", "inputnode.roi")
	c.connect("bidssrc", "flair", "anat_preproc_wf", "inputnode.flair")
	c.connectWith("bidssrc", "t1w", "ds_report_summary", "source_file", bids.FixMultiT1wSourceName)
	c.connect("summary", "out_report", "ds_report_summary", "in_file")
	c.connectWith("bidssrc", "t1w", "ds_report_about", "source_file", bids.FixMultiT1wSourceName)
	c.connect("about", "out_report", "ds_report_about", "in_file")
	if c.err != nil {
		return nil, c.err
	}

	// Re-label the sinks inherited from the anatomical sub-workflow into
	// this pipeline's output namespace.
	for _, nodeName := range wf.NodeNames() {
		local := nodeName
		if idx := strings.LastIndex(nodeName, "."); idx >= 0 {
			local = nodeName[idx+1:]
		}
		if !strings.HasPrefix(local, "ds_") {
			continue
		}
		node, err := wf.FindNode(nodeName)
		if err != nil {
			return nil, err
		}
		if sink, ok := node.Interface().(*interfaces.DerivativesDataSink); ok {
			sink.OutPathBase = "fmriprep"
		}
	}

	if opts.AnatOnly {
		return wf, nil
	}

	for _, boldFile := range subjectData.Bold {
		funcPreprocWF, err := InitFuncPreprocWF(&FuncPreprocConfig{
			AromaMelodicDim:    opts.AromaMelodicDim,
			BoldFile:           boldFile,
			BoldToT1wDOF:       opts.BoldToT1wDOF,
			CiftiOutput:        opts.CiftiOutput,
			Debug:              opts.Debug,
			DummyScans:         opts.DummyScans,
			ErrOnAromaWarn:     opts.ErrOnAromaWarn,
			FmapBspline:        opts.FmapBspline,
			FmapDemean:         opts.FmapDemean,
			ForceSyn:           opts.ForceSyn,
			FreeSurfer:         opts.FreeSurfer,
			Ignore:             opts.Ignore,
			LowMem:             opts.LowMem,
			MedialSurfaceNaN:   opts.MedialSurfaceNaN,
			NumBold:            len(subjectData.Bold),
			OmpNthreads:        opts.OmpNthreads,
			OutputDir:          opts.OutputDir,
			OutputSpaces:       opts.OutputSpaces,
			RegressorsAllComps: opts.RegressorsAllComps,
			RegressorsDVARSTh:  opts.RegressorsDVARSTh,
			RegressorsFDTh:     opts.RegressorsFDTh,
			ReportletsDir:      reportletsDir,
			T2sCoreg:           opts.T2sCoreg,
			UseAroma:           opts.UseAroma,
			UseBBR:             opts.UseBBR,
			UseSyn:             opts.UseSyn,
		})
		if err != nil {
			return nil, err
		}
		if err := wf.AddWorkflow(funcPreprocWF); err != nil {
			return nil, err
		}

		funcName := funcPreprocWF.Name()
		// t1_preproc may be multi-valued when several T1w images were
		// conformed; the functional side takes the first.
		c.connectWith("anat_preproc_wf", "outputnode.t1_preproc", funcName, "inputnode.t1_preproc", pop)
		c.connect("anat_preproc_wf", "outputnode.t1_brain", funcName, "inputnode.t1_brain")
		c.connect("anat_preproc_wf", "outputnode.t1_mask", funcName, "inputnode.t1_mask")
		c.connect("anat_preproc_wf", "outputnode.t1_seg", funcName, "inputnode.t1_seg")
		c.connect("anat_preproc_wf", "outputnode.t1_aseg", funcName, "inputnode.t1_aseg")
		c.connect("anat_preproc_wf", "outputnode.t1_aparc", funcName, "inputnode.t1_aparc")
		c.connect("anat_preproc_wf", "outputnode.t1_tpms", funcName, "inputnode.t1_tpms")
		c.connect("anat_preproc_wf", "outputnode.template", funcName, "inputnode.template")
		c.connect("anat_preproc_wf", "outputnode.forward_transform", funcName, "inputnode.anat2std_xfm")
		c.connect("anat_preproc_wf", "outputnode.reverse_transform", funcName, "inputnode.std2anat_xfm")
		c.connect("anat_preproc_wf", "outputnode.joint_template", funcName, "inputnode.joint_template")
		c.connect("anat_preproc_wf", "outputnode.joint_forward_transform", funcName, "inputnode.joint_anat2std_xfm")
		c.connect("anat_preproc_wf", "outputnode.joint_reverse_transform", funcName, "inputnode.joint_std2anat_xfm")
		// Undefined without FreeSurfer, but safe: identity ports tolerate
		// absent values.
		c.connect("anat_preproc_wf", "outputnode.subjects_dir", funcName, "inputnode.subjects_dir")
		c.connect("anat_preproc_wf", "outputnode.subject_id", funcName, "inputnode.subject_id")
		c.connect("anat_preproc_wf", "outputnode.t1_2_fsnative_forward_transform",
			funcName, "inputnode.t1_2_fsnative_forward_transform")
		c.connect("anat_preproc_wf", "outputnode.t1_2_fsnative_reverse_transform",
			funcName, "inputnode.t1_2_fsnative_reverse_transform")
		if c.err != nil {
			return nil, c.err
		}
	}

	return wf, nil
}
