package workflows

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fmriprep-go/internal/bids"
	"github.com/vk/fmriprep-go/internal/config"
	"github.com/vk/fmriprep-go/internal/engine"
	"github.com/vk/fmriprep-go/internal/interfaces"
	"github.com/vk/fmriprep-go/internal/testsupport"
)

// testOptions returns a valid option set rooted in temporary directories.
func testOptions(t *testing.T, bidsRoot string, subjects ...string) *config.Options {
	t.Helper()

	opts := config.DefaultOptions()
	opts.BIDSDir = bidsRoot
	opts.OutputDir = t.TempDir()
	opts.WorkDir = t.TempDir()
	opts.SubjectList = subjects
	opts.RunUUID = "20260823-120000_3a9c2f"
	return opts
}

func newLayout(t *testing.T, files ...string) (*bids.Layout, string) {
	t.Helper()

	root := testsupport.NewBIDSDataset(t, files...)
	layout, err := bids.NewLayout(root)
	require.NoError(t, err)
	return layout, root
}

func TestInitSingleSubjectWF_RequiresT1w(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	layout, root := newLayout(t, "sub-01/func/sub-01_task-rest_bold.nii.gz")

	for _, anatOnly := range []bool{false, true} {
		opts := testOptions(t, root, "01")
		opts.AnatOnly = anatOnly

		// --- Act ---
		_, err := InitSingleSubjectWF(opts, layout, "single_subject_01_wf", "01", t.TempDir())

		// --- Assert ---
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingT1w)
		assert.Contains(t, err.Error(), "participant 01")
	}
}

func TestInitSingleSubjectWF_RequiresBOLDUnlessAnatOnly(t *testing.T) {
	t.Parallel()

	layout, root := newLayout(t, "sub-01/anat/sub-01_T1w.nii.gz")

	t.Run("full run fails without BOLD", func(t *testing.T) {
		t.Parallel()

		opts := testOptions(t, root, "01")

		_, err := InitSingleSubjectWF(opts, layout, "single_subject_01_wf", "01", t.TempDir())

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingBOLD)
		assert.Contains(t, err.Error(), "task <all>")
	})

	t.Run("task filter named in the failure", func(t *testing.T) {
		t.Parallel()

		opts := testOptions(t, root, "01")
		opts.TaskID = "rest"

		_, err := InitSingleSubjectWF(opts, layout, "single_subject_01_wf", "01", t.TempDir())

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingBOLD)
		assert.Contains(t, err.Error(), "task rest")
	})

	t.Run("anatomical-only run proceeds", func(t *testing.T) {
		t.Parallel()

		opts := testOptions(t, root, "01")
		opts.AnatOnly = true

		wf, err := InitSingleSubjectWF(opts, layout, "single_subject_01_wf", "01", t.TempDir())

		require.NoError(t, err)
		for _, name := range wf.MemberNames() {
			assert.False(t, strings.HasPrefix(name, "func_preproc_"),
				"anatomical-only workflow contains functional member %s", name)
		}
	})
}

func TestInitSingleSubjectWF_MissingBOLDReportedBeforeMissingT1w(t *testing.T) {
	t.Parallel()

	// A subject with neither modality fails on the functional check first.
	layout, root := newLayout(t, "sub-02/anat/sub-02_T1w.nii.gz")
	opts := testOptions(t, root, "01")

	_, err := InitSingleSubjectWF(opts, layout, "single_subject_01_wf", "01", t.TempDir())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingBOLD)
}

func TestInitSingleSubjectWF_OneFunctionalWorkflowPerSeries(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	layout, root := newLayout(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/func/sub-01_task-rest_run-1_bold.nii.gz",
		"sub-01/func/sub-01_task-rest_run-2_bold.nii.gz",
		"sub-01/func/sub-01_task-nback_bold.nii.gz",
	)
	opts := testOptions(t, root, "01")

	// --- Act ---
	wf, err := InitSingleSubjectWF(opts, layout, "single_subject_01_wf", "01", t.TempDir())

	// --- Assert ---
	require.NoError(t, err)
	require.NoError(t, wf.Validate())

	var funcNames []string
	for _, name := range wf.MemberNames() {
		if strings.HasPrefix(name, "func_preproc_") {
			funcNames = append(funcNames, name)
		}
	}
	require.Len(t, funcNames, 3)

	// Every functional sub-workflow receives the same anatomical outputs.
	ports := func(funcName string) map[string]bool {
		set := make(map[string]bool)
		for _, e := range wf.Edges() {
			if e.From == "anat_preproc_wf" && e.To == funcName {
				set[e.ToPort] = true
			}
		}
		return set
	}
	reference := ports(funcNames[0])
	assert.Len(t, reference, len(funcInputFields))
	for _, funcName := range funcNames[1:] {
		assert.Equal(t, reference, ports(funcName))
	}
}

func TestInitSingleSubjectWF_RelabelsSinksIntoPipelineNamespace(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	layout, root := newLayout(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/func/sub-01_task-rest_bold.nii.gz",
	)
	opts := testOptions(t, root, "01")

	// --- Act ---
	wf, err := InitSingleSubjectWF(opts, layout, "single_subject_01_wf", "01", t.TempDir())

	// --- Assert ---
	require.NoError(t, err)
	var sinks int
	for _, nodeName := range wf.NodeNames() {
		local := nodeName
		if idx := strings.LastIndex(nodeName, "."); idx >= 0 {
			local = nodeName[idx+1:]
		}
		if !strings.HasPrefix(local, "ds_") {
			continue
		}
		node, err := wf.FindNode(nodeName)
		require.NoError(t, err)
		sink, ok := node.Interface().(*interfaces.DerivativesDataSink)
		require.True(t, ok)
		assert.Equal(t, "fmriprep", sink.OutPathBase, "sink %s keeps its sub-workflow namespace", nodeName)
		sinks++
	}
	// The inherited anatomical sink is among the re-labeled ones.
	assert.GreaterOrEqual(t, sinks, 3)
}

func TestInitFMRIPrepWF_SharedFreeSurferDir(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	layout, root := newLayout(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/func/sub-01_task-rest_bold.nii.gz",
		"sub-02/anat/sub-02_T1w.nii.gz",
		"sub-02/func/sub-02_task-rest_bold.nii.gz",
	)
	opts := testOptions(t, root, "01", "02")

	// --- Act ---
	wf, err := InitFMRIPrepWF(opts, layout)

	// --- Assert ---
	require.NoError(t, err)
	require.NoError(t, wf.Validate())

	fsdirName := "fsdir_run_20260823_120000_3a9c2f"
	require.Contains(t, wf.MemberNames(), fsdirName)
	node, err := wf.FindNode(fsdirName)
	require.NoError(t, err)
	assert.True(t, node.RunWithoutSubmitting)

	// The shared node feeds every subject's input node.
	fed := make(map[string]bool)
	for _, e := range wf.Edges() {
		if e.From == fsdirName && e.ToPort == "inputnode.subjects_dir" {
			fed[e.To] = true
		}
	}
	assert.True(t, fed["single_subject_01_wf"])
	assert.True(t, fed["single_subject_02_wf"])
}

func TestInitFMRIPrepWF_NoFreeSurferDirWhenDisabled(t *testing.T) {
	t.Parallel()

	layout, root := newLayout(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/func/sub-01_task-rest_bold.nii.gz",
	)
	opts := testOptions(t, root, "01")
	opts.FreeSurfer = false

	wf, err := InitFMRIPrepWF(opts, layout)

	require.NoError(t, err)
	for _, name := range wf.MemberNames() {
		assert.False(t, strings.HasPrefix(name, "fsdir_run_"))
	}
}

func TestInitFMRIPrepWF_PropagatesCrashdumpDir(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	layout, root := newLayout(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/func/sub-01_task-rest_bold.nii.gz",
	)
	opts := testOptions(t, root, "01")

	// --- Act ---
	wf, err := InitFMRIPrepWF(opts, layout)

	// --- Assert ---
	require.NoError(t, err)
	node, err := wf.FindNode("single_subject_01_wf.summary")
	require.NoError(t, err)
	expected := filepath.Join(opts.OutputDir, "fmriprep", "sub-01", "log", opts.RunUUID)
	assert.Equal(t, expected, node.Settings.GetString("execution", "crashdump_dir"))
}

func TestInitFMRIPrepWF_EndToEndRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	layout, root := newLayout(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/func/sub-01_task-rest_run-1_bold.nii.gz",
	)
	opts := testOptions(t, root, "01")

	wf, err := InitFMRIPrepWF(opts, layout)
	require.NoError(t, err)

	// --- Act ---
	err = wf.Run(context.Background(), &engine.RunOptions{MaxProcs: 4})

	// --- Assert ---
	require.NoError(t, err)
	figures := filepath.Join(opts.WorkDir, "reportlets", "fmriprep", "sub-01", "figures")
	assert.FileExists(t, filepath.Join(figures, "sub-01_desc-summary_T1w.html"))
	assert.FileExists(t, filepath.Join(figures, "sub-01_desc-about_T1w.html"))
	assert.FileExists(t, filepath.Join(figures, "sub-01_desc-seg_T1w.html"))
	assert.FileExists(t, filepath.Join(figures, "sub-01_task-rest_run-1_desc-bold_bold.html"))
	assert.DirExists(t, filepath.Join(opts.OutputDir, "freesurfer"))
}
