package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fmriprep-go/internal/config"
	"github.com/vk/fmriprep-go/internal/interfaces"
)

func funcConfig() *FuncPreprocConfig {
	return &FuncPreprocConfig{
		BoldFile:     "/data/sub-01/func/sub-01_task-rest_run-1_bold.nii.gz",
		BoldToT1wDOF: 6,
		NumBold:      1,
		OmpNthreads:  1,
		OutputDir:    "/data/out",
		OutputSpaces: config.OutputSpaces{
			{Name: "MNI152NLin2009cAsym", Modifiers: map[string]string{}},
		},
		RegressorsDVARSTh: 1.5,
		RegressorsFDTh:    0.5,
		ReportletsDir:     "/data/work/reportlets",
	}
}

func TestInitFuncPreprocWF_NamesWorkflowAfterSeries(t *testing.T) {
	t.Parallel()

	wf, err := InitFuncPreprocWF(funcConfig())

	require.NoError(t, err)
	require.NoError(t, wf.Validate())
	assert.Equal(t, "func_preproc_task_rest_run_1_wf", wf.Name())
}

func TestInitFuncPreprocWF_SliceTimingToggle(t *testing.T) {
	t.Parallel()

	t.Run("enabled by default", func(t *testing.T) {
		t.Parallel()

		wf, err := InitFuncPreprocWF(funcConfig())

		require.NoError(t, err)
		assert.Contains(t, wf.MemberNames(), "bold_stc")
	})

	t.Run("skipped when ignored", func(t *testing.T) {
		t.Parallel()

		cfg := funcConfig()
		cfg.Ignore = []string{"slicetiming"}

		wf, err := InitFuncPreprocWF(cfg)

		require.NoError(t, err)
		assert.NotContains(t, wf.MemberNames(), "bold_stc")
	})
}

func TestInitFuncPreprocWF_ReportSink(t *testing.T) {
	t.Parallel()

	wf, err := InitFuncPreprocWF(funcConfig())
	require.NoError(t, err)

	node, err := wf.FindNode("ds_report_bold")
	require.NoError(t, err)
	sink, ok := node.Interface().(*interfaces.DerivativesDataSink)
	require.True(t, ok)
	assert.Equal(t, "fmriprep", sink.OutPathBase)
	assert.Equal(t, "bold", sink.Desc)
	assert.True(t, node.RunWithoutSubmitting)
}

func TestInitFuncPreprocWF_OutputPorts(t *testing.T) {
	t.Parallel()

	wf, err := InitFuncPreprocWF(funcConfig())
	require.NoError(t, err)

	targets := make(map[string]bool)
	for _, e := range wf.Edges() {
		if e.To == "outputnode" {
			targets[e.ToPort] = true
		}
	}
	for _, port := range []string{"bold_t1", "bold_mask_t1", "bold_std", "confounds"} {
		assert.True(t, targets[port], "output port %s is not fed", port)
	}
}
