package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fmriprep-go/internal/config"
	"github.com/vk/fmriprep-go/internal/testsupport"
)

func TestNewConfig_RequiresOptions(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run options are required")
}

func TestApp_Run_DryRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := testsupport.NewBIDSDataset(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/func/sub-01_task-rest_bold.nii.gz",
	)
	opts := config.DefaultOptions()
	opts.BIDSDir = root
	opts.OutputDir = t.TempDir()
	opts.WorkDir = t.TempDir()

	cfg, err := NewConfig(Config{Options: opts, LogFormat: "text", LogLevel: "error", DryRun: true})
	require.NoError(t, err)

	var out bytes.Buffer
	application := NewApp(&out, cfg)

	// --- Act ---
	err = application.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	// The participant selection defaulted to the indexed subjects.
	assert.Equal(t, []string{"01"}, opts.SubjectList)
	assert.NotEmpty(t, opts.RunUUID)
	assert.True(t, strings.Contains(out.String(), "single_subject_01_wf.summary"))
}

func TestApp_Run_InvalidOptions(t *testing.T) {
	t.Parallel()

	// A dataset with no subjects leaves the participant list empty.
	root := testsupport.NewBIDSDataset(t)
	opts := config.DefaultOptions()
	opts.BIDSDir = root
	opts.OutputDir = t.TempDir()
	opts.WorkDir = t.TempDir()

	cfg, err := NewConfig(Config{Options: opts, LogFormat: "text", LogLevel: "error"})
	require.NoError(t, err)

	err = NewApp(&bytes.Buffer{}, cfg).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run options")
}
