package bids

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/fmriprep-go/internal/testsupport"
)

func TestParseEntities(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		path     string
		expected Entities
	}{
		{
			name: "anatomical image",
			path: "/data/sub-01/anat/sub-01_T1w.nii.gz",
			expected: Entities{
				Subject: "01",
				Suffix:  "T1w",
			},
		},
		{
			name: "functional run with full entity set",
			path: "sub-01_ses-2_task-rest_acq-highres_run-1_echo-2_bold.nii.gz",
			expected: Entities{
				Subject:     "01",
				Session:     "2",
				Task:        "rest",
				Acquisition: "highres",
				Run:         "1",
				Echo:        "2",
				Suffix:      "bold",
			},
		},
		{
			name: "uncompressed nifti",
			path: "sub-02_T2w.nii",
			expected: Entities{
				Subject: "02",
				Suffix:  "T2w",
			},
		},
		{
			name: "unknown entities ignored",
			path: "sub-03_dir-AP_epi.nii.gz",
			expected: Entities{
				Subject: "03",
				Suffix:  "epi",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, ParseEntities(tc.path))
		})
	}
}

func TestNewLayout_IndexesDatasetSkippingDerivatives(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := testsupport.NewBIDSDataset(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/func/sub-01_task-rest_bold.nii.gz",
		"sub-02/anat/sub-02_T1w.nii.gz",
		"derivatives/fmriprep/sub-01/anat/sub-01_desc-preproc_T1w.nii.gz",
		"sourcedata/sub-01/anat/sub-01_T1w.nii.gz",
		"code/sub-99_T1w.nii.gz",
		".git/sub-98_T1w.nii.gz",
	)

	// --- Act ---
	layout, err := NewLayout(root)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02"}, layout.Subjects())
	require.Len(t, layout.Files(), 3)
	for _, path := range layout.Files() {
		assert.NotContains(t, path, "derivatives")
		assert.NotContains(t, path, "sourcedata")
	}
}

func TestNewLayout_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewLayout(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access BIDS root")
}

func TestCollect_PartitionsByModality(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := testsupport.NewBIDSDataset(t,
		"sub-01/anat/sub-01_T1w.nii.gz",
		"sub-01/anat/sub-01_T2w.nii.gz",
		"sub-01/anat/sub-01_FLAIR.nii.gz",
		"sub-01/anat/sub-01_acq-highres_roi.nii.gz",
		"sub-01/func/sub-01_task-rest_run-1_bold.nii.gz",
		"sub-01/func/sub-01_task-rest_run-1_sbref.nii.gz",
		"sub-01/fmap/sub-01_phasediff.nii.gz",
		"sub-01/fmap/sub-01_magnitude1.nii.gz",
		"sub-02/anat/sub-02_T1w.nii.gz",
	)
	layout, err := NewLayout(root)
	require.NoError(t, err)

	// --- Act ---
	data := Collect(layout, "01", "", 0)

	// --- Assert ---
	assert.Len(t, data.T1w, 1)
	assert.Len(t, data.T2w, 1)
	assert.Len(t, data.Flair, 1)
	assert.Len(t, data.ROI, 1)
	assert.Len(t, data.Bold, 1)
	assert.Len(t, data.Sbref, 1)
	assert.Len(t, data.Fmap, 2)
}

func TestCollect_AcceptsPrefixedSubjectLabel(t *testing.T) {
	t.Parallel()

	root := testsupport.NewBIDSDataset(t, "sub-01/anat/sub-01_T1w.nii.gz")
	layout, err := NewLayout(root)
	require.NoError(t, err)

	data := Collect(layout, "sub-01", "", 0)

	assert.Len(t, data.T1w, 1)
}

func TestCollect_TaskFilter(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := testsupport.NewBIDSDataset(t,
		"sub-01/func/sub-01_task-rest_bold.nii.gz",
		"sub-01/func/sub-01_task-nback_bold.nii.gz",
		"sub-01/func/sub-01_task-rest_sbref.nii.gz",
		"sub-01/func/sub-01_task-nback_sbref.nii.gz",
	)
	layout, err := NewLayout(root)
	require.NoError(t, err)

	// --- Act ---
	data := Collect(layout, "01", "rest", 0)

	// --- Assert ---
	require.Len(t, data.Bold, 1)
	assert.Contains(t, data.Bold[0], "task-rest")
	require.Len(t, data.Sbref, 1)
	assert.Contains(t, data.Sbref[0], "task-rest")
}

func TestCollect_EchoFilter(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := testsupport.NewBIDSDataset(t,
		"sub-01/func/sub-01_task-rest_echo-1_bold.nii.gz",
		"sub-01/func/sub-01_task-rest_echo-2_bold.nii.gz",
		"sub-01/func/sub-01_task-rest_echo-3_bold.nii.gz",
	)
	layout, err := NewLayout(root)
	require.NoError(t, err)

	// --- Act ---
	all := Collect(layout, "01", "", 0)
	second := Collect(layout, "01", "", 2)

	// --- Assert ---
	assert.Len(t, all.Bold, 3)
	require.Len(t, second.Bold, 1)
	assert.Contains(t, second.Bold[0], "echo-2")
}

func TestFixMultiT1wSourceName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		in       any
		expected any
	}{
		{
			name:     "single path",
			in:       "/data/sub-01/anat/sub-01_run-1_T1w.nii.gz",
			expected: filepath.Join("/data/sub-01/anat", "sub-01_T1w.nii.gz"),
		},
		{
			name: "list of paths uses the first",
			in: []string{
				"/data/sub-01/anat/sub-01_run-1_T1w.nii.gz",
				"/data/sub-01/anat/sub-01_run-2_T1w.nii.gz",
			},
			expected: filepath.Join("/data/sub-01/anat", "sub-01_T1w.nii.gz"),
		},
		{
			name:     "empty list",
			in:       []string{},
			expected: "",
		},
		{
			name:     "unsupported type",
			in:       42,
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, FixMultiT1wSourceName(tc.in))
		})
	}
}
