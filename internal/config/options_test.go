package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validOptions returns a fully-populated option set that passes validation.
func validOptions() *Options {
	opts := DefaultOptions()
	opts.BIDSDir = "/data/bids"
	opts.OutputDir = "/data/out"
	opts.WorkDir = "/data/work"
	opts.SubjectList = []string{"01"}
	return opts
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Options) {},
		},
		{
			name:    "missing bids dir",
			mutate:  func(o *Options) { o.BIDSDir = "" },
			wantErr: "bids directory",
		},
		{
			name:    "missing output dir",
			mutate:  func(o *Options) { o.OutputDir = "" },
			wantErr: "output directory",
		},
		{
			name:    "missing work dir",
			mutate:  func(o *Options) { o.WorkDir = "" },
			wantErr: "work directory",
		},
		{
			name:    "empty subject list",
			mutate:  func(o *Options) { o.SubjectList = nil },
			wantErr: "participant label",
		},
		{
			name:    "zero omp threads",
			mutate:  func(o *Options) { o.OmpNthreads = 0 },
			wantErr: "omp-nthreads",
		},
		{
			name:    "zero nprocs",
			mutate:  func(o *Options) { o.Nprocs = 0 },
			wantErr: "nprocs",
		},
		{
			name:    "negative echo index",
			mutate:  func(o *Options) { o.EchoIdx = -1 },
			wantErr: "echo-idx",
		},
		{
			name:    "invalid registration dof",
			mutate:  func(o *Options) { o.BoldToT1wDOF = 7 },
			wantErr: "bold2t1w-dof",
		},
		{
			name:    "no output spaces",
			mutate:  func(o *Options) { o.OutputSpaces = nil },
			wantErr: "output space",
		},
		{
			name:    "missing skull-strip template",
			mutate:  func(o *Options) { o.SkullStripTemplate = Space{} },
			wantErr: "skull-strip template",
		},
		{
			name:    "unknown ignore step",
			mutate:  func(o *Options) { o.Ignore = []string{"motion"} },
			wantErr: "unknown ignore step",
		},
		{
			name:   "known ignore steps",
			mutate: func(o *Options) { o.Ignore = []string{"slicetiming", "fieldmaps"} },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts := validOptions()
			tc.mutate(opts)

			err := opts.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()

	assert.True(t, opts.FreeSurfer)
	assert.True(t, opts.Hires)
	assert.True(t, opts.FmapDemean)
	assert.Equal(t, 6, opts.BoldToT1wDOF)
	assert.Equal(t, "OASIS30ANTs", opts.SkullStripTemplate.Name)
	assert.Equal(t, 1.5, opts.RegressorsDVARSTh)
	assert.Equal(t, 0.5, opts.RegressorsFDTh)
	assert.Equal(t, -200, opts.AromaMelodicDim)
	require.Len(t, opts.OutputSpaces, 1)
	assert.Equal(t, "MNI152NLin2009cAsym", opts.OutputSpaces[0].Name)
}
