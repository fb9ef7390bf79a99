package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/fmriprep-go/internal/app"
	"github.com/vk/fmriprep-go/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
//
// Precedence: built-in defaults, then the -config HCL file, then any flag
// the user set explicitly.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("fmriprep", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
fMRIPrep - a functional MRI preprocessing pipeline.

Usage:
  fmriprep [options] BIDS_DIR OUTPUT_DIR

Arguments:
  BIDS_DIR
    Root directory of the BIDS-organized input dataset.
  OUTPUT_DIR
    Directory for derivatives and reports.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL run-config file.")
	participantFlag := flagSet.String("participant-label", "", "Comma-separated participant labels to process. Default: all.")
	taskFlag := flagSet.String("task-id", "", "Only preprocess BOLD series of this task.")
	echoFlag := flagSet.Int("echo-idx", 0, "Echo to preprocess in multi-echo series. 0 selects all.")

	anatOnlyFlag := flagSet.Bool("anat-only", false, "Run anatomical workflows only.")
	noReconAllFlag := flagSet.Bool("fs-no-reconall", false, "Disable FreeSurfer surface reconstruction.")
	longitudinalFlag := flagSet.Bool("longitudinal", false, "Treat multiple sessions as longitudinal.")
	debugFlag := flagSet.Bool("debug", false, "Enable debugging outputs.")
	lowMemFlag := flagSet.Bool("low-mem", false, "Trade disk for memory where possible.")
	ignoreFlag := flagSet.String("ignore", "", "Comma-separated preprocessing steps to skip: slicetiming, fieldmaps.")

	ompFlag := flagSet.Int("omp-nthreads", 1, "Maximum number of threads an individual process may use.")
	nprocsFlag := flagSet.Int("nprocs", 1, "Maximum number of nodes executing concurrently.")
	memFlag := flagSet.Float64("mem-gb", 0, "Memory budget in GB for concurrently running nodes. 0 disables the budget.")
	workDirFlag := flagSet.String("work-dir", "work", "Directory for workflow execution state and temporary files.")

	spacesFlag := flagSet.String("output-spaces", "", "Space-separated output spaces, e.g. 'MNI152Lin:res-2 T1w'.")
	skullStripTemplateFlag := flagSet.String("skull-strip-template", "", "Target template for brain extraction.")
	skullStripSeedFlag := flagSet.Bool("skull-strip-fixed-seed", false, "Use a fixed seed for skull-stripping.")

	dofFlag := flagSet.Int("bold2t1w-dof", 6, "Degrees of freedom for BOLD-T1w registration: 6, 9 or 12.")
	useSynFlag := flagSet.Bool("use-syn-sdc", false, "Enable SyN-based susceptibility distortion correction.")
	forceSynFlag := flagSet.Bool("force-syn", false, "Always run SyN-based distortion correction.")
	fmapBsplineFlag := flagSet.Bool("fmap-bspline", false, "Fit a B-spline field for fieldmap correction.")
	fmapNoDemeanFlag := flagSet.Bool("fmap-no-demean", false, "Do not demean the voxel-shift map.")
	t2sCoregFlag := flagSet.Bool("t2s-coreg", false, "Use the T2*-map for T2*-driven coregistration.")

	aromaFlag := flagSet.Bool("use-aroma", false, "Run ICA-AROMA on the standard-space series.")
	aromaDimFlag := flagSet.Int("aroma-melodic-dimensionality", -200, "Maximum ICA-AROMA component count.")
	fdFlag := flagSet.Float64("fd-spike-threshold", 0.5, "Framewise displacement outlier threshold.")
	dvarsFlag := flagSet.Float64("dvars-spike-threshold", 1.5, "DVARS outlier threshold.")
	allCompsFlag := flagSet.Bool("return-all-components", false, "Keep all CompCor components in confounds.")

	ciftiFlag := flagSet.Bool("cifti-output", false, "Generate BOLD CIFTI files in output spaces.")
	medialNaNFlag := flagSet.Bool("medial-surface-nan", false, "Replace medial wall values with NaNs on surface outputs.")

	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Assemble and validate the workflow, print its nodes, and exit.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 && *configFlag == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	opts := config.DefaultOptions()
	if *configFlag != "" {
		if err := config.LoadHCL(*configFlag, opts); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
	}

	if flagSet.NArg() > 0 {
		opts.BIDSDir = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		opts.OutputDir = flagSet.Arg(1)
	}

	// Explicitly set flags win over both defaults and the config file.
	var flagErr error
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "participant-label":
			opts.SubjectList = splitList(*participantFlag)
		case "task-id":
			opts.TaskID = *taskFlag
		case "echo-idx":
			opts.EchoIdx = *echoFlag
		case "anat-only":
			opts.AnatOnly = *anatOnlyFlag
		case "fs-no-reconall":
			opts.FreeSurfer = !*noReconAllFlag
		case "longitudinal":
			opts.Longitudinal = *longitudinalFlag
		case "debug":
			opts.Debug = *debugFlag
		case "low-mem":
			opts.LowMem = *lowMemFlag
		case "ignore":
			opts.Ignore = splitList(*ignoreFlag)
		case "omp-nthreads":
			opts.OmpNthreads = *ompFlag
		case "nprocs":
			opts.Nprocs = *nprocsFlag
		case "mem-gb":
			opts.MemoryGB = *memFlag
		case "work-dir":
			opts.WorkDir = *workDirFlag
		case "output-spaces":
			spaces, err := config.ParseSpaces(*spacesFlag)
			if err != nil {
				flagErr = err
				return
			}
			opts.OutputSpaces = spaces
		case "skull-strip-template":
			spaces, err := config.ParseSpaces(*skullStripTemplateFlag)
			if err != nil || len(spaces) != 1 {
				flagErr = fmt.Errorf("skull-strip-template must name exactly one template")
				return
			}
			opts.SkullStripTemplate = spaces[0]
		case "skull-strip-fixed-seed":
			opts.SkullStripFixedSeed = *skullStripSeedFlag
		case "bold2t1w-dof":
			opts.BoldToT1wDOF = *dofFlag
		case "use-syn-sdc":
			opts.UseSyn = *useSynFlag
		case "force-syn":
			opts.ForceSyn = *forceSynFlag
		case "fmap-bspline":
			opts.FmapBspline = *fmapBsplineFlag
		case "fmap-no-demean":
			opts.FmapDemean = !*fmapNoDemeanFlag
		case "t2s-coreg":
			opts.T2sCoreg = *t2sCoregFlag
		case "use-aroma":
			opts.UseAroma = *aromaFlag
		case "aroma-melodic-dimensionality":
			opts.AromaMelodicDim = *aromaDimFlag
		case "fd-spike-threshold":
			opts.RegressorsFDTh = *fdFlag
		case "dvars-spike-threshold":
			opts.RegressorsDVARSTh = *dvarsFlag
		case "return-all-components":
			opts.RegressorsAllComps = *allCompsFlag
		case "cifti-output":
			opts.CiftiOutput = *ciftiFlag
		case "medial-surface-nan":
			opts.MedialSurfaceNaN = *medialNaNFlag
		}
	})
	if flagErr != nil {
		return nil, false, &ExitError{Code: 2, Message: flagErr.Error()}
	}

	if opts.WorkDir == "" {
		opts.WorkDir = *workDirFlag
	}

	appConfig, err := app.NewConfig(app.Config{
		Options:   opts,
		LogFormat: logFormat,
		LogLevel:  logLevel,
		DryRun:    *dryRunFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return appConfig, false, nil
}

// splitList parses a comma-separated flag value, dropping empty entries.
func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
