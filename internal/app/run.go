package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vk/fmriprep-go/internal/bids"
	"github.com/vk/fmriprep-go/internal/ctxlog"
	"github.com/vk/fmriprep-go/internal/engine"
	"github.com/vk/fmriprep-go/internal/workflows"
)

// Run executes the main application logic: index the dataset, assemble the
// run workflow, and hand it to the engine (or print the node listing in
// dry-run mode).
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	opts := a.config.Options

	layout, err := bids.NewLayout(opts.BIDSDir)
	if err != nil {
		return fmt.Errorf("failed to index dataset: %w", err)
	}
	a.logger.Info("Dataset indexed.", "root", layout.Root, "files", len(layout.Files()))

	// Without an explicit participant selection, process everyone.
	if len(opts.SubjectList) == 0 {
		opts.SubjectList = layout.Subjects()
	}

	if opts.RunUUID == "" {
		opts.RunUUID = fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString())
	}
	a.logger.Info("Run identifier assigned.", "run_uuid", opts.RunUUID)

	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid run options: %w", err)
	}

	a.logger.Debug("Assembling workflow graph...")
	wf, err := workflows.InitFMRIPrepWF(opts, layout)
	if err != nil {
		return fmt.Errorf("failed to assemble workflow: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return fmt.Errorf("workflow graph is invalid: %w", err)
	}
	nodeNames := wf.NodeNames()
	a.logger.Info("Workflow assembled.", "subjects", len(opts.SubjectList), "nodes", len(nodeNames))

	if a.config.DryRun {
		for _, name := range nodeNames {
			fmt.Fprintln(a.outW, name)
		}
		return nil
	}

	a.logger.Info("Starting execution...")
	runOpts := &engine.RunOptions{
		MaxProcs: opts.Nprocs,
		MemoryGB: opts.MemoryGB,
	}
	if err := wf.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("Execution finished.")
	return nil
}
