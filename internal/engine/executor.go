package engine

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vk/fmriprep-go/internal/ctxlog"
)

// RunOptions tunes a workflow execution.
type RunOptions struct {
	// WorkDir is the scratch root. Defaults to the workflow base dir; a
	// temporary directory is created when neither is set.
	WorkDir string
	// MaxProcs caps the number of nodes executing at once. Zero or negative
	// means no cap.
	MaxProcs int
	// MemoryGB is the total memory budget for concurrently running nodes,
	// apportioned by each node's MemGB hint. Zero disables the budget.
	MemoryGB float64
}

// limiter gates node execution against the process and memory budgets.
type limiter struct {
	procs    *semaphore.Weighted
	mem      *semaphore.Weighted
	memTotal int64
}

func newLimiter(opts *RunOptions) *limiter {
	l := &limiter{}
	if opts.MaxProcs > 0 {
		l.procs = semaphore.NewWeighted(int64(opts.MaxProcs))
	}
	if opts.MemoryGB > 0 {
		l.memTotal = int64(math.Ceil(opts.MemoryGB * 1024))
		l.mem = semaphore.NewWeighted(l.memTotal)
	}
	return l
}

// memWeight converts a node's MemGB hint into semaphore units (MB), clamped
// so a single oversized hint can still be scheduled.
func (l *limiter) memWeight(memGB float64) int64 {
	weight := int64(math.Ceil(memGB * 1024))
	if weight < 1 {
		weight = 1
	}
	if weight > l.memTotal {
		weight = l.memTotal
	}
	return weight
}

func (l *limiter) acquire(ctx context.Context, n *Node) (release func(), err error) {
	var got []func()
	if l.procs != nil && !n.RunWithoutSubmitting {
		if err := l.procs.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		got = append(got, func() { l.procs.Release(1) })
	}
	if l.mem != nil {
		weight := l.memWeight(n.MemGB)
		if err := l.mem.Acquire(ctx, weight); err != nil {
			for _, f := range got {
				f()
			}
			return nil, err
		}
		got = append(got, func() { l.mem.Release(weight) })
	}
	return func() {
		for _, f := range got {
			f()
		}
	}, nil
}

// Run validates the workflow and executes it, honoring member dependencies.
// Independent nodes run concurrently within the configured budgets. The
// first node failure cancels the run.
func (w *Workflow) Run(ctx context.Context, opts *RunOptions) error {
	if opts == nil {
		opts = &RunOptions{}
	}
	if err := w.Validate(); err != nil {
		return err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = w.baseDir
	}
	if workDir == "" {
		dir, err := os.MkdirTemp("", w.name+"-")
		if err != nil {
			return fmt.Errorf("failed to create scratch root: %w", err)
		}
		workDir = dir
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting workflow execution.", "workflow", w.name, "work_dir", workDir)

	_, err := w.runMembers(ctx, newLimiter(opts), filepath.Join(workDir, w.name), nil)
	if err != nil {
		return err
	}
	logger.Info("Workflow execution finished.", "workflow", w.name)
	return nil
}

// runMembers executes the direct members of the workflow in dependency
// order and returns each member's outputs. Node members map to their output
// Values; nested workflow members map to their own member-output maps.
func (w *Workflow) runMembers(ctx context.Context, lim *limiter, dir string, seed map[string]Values) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)

	// Distinct upstream members per member.
	upstream := make(map[string]map[string]bool)
	dependents := make(map[string][]string)
	for _, e := range w.edges {
		if upstream[e.To] == nil {
			upstream[e.To] = make(map[string]bool)
		}
		if !upstream[e.To][e.From] {
			upstream[e.To][e.From] = true
			dependents[e.From] = append(dependents[e.From], e.To)
		}
	}

	var mu sync.Mutex
	results := make(map[string]any, len(w.order))
	remaining := make(map[string]int, len(w.order))
	for _, name := range w.order {
		remaining[name] = len(upstream[name])
	}

	g, gctx := errgroup.WithContext(ctx)

	var launch func(name string)
	launch = func(name string) {
		g.Go(func() error {
			out, err := w.runMember(gctx, lim, dir, name, seed, results, &mu)
			if err != nil {
				return err
			}
			mu.Lock()
			results[name] = out
			var ready []string
			for _, dep := range dependents[name] {
				remaining[dep]--
				if remaining[dep] == 0 {
					ready = append(ready, dep)
				}
			}
			mu.Unlock()
			for _, dep := range ready {
				launch(dep)
			}
			return nil
		})
	}

	for _, name := range w.order {
		if remaining[name] == 0 {
			launch(name)
		}
	}

	if err := g.Wait(); err != nil {
		logger.Error("Workflow failed.", "workflow", w.name, "error", err)
		return nil, err
	}
	return results, nil
}

// runMember executes a single member with the inputs gathered from its
// incoming edges and the seed values.
func (w *Workflow) runMember(ctx context.Context, lim *limiter, dir, name string, seed map[string]Values, results map[string]any, mu *sync.Mutex) (any, error) {
	m := w.members[name]

	if m.workflow != nil {
		childSeed := make(map[string]Values)
		addSeed := func(port string, value any) {
			inner, field, _ := strings.Cut(port, ".")
			if childSeed[inner] == nil {
				childSeed[inner] = make(Values)
			}
			childSeed[inner][field] = value
		}
		for port, value := range seed[name] {
			addSeed(port, value)
		}
		mu.Lock()
		for _, e := range w.edges {
			if e.To != name {
				continue
			}
			if value, ok := resolveOutput(results[e.From], e.FromPort); ok {
				addSeed(e.ToPort, applyTransform(e.Transform, value))
			}
		}
		mu.Unlock()
		return m.workflow.runMembers(ctx, lim, filepath.Join(dir, name), childSeed)
	}

	node := m.node
	in := make(Values)
	for field, value := range seed[name] {
		in[field] = value
	}
	mu.Lock()
	for _, e := range w.edges {
		if e.To != name {
			continue
		}
		if value, ok := resolveOutput(results[e.From], e.FromPort); ok {
			in[e.ToPort] = applyTransform(e.Transform, value)
		}
	}
	mu.Unlock()

	release, err := lim.acquire(ctx, node)
	if err != nil {
		return nil, err
	}
	defer release()

	scratch := filepath.Join(dir, name)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir for node %s: %w", name, err)
	}

	logger := ctxlog.FromContext(ctx).With("node", name, "workflow", w.name)
	logger.Debug("Node started.")
	out, err := node.Interface().Run(WithScratchDir(ctx, scratch), in)
	if err != nil {
		logger.Error("Node failed.", "error", err)
		w.dumpCrash(node, name, err)
		return nil, fmt.Errorf("node %s.%s: %w", w.name, name, err)
	}
	logger.Debug("Node finished.")
	return out, nil
}

// dumpCrash records a node failure under the crash-dump directory from the
// node's execution settings, when one is configured.
func (w *Workflow) dumpCrash(node *Node, name string, nodeErr error) {
	crashDir := node.Settings.GetString("execution", "crashdump_dir")
	if crashDir == "" {
		return
	}
	if err := os.MkdirAll(crashDir, 0o755); err != nil {
		return
	}
	body := fmt.Sprintf("node: %s.%s\nerror: %v\n", w.name, name, nodeErr)
	_ = os.WriteFile(filepath.Join(crashDir, "crash-"+name+".txt"), []byte(body), 0o644)
}

// resolveOutput extracts a port's value from a member result. Node results
// are Values; nested workflow results are member-output maps addressed by
// dotted ports.
func resolveOutput(result any, port string) (any, bool) {
	switch r := result.(type) {
	case Values:
		value, ok := r[port]
		return value, ok
	case map[string]any:
		inner, field, found := strings.Cut(port, ".")
		if !found {
			return nil, false
		}
		return resolveOutput(r[inner], field)
	default:
		return nil, false
	}
}

func applyTransform(t Transform, value any) any {
	if t == nil {
		return value
	}
	return t(value)
}
