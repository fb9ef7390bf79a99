package engine

import (
	"context"
	"os"
)

// scratchKey is an unexported context key for the per-node scratch directory.
type scratchKey struct{}

// WithScratchDir returns a context carrying the scratch directory a node may
// write intermediate files into.
func WithScratchDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, scratchKey{}, dir)
}

// ScratchDir returns the scratch directory from the context. When the
// executor did not provide one (e.g. an interface run directly in a test),
// a temporary directory is created instead.
func ScratchDir(ctx context.Context) (string, error) {
	if dir, ok := ctx.Value(scratchKey{}).(string); ok && dir != "" {
		return dir, nil
	}
	return os.MkdirTemp("", "engine-scratch-")
}
