package engine

import "context"

// Values carries the data flowing through a node's ports, keyed by field
// name.
type Values map[string]any

// Interface is one unit of work in the graph. Implementations declare their
// port contract up front so connections can be checked at build time, and
// receive connected inputs when executed.
type Interface interface {
	// InputFields returns the names of the input ports.
	InputFields() []string
	// OutputFields returns the names of the output ports.
	OutputFields() []string
	// Run executes the interface with the connected inputs and returns its
	// outputs. Implementations that write files place them under the
	// scratch directory carried by the context.
	Run(ctx context.Context, in Values) (Values, error)
}

// Transform adapts a single value as it crosses an edge, e.g. picking the
// first element of a multi-valued output for a single-valued input.
type Transform func(any) any
