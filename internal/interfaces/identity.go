package interfaces

import (
	"context"

	"github.com/vk/fmriprep-go/internal/engine"
)

// Identity is a pass-through node exposing the same named fields as inputs
// and outputs. Workflows use identity nodes as their inputnode/outputnode
// port boundaries.
type Identity struct {
	fields []string
}

// NewIdentity creates an identity node over the given field names.
func NewIdentity(fields ...string) *Identity {
	return &Identity{fields: fields}
}

func (i *Identity) InputFields() []string  { return i.fields }
func (i *Identity) OutputFields() []string { return i.fields }

// Run echoes every connected input to the output port of the same name.
// Unconnected fields stay absent, which downstream nodes must tolerate.
func (i *Identity) Run(_ context.Context, in engine.Values) (engine.Values, error) {
	out := make(engine.Values, len(i.fields))
	for _, field := range i.fields {
		if value, ok := in[field]; ok {
			out[field] = value
		}
	}
	return out, nil
}

// Function is an ad-hoc leaf node defined by a Go function and an explicit
// port contract.
type Function struct {
	inputs  []string
	outputs []string
	fn      func(ctx context.Context, in engine.Values) (engine.Values, error)
}

// NewFunction wraps fn as a node with the given input and output ports.
func NewFunction(inputs, outputs []string, fn func(ctx context.Context, in engine.Values) (engine.Values, error)) *Function {
	return &Function{inputs: inputs, outputs: outputs, fn: fn}
}

func (f *Function) InputFields() []string  { return f.inputs }
func (f *Function) OutputFields() []string { return f.outputs }

func (f *Function) Run(ctx context.Context, in engine.Values) (engine.Values, error) {
	return f.fn(ctx, in)
}
