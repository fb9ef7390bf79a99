// Package engine provides the workflow graph the preprocessing builders
// assemble: named nodes with named input/output ports, nested sub-workflows,
// per-node settings, and a dependency-ordered parallel executor.
//
// The engine knows nothing about neuroimaging. Builders compose a Workflow
// out of Interface implementations, connect output ports to input ports
// (optionally through a value transform), and hand the result to Run.
package engine
