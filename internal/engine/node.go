package engine

import (
	"fmt"
	"strings"
)

// Node is a named vertex in the workflow graph wrapping a single Interface.
type Node struct {
	name  string
	iface Interface

	// MemGB is the node's estimated peak memory in gigabytes, used by the
	// executor's memory budget.
	MemGB float64
	// RunWithoutSubmitting marks lightweight nodes that bypass the worker
	// budget instead of occupying an execution slot.
	RunWithoutSubmitting bool
	// Settings is the node's copy of the workflow configuration.
	Settings Settings
}

// NewNode wraps an Interface under the given name. Names must be non-empty
// and must not contain dots, which are reserved for addressing nested
// workflows.
func NewNode(name string, iface Interface) *Node {
	if name == "" || strings.Contains(name, ".") {
		panic(fmt.Sprintf("invalid node name %q", name))
	}
	if iface == nil {
		panic(fmt.Sprintf("node %q has no interface", name))
	}
	return &Node{
		name:     name,
		iface:    iface,
		Settings: make(Settings),
	}
}

// Name returns the node's local name.
func (n *Node) Name() string { return n.name }

// Interface returns the wrapped interface.
func (n *Node) Interface() Interface { return n.iface }

// HasInput reports whether the node declares an input port with the given
// name.
func (n *Node) HasInput(field string) bool {
	return containsField(n.iface.InputFields(), field)
}

// HasOutput reports whether the node declares an output port with the given
// name.
func (n *Node) HasOutput(field string) bool {
	return containsField(n.iface.OutputFields(), field)
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
