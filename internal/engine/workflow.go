package engine

import (
	"fmt"
	"strings"
)

// Edge connects an upstream member's output port to a downstream member's
// input port. Ports on nested workflow members are dotted, naming the inner
// node and its field (e.g. "outputnode.t1_preproc").
type Edge struct {
	From     string
	FromPort string
	To       string
	ToPort   string
	// Transform, if set, adapts the value as it crosses the edge.
	Transform Transform
}

// member is one entry of a workflow: either a node or a nested workflow.
type member struct {
	node     *Node
	workflow *Workflow
}

// Workflow is a named, directed graph of nodes and nested workflows.
// Members keep insertion order so graph listings are deterministic.
type Workflow struct {
	name     string
	baseDir  string
	settings Settings
	order    []string
	members  map[string]*member
	edges    []*Edge
	// connected tracks destination ports so each accepts at most one edge.
	connected map[string]bool
}

// NewWorkflow creates an empty workflow with the given name. Names must be
// non-empty and must not contain dots.
func NewWorkflow(name string) *Workflow {
	if name == "" || strings.Contains(name, ".") {
		panic(fmt.Sprintf("invalid workflow name %q", name))
	}
	return &Workflow{
		name:      name,
		settings:  make(Settings),
		members:   make(map[string]*member),
		connected: make(map[string]bool),
	}
}

// Name returns the workflow's name.
func (w *Workflow) Name() string { return w.name }

// SetBaseDir sets the directory under which the executor creates per-node
// scratch directories.
func (w *Workflow) SetBaseDir(dir string) { w.baseDir = dir }

// BaseDir returns the workflow's scratch root.
func (w *Workflow) BaseDir() string { return w.baseDir }

// Settings returns the workflow-level configuration for mutation.
func (w *Workflow) Settings() Settings { return w.settings }

// AddNode registers a node as a member of this workflow.
func (w *Workflow) AddNode(n *Node) error {
	if _, exists := w.members[n.Name()]; exists {
		return fmt.Errorf("workflow %s already has a member named %s", w.name, n.Name())
	}
	w.members[n.Name()] = &member{node: n}
	w.order = append(w.order, n.Name())
	return nil
}

// AddWorkflow registers a nested workflow as a member of this workflow. A
// nested workflow needs no connections; this is how otherwise-disconnected
// sub-graphs join the run.
func (w *Workflow) AddWorkflow(child *Workflow) error {
	if _, exists := w.members[child.Name()]; exists {
		return fmt.Errorf("workflow %s already has a member named %s", w.name, child.Name())
	}
	w.members[child.Name()] = &member{workflow: child}
	w.order = append(w.order, child.Name())
	return nil
}

// Connect wires an upstream output port to a downstream input port. Both
// members must already be added; ports are checked against the member port
// contracts, and a destination port accepts at most one incoming edge.
func (w *Workflow) Connect(from, fromPort, to, toPort string) error {
	return w.ConnectWith(from, fromPort, to, toPort, nil)
}

// ConnectWith is Connect with a value transform applied as data crosses the
// edge.
func (w *Workflow) ConnectWith(from, fromPort, to, toPort string, transform Transform) error {
	if from == to {
		return fmt.Errorf("workflow %s: self-connection on member %s", w.name, from)
	}
	src, ok := w.members[from]
	if !ok {
		return fmt.Errorf("workflow %s has no member %s", w.name, from)
	}
	dst, ok := w.members[to]
	if !ok {
		return fmt.Errorf("workflow %s has no member %s", w.name, to)
	}
	if err := checkPort(src, fromPort, false); err != nil {
		return fmt.Errorf("workflow %s: %s.%s: %w", w.name, from, fromPort, err)
	}
	if err := checkPort(dst, toPort, true); err != nil {
		return fmt.Errorf("workflow %s: %s.%s: %w", w.name, to, toPort, err)
	}

	key := to + "\x00" + toPort
	if w.connected[key] {
		return fmt.Errorf("workflow %s: input port %s.%s is already connected", w.name, to, toPort)
	}
	w.connected[key] = true

	w.edges = append(w.edges, &Edge{
		From:      from,
		FromPort:  fromPort,
		To:        to,
		ToPort:    toPort,
		Transform: transform,
	})
	return nil
}

// checkPort verifies that a member exposes the given port. Node ports are
// plain field names; nested workflow ports are dotted paths resolved against
// the inner members.
func checkPort(m *member, port string, isInput bool) error {
	if m.node != nil {
		if strings.Contains(port, ".") {
			return fmt.Errorf("dotted port on a plain node")
		}
		if isInput && !m.node.HasInput(port) {
			return fmt.Errorf("no such input port")
		}
		if !isInput && !m.node.HasOutput(port) {
			return fmt.Errorf("no such output port")
		}
		return nil
	}

	inner, field, found := strings.Cut(port, ".")
	if !found {
		return fmt.Errorf("port on a nested workflow must name an inner node")
	}
	im, ok := m.workflow.members[inner]
	if !ok {
		return fmt.Errorf("nested workflow has no member %s", inner)
	}
	return checkPort(im, field, isInput)
}

// Edges returns the workflow's connections. Callers must not mutate the
// returned slice.
func (w *Workflow) Edges() []*Edge { return w.edges }

// MemberNames returns the names of the direct members in insertion order.
func (w *Workflow) MemberNames() []string {
	names := make([]string, len(w.order))
	copy(names, w.order)
	return names
}

// Subworkflow returns the direct nested workflow with the given name.
func (w *Workflow) Subworkflow(name string) (*Workflow, bool) {
	m, ok := w.members[name]
	if !ok || m.workflow == nil {
		return nil, false
	}
	return m.workflow, true
}

// NodeNames returns the dotted names of every node in this workflow and all
// nested workflows, in deterministic insertion order.
func (w *Workflow) NodeNames() []string {
	var names []string
	for _, name := range w.order {
		m := w.members[name]
		if m.node != nil {
			names = append(names, name)
			continue
		}
		for _, inner := range m.workflow.NodeNames() {
			names = append(names, name+"."+inner)
		}
	}
	return names
}

// FindNode resolves a dotted node name as returned by NodeNames.
func (w *Workflow) FindNode(dotted string) (*Node, error) {
	head, rest, nested := strings.Cut(dotted, ".")
	m, ok := w.members[head]
	if !ok {
		return nil, fmt.Errorf("workflow %s has no member %s", w.name, head)
	}
	if !nested {
		if m.node == nil {
			return nil, fmt.Errorf("member %s of workflow %s is a workflow, not a node", head, w.name)
		}
		return m.node, nil
	}
	if m.workflow == nil {
		return nil, fmt.Errorf("member %s of workflow %s is a node, not a workflow", head, w.name)
	}
	return m.workflow.FindNode(rest)
}

// PropagateSettings copies the workflow-level settings onto every node in
// this workflow and all nested workflows. Each node receives its own clone.
func (w *Workflow) PropagateSettings() {
	w.propagate(w.settings)
}

func (w *Workflow) propagate(settings Settings) {
	for _, name := range w.order {
		m := w.members[name]
		if m.node != nil {
			m.node.Settings = settings.Clone()
			continue
		}
		m.workflow.propagate(settings)
	}
}

// Validate checks the workflow and every nested workflow for dependency
// cycles among direct members.
func (w *Workflow) Validate() error {
	// Classic three-state depth-first search over member dependencies.
	deps := make(map[string][]string)
	for _, e := range w.edges {
		deps[e.From] = append(deps[e.From], e.To)
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(w.order))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("workflow %s: cycle detected involving member %s", w.name, name)
		}
		state[name] = visiting
		for _, next := range deps[name] {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for _, name := range w.order {
		if err := visit(name); err != nil {
			return err
		}
	}

	for _, name := range w.order {
		if m := w.members[name]; m.workflow != nil {
			if err := m.workflow.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
