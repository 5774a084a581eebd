package graph

import (
	"context"
	"fmt"
	"sort"
)

// State is the host-side record of one node.
type State struct {
	ID      NodeID
	Name    string
	Node    Node
	Inputs  Inputs
	Outputs Outputs
	Err     error // error from the most recent evaluation
	seq     int
}

// Tree holds the nodes of one node graph. Evaluation is serial; a Tree is
// not safe for concurrent use.
type Tree struct {
	Nodes     map[NodeID]*State
	NameIndex map[string]NodeID
	seq       int
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		Nodes:     make(map[NodeID]*State),
		NameIndex: make(map[string]NodeID),
	}
}

// Add registers a node under id. Adding an id twice is an error.
func (t *Tree) Add(id NodeID, name string, n Node) error {
	if _, exists := t.Nodes[id]; exists {
		return fmt.Errorf("graph: node %s already exists", id.Short())
	}
	if name != "" {
		if other, taken := t.NameIndex[name]; taken {
			return fmt.Errorf("graph: name %q already used by node %s", name, other.Short())
		}
		t.NameIndex[name] = id
	}
	t.seq++
	t.Nodes[id] = &State{
		ID:     id,
		Name:   name,
		Node:   n,
		Inputs: make(Inputs),
		seq:    t.seq,
	}
	return nil
}

// Get returns the state for id, or nil.
func (t *Tree) Get(id NodeID) *State {
	return t.Nodes[id]
}

// Lookup returns the state of the node with the given name, or nil.
func (t *Tree) Lookup(name string) *State {
	id, ok := t.NameIndex[name]
	if !ok {
		return nil
	}
	return t.Nodes[id]
}

// MustLookup returns the node with the given name, or panics.
func (t *Tree) MustLookup(name string) *State {
	s := t.Lookup(name)
	if s == nil {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return s
}

// NodeCount returns the number of nodes.
func (t *Tree) NodeCount() int {
	return len(t.Nodes)
}

// Ordered returns node states in the order they were added.
func (t *Tree) Ordered() []*State {
	out := make([]*State, 0, len(t.Nodes))
	for _, s := range t.Nodes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// SetInput puts a value on a node's input socket. It does not evaluate.
func (t *Tree) SetInput(id NodeID, socket string, v any) error {
	s := t.Nodes[id]
	if s == nil {
		return fmt.Errorf("graph: no node %s", id.Short())
	}
	s.Inputs[socket] = v
	return nil
}

// Evaluate runs one node. Only the node's declared sockets are passed in;
// undeclared sockets are ignored and unset ones carry nil.
func (t *Tree) Evaluate(ctx context.Context, id NodeID) error {
	s := t.Nodes[id]
	if s == nil {
		return fmt.Errorf("graph: no node %s", id.Short())
	}
	in := make(Inputs, len(s.Inputs))
	for _, name := range s.Node.InputNames() {
		in[name] = s.Inputs[name]
	}
	out, err := s.Node.Process(ctx, in)
	s.Err = err
	if err != nil {
		return err
	}
	if out != nil {
		s.Outputs = out
	}
	return nil
}

// Update evaluates every node in insertion order. A failing node records
// its error and the remaining nodes still run. The returned slice holds the
// failures in evaluation order.
func (t *Tree) Update(ctx context.Context) []error {
	var errs []error
	for _, s := range t.Ordered() {
		if err := t.Evaluate(ctx, s.ID); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", t.label(s), err))
		}
	}
	return errs
}

// Remove deletes a node and calls its teardown hook.
func (t *Tree) Remove(ctx context.Context, id NodeID) error {
	s := t.Nodes[id]
	if s == nil {
		return fmt.Errorf("graph: no node %s", id.Short())
	}
	delete(t.Nodes, id)
	if s.Name != "" {
		delete(t.NameIndex, s.Name)
	}
	s.Node.Free(ctx)
	return nil
}

func (t *Tree) label(s *State) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID.Short()
}
