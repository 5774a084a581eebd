package engine

import (
	"github.com/chazu/bimrepr/pkg/graph"
	"github.com/chazu/bimrepr/pkg/kernel"
	"github.com/chazu/bimrepr/pkg/reprnode"
)

// NodeSpec describes one representation node declared by a script.
type NodeSpec struct {
	ID      graph.NodeID
	Name    string
	Objects []kernel.Object

	// Config holds the properties set in the script. Empty fields fall
	// back to the caller's defaults.
	Config reprnode.Config
}

// Script is the result of evaluating a script: its node declarations in
// source order.
type Script struct {
	Nodes []NodeSpec
	index map[string]int
}

// NewScript returns an empty script.
func NewScript() *Script {
	return &Script{index: make(map[string]int)}
}

// NodeCount returns the number of declared nodes.
func (s *Script) NodeCount() int {
	return len(s.Nodes)
}

// Lookup returns the node declared under name, or nil.
func (s *Script) Lookup(name string) *NodeSpec {
	i, ok := s.index[name]
	if !ok {
		return nil
	}
	return &s.Nodes[i]
}

// add appends spec, reporting false if its name is taken.
func (s *Script) add(spec NodeSpec) bool {
	if _, taken := s.index[spec.Name]; taken {
		return false
	}
	s.index[spec.Name] = len(s.Nodes)
	s.Nodes = append(s.Nodes, spec)
	return true
}
