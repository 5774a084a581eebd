package graph

import (
	"context"

	"github.com/google/uuid"
)

// NodeID is the durable, host-assigned identity of a node.
type NodeID string

// nodeNamespace scopes name-derived node ids.
var nodeNamespace = uuid.MustParse("5d0c6f0e-8f0a-4b8e-9a43-6b1f3f2f8e11")

// NewNodeID derives a stable id from a node name. The same name always
// yields the same id, across processes.
func NewNodeID(name string) NodeID {
	return NodeID(uuid.NewSHA1(nodeNamespace, []byte(name)).String())
}

// RandomNodeID returns a fresh id for an anonymous node.
func RandomNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// Short returns the first eight characters of the id for display.
func (id NodeID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Inputs maps input socket names to the values currently on them.
type Inputs map[string]any

// Outputs maps output socket names to published values.
type Outputs map[string]any

// Node is implemented by everything the host can evaluate.
type Node interface {
	// InputNames lists the node's input sockets in declaration order.
	InputNames() []string

	// Process evaluates the node. A nil Outputs with a nil error means the
	// node produced nothing new and its previous outputs stay published.
	Process(ctx context.Context, in Inputs) (Outputs, error)

	// Free is called once when the node is removed from the tree. It must
	// not fail.
	Free(ctx context.Context)
}
