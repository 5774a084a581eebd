package reprnode

import (
	"github.com/chazu/bimrepr/pkg/document"
	"github.com/chazu/bimrepr/pkg/graph"
)

// Inventory lists the entities of a document.
type Inventory interface {
	Entities() []document.Entity
}

var _ Inventory = (*document.Document)(nil)

// Reconcile rebuilds output registry entries from the owner tags of a
// loaded document. Nodes that already have an entry in reg are left alone.
// Ids are recorded in ascending order, which is creation order. It returns
// the number of ids recorded.
func Reconcile(doc Inventory, reg *Registry) int {
	known := make(map[graph.NodeID]bool)
	for _, id := range reg.Nodes() {
		known[id] = true
	}

	n := 0
	for _, e := range doc.Entities() {
		var (
			owner string
			cat   Category
		)
		switch t := e.(type) {
		case *document.Representation:
			owner, cat = t.Owner, Representations
		case *document.Context:
			owner, cat = t.Owner, Contexts
		default:
			continue
		}
		if owner == "" || known[graph.NodeID(owner)] {
			continue
		}
		reg.Append(graph.NodeID(owner), cat, e.EntityID())
		n++
	}
	return n
}
