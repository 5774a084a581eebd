package reprnode

import (
	"bytes"
	"reflect"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/chazu/bimrepr/pkg/document"
	"github.com/chazu/bimrepr/pkg/graph"
)

// Category groups the entity ids a node owns.
type Category string

const (
	Representations Category = "Representations"
	Contexts        Category = "Contexts"
)

// snapshotPlaceholder marks an input that has never been observed.
const snapshotPlaceholder = 0

// Registry holds the per-node bookkeeping shared by every node of a
// document: the output registry (node -> category -> entity ids) and the
// input snapshots used for change detection.
type Registry struct {
	mu        sync.Mutex
	outputs   map[graph.NodeID]map[Category][]document.ID
	snapshots map[graph.NodeID]map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		outputs:   make(map[graph.NodeID]map[Category][]document.ID),
		snapshots: make(map[graph.NodeID]map[string]any),
	}
}

// Has reports whether the node has an output registry entry.
func (r *Registry) Has(id graph.NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.outputs[id]
	return ok
}

// HasCategory reports whether the node has recorded ids under cat.
func (r *Registry) HasCategory(id graph.NodeID, cat Category) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.outputs[id][cat]
	return ok
}

// IDs returns a copy of the ids recorded for the node under cat.
func (r *Registry) IDs(id graph.NodeID, cat Category) []document.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.outputs[id][cat]
	if ids == nil {
		return nil
	}
	return append([]document.ID(nil), ids...)
}

// Append records ids under cat, creating the node entry if needed.
func (r *Registry) Append(id graph.NodeID, cat Category, ids ...document.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.outputs[id]
	if !ok {
		entry = make(map[Category][]document.ID)
		r.outputs[id] = entry
	}
	entry[cat] = append(entry[cat], ids...)
}

// Remove drops one id from the node's category. Emptied categories are
// kept; use Drop to clear one.
func (r *Registry) Remove(id graph.NodeID, cat Category, eid document.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.outputs[id]
	ids, ok := entry[cat]
	if !ok {
		return
	}
	for i, v := range ids {
		if v == eid {
			entry[cat] = append(ids[:i:i], ids[i+1:]...)
			return
		}
	}
}

// Drop clears a whole category for the node.
func (r *Registry) Drop(id graph.NodeID, cat Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outputs[id], cat)
}

// Forget deletes the node's output entry and input snapshot.
func (r *Registry) Forget(id graph.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outputs, id)
	delete(r.snapshots, id)
}

// Nodes lists node identities with an output entry, sorted.
func (r *Registry) Nodes() []graph.NodeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]graph.NodeID, 0, len(r.outputs))
	for id := range r.outputs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Owner returns the node that recorded eid under cat, if any.
func (r *Registry) Owner(cat Category, eid document.ID) (graph.NodeID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.outputs {
		for _, v := range entry[cat] {
			if v == eid {
				return id, true
			}
		}
	}
	return "", false
}

// Snapshot returns a copy of the node's input snapshot and whether one
// exists.
func (r *Registry) Snapshot(id graph.NodeID) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snapshots[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out, true
}

// DetectChange compares the current inputs with the node's snapshot and
// reports whether any structured input changed. The first call for a node
// seeds the snapshot with placeholders and reports no change. Only stored
// values that are slices, arrays or maps are compared, so the first real
// comparison happens on the second call. Inputs restored by LoadSnapshots
// are compared through their JSON encoding. The snapshot is replaced by the
// current inputs on every call.
func (r *Registry) DetectChange(id graph.NodeID, inputs map[string]any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.snapshots[id]
	if !ok {
		prev = make(map[string]any, len(inputs))
		for name := range inputs {
			prev[name] = snapshotPlaceholder
		}
	}

	changed := false
	next := make(map[string]any, len(inputs))
	for name, cur := range inputs {
		if inputChanged(prev[name], cur) {
			changed = true
		}
		next[name] = cur
	}
	r.snapshots[id] = next
	return changed
}

// encodedInput is a structured input restored from its JSON encoding. It is
// compared against current inputs by encoding them the same way.
type encodedInput []byte

func inputChanged(old, cur any) bool {
	if enc, ok := old.(encodedInput); ok {
		b, err := json.Marshal(cur)
		return err != nil || !bytes.Equal(enc, b)
	}
	return isStructured(old) && !reflect.DeepEqual(old, cur)
}

func isStructured(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}
