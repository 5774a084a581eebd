package reprnode

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/chazu/bimrepr/pkg/document"
	"github.com/chazu/bimrepr/pkg/graph"
)

// SnapshotStore keeps encoded input snapshots across process restarts.
type SnapshotStore interface {
	InputSnapshots() map[string][]byte
	SetInputSnapshots(map[string][]byte)
}

var _ SnapshotStore = (*document.Document)(nil)

// SaveSnapshots encodes the structured inputs of every node snapshot into
// store. Placeholders are not written.
func SaveSnapshots(reg *Registry, store SnapshotStore) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make(map[string][]byte, len(reg.snapshots))
	for id, snap := range reg.snapshots {
		enc := make(map[string]string, len(snap))
		for name, v := range snap {
			switch t := v.(type) {
			case encodedInput:
				enc[name] = string(t)
			default:
				if !isStructured(v) {
					continue
				}
				b, err := json.Marshal(v)
				if err != nil {
					return fmt.Errorf("encode %s input %s: %w", id.Short(), name, err)
				}
				enc[name] = string(b)
			}
		}
		b, err := json.Marshal(enc)
		if err != nil {
			return fmt.Errorf("encode %s snapshot: %w", id.Short(), err)
		}
		out[string(id)] = b
	}
	store.SetInputSnapshots(out)
	return nil
}

// LoadSnapshots restores node snapshots from store. Nodes that already have
// a snapshot in reg are left alone. It returns the number restored.
func LoadSnapshots(store SnapshotStore, reg *Registry) (int, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	n := 0
	for node, payload := range store.InputSnapshots() {
		id := graph.NodeID(node)
		if _, ok := reg.snapshots[id]; ok {
			continue
		}
		var enc map[string]string
		if err := json.Unmarshal(payload, &enc); err != nil {
			return n, fmt.Errorf("decode %s snapshot: %w", id.Short(), err)
		}
		snap := make(map[string]any, len(enc))
		for name, v := range enc {
			snap[name] = encodedInput(v)
		}
		reg.snapshots[id] = snap
		n++
	}
	return n, nil
}
