package reprnode

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chazu/bimrepr/pkg/document"
)

// reload opens the saved document with a fresh registry, the way a new
// process would.
func reload(t *testing.T, path string) (*document.Document, *Registry) {
	t.Helper()
	doc, err := document.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	reg := NewRegistry()
	Reconcile(doc, reg)
	if _, err := LoadSnapshots(doc, reg); err != nil {
		t.Fatalf("LoadSnapshots() error = %v", err)
	}
	return doc, reg
}

func persist(t *testing.T, reg *Registry, doc *document.Document, path string) {
	t.Helper()
	if err := SaveSnapshots(reg, doc); err != nil {
		t.Fatalf("SaveSnapshots() error = %v", err)
	}
	if err := doc.Save(context.Background(), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestSnapshotsSurviveReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model.db")

	doc := document.New()
	reg := NewRegistry()
	out, err := newTestNode("n1", reg, doc, Options{}).Process(ctx, objectsInput(meshObject("a", 0)))
	if err != nil {
		t.Fatal(err)
	}
	first := repIDs(representations(t, out))
	persist(t, reg, doc, path)

	tests := []struct {
		name    string
		opts    Options
		offset  float32
		rebuilt bool
		view    string
	}{
		{"unchanged", Options{}, 0, false, "MODEL_VIEW"},
		{"moved object", Options{}, 7, true, "MODEL_VIEW"},
		{"new target view", Options{Config: Config{TargetView: "PLAN_VIEW"}}, 0, true, "PLAN_VIEW"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, r := reload(t, path)
			out, err := newTestNode("n1", r, loaded, tt.opts).Process(ctx, objectsInput(meshObject("a", tt.offset)))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			reps := representations(t, out)
			if got := reflect.DeepEqual(repIDs(reps), first); got == tt.rebuilt {
				t.Errorf("ids = %v, first run %v; rebuilt = %v, want %v", repIDs(reps), first, !got, tt.rebuilt)
			}
			e, err := loaded.ByID(reps[0][0].Context)
			if err != nil {
				t.Fatal(err)
			}
			if got := e.(*document.Context).TargetView; got != tt.view {
				t.Errorf("target view = %s, want %s", got, tt.view)
			}
		})
	}
}

func TestSnapshotsForgottenOnTeardown(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model.db")
	doc := document.New()
	reg := NewRegistry()
	n := newTestNode("n1", reg, doc, Options{})
	if _, err := n.Process(ctx, objectsInput(meshObject("a", 0))); err != nil {
		t.Fatal(err)
	}
	n.Free(ctx)
	persist(t, reg, doc, path)

	loaded, r := reload(t, path)
	if len(loaded.InputSnapshots()) != 0 {
		t.Errorf("snapshots = %v, want none", loaded.InputSnapshots())
	}
	if _, ok := r.Snapshot(n.ID()); ok {
		t.Error("freed node snapshot restored")
	}
}

func TestLoadSnapshotsKeepsKnownNodes(t *testing.T) {
	reg := NewRegistry()
	id := newTestNode("n1", reg, document.New(), Options{}).ID()
	reg.DetectChange(id, map[string]any{SocketTargetView: []string{"MODEL_VIEW"}})

	doc := document.New()
	doc.SetInputSnapshots(map[string][]byte{
		string(id): []byte(`{"target_view":"[\"PLAN_VIEW\"]"}`),
	})
	n, err := LoadSnapshots(doc, reg)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("LoadSnapshots() = %d, want 0", n)
	}
	if reg.DetectChange(id, map[string]any{SocketTargetView: []string{"MODEL_VIEW"}}) {
		t.Error("in-memory snapshot replaced by stored one")
	}

	doc.SetInputSnapshots(map[string][]byte{"other": []byte("not json")})
	if _, err := LoadSnapshots(doc, NewRegistry()); err == nil {
		t.Error("corrupt snapshot accepted")
	}
}
