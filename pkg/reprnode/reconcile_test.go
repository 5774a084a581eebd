package reprnode

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chazu/bimrepr/pkg/document"
)

func TestReconcileAfterReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model.db")
	doc := document.New()
	reg := NewRegistry()
	n1 := newTestNode("n1", reg, doc, Options{})
	n2 := newTestNode("n2", reg, doc, Options{})

	if _, err := n1.Process(ctx, objectsInput(meshObject("a", 0), meshObject("b", 2))); err != nil {
		t.Fatal(err)
	}
	if _, err := n2.Process(ctx, objectsInput(meshObject("c", 4))); err != nil {
		t.Fatal(err)
	}
	if err := doc.Save(ctx, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := document.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	fresh := NewRegistry()
	if got := Reconcile(loaded, fresh); got != 4 {
		t.Errorf("Reconcile() = %d, want 4", got)
	}
	for _, n := range []*Node{n1, n2} {
		for _, cat := range []Category{Representations, Contexts} {
			if got, want := fresh.IDs(n.ID(), cat), reg.IDs(n.ID(), cat); !reflect.DeepEqual(got, want) {
				t.Errorf("%s %s = %v, want %v", n.ID().Short(), cat, got, want)
			}
		}
	}

	// A reconciled node can be torn down after reload.
	m := newTestNode("n2", fresh, loaded, Options{})
	m.Free(ctx)
	if got := len(loaded.Representations()); got != 2 {
		t.Errorf("representations after teardown = %d, want 2", got)
	}
}

func TestReconcileKeepsKnownNodes(t *testing.T) {
	ctx := context.Background()
	doc := document.New()
	reg := NewRegistry()
	n := newTestNode("n1", reg, doc, Options{})
	if _, err := n.Process(ctx, objectsInput(meshObject("a", 0))); err != nil {
		t.Fatal(err)
	}
	if got := Reconcile(doc, reg); got != 0 {
		t.Errorf("Reconcile() = %d, want 0 for already known node", got)
	}
	if len(reg.IDs(n.ID(), Representations)) != 1 {
		t.Error("Reconcile duplicated ids")
	}
}

func TestReconcileSkipsDepartedCreator(t *testing.T) {
	ctx := context.Background()
	doc := document.New()
	reg := NewRegistry()
	n1 := newTestNode("n1", reg, doc, Options{})
	n2 := newTestNode("n2", reg, doc, Options{})
	if _, err := n1.Process(ctx, objectsInput(meshObject("a", 0))); err != nil {
		t.Fatal(err)
	}
	if _, err := n2.Process(ctx, objectsInput(meshObject("b", 2))); err != nil {
		t.Fatal(err)
	}
	shared := reg.IDs(n1.ID(), Contexts)[0]

	// n1 leaves while n2 still uses its context.
	n1.Free(ctx)
	e, err := doc.ByID(shared)
	if err != nil {
		t.Fatalf("shared context removed: %v", err)
	}
	if owner := e.(*document.Context).Owner; owner != "" {
		t.Errorf("retained context owner = %q, want empty", owner)
	}

	fresh := NewRegistry()
	Reconcile(doc, fresh)
	if fresh.Has(n1.ID()) {
		t.Error("departed creator restored from a retained context")
	}
	if !fresh.Has(n2.ID()) {
		t.Error("remaining node not restored")
	}
}
