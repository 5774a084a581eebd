package graph

import (
	"context"
	"errors"
	"testing"
)

// recordingNode counts lifecycle calls and echoes its "in" socket.
type recordingNode struct {
	processed int
	freed     int
	lastIn    Inputs
	fail      error
	silent    bool
}

func (n *recordingNode) InputNames() []string { return []string{"in", "other"} }

func (n *recordingNode) Process(_ context.Context, in Inputs) (Outputs, error) {
	n.processed++
	n.lastIn = in
	if n.fail != nil {
		return nil, n.fail
	}
	if n.silent {
		return nil, nil
	}
	return Outputs{"out": in["in"]}, nil
}

func (n *recordingNode) Free(context.Context) { n.freed++ }

var _ Node = (*recordingNode)(nil)

func TestNewNodeIDStable(t *testing.T) {
	a := NewNodeID("walls")
	b := NewNodeID("walls")
	c := NewNodeID("slabs")
	if a != b {
		t.Errorf("NewNodeID not stable: %s != %s", a, b)
	}
	if a == c {
		t.Error("different names produced the same id")
	}
	if len(a.Short()) != 8 {
		t.Errorf("Short() = %q, want 8 chars", a.Short())
	}
	if RandomNodeID() == RandomNodeID() {
		t.Error("RandomNodeID repeated")
	}
}

func TestAddAndLookup(t *testing.T) {
	tr := New()
	id := NewNodeID("walls")
	if err := tr.Add(id, "walls", &recordingNode{}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if tr.NodeCount() != 1 {
		t.Errorf("NodeCount() = %d, want 1", tr.NodeCount())
	}
	if s := tr.Lookup("walls"); s == nil || s.ID != id {
		t.Errorf("Lookup(walls) = %v", s)
	}
	if tr.Lookup("missing") != nil {
		t.Error("Lookup should return nil for missing name")
	}
	if err := tr.Add(id, "again", &recordingNode{}); err == nil {
		t.Error("duplicate id accepted")
	}
	if err := tr.Add(NewNodeID("x"), "walls", &recordingNode{}); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestMustLookupPanics(t *testing.T) {
	tr := New()
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustLookup should panic on missing name")
		}
	}()
	tr.MustLookup("missing")
}

func TestEvaluatePassesDeclaredSockets(t *testing.T) {
	tr := New()
	n := &recordingNode{}
	id := NewNodeID("a")
	if err := tr.Add(id, "a", n); err != nil {
		t.Fatal(err)
	}
	if err := tr.SetInput(id, "in", []int{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := tr.SetInput(id, "ignored", "x"); err != nil {
		t.Fatal(err)
	}
	if err := tr.Evaluate(context.Background(), id); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if _, ok := n.lastIn["ignored"]; ok {
		t.Error("undeclared socket passed to node")
	}
	if v, ok := n.lastIn["other"]; !ok || v != nil {
		t.Errorf("unset socket = %v, %v; want nil, true", v, ok)
	}
	if got := tr.Get(id).Outputs["out"]; got == nil {
		t.Error("outputs not published")
	}
}

func TestEvaluateKeepsOutputsOnNil(t *testing.T) {
	tr := New()
	n := &recordingNode{}
	id := NewNodeID("a")
	tr.Add(id, "a", n)
	tr.SetInput(id, "in", "first")
	if err := tr.Evaluate(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	n.silent = true
	tr.SetInput(id, "in", "second")
	if err := tr.Evaluate(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if got := tr.Get(id).Outputs["out"]; got != "first" {
		t.Errorf("outputs = %v, want first", got)
	}
}

func TestUpdateContinuesPastFailures(t *testing.T) {
	tr := New()
	boom := errors.New("boom")
	bad := &recordingNode{fail: boom}
	good := &recordingNode{}
	tr.Add(NewNodeID("bad"), "bad", bad)
	tr.Add(NewNodeID("good"), "good", good)

	errs := tr.Update(context.Background())
	if len(errs) != 1 {
		t.Fatalf("Update() errors = %v, want 1", errs)
	}
	if !errors.Is(errs[0], boom) {
		t.Errorf("error = %v, want boom", errs[0])
	}
	if good.processed != 1 {
		t.Errorf("good node processed %d times, want 1", good.processed)
	}
	if tr.Lookup("bad").Err == nil {
		t.Error("error state not recorded on failing node")
	}
}

func TestOrderedFollowsInsertion(t *testing.T) {
	tr := New()
	names := []string{"c", "a", "b"}
	for _, name := range names {
		tr.Add(NewNodeID(name), name, &recordingNode{})
	}
	for i, s := range tr.Ordered() {
		if s.Name != names[i] {
			t.Errorf("Ordered()[%d] = %s, want %s", i, s.Name, names[i])
		}
	}
}

func TestRemoveCallsFree(t *testing.T) {
	tr := New()
	n := &recordingNode{}
	id := NewNodeID("a")
	tr.Add(id, "a", n)

	if err := tr.Remove(context.Background(), id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if n.freed != 1 {
		t.Errorf("Free called %d times, want 1", n.freed)
	}
	if tr.Lookup("a") != nil || tr.Get(id) != nil {
		t.Error("node still present after Remove")
	}
	if err := tr.Remove(context.Background(), id); err == nil {
		t.Error("second Remove should fail")
	}
}
