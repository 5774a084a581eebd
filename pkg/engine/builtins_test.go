package engine

import (
	"strings"
	"testing"

	"github.com/chazu/bimrepr/pkg/graph"
	"github.com/chazu/bimrepr/pkg/kernel/sdfx"
	"github.com/chazu/bimrepr/pkg/reprnode"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(box :x 4)`,
			expect: `(box "__kw_x" 4)`,
		},
		{
			name:   "multiple keywords",
			input:  `(cylinder :height 3 :radius 0.2)`,
			expect: `(cylinder "__kw_height" 3 "__kw_radius" 0.2)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(repr-node "walls" :target-view "MODEL_VIEW")`,
			expect: `(repr_node "walls" "__kw_target-view" "MODEL_VIEW")`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:context-identifier`,
			expect: `"__kw_context-identifier"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Node declaration tests
// ---------------------------------------------------------------------------

func TestSimpleNode(t *testing.T) {
	eng := newTestEngine()

	source := `
(repr-node "slab"
  :objects (list (mesh "slab-1" (box :x 6 :y 4 :z 0.3))))
`
	s, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if s.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", s.NodeCount())
	}

	n := s.Lookup("slab")
	if n == nil {
		t.Fatal("expected node named 'slab'")
	}
	if n.ID != graph.NewNodeID("slab") {
		t.Errorf("node id = %s, want name-derived id", n.ID)
	}
	if len(n.Objects) != 1 || n.Objects[0].Name != "slab-1" {
		t.Fatalf("objects = %v, want [slab-1]", n.Objects)
	}
	if n.Objects[0].Mesh.IsEmpty() {
		t.Error("object mesh is empty")
	}
	if n.Config != (reprnode.Config{}) {
		t.Errorf("config = %+v, want unset", n.Config)
	}
}

func TestNodeProperties(t *testing.T) {
	eng := newTestEngine()

	source := `
(repr-node "plan"
  :objects (list (mesh "outline" (box :x 1 :y 1 :z 1)))
  :context-type "Plan"
  :context-identifier :Annotation
  :target-view "PLAN_VIEW"
  :paradigm "Tessellation")
`
	s, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	want := reprnode.Config{
		ContextType:       "Plan",
		ContextIdentifier: "Annotation",
		TargetView:        "PLAN_VIEW",
		Paradigm:          reprnode.ParadigmTessellation,
	}
	if got := s.Lookup("plan").Config; got != want {
		t.Errorf("config = %+v, want %+v", got, want)
	}
}

func TestVariableReference(t *testing.T) {
	k := &stubKernel{}
	eng := NewEngine(k)

	source := `
(def wall-a (mesh "wall-a" (box :x 4 :y 0.3 :z 3)))
(def wall-b (mesh "wall-b" (move (box :x 4 :y 0.3 :z 3) :at (vec3 0 4 0))))
(def column (mesh "column" (cylinder :height 3 :radius 0.2)))
(repr-node "walls" :objects (list wall-a wall-b))
(repr-node "columns" :objects (list column))
`
	s, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if s.NodeCount() != 2 {
		t.Fatalf("expected 2 nodes, got %d", s.NodeCount())
	}
	if s.Nodes[0].Name != "walls" || s.Nodes[1].Name != "columns" {
		t.Errorf("nodes out of source order: %s, %s", s.Nodes[0].Name, s.Nodes[1].Name)
	}
	walls := s.Lookup("walls")
	if len(walls.Objects) != 2 || walls.Objects[1].Name != "wall-b" {
		t.Errorf("walls objects = %v", walls.Objects)
	}
	if k.meshed != 3 {
		t.Errorf("meshed %d solids, want 3", k.meshed)
	}
}

func TestEmptyObjectList(t *testing.T) {
	eng := newTestEngine()

	s, evalErrs, err := eng.Evaluate(`(repr-node "idle" :objects (list))`)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if n := s.Lookup("idle"); n == nil || len(n.Objects) != 0 {
		t.Errorf("idle node = %+v, want no objects", n)
	}
}

func TestUnionAndRotate(t *testing.T) {
	eng := newTestEngine()

	source := `
(repr-node "frame"
  :objects (list
    (mesh "frame" (union (box :x 1 :y 1 :z 1)
                         (move (box :x 1 :y 1 :z 1) :at (vec3 2 0 0))
                         (rotate (cylinder :height 2 :radius 0.5) :by (vec3 0 90 0))))))
`
	s, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	// The stub mesh spans the union's upper bound on x.
	m := s.Lookup("frame").Objects[0].Mesh
	if got := m.Vertex(1)[0]; got != 3 {
		t.Errorf("union max x = %g, want 3", got)
	}
}

// ---------------------------------------------------------------------------
// Error tests
// ---------------------------------------------------------------------------

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"box missing axis", `(box :x 1 :y 1)`, "missing :z"},
		{"box negative", `(box :x 1 :y -1 :z 1)`, "must be positive"},
		{"box wrong type", `(box :x "wide" :y 1 :z 1)`, "expected number"},
		{"cylinder missing radius", `(cylinder :height 2)`, "missing :radius"},
		{"vec3 arity", `(vec3 1 2)`, "exactly 3 arguments"},
		{"move without at", `(move (box :x 1 :y 1 :z 1))`, "missing :at"},
		{"move non-solid", `(move 3 :at (vec3 0 0 0))`, "expected solid"},
		{"union one solid", `(union (box :x 1 :y 1 :z 1))`, "at least 2"},
		{"mesh non-solid", `(mesh "a" (vec3 1 2 3))`, "expected solid"},
		{"node without name", `(repr-node :objects (list))`, "requires a name"},
		{"node bad object", `(repr-node "n" :objects (list (box :x 1 :y 1 :z 1)))`, "expected mesh"},
		{"node bad view", `(repr-node "n" :target-view "ELEVATION_VIEW")`, "invalid value"},
		{"node bad paradigm", `(repr-node "n" :paradigm "Brep")`, "invalid value"},
		{"duplicate node", `(repr-node "n") (repr-node "n")`, "duplicate node name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, evalErrs, err := newTestEngine().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("fatal error: %v", err)
			}
			if s != nil {
				t.Error("expected nil script on builtin error")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected eval errors")
			}
			if !strings.Contains(evalErrs[0].Message, tt.want) {
				t.Errorf("message = %q, want containing %q", evalErrs[0].Message, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// sdfx integration
// ---------------------------------------------------------------------------

func TestSdfxMeshes(t *testing.T) {
	eng := NewEngine(sdfx.New(16))

	s, evalErrs, err := eng.Evaluate(`(repr-node "block" :objects (list (mesh "block" (box :x 2 :y 1 :z 1))))`)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	m := s.Lookup("block").Objects[0].Mesh
	if m.TriangleCount() == 0 {
		t.Fatal("sdfx produced no triangles")
	}
	for i := 0; i < m.VertexCount(); i++ {
		v := m.Vertex(i)
		if v[0] < -0.5 || v[0] > 2.5 {
			t.Fatalf("vertex %d x = %g outside the box", i, v[0])
		}
	}
}
