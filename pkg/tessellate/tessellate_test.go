package tessellate_test

import (
	"errors"
	"testing"

	"github.com/chazu/bimrepr/pkg/kernel"
	"github.com/chazu/bimrepr/pkg/kernel/sdfx"
	"github.com/chazu/bimrepr/pkg/tessellate"
)

// soupQuad is a unit square split into two triangles with unshared vertices.
func soupQuad() *kernel.Mesh {
	return &kernel.Mesh{
		Vertices: []float32{
			0, 0, 0, 1, 0, 0, 1, 1, 0,
			0, 0, 0, 1, 1, 0, 0, 1, 0,
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
}

// soupTetra is a closed tetrahedron as a triangle soup.
func soupTetra() *kernel.Mesh {
	p := [4][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	faces := [4][3]int{{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}}
	m := &kernel.Mesh{}
	for _, f := range faces {
		for _, vi := range f {
			m.Indices = append(m.Indices, uint32(len(m.Vertices)/3))
			m.Vertices = append(m.Vertices, p[vi][0], p[vi][1], p[vi][2])
		}
	}
	return m
}

func TestBuildWeldsSharedVertices(t *testing.T) {
	fs, err := tessellate.Build(soupQuad())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(fs.Coordinates) != 4 {
		t.Errorf("coordinates = %d, want 4", len(fs.Coordinates))
	}
	if fs.TriangleCount() != 2 {
		t.Errorf("triangles = %d, want 2", fs.TriangleCount())
	}
	if fs.Closed {
		t.Error("open quad reported as closed")
	}
	for _, tri := range fs.CoordIndex {
		for _, i := range tri {
			if i < 1 || i > len(fs.Coordinates) {
				t.Errorf("index %d out of 1-based range", i)
			}
		}
	}
}

func TestBuildClosedTetra(t *testing.T) {
	fs, err := tessellate.Build(soupTetra())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(fs.Coordinates) != 4 {
		t.Errorf("coordinates = %d, want 4", len(fs.Coordinates))
	}
	if !fs.Closed {
		t.Error("tetrahedron should be closed")
	}
}

func TestBuildDropsDegenerateTriangles(t *testing.T) {
	m := soupQuad()
	m.Vertices = append(m.Vertices, 0, 0, 0, 0, 0, 0, 1, 1, 1)
	m.Indices = append(m.Indices, 6, 7, 8)
	fs, err := tessellate.Build(m)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if fs.TriangleCount() != 2 {
		t.Errorf("triangles = %d, want 2", fs.TriangleCount())
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		mesh *kernel.Mesh
		tol  float64
		want error
	}{
		{"nil mesh", nil, tessellate.DefaultTolerance, tessellate.ErrEmptyMesh},
		{"no indices", &kernel.Mesh{Vertices: []float32{0, 0, 0}}, tessellate.DefaultTolerance, tessellate.ErrEmptyMesh},
		{"all degenerate", &kernel.Mesh{Vertices: []float32{0, 0, 0, 0, 0, 0, 0, 0, 0}, Indices: []uint32{0, 1, 2}}, tessellate.DefaultTolerance, tessellate.ErrEmptyMesh},
		{"bad tolerance", soupQuad(), 0, nil},
		{"index out of range", &kernel.Mesh{Vertices: []float32{0, 0, 0}, Indices: []uint32{0, 1, 2}}, tessellate.DefaultTolerance, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tessellate.BuildWithTolerance(tt.mesh, tt.tol)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildSdfxBox(t *testing.T) {
	k := sdfx.New(16)
	m, err := k.ToMesh(k.Box(10, 10, 10))
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	fs, err := tessellate.Build(m)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(fs.Coordinates) >= m.VertexCount() {
		t.Errorf("welding kept %d of %d vertices", len(fs.Coordinates), m.VertexCount())
	}
	if fs.TriangleCount() == 0 {
		t.Fatal("expected triangles")
	}
}
