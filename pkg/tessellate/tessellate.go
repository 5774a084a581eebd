// Package tessellate turns kernel triangle meshes into indexed
// triangulated face sets, the geometry payload of a tessellation
// representation. Coincident vertices are welded and triangles that
// collapse after welding are dropped.
package tessellate

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/bimrepr/pkg/kernel"
)

// DefaultTolerance is the welding distance for coincident vertices.
const DefaultTolerance = 1e-6

// ErrEmptyMesh is returned when a mesh has no usable triangles.
var ErrEmptyMesh = errors.New("tessellate: mesh has no triangles")

// FaceSet is an indexed triangle set. CoordIndex entries are 1-based
// positions into Coordinates, following the building-data-model convention.
type FaceSet struct {
	Coordinates [][3]float64 `json:"coordinates"`
	CoordIndex  [][3]int     `json:"coord_index"`
	Closed      bool         `json:"closed"`
}

// TriangleCount returns the number of triangles.
func (fs *FaceSet) TriangleCount() int {
	return len(fs.CoordIndex)
}

type weldKey [3]int64

// welder assigns a shared index to vertices that fall in the same
// tolerance cell.
type welder struct {
	tol    float64
	index  map[weldKey]int
	coords [][3]float64
}

func newWelder(tol float64) *welder {
	return &welder{tol: tol, index: make(map[weldKey]int)}
}

func (w *welder) add(v [3]float64) int {
	k := weldKey{
		int64(math.Round(v[0] / w.tol)),
		int64(math.Round(v[1] / w.tol)),
		int64(math.Round(v[2] / w.tol)),
	}
	if i, ok := w.index[k]; ok {
		return i
	}
	w.coords = append(w.coords, v)
	i := len(w.coords)
	w.index[k] = i
	return i
}

// Build converts m into a FaceSet using DefaultTolerance.
func Build(m *kernel.Mesh) (*FaceSet, error) {
	return BuildWithTolerance(m, DefaultTolerance)
}

// BuildWithTolerance converts m into a FaceSet, welding vertices closer than
// tol. The mesh is never mutated.
func BuildWithTolerance(m *kernel.Mesh, tol float64) (*FaceSet, error) {
	if m.IsEmpty() {
		return nil, ErrEmptyMesh
	}
	if tol <= 0 {
		return nil, fmt.Errorf("tessellate: tolerance must be positive, got %g", tol)
	}
	if len(m.Indices)%3 != 0 {
		return nil, fmt.Errorf("tessellate: index count %d is not a multiple of 3", len(m.Indices))
	}

	nv := uint32(m.VertexCount())
	w := newWelder(tol)
	fs := &FaceSet{}
	edges := make(map[[2]int]int)

	for t := 0; t < m.TriangleCount(); t++ {
		var tri [3]int
		for j := 0; j < 3; j++ {
			vi := m.Indices[t*3+j]
			if vi >= nv {
				return nil, fmt.Errorf("tessellate: triangle %d references vertex %d of %d", t, vi, nv)
			}
			tri[j] = w.add(m.Vertex(int(vi)))
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			continue
		}
		fs.CoordIndex = append(fs.CoordIndex, tri)
		for j := 0; j < 3; j++ {
			a, b := tri[j], tri[(j+1)%3]
			if a > b {
				a, b = b, a
			}
			edges[[2]int{a, b}]++
		}
	}

	if len(fs.CoordIndex) == 0 {
		return nil, ErrEmptyMesh
	}

	fs.Coordinates = w.coords
	fs.Closed = true
	for _, n := range edges {
		if n != 2 {
			fs.Closed = false
			break
		}
	}
	return fs, nil
}
