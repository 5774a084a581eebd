// Package document is a small in-process building-data-model document.
// It stores geometric representation contexts, shape representations and
// triangulated face sets as numbered entities, tracks inverse references
// between them, and persists to SQLite.
package document

import (
	"fmt"

	"github.com/chazu/bimrepr/pkg/tessellate"
)

// ID is an entity step id. Zero is never assigned.
type ID int

// Entity class names.
const (
	ClassContext        = "IfcGeometricRepresentationContext"
	ClassSubContext     = "IfcGeometricRepresentationSubContext"
	ClassRepresentation = "IfcShapeRepresentation"
	ClassFaceSet        = "IfcTriangulatedFaceSet"
)

// RepresentationTypeTessellation is the representation type produced for
// mesh geometry.
const RepresentationTypeTessellation = "Tessellation"

// Entity is any object stored in a Document.
type Entity interface {
	EntityID() ID
	Class() string
	// References lists the ids this entity points at.
	References() []ID
}

// Context classifies representations by type, identifier and target view.
// A context with a zero Parent is a root context.
type Context struct {
	ID          ID     `json:"id"`
	ContextType string `json:"context_type"`
	Identifier  string `json:"identifier,omitempty"`
	TargetView  string `json:"target_view,omitempty"`
	Parent      ID     `json:"parent,omitempty"`
	Owner       string `json:"owner,omitempty"` // node identity that created it
}

func (c *Context) EntityID() ID { return c.ID }

func (c *Context) Class() string {
	if c.Parent != 0 {
		return ClassSubContext
	}
	return ClassContext
}

func (c *Context) References() []ID {
	if c.Parent != 0 {
		return []ID{c.Parent}
	}
	return nil
}

func (c *Context) String() string {
	if c.Parent == 0 {
		return fmt.Sprintf("#%d=%s(%s)", c.ID, c.Class(), c.ContextType)
	}
	return fmt.Sprintf("#%d=%s(%s/%s/%s)", c.ID, c.Class(), c.ContextType, c.Identifier, c.TargetView)
}

// Representation is a shape representation bound to one context.
type Representation struct {
	ID                 ID     `json:"id"`
	Context            ID     `json:"context"`
	Identifier         string `json:"identifier"`
	RepresentationType string `json:"representation_type"`
	Items              []ID   `json:"items"`
	Source             string `json:"source,omitempty"` // source mesh object name
	Owner              string `json:"owner,omitempty"`  // node identity that created it
}

func (r *Representation) EntityID() ID { return r.ID }

func (r *Representation) Class() string { return ClassRepresentation }

func (r *Representation) References() []ID {
	refs := make([]ID, 0, len(r.Items)+1)
	refs = append(refs, r.Context)
	return append(refs, r.Items...)
}

func (r *Representation) String() string {
	return fmt.Sprintf("#%d=%s(%s,%s,%d items)", r.ID, r.Class(), r.Identifier, r.RepresentationType, len(r.Items))
}

// FaceSet is a triangulated face set item.
type FaceSet struct {
	ID ID `json:"id"`
	tessellate.FaceSet
}

func (f *FaceSet) EntityID() ID { return f.ID }

func (f *FaceSet) Class() string { return ClassFaceSet }

func (f *FaceSet) References() []ID { return nil }

func (f *FaceSet) String() string {
	return fmt.Sprintf("#%d=%s(%d points,%d triangles)", f.ID, f.Class(), len(f.Coordinates), f.TriangleCount())
}
