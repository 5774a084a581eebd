package document

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/bimrepr/pkg/kernel"
	"github.com/chazu/bimrepr/pkg/tessellate"
)

// DefaultSchema is the schema identifier written to new documents.
const DefaultSchema = "IFC4"

// ContextParams describes a context to create. Identifier, TargetView and
// Parent are optional; a context without a parent is a root context.
type ContextParams struct {
	ContextType string
	Identifier  string
	TargetView  string
	Parent      *Context
	Owner       string
}

// Document is the shared building-data-model document. All methods are safe
// for concurrent use.
type Document struct {
	mu       sync.RWMutex
	schema   string
	nextID   ID
	entities map[ID]Entity
	inverse  map[ID]map[ID]struct{} // target -> referrers

	// Encoded input snapshots of the nodes working on the document, by
	// node identity. Opaque to the document.
	snapshots map[string][]byte
}

// New creates an empty document.
func New() *Document {
	return &Document{
		schema:    DefaultSchema,
		nextID:    1,
		entities:  make(map[ID]Entity),
		inverse:   make(map[ID]map[ID]struct{}),
		snapshots: make(map[string][]byte),
	}
}

// Schema returns the document schema identifier.
func (d *Document) Schema() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.schema
}

// Len returns the number of live entities.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entities)
}

// Entities returns all live entities ordered by id.
func (d *Document) Entities() []Entity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entity, 0, len(d.entities))
	for _, e := range d.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

// Contexts returns all contexts ordered by id.
func (d *Document) Contexts() []*Context {
	var out []*Context
	for _, e := range d.Entities() {
		if c, ok := e.(*Context); ok {
			out = append(out, c)
		}
	}
	return out
}

// Representations returns all representations ordered by id.
func (d *Document) Representations() []*Representation {
	var out []*Representation
	for _, e := range d.Entities() {
		if r, ok := e.(*Representation); ok {
			out = append(out, r)
		}
	}
	return out
}

// ByID returns the entity with the given id.
func (d *Document) ByID(id ID) (Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entities[id]
	if !ok {
		return nil, fmt.Errorf("#%d: %w", id, ErrNotFound)
	}
	return e, nil
}

// InverseReferences returns the ids of entities that reference id, in
// ascending order.
func (d *Document) InverseReferences(id ID) []ID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	refs := d.inverse[id]
	out := make([]ID, 0, len(refs))
	for r := range refs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GetContext finds the context matching the exact (type, identifier, view)
// triple. Empty identifier and view select a root context of that type.
func (d *Document) GetContext(contextType, identifier, targetView string) *Context {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var found *Context
	for _, e := range d.entities {
		c, ok := e.(*Context)
		if !ok || c.ContextType != contextType {
			continue
		}
		if identifier == "" && targetView == "" {
			if c.Parent != 0 {
				continue
			}
		} else if c.Identifier != identifier || c.TargetView != targetView {
			continue
		}
		if found == nil || c.ID < found.ID {
			found = c
		}
	}
	return found
}

// AddContext creates a context. A parent, when given, must be a live root
// context.
func (d *Document) AddContext(p ContextParams) (*Context, error) {
	if p.ContextType == "" {
		return nil, fmt.Errorf("add context: empty context type: %w", ErrRejected)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	c := &Context{
		ContextType: p.ContextType,
		Identifier:  p.Identifier,
		TargetView:  p.TargetView,
		Owner:       p.Owner,
	}
	if p.Parent != nil {
		parent, ok := d.entities[p.Parent.ID].(*Context)
		if !ok {
			return nil, fmt.Errorf("add context: parent #%d: %w", p.Parent.ID, ErrNotFound)
		}
		if parent.Parent != 0 {
			return nil, fmt.Errorf("add context: parent #%d is a sub-context: %w", parent.ID, ErrRejected)
		}
		c.Parent = parent.ID
	}
	c.ID = d.allocate()
	d.insert(c)
	return c, nil
}

// RemoveContext removes a context that nothing references.
func (d *Document) RemoveContext(c *Context) error {
	if c == nil {
		return fmt.Errorf("remove context: nil context: %w", ErrNotFound)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entities[c.ID].(*Context); !ok {
		return fmt.Errorf("remove context #%d: %w", c.ID, ErrNotFound)
	}
	if n := len(d.inverse[c.ID]); n > 0 {
		return fmt.Errorf("remove context #%d: %d referrers: %w", c.ID, n, ErrReferenced)
	}
	d.drop(c.ID)
	return nil
}

// AddRepresentation creates a tessellation representation of obj under the
// sub-context c. owner tags the representation with the creating node
// identity. Root contexts, axis contexts and meshes without triangles are
// rejected with ErrRejected.
func (d *Document) AddRepresentation(obj kernel.Object, c *Context, owner string) (*Representation, error) {
	if c == nil {
		return nil, fmt.Errorf("add representation: nil context: %w", ErrRejected)
	}
	fs, err := tessellate.Build(obj.Mesh)
	if err != nil {
		if errors.Is(err, tessellate.ErrEmptyMesh) {
			return nil, fmt.Errorf("add representation %q: %v: %w", obj.Name, err, ErrRejected)
		}
		return nil, fmt.Errorf("add representation %q: %w", obj.Name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	live, ok := d.entities[c.ID].(*Context)
	if !ok {
		return nil, fmt.Errorf("add representation: context #%d: %w", c.ID, ErrNotFound)
	}
	if live.Parent == 0 {
		return nil, fmt.Errorf("add representation: context #%d is not a sub-context: %w", live.ID, ErrRejected)
	}
	if live.Identifier == "Axis" {
		return nil, fmt.Errorf("add representation: axis context #%d cannot hold tessellations: %w", live.ID, ErrRejected)
	}

	item := &FaceSet{ID: d.allocate(), FaceSet: *fs}
	d.insert(item)

	rep := &Representation{
		ID:                 d.allocate(),
		Context:            live.ID,
		Identifier:         live.Identifier,
		RepresentationType: RepresentationTypeTessellation,
		Items:              []ID{item.ID},
		Source:             obj.Name,
		Owner:              owner,
	}
	d.insert(rep)
	return rep, nil
}

// RemoveRepresentation removes a representation and any of its items that
// nothing else references.
func (d *Document) RemoveRepresentation(r *Representation) error {
	if r == nil {
		return fmt.Errorf("remove representation: nil representation: %w", ErrNotFound)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	live, ok := d.entities[r.ID].(*Representation)
	if !ok {
		return fmt.Errorf("remove representation #%d: %w", r.ID, ErrNotFound)
	}
	d.drop(live.ID)
	for _, item := range live.Items {
		if len(d.inverse[item]) == 0 {
			d.drop(item)
		}
	}
	return nil
}

// InputSnapshots returns a copy of the stored node input snapshots.
func (d *Document) InputSnapshots() map[string][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]byte, len(d.snapshots))
	for k, v := range d.snapshots {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// SetInputSnapshots replaces the stored node input snapshots. They are
// persisted by Save.
func (d *Document) SetInputSnapshots(snaps map[string][]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshots = make(map[string][]byte, len(snaps))
	for k, v := range snaps {
		d.snapshots[k] = append([]byte(nil), v...)
	}
}

// ReleaseContext clears the owner tag of a context that its creator left
// behind because other entities still reference it.
func (d *Document) ReleaseContext(c *Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c == nil {
		return fmt.Errorf("%w: nil context", ErrNotFound)
	}
	e, ok := d.entities[c.ID]
	if !ok {
		return fmt.Errorf("context #%d: %w", c.ID, ErrNotFound)
	}
	stored, ok := e.(*Context)
	if !ok {
		return fmt.Errorf("#%d is a %s: %w", c.ID, e.Class(), ErrRejected)
	}
	stored.Owner = ""
	c.Owner = ""
	return nil
}

func (d *Document) allocate() ID {
	id := d.nextID
	d.nextID++
	return id
}

// insert stores e and indexes its outgoing references. Caller holds mu.
func (d *Document) insert(e Entity) {
	id := e.EntityID()
	d.entities[id] = e
	for _, ref := range e.References() {
		set, ok := d.inverse[ref]
		if !ok {
			set = make(map[ID]struct{})
			d.inverse[ref] = set
		}
		set[id] = struct{}{}
	}
	if id >= d.nextID {
		d.nextID = id + 1
	}
}

// drop removes the entity and its outgoing references. Caller holds mu.
func (d *Document) drop(id ID) {
	e, ok := d.entities[id]
	if !ok {
		return
	}
	for _, ref := range e.References() {
		if set := d.inverse[ref]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(d.inverse, ref)
			}
		}
	}
	delete(d.entities, id)
}
