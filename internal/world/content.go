package world

import (
	"sync"
	"sync/atomic"
)

// Content identifies the type of a node
type Content uint16

const (
	ContentAir Content = 0
)

// MaterialID identifies a surface material (texture + blend state).
type MaterialID uint32

// Material is a shared surface resource. Every holder takes a share with
// Acquire and gives it back with Release; the creator holds the first share.
type Material struct {
	ID          MaterialID
	Name        string
	Transparent bool

	refs atomic.Int32
}

// NewMaterial creates a material owned by the caller.
func NewMaterial(id MaterialID, name string, transparent bool) *Material {
	m := &Material{ID: id, Name: name, Transparent: transparent}
	m.refs.Store(1)
	return m
}

// Acquire takes a share of the material and returns it for chaining.
func (m *Material) Acquire() *Material {
	m.refs.Add(1)
	return m
}

// Release gives back a share. Releasing more shares than were taken panics,
// since that would leave a dangling resource behind in some holder.
func (m *Material) Release() {
	if m.refs.Add(-1) < 0 {
		panic("world: material " + m.Name + " released more than acquired")
	}
}

// Refs returns the number of outstanding shares.
func (m *Material) Refs() int32 {
	return m.refs.Load()
}

// NodeDef describes how a content type looks and whether it blocks sight.
type NodeDef struct {
	Name     string
	Opaque   bool
	Material *Material
}

// NodeDefs is the content registry shared by the map and the mesher.
type NodeDefs struct {
	mu   sync.RWMutex
	defs map[Content]NodeDef
}

// NewNodeDefs creates a registry that only knows air.
func NewNodeDefs() *NodeDefs {
	return &NodeDefs{
		defs: map[Content]NodeDef{
			ContentAir: {Name: "air"},
		},
	}
}

// Register adds or replaces a content definition.
func (d *NodeDefs) Register(c Content, def NodeDef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defs[c] = def
}

// Get returns the definition of a content type.
func (d *NodeDefs) Get(c Content) (NodeDef, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	def, ok := d.defs[c]
	return def, ok
}

// Opaque reports whether the content blocks line of sight. Unknown content
// is treated as see-through.
func (d *NodeDefs) Opaque(c Content) bool {
	def, ok := d.Get(c)
	return ok && def.Opaque
}
