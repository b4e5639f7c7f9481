// Package objects implements the object registry: live objects keyed
// by id, name and host address, plus the per-object dynamic variable
// table added to at runtime.
package objects

import (
	"github.com/pkg/errors"

	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/symtab"
	"github.com/tinscript/tin/internal/types"
)

// Object is a live script or host-registered object entry.
type Object struct {
	ID        uint32
	NameHash  hash.Hash
	Namespace *symtab.Namespace
	HostAddr  uintptr // 0 for pure script objects

	// Dynamic holds members added at runtime via AddDynamicVariable; it
	// shadows namespace members of the same name hash and is
	// created lazily on first use.
	Dynamic map[hash.Hash]*symtab.Variable
}

// FindMember resolves a member access against o: dynamic members first,
// falling back to the namespace's inherited member table.
func (o *Object) FindMember(h hash.Hash) (*symtab.Variable, bool) {
	if o.Dynamic != nil {
		if v, ok := o.Dynamic[h]; ok {
			return v, true
		}
	}
	if o.Namespace != nil {
		if v, _ := o.Namespace.FindMember(h); v != nil {
			return v, true
		}
	}
	return nil, false
}

// AddDynamicVariable adds a runtime member to o, shadowing any namespace
// member of the same name.
func (o *Object) AddDynamicVariable(name string, h hash.Hash, kind types.Kind) *symtab.Variable {
	if o.Dynamic == nil {
		o.Dynamic = make(map[hash.Hash]*symtab.Variable)
	}
	v := symtab.NewVariable(name, h, kind, symtab.StorageMember)
	v.Dynamic = true
	o.Dynamic[h] = v
	return v
}

// Registry is the live-object table with three O(1) indices.
type Registry struct {
	byID   map[uint32]*Object
	byName map[hash.Hash]*Object
	byAddr map[uintptr]*Object
	nextID uint32
}

// New creates an empty object registry. Ids start at 1; 0 is reserved.
func New() *Registry {
	return &Registry{
		byID:   make(map[uint32]*Object),
		byName: make(map[hash.Hash]*Object),
		byAddr: make(map[uintptr]*Object),
		nextID: 1,
	}
}

// Register creates and inserts a new object. nameHash may be hash.Zero
// for an anonymous object; hostAddr may be 0 for a pure script object.
// Every member declared directly on ns (and its ancestors) is copied into
// the new object's own dynamic table, so each instance gets its own
// storage rather than sharing the class's single Variable; a registered
// native class's member declarations are instance data the same way a
// script self.x assignment inside a method is.
func (r *Registry) Register(ns *symtab.Namespace, nameHash hash.Hash, hostAddr uintptr) (*Object, error) {
	if nameHash != hash.Zero {
		if _, exists := r.byName[nameHash]; exists {
			return nil, errors.Errorf("objects: name already in use")
		}
	}
	o := &Object{ID: r.nextID, NameHash: nameHash, Namespace: ns, HostAddr: hostAddr}
	r.nextID++
	r.byID[o.ID] = o
	if nameHash != hash.Zero {
		r.byName[nameHash] = o
	}
	if hostAddr != 0 {
		r.byAddr[hostAddr] = o
	}
	for n := ns; n != nil; n = n.Parent {
		for h, v := range n.Members {
			if _, ok := o.Dynamic[h]; !ok {
				o.AddDynamicVariable(v.Name, h, v.Kind)
			}
		}
	}
	return o, nil
}

// ByID looks up an object by id.
func (r *Registry) ByID(id uint32) (*Object, bool) {
	o, ok := r.byID[id]
	return o, ok
}

// ByName looks up an object by name hash.
func (r *Registry) ByName(h hash.Hash) (*Object, bool) {
	o, ok := r.byName[h]
	return o, ok
}

// ByAddr looks up an object by host address.
func (r *Registry) ByAddr(addr uintptr) (*Object, bool) {
	o, ok := r.byAddr[addr]
	return o, ok
}

// Destroy removes the object with the given id from all three indices.
// Returns the removed object (nil if the id did not exist) so the caller
// can run native destructors and OnDestroy callbacks before it is
// discarded.
func (r *Registry) Destroy(id uint32) *Object {
	o, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	if o.NameHash != hash.Zero {
		delete(r.byName, o.NameHash)
	}
	if o.HostAddr != 0 {
		delete(r.byAddr, o.HostAddr)
	}
	return o
}

// Len returns the number of live objects.
func (r *Registry) Len() int { return len(r.byID) }
