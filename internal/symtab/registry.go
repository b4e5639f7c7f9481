package symtab

import (
	"github.com/pkg/errors"

	"github.com/tinscript/tin/internal/hash"
)

// Registry owns the global namespace and the class namespaces registered
// against it. The global namespace hosts free functions and variables
// not attached to any class.
type Registry struct {
	Global  *Namespace
	classes map[hash.Hash]*Namespace
}

// NewRegistry creates a registry with just the global namespace.
func NewRegistry() *Registry {
	return &Registry{
		Global:  NewNamespace(""),
		classes: make(map[hash.Hash]*Namespace),
	}
}

// DeclareClass registers a new class namespace named name, optionally
// linked to a parent class named parentName ("" for no parent). Returns
// an error if the class is already declared under a different parent
// or if parentName is unknown.
func (r *Registry) DeclareClass(name, parentName string) (*Namespace, error) {
	h := hash.Of(name)
	if ns, ok := r.classes[h]; ok {
		if parentName == "" {
			return ns, nil
		}
		ph := hash.Of(parentName)
		if ns.Parent != nil && ns.Parent.Hash != ph {
			return nil, errors.Errorf("symtab: class %q already declared with a different parent", name)
		}
		return ns, nil
	}
	ns := NewNamespace(name)
	if parentName != "" {
		parent, ok := r.classes[hash.Of(parentName)]
		if !ok {
			return nil, errors.Errorf("symtab: unknown parent namespace %q for class %q", parentName, name)
		}
		if err := LinkNamespaces(ns, parent); err != nil {
			return nil, err
		}
	}
	r.classes[h] = ns
	return ns, nil
}

// Class looks up a class namespace by name hash.
func (r *Registry) Class(h hash.Hash) (*Namespace, bool) {
	ns, ok := r.classes[h]
	return ns, ok
}

// ClassByName looks up a class namespace by name.
func (r *Registry) ClassByName(name string) (*Namespace, bool) {
	return r.Class(hash.Of(name))
}
