// Package symtab implements the variable model and the namespace
// registry: named typed cells and the class-like containers that own
// them.
package symtab

import (
	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/types"
)

// Storage identifies which table a Variable belongs to. A variable
// belongs to exactly one table.
type Storage uint8

const (
	StorageGlobal Storage = iota
	StorageLocal
	StorageParam
	StorageMember
	StorageHashtableEntry
)

func (s Storage) String() string {
	switch s {
	case StorageGlobal:
		return "global"
	case StorageLocal:
		return "local"
	case StorageParam:
		return "param"
	case StorageMember:
		return "member"
	case StorageHashtableEntry:
		return "hashtable-entry"
	default:
		return "storage?"
	}
}

// Variable is a named typed cell. It implements types.VarRef so it
// can sit directly behind a reference-kind Value on the operand stack or
// inside a Hashtable's entry map.
type Variable struct {
	Name    string
	Hash    hash.Hash
	Kind    types.Kind
	Storage Storage

	// FuncCtx links a local/param back to its owning function context;
	// nil for globals, members and hashtable entries.
	FuncCtx *FuncContext
	// Offset is the stack slot offset for locals and parameters.
	Offset int
	// Dynamic marks a member added at runtime via AddDynamicVariable
	// such members shadow namespace members of the same name.
	Dynamic bool

	value types.Value
}

// NewVariable creates a variable entry of the given kind, zero-valued.
func NewVariable(name string, h hash.Hash, kind types.Kind, storage Storage) *Variable {
	return &Variable{Name: name, Hash: h, Kind: kind, Storage: storage, value: zeroOf(kind)}
}

func zeroOf(k types.Kind) types.Value {
	switch k {
	case types.Hashtable:
		return types.NewHashtable()
	default:
		return types.Value{Kind: k}
	}
}

// Get implements types.VarRef.
func (v *Variable) Get() types.Value { return v.value }

// Set implements types.VarRef. Set stores val as given: callers convert
// it to the declared Kind via types.Convert first, except for an untyped
// (Void) hashtable entry, which takes the kind of the value written.
func (v *Variable) Set(val types.Value) { v.value = val }

// DeclaredKind implements types.VarRef.
func (v *Variable) DeclaredKind() types.Kind { return v.Kind }

// FuncContext holds a function's parameter list (slot 0 is always the
// implicit "__return" return-value slot) and local variable table.
type FuncContext struct {
	Params []*Variable
	Locals map[hash.Hash]*Variable
	// NextOffset is the next free stack slot offset to hand out, counted
	// past the parameter list.
	NextOffset int
}

// NewFuncContext creates a context with a reserved return-value slot.
func NewFuncContext() *FuncContext {
	ret := NewVariable("__return", 0, types.Int, StorageParam)
	ret.Offset = 0
	return &FuncContext{
		Params:     []*Variable{ret},
		Locals:     make(map[hash.Hash]*Variable),
		NextOffset: 1,
	}
}

// AddParam appends a parameter to the context, returning its Variable.
// Parameter slots are numbered 1..N following the return slot 0.
func (c *FuncContext) AddParam(name string, h hash.Hash, kind types.Kind) *Variable {
	p := NewVariable(name, h, kind, StorageParam)
	p.Offset = len(c.Params)
	c.Params = append(c.Params, p)
	if p.Offset+1 > c.NextOffset {
		c.NextOffset = p.Offset + 1
	}
	return p
}

// AddLocal declares a new local variable, assigning it the next stack
// offset.
func (c *FuncContext) AddLocal(name string, h hash.Hash, kind types.Kind) *Variable {
	l := NewVariable(name, h, kind, StorageLocal)
	l.FuncCtx = c
	l.Offset = c.NextOffset
	c.NextOffset++
	c.Locals[h] = l
	return l
}

// Lookup finds a parameter or local by name hash.
func (c *FuncContext) Lookup(h hash.Hash) (*Variable, bool) {
	for _, p := range c.Params {
		if p.Hash == h {
			return p, true
		}
	}
	l, ok := c.Locals[h]
	return l, ok
}

// FrameSize is the number of stack slots this function's activation
// record occupies (return slot + params + locals).
func (c *FuncContext) FrameSize() int { return c.NextOffset }

// FrameKinds returns the declared Kind of every slot in the activation
// record, indexed by Offset, so the VM can zero-initialize a fresh
// frame's slots without re-walking Params/Locals on every call.
func (c *FuncContext) FrameKinds() []types.Kind {
	out := make([]types.Kind, c.FrameSize())
	for _, p := range c.Params {
		out[p.Offset] = p.Kind
	}
	for _, l := range c.Locals {
		out[l.Offset] = l.Kind
	}
	return out
}
