package tin

import (
	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/symtab"
)

// Call invokes a free script or native function by name with args,
// returning its result.
func (c *Context) Call(name string, args ...Value) (Value, error) {
	return c.m.CallFunction(symtab.GlobalNamespaceHash, hash.Of(name), 0, args)
}

// CallMethod invokes a method named name against the object identified
// by objID, walking its namespace's inheritance chain to resolve it.
func (c *Context) CallMethod(objID uint32, name string, args ...Value) (Value, error) {
	return c.m.CallFunction(symtab.GlobalNamespaceHash, hash.Of(name), objID, args)
}
