package tin

import (
	"github.com/pkg/errors"

	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/types"
)

// GetGlobal reads a global variable's current value. The bool reports
// whether name names a declared global.
func (c *Context) GetGlobal(name string) (Value, bool) {
	v, _ := c.reg.Global.FindMember(hash.Of(name))
	if v == nil {
		return Value{}, false
	}
	return v.Get(), true
}

// SetGlobal writes val to the named global, converting it to the
// global's declared kind. Reports whether name names a declared global.
func (c *Context) SetGlobal(name string, val Value) (bool, error) {
	v, _ := c.reg.Global.FindMember(hash.Of(name))
	if v == nil {
		return false, nil
	}
	converted, err := types.Convert(v.DeclaredKind(), val, c.strtab)
	if err != nil {
		return true, errors.Wrapf(err, "tin: set global %q", name)
	}
	v.Set(converted)
	return true, nil
}
