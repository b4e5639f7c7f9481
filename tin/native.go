package tin

import (
	"github.com/pkg/errors"

	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/symtab"
)

// NativeFunc is the thunk signature for a native free function or
// method; args excludes the implicit return slot.
type NativeFunc = symtab.NativeFunc

// NativeCtor constructs a host-side object for a native class and
// returns its host address, invoked by a script create expression.
type NativeCtor = symtab.NativeCtor

// NativeDtor releases the host-side object at hostAddr, invoked by a
// script destroy statement.
type NativeDtor = symtab.NativeDtor

// MemberDescriptor is one member of a native type's layout.
type MemberDescriptor struct {
	Name string
	Kind Kind
}

// RegisterNativeType declares a class namespace named name with the
// given member layout, without wiring a constructor/destructor. Use it
// for value-like native types that are never created via a script
// `create` expression; RegisterNativeClass builds on this by
// additionally wiring Ctor/Dtor for types the script can instantiate.
func (c *Context) RegisterNativeType(name string, members []MemberDescriptor) error {
	ns, err := c.reg.DeclareClass(name, "")
	if err != nil {
		return errors.Wrapf(err, "tin: register native type %q", name)
	}
	for _, m := range members {
		ns.AddMember(m.Name, hash.Of(m.Name), m.Kind)
	}
	return nil
}

// RegisterNativeClass declares (or augments) a class namespace named
// name, linked to parentName ("" for none), with the constructor and
// destructor a script `create`/`destroy` invokes.
func (c *Context) RegisterNativeClass(name, parentName string, ctor NativeCtor, dtor NativeDtor) error {
	ns, err := c.reg.DeclareClass(name, parentName)
	if err != nil {
		return errors.Wrapf(err, "tin: register native class %q", name)
	}
	ns.Ctor = ctor
	ns.Dtor = dtor
	return nil
}

// nativeContext builds the FuncContext the VM needs to size a native
// call's activation record: one parameter slot per entry in paramKinds,
// in order. A parameter kind of KindVoid accepts the caller's argument
// unconverted, the same convention used for an untyped hashtable entry.
func nativeContext(paramKinds []Kind) *symtab.FuncContext {
	fc := symtab.NewFuncContext()
	for _, k := range paramKinds {
		fc.AddParam("", hash.Zero, k)
	}
	return fc
}

// RegisterNativeFunction adds a native free function to the global
// namespace. paramKinds is the function's signature: at a script call
// site the VM converts each argument to the matching kind before the
// thunk runs, the same implicit-conversion rule as an ordinary
// assignment; arguments passed through Call, CallMethod or a scheduled
// call are placed in the slots unconverted.
func (c *Context) RegisterNativeFunction(name string, paramKinds []Kind, thunk NativeFunc) {
	h := hash.Of(name)
	c.reg.Global.AddMethod(&symtab.Function{
		Name: name, Hash: h, NamespaceHash: symtab.GlobalNamespaceHash,
		Kind: symtab.FuncNativeGlobal, Native: thunk, Context: nativeContext(paramKinds),
	})
}

// RegisterNativeMethod adds a native method to the class namespace named
// class, declaring the class with no parent if not already known.
func (c *Context) RegisterNativeMethod(class, name string, paramKinds []Kind, thunk NativeFunc) error {
	ns, err := c.reg.DeclareClass(class, "")
	if err != nil {
		return errors.Wrapf(err, "tin: register native method %s::%s", class, name)
	}
	h := hash.Of(name)
	ns.AddMethod(&symtab.Function{
		Name: name, Hash: h, NamespaceHash: ns.Hash,
		Kind: symtab.FuncNativeMethod, Native: thunk, Context: nativeContext(paramKinds),
	})
	return nil
}
