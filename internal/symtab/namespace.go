package symtab

import (
	"github.com/pkg/errors"

	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/types"
)

// NativeCtor constructs a host-side object for a native class and returns
// its host address.
type NativeCtor func(name string) (hostAddr uintptr, err error)

// NativeDtor releases the host-side object at hostAddr.
type NativeDtor func(hostAddr uintptr)

// NativeFunc is the thunk signature for both native global functions and
// native methods. self is the receiver's registered host address (0 for
// a free function or an object with no host address), bound ahead of the
// call by the VM's method dispatch so the thunk can recover which
// instance it is operating on without depending on the object registry.
type NativeFunc func(self uintptr, args []types.Value) (types.Value, error)

// FuncKind distinguishes script-defined functions from host-registered
// ones.
type FuncKind uint8

const (
	FuncScript FuncKind = iota
	FuncNativeGlobal
	FuncNativeMethod
)

// Function is a named callable: script body (code-block + offset) or a
// native dispatcher, plus its own parameter/local context.
type Function struct {
	Name          string
	Hash          hash.Hash
	NamespaceHash hash.Hash
	Kind          FuncKind

	// Script body locator.
	BlockFile string // code block filename, empty for native functions
	Offset    int    // byte offset of the body within the code block

	// Native dispatcher, non-nil when Kind != FuncScript.
	Native NativeFunc

	Context *FuncContext
}

// Namespace is a class-like container of members and methods, linked to a
// parent for inheritance. The distinguished empty-name
// namespace is the global namespace.
type Namespace struct {
	Name   string
	Hash   hash.Hash
	Parent *Namespace

	Ctor NativeCtor
	Dtor NativeDtor

	Members map[hash.Hash]*Variable
	Methods map[hash.Hash]*Function
}

// GlobalNamespaceHash is the hash of the empty namespace name, used as the
// key for the top-level global namespace.
const GlobalNamespaceHash hash.Hash = hash.Zero

// NewNamespace creates an unlinked namespace.
func NewNamespace(name string) *Namespace {
	h := hash.Zero
	if name != "" {
		h = hash.Of(name)
	}
	return &Namespace{
		Name:    name,
		Hash:    h,
		Members: make(map[hash.Hash]*Variable),
		Methods: make(map[hash.Hash]*Function),
	}
}

// LinkNamespaces sets parent as child's parent. Idempotent (re-linking to
// the same parent is a no-op) and rejects cycles.
func LinkNamespaces(child, parent *Namespace) error {
	if child == parent {
		return errors.Errorf("symtab: namespace %q cannot be its own parent", child.Name)
	}
	if child.Parent == parent {
		return nil
	}
	for p := parent; p != nil; p = p.Parent {
		if p == child {
			return errors.Errorf("symtab: linking %q to %q would create an inheritance cycle", child.Name, parent.Name)
		}
	}
	child.Parent = parent
	return nil
}

// FindMember walks the inheritance chain from ns to root, returning the
// first variable matching h and the namespace that owns it. Does not
// consider dynamic per-object members; see objects.Object for those.
func (ns *Namespace) FindMember(h hash.Hash) (*Variable, *Namespace) {
	for n := ns; n != nil; n = n.Parent {
		if v, ok := n.Members[h]; ok {
			return v, n
		}
	}
	return nil, nil
}

// FindMethod walks the inheritance chain from ns to root, returning the
// first method matching h.
func (ns *Namespace) FindMethod(h hash.Hash) (*Function, *Namespace) {
	for n := ns; n != nil; n = n.Parent {
		if f, ok := n.Methods[h]; ok {
			return f, n
		}
	}
	return nil, nil
}

// AddMember declares a member variable directly on ns (not inherited).
func (ns *Namespace) AddMember(name string, h hash.Hash, kind types.Kind) *Variable {
	v := NewVariable(name, h, kind, StorageMember)
	ns.Members[h] = v
	return v
}

// AddMethod registers a method directly on ns.
func (ns *Namespace) AddMethod(f *Function) {
	ns.Methods[f.Hash] = f
}
