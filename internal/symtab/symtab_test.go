package symtab

import (
	"testing"

	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/types"
)

func TestLinkNamespaces(t *testing.T) {
	base := NewNamespace("Base")
	derived := NewNamespace("Derived")
	if err := LinkNamespaces(derived, base); err != nil {
		t.Fatal(err)
	}
	// re-linking to the same parent is a no-op
	if err := LinkNamespaces(derived, base); err != nil {
		t.Fatalf("idempotent relink failed: %v", err)
	}
	if err := LinkNamespaces(base, derived); err == nil {
		t.Fatal("cycle was not rejected")
	}
	if err := LinkNamespaces(base, base); err == nil {
		t.Fatal("self-parent was not rejected")
	}
}

func TestFindMemberWalksChain(t *testing.T) {
	base := NewNamespace("Base")
	derived := NewNamespace("Derived")
	if err := LinkNamespaces(derived, base); err != nil {
		t.Fatal(err)
	}
	h := hash.Of("health")
	base.AddMember("health", h, types.Int)

	v, owner := derived.FindMember(h)
	if v == nil || owner != base {
		t.Fatal("inherited member not found through the chain")
	}

	// a member declared on the derived namespace shadows the base's
	derived.AddMember("health", h, types.Float)
	v, owner = derived.FindMember(h)
	if owner != derived || v.Kind != types.Float {
		t.Fatal("derived member did not shadow the inherited one")
	}
}

func TestFindMethodWalksChain(t *testing.T) {
	base := NewNamespace("Base")
	derived := NewNamespace("Derived")
	if err := LinkNamespaces(derived, base); err != nil {
		t.Fatal(err)
	}
	h := hash.Of("Update")
	base.AddMethod(&Function{Name: "Update", Hash: h, Kind: FuncScript})

	fn, owner := derived.FindMethod(h)
	if fn == nil || owner != base {
		t.Fatal("inherited method not found through the chain")
	}
	if fn, _ := derived.FindMethod(hash.Of("Missing")); fn != nil {
		t.Fatal("found a method that was never declared")
	}
}

func TestRegistryDeclareClass(t *testing.T) {
	r := NewRegistry()
	base, err := r.DeclareClass("Base", "")
	if err != nil {
		t.Fatal(err)
	}
	derived, err := r.DeclareClass("Derived", "Base")
	if err != nil {
		t.Fatal(err)
	}
	if derived.Parent != base {
		t.Fatal("parent link not established")
	}
	// re-declaring with no parent returns the existing namespace
	again, err := r.DeclareClass("Derived", "")
	if err != nil || again != derived {
		t.Fatal("re-declaration did not return the existing namespace")
	}
	if _, err := r.DeclareClass("Orphan", "NoSuchParent"); err == nil {
		t.Fatal("unknown parent was not rejected")
	}
}

func TestFuncContextSlots(t *testing.T) {
	fc := NewFuncContext()
	if len(fc.Params) != 1 || fc.Params[0].Offset != 0 {
		t.Fatal("return slot 0 not reserved")
	}
	a := fc.AddParam("a", hash.Of("a"), types.Int)
	b := fc.AddParam("b", hash.Of("b"), types.Float)
	l := fc.AddLocal("tmp", hash.Of("tmp"), types.Int)
	if a.Offset != 1 || b.Offset != 2 || l.Offset != 3 {
		t.Fatalf("slot offsets = %d,%d,%d; want 1,2,3", a.Offset, b.Offset, l.Offset)
	}
	if fc.FrameSize() != 4 {
		t.Fatalf("FrameSize = %d, want 4", fc.FrameSize())
	}
	kinds := fc.FrameKinds()
	if kinds[1] != types.Int || kinds[2] != types.Float || kinds[3] != types.Int {
		t.Fatalf("FrameKinds = %v", kinds)
	}
	if v, ok := fc.Lookup(hash.Of("b")); !ok || v != b {
		t.Fatal("Lookup failed for a parameter")
	}
	if v, ok := fc.Lookup(hash.Of("tmp")); !ok || v != l {
		t.Fatal("Lookup failed for a local")
	}
}

func TestVariableHoldsDeclaredKindZero(t *testing.T) {
	v := NewVariable("h", hash.Of("h"), types.Hashtable, StorageGlobal)
	if v.Get().Kind != types.Hashtable || v.Get().Table == nil {
		t.Fatal("hashtable variable not initialized with an owned table")
	}
	i := NewVariable("n", hash.Of("n"), types.Int, StorageLocal)
	if i.Get().Kind != types.Int || i.Get().I != 0 {
		t.Fatal("int variable not zero-initialized")
	}
}
