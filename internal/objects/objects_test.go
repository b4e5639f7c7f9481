package objects

import (
	"testing"

	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/symtab"
	"github.com/tinscript/tin/internal/types"
)

func TestRegisterAssignsMonotonicIDs(t *testing.T) {
	r := New()
	ns := symtab.NewNamespace("Thing")
	a, err := r.Register(ns, hash.Zero, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Register(ns, hash.Zero, 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == 0 || b.ID == 0 {
		t.Fatal("object id 0 must never be assigned")
	}
	if b.ID <= a.ID {
		t.Fatalf("ids not monotonic: %d then %d", a.ID, b.ID)
	}
}

func TestThreeIndices(t *testing.T) {
	r := New()
	ns := symtab.NewNamespace("Thing")
	nameH := hash.Of("hero")
	o, err := r.Register(ns, nameH, 0xBEEF)
	if err != nil {
		t.Fatal(err)
	}

	if got, ok := r.ByID(o.ID); !ok || got != o {
		t.Fatal("ByID lookup failed")
	}
	if got, ok := r.ByName(nameH); !ok || got != o {
		t.Fatal("ByName lookup failed")
	}
	if got, ok := r.ByAddr(0xBEEF); !ok || got != o {
		t.Fatal("ByAddr lookup failed")
	}

	r.Destroy(o.ID)
	if _, ok := r.ByID(o.ID); ok {
		t.Fatal("ByID found a destroyed object")
	}
	if _, ok := r.ByName(nameH); ok {
		t.Fatal("ByName found a destroyed object")
	}
	if _, ok := r.ByAddr(0xBEEF); ok {
		t.Fatal("ByAddr found a destroyed object")
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	r := New()
	ns := symtab.NewNamespace("Thing")
	nameH := hash.Of("unique")
	if _, err := r.Register(ns, nameH, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(ns, nameH, 0); err == nil {
		t.Fatal("duplicate object name was not rejected")
	}
}

// Class members become per-instance storage at creation time: two
// instances of the same class must not alias each other's members.
func TestMembersCopiedPerInstance(t *testing.T) {
	r := New()
	ns := symtab.NewNamespace("Thing")
	h := hash.Of("f")
	ns.AddMember("f", h, types.Float)

	a, _ := r.Register(ns, hash.Zero, 0)
	b, _ := r.Register(ns, hash.Zero, 0)

	av, ok := a.FindMember(h)
	if !ok {
		t.Fatal("instance missing class member")
	}
	av.Set(types.NewFloat(1.5))

	bv, _ := b.FindMember(h)
	if bv.Get().F == 1.5 {
		t.Fatal("instances share member storage")
	}
}

// Members inherited from a parent namespace are materialized too.
func TestInheritedMembersCopied(t *testing.T) {
	r := New()
	base := symtab.NewNamespace("Base")
	derived := symtab.NewNamespace("Derived")
	if err := symtab.LinkNamespaces(derived, base); err != nil {
		t.Fatal(err)
	}
	h := hash.Of("hp")
	base.AddMember("hp", h, types.Int)

	o, _ := r.Register(derived, hash.Zero, 0)
	v, ok := o.FindMember(h)
	if !ok {
		t.Fatal("inherited member not materialized on the instance")
	}
	v.Set(types.NewInt(9))
	if shared, _ := base.FindMember(h); shared.Get().I == 9 {
		t.Fatal("instance write leaked into the class's member table")
	}
}

func TestDynamicVariableShadowing(t *testing.T) {
	r := New()
	ns := symtab.NewNamespace("Thing")
	h := hash.Of("x")
	ns.AddMember("x", h, types.Int)

	o, _ := r.Register(ns, hash.Zero, 0)
	o.AddDynamicVariable("x", h, types.String)
	v, ok := o.FindMember(h)
	if !ok || v.Kind != types.String {
		t.Fatal("dynamic variable did not shadow the class member")
	}
}
