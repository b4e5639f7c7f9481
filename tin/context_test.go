package tin_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinscript/tin/tin"
)

// nativeCBase is a tiny host-side registry standing in for a real native
// class, exercising create/destroy/member-access/method-call end to end
// through the host API.
type nativeCBase struct {
	nextAddr uintptr
	values   map[uintptr]int
}

func newNativeCBase() *nativeCBase {
	return &nativeCBase{nextAddr: 1, values: make(map[uintptr]int)}
}

func (r *nativeCBase) ctor(name string) (uintptr, error) {
	addr := r.nextAddr
	r.nextAddr++
	r.values[addr] = 33
	return addr, nil
}

func (r *nativeCBase) dtor(addr uintptr) {
	delete(r.values, addr)
}

func (r *nativeCBase) getI(addr uintptr) int {
	return r.values[addr]
}

func newTestContext(t *testing.T, opts ...tin.Option) (*tin.Context, *[]string) {
	t.Helper()
	var prints []string
	var ctx *tin.Context
	opts = append([]tin.Option{
		tin.PrintHandler(func(s string) { prints = append(prints, s) }),
		tin.AssertHandler(func(f *tin.Fault) bool { return false }),
	}, opts...)
	ctx, err := tin.NewContext(opts...)
	require.NoError(t, err)

	ctx.RegisterNativeFunction("Print", []tin.Kind{tin.KindVoid}, func(self uintptr, args []tin.Value) (tin.Value, error) {
		if len(args) > 0 {
			prints = append(prints, ctx.FormatValue(args[0]))
		}
		return tin.Value{Kind: tin.KindVoid}, nil
	})
	return ctx, &prints
}

func TestContextExecuteTextArithmetic(t *testing.T) {
	ctx, prints := newTestContext(t)
	err := ctx.ExecuteText(`Print(2*21);`, "<test>")
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, *prints)
}

func TestContextNativeClassLifecycle(t *testing.T) {
	ctx, prints := newTestContext(t)

	native := newNativeCBase()
	require.NoError(t, ctx.RegisterNativeType("CBase", []tin.MemberDescriptor{
		{Name: "f", Kind: tin.KindFloat},
	}))
	require.NoError(t, ctx.RegisterNativeClass("CBase", "", native.ctor, native.dtor))
	require.NoError(t, ctx.RegisterNativeMethod("CBase", "GetI", nil,
		func(self uintptr, args []tin.Value) (tin.Value, error) {
			return tin.Value{Kind: tin.KindInt, I: int32(native.getI(self))}, nil
		}))

	err := ctx.ExecuteText(`
		object o = create CBase();
		o.f = 1.5;
		Print(o.f);
		Print(o.GetI());
		destroy(o);
	`, "<test>")
	require.NoError(t, err)
	require.Equal(t, []string{"1.5000", "33"}, *prints)
	assert.Empty(t, native.values, "native destructor did not run")
}

func TestContextNativeClassInheritance(t *testing.T) {
	ctx, prints := newTestContext(t)

	require.NoError(t, ctx.RegisterNativeClass("Base", "", nil, nil))
	require.NoError(t, ctx.RegisterNativeMethod("Base", "Kind", nil,
		func(self uintptr, args []tin.Value) (tin.Value, error) {
			return ctx.InternString("base"), nil
		}))
	require.NoError(t, ctx.RegisterNativeClass("Derived", "Base", nil, nil))

	err := ctx.ExecuteText(`
		object o = create Derived();
		Print(o.Kind());
	`, "<test>")
	require.NoError(t, err)
	require.Equal(t, []string{"base"}, *prints)
}

func TestContextScheduleAndUpdate(t *testing.T) {
	ctx, prints := newTestContext(t)
	require.NoError(t, ctx.ExecuteText(`int Ping() { Print(1); return 0; }`, "<test>"))
	ctx.Schedule(0, 10, "Ping")
	require.Equal(t, 1, ctx.PendingSchedules())
	require.NoError(t, ctx.UpdateContext(0))
	require.Len(t, *prints, 0, "command dispatch time hasn't arrived yet")
	require.NoError(t, ctx.UpdateContext(20))
	require.Equal(t, []string{"1"}, *prints)
	require.Zero(t, ctx.PendingSchedules())
}

// A scheduled command fires exactly once, with arguments captured at
// schedule time.
func TestScriptScheduleFiresOnce(t *testing.T) {
	ctx, prints := newTestContext(t)
	require.NoError(t, ctx.ExecuteText(`schedule(0, 100, Print, "hi");`, "<test>"))
	require.NoError(t, ctx.UpdateContext(50))
	require.Empty(t, *prints)
	require.NoError(t, ctx.UpdateContext(150))
	require.Equal(t, []string{"hi"}, *prints)
	require.NoError(t, ctx.UpdateContext(200))
	require.Equal(t, []string{"hi"}, *prints)
}

func TestCancelSchedule(t *testing.T) {
	ctx, prints := newTestContext(t)
	require.NoError(t, ctx.ExecuteText(`int Ping() { Print(1); return 0; }`, "<test>"))
	id := ctx.Schedule(0, 10, "Ping")
	require.True(t, ctx.CancelSchedule(id))
	require.False(t, ctx.CancelSchedule(id))
	require.NoError(t, ctx.UpdateContext(100))
	require.Empty(t, *prints)
}

func TestScheduleSource(t *testing.T) {
	ctx, prints := newTestContext(t)
	ctx.ScheduleSource(0, 10, `Print("from source");`)
	require.NoError(t, ctx.UpdateContext(20))
	require.Equal(t, []string{"from source"}, *prints)
}

// Destroying an object cancels every command still scheduled against it.
func TestDestroyCancelsPendingSchedules(t *testing.T) {
	ctx, prints := newTestContext(t)
	err := ctx.ExecuteText(`
		int Npc::Tick() { Print("tick"); return 0; }
		object o = create Npc("pat");
	`, "<test>")
	require.NoError(t, err)
	o, ok := ctx.FindObjectByName("pat")
	require.True(t, ok)
	ctx.Schedule(o.ID, 10, "Tick")
	require.Equal(t, 1, ctx.PendingSchedules())
	require.NoError(t, ctx.DestroyObject(o.ID))
	require.Zero(t, ctx.PendingSchedules())
	require.NoError(t, ctx.UpdateContext(100))
	require.Empty(t, *prints)
}

func TestGetSetGlobal(t *testing.T) {
	ctx, _ := newTestContext(t)
	require.NoError(t, ctx.ExecuteText(`int hitpoints = 42;`, "<test>"))

	v, ok := ctx.GetGlobal("hitpoints")
	require.True(t, ok)
	assert.Equal(t, int32(42), v.I)

	// identifier lookup folds case
	_, ok = ctx.GetGlobal("HitPoints")
	assert.True(t, ok)

	// the write converts to the global's declared kind
	found, err := ctx.SetGlobal("hitpoints", tin.Value{Kind: tin.KindFloat, F: 3.9})
	require.NoError(t, err)
	require.True(t, found)
	v, _ = ctx.GetGlobal("hitpoints")
	assert.Equal(t, tin.KindInt, v.Kind)
	assert.Equal(t, int32(3), v.I)

	found, err = ctx.SetGlobal("missing", tin.Value{Kind: tin.KindInt, I: 1})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHostCallScriptFunction(t *testing.T) {
	ctx, _ := newTestContext(t)
	require.NoError(t, ctx.ExecuteText(`
		int Add(int a, int b) { return a + b; }
	`, "<test>"))
	v, err := ctx.Call("Add", tin.Value{Kind: tin.KindInt, I: 19}, tin.Value{Kind: tin.KindInt, I: 23})
	require.NoError(t, err)
	assert.Equal(t, int32(42), v.I)

	_, err = ctx.Call("Nonexistent")
	require.Error(t, err)
}

func TestHostCallMethod(t *testing.T) {
	ctx, _ := newTestContext(t)
	require.NoError(t, ctx.ExecuteText(`
		int Npc::Health() { return 77; }
		object o = create Npc("boss");
	`, "<test>"))
	o, ok := ctx.FindObjectByName("boss")
	require.True(t, ok)
	v, err := ctx.CallMethod(o.ID, "Health")
	require.NoError(t, err)
	assert.Equal(t, int32(77), v.I)
}

func TestRegisterAndFindObject(t *testing.T) {
	ctx, _ := newTestContext(t)
	require.NoError(t, ctx.RegisterNativeClass("Widget", "", nil, nil))

	id, err := ctx.RegisterObject(0xCAFE, "Widget", "mainWidget")
	require.NoError(t, err)
	require.NotZero(t, id)

	byID, ok := ctx.FindObjectByID(id)
	require.True(t, ok)
	assert.Equal(t, "Widget", byID.ClassName)

	byName, ok := ctx.FindObjectByName("mainWidget")
	require.True(t, ok)
	assert.Equal(t, id, byName.ID)

	byAddr, ok := ctx.FindObjectByAddr(0xCAFE)
	require.True(t, ok)
	assert.Equal(t, id, byAddr.ID)

	_, err = ctx.RegisterObject(1, "NoSuchClass", "")
	require.Error(t, err)

	require.NoError(t, ctx.DestroyObject(id))
	_, ok = ctx.FindObjectByID(id)
	assert.False(t, ok)
}

func TestBreakpoint(t *testing.T) {
	var hits []int
	var ctx *tin.Context
	ctx, _ = newTestContext(t, tin.BreakHandler(func(file string, line int) {
		hits = append(hits, line)
	}))
	require.NoError(t, ctx.ExecuteText(`int Target() {
int x = 1;
x += 1;
return x;
}`, "<test>"))

	line, err := ctx.AddBreakpoint("<test>", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, line)

	_, err = ctx.Call("Target")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, 3, hits[0])
}

func TestStringTablePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strings.txt")

	ctx, _ := newTestContext(t)
	v := ctx.InternString("persisted text")
	require.NoError(t, ctx.SaveStringTable(path))

	ctx2, err := tin.NewContext(tin.WithStringTableFile(path))
	require.NoError(t, err)
	s, ok := ctx2.LookupString(v)
	require.True(t, ok)
	assert.Equal(t, "persisted text", s)
}

// ExecuteFile keeps a compiled binary next to the source and reuses it
// while the source is unchanged.
func TestExecuteFileUsesBytecodeCache(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "main.tin")
	require.NoError(t, os.WriteFile(script, []byte(`Print(7);`), 0o644))

	ctx, prints := newTestContext(t)
	require.NoError(t, ctx.ExecuteFile(script))
	require.Equal(t, []string{"7"}, *prints)

	if _, err := os.Stat(script + "c"); err != nil {
		t.Fatalf("compiled binary not written: %v", err)
	}

	// run again in the same context: the cached binary is used and the
	// observable behavior is identical
	require.NoError(t, ctx.ExecuteFile(script))
	require.Equal(t, []string{"7", "7"}, *prints)
}

func TestFaultContinueSkipsEffect(t *testing.T) {
	var faults []string
	var prints []string
	ctx, err := tin.NewContext(
		tin.PrintHandler(func(s string) { prints = append(prints, s) }),
		tin.AssertHandler(func(f *tin.Fault) bool {
			faults = append(faults, f.Kind)
			return true
		}),
	)
	require.NoError(t, err)
	ctx.RegisterNativeFunction("Print", []tin.Kind{tin.KindVoid}, func(self uintptr, args []tin.Value) (tin.Value, error) {
		if len(args) > 0 {
			prints = append(prints, ctx.FormatValue(args[0]))
		}
		return tin.Value{Kind: tin.KindVoid}, nil
	})

	err = ctx.ExecuteText(`
		Print(1/0);
		Print("still running");
	`, "<test>")
	require.NoError(t, err)
	assert.Equal(t, []string{"division-by-zero"}, faults)
	assert.Equal(t, []string{"0", "still running"}, prints)
}
