package vm

import (
	"github.com/pkg/errors"

	"github.com/tinscript/tin/bytecode"
	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/objects"
	"github.com/tinscript/tin/internal/scheduler"
	"github.com/tinscript/tin/internal/strtab"
	"github.com/tinscript/tin/internal/symtab"
	"github.com/tinscript/tin/internal/types"
)

// Fault is a runtime fault: unknown variable, type-incompatible
// operation, division by zero, missing object or method, and so on. It
// carries the source file/line of the faulting instruction plus a Kind
// for host-side dispatch.
type Fault struct {
	Kind string
	File string
	Line int
	Msg  string
}

func (f *Fault) Error() string {
	return f.File + ":" + itoa(f.Line) + ": " + f.Kind + ": " + f.Msg
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

// AssertHandler is invoked on a runtime Fault. Returning true tells the
// VM to continue execution after skipping the faulting instruction's
// effect (a zero value of the expected kind is pushed where one was
// expected); returning false unwinds the call stack to the entry point.
// The handler must not suspend.
type AssertHandler func(*Fault) bool

// PrintHandler receives formatted text from whatever output native the
// host registers; the VM itself never writes output directly.
type PrintHandler func(string)

// BreakHandler is invoked when execution reaches an instruction marked
// by AddBreakpoint. Synchronous and non-suspending.
type BreakHandler func(file string, line int)

// CodeLoader resolves a code block by filename so the VM can jump into
// functions defined in a different source unit than the one currently
// executing.
type CodeLoader interface {
	Block(filename string) (*bytecode.Block, bool)
}

// Machine is one context's VM core: one operand stack and one call
// stack. A Machine and the registries it is bound to must only ever be
// touched from the single thread driving the owning context.
type Machine struct {
	Strtab *strtab.Table
	Reg    *symtab.Registry
	Objs   *objects.Registry
	Sched  *scheduler.Scheduler
	Code   CodeLoader

	Assert AssertHandler
	Print  PrintHandler
	Break  BreakHandler

	breakpoints map[string]map[int]bool

	operand      []types.Value
	frames       []*frame
	pending      []*pendingCall
	pendingSched []*pendingSchedule

	now int64 // last value passed to UpdateContext
}

// New creates a Machine bound to the given context-owned registries.
// Assert/Print/Break may be left nil (Assert then defaults to unwinding,
// Print/Break to no-ops).
func New(st *strtab.Table, reg *symtab.Registry, objs *objects.Registry, sched *scheduler.Scheduler, code CodeLoader) *Machine {
	return &Machine{
		Strtab:      st,
		Reg:         reg,
		Objs:        objs,
		Sched:       sched,
		Code:        code,
		breakpoints: make(map[string]map[int]bool),
	}
}

// AddBreakpoint normalizes (file, line) to the nearest instruction at or
// after the requested line within file's code block and records it.
// Returns the normalized line.
func (m *Machine) AddBreakpoint(file string, line int) (int, error) {
	block, ok := m.Code.Block(file)
	if !ok {
		return 0, errors.Errorf("vm: unknown file %q", file)
	}
	normalized := line
	best := -1
	for _, lp := range block.Lines {
		if lp.Line >= line && (best == -1 || lp.Line < best) {
			best = lp.Line
			normalized = lp.Line
		}
	}
	if m.breakpoints[file] == nil {
		m.breakpoints[file] = make(map[int]bool)
	}
	for _, lp := range block.Lines {
		if lp.Line == normalized {
			m.breakpoints[file][lp.Offset] = true
		}
	}
	return normalized, nil
}

func (m *Machine) push(v types.Value) { m.operand = append(m.operand, v) }

func (m *Machine) pop() (types.Value, error) {
	n := len(m.operand)
	if n == 0 {
		return types.Value{}, errors.New("vm: operand stack underflow")
	}
	v := m.operand[n-1]
	m.operand = m.operand[:n-1]
	return v, nil
}

// Depth reports the current operand stack depth. Statements are
// stack-neutral; an expression used as a value adds exactly one cell.
func (m *Machine) Depth() int { return len(m.operand) }

// frame is one call-stack activation record. slots holds the function's
// return-value/parameter/local cells, addressed by the static Offset
// recorded in its FuncContext; a fresh slots slice is allocated per call
// so recursive invocations do not alias each other's storage.
type frame struct {
	fn    *symtab.Function
	obj   *objects.Object
	block *bytecode.Block
	pc    int
	slots []types.Value
}

// pendingCall is the in-construction activation record between
// FuncCallArgs and FuncCall, while PushParam/Assign pairs fill the
// parameter slots. kinds mirrors fn.Context.FrameKinds(), cached here so
// PushParam can build a frameCell without re-walking the function
// context per argument.
type pendingCall struct {
	fn    *symtab.Function
	obj   *objects.Object
	slots []types.Value
	kinds []types.Kind
}

// frameCell is a types.VarRef over one slot of a frame's (or pending
// call's) activation record.
type frameCell struct {
	slots *[]types.Value
	idx   int
	kind  types.Kind
}

func (c *frameCell) Get() types.Value         { return (*c.slots)[c.idx] }
func (c *frameCell) Set(v types.Value)        { (*c.slots)[c.idx] = v }
func (c *frameCell) DeclaredKind() types.Kind { return c.kind }

// makeSlotsAndKinds allocates a fresh, zero-valued activation record for
// fn alongside the declared Kind of each slot.
func makeSlotsAndKinds(fn *symtab.Function) ([]types.Value, []types.Kind) {
	kinds := fn.Context.FrameKinds()
	slots := make([]types.Value, len(kinds))
	for i, k := range kinds {
		slots[i] = zeroOf(k)
	}
	return slots, kinds
}

func zeroOf(k types.Kind) types.Value {
	if k == types.Hashtable {
		return types.NewHashtable()
	}
	return types.Value{Kind: k}
}

// lookupFunction finds a function by (namespaceHash, nameHash), walking
// the namespace's inheritance chain when nsHash names a class.
func (m *Machine) lookupFunction(nsHash hash.Hash, nameHash hash.Hash) (*symtab.Function, *symtab.Namespace, bool) {
	var ns *symtab.Namespace
	if nsHash == symtab.GlobalNamespaceHash {
		ns = m.Reg.Global
	} else {
		var ok bool
		ns, ok = m.Reg.Class(nsHash)
		if !ok {
			return nil, nil, false
		}
	}
	fn, owner := ns.FindMethod(nameHash)
	if fn == nil {
		return nil, nil, false
	}
	return fn, owner, true
}
