package vm

import (
	"math"

	"github.com/tinscript/tin/bytecode"
	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/objects"
	"github.com/tinscript/tin/internal/symtab"
	"github.com/tinscript/tin/internal/types"
)

// onCreateHash/onDestroyHash are the fixed lifecycle-callback names,
// looked up directly by hash so the VM need not depend on the string
// table being warm for them.
var (
	onCreateHash  = hash.Of("OnCreate")
	onDestroyHash = hash.Of("OnDestroy")
)

// ExecuteBlock runs block from its first instruction as a fresh
// top-level frame (no enclosing function, no self) until it reaches
// OpEOF or the frame is otherwise unwound.
func (m *Machine) ExecuteBlock(block *bytecode.Block) error {
	f := &frame{block: block, pc: 0}
	m.frames = append(m.frames, f)
	base := len(m.frames) - 1
	return m.runLoop(base)
}

// runLoop drives the fetch-decode-execute cycle until the call stack
// unwinds back to depth base.
func (m *Machine) runLoop(base int) error {
	for len(m.frames) > base {
		f := m.frames[len(m.frames)-1]
		if f.pc >= len(f.block.Code) {
			// fell off the end of a block without an explicit EOF;
			// treat as an implicit top-level completion.
			m.frames = m.frames[:len(m.frames)-1]
			continue
		}
		if m.Break != nil {
			if bps, ok := m.breakpoints[f.block.Filename]; ok && bps[f.pc] {
				m.Break(f.block.Filename, f.block.LineAt(f.pc))
			}
		}
		op, args, next := decode(f.block, f.pc)
		f.pc = next
		if err := m.step(f, op, args); err != nil {
			return err
		}
	}
	return nil
}

// decode reads the instruction at pc and returns its opcode, immediate
// operand words, and the pc of the following instruction.
func decode(block *bytecode.Block, pc int) (op bytecode.Op, args []uint32, next int) {
	op = bytecode.Op(block.Code[pc])
	n := bytecode.OperandCount(op)
	args = block.Code[pc+1 : pc+1+n]
	next = pc + 1 + n
	return
}

// raiseFault reports a runtime fault to the context's assert handler. If
// the handler says to continue, a zero value of expected is pushed (when
// expected != types.Null, i.e. a value was wanted) and nil is returned
// so the caller proceeds; otherwise the Fault itself is returned to
// unwind the call stack.
func (m *Machine) raiseFault(f *frame, kind, msg string, expected types.Kind) error {
	flt := &Fault{Kind: kind, File: f.block.Filename, Line: f.block.LineAt(f.pc), Msg: msg}
	cont := false
	if m.Assert != nil {
		cont = m.Assert(flt)
	}
	if !cont {
		return flt
	}
	if expected != types.Null {
		m.push(zeroOf(expected))
	}
	return nil
}

func (m *Machine) step(f *frame, op bytecode.Op, args []uint32) error {
	switch op {
	case bytecode.OpNop, bytecode.OpParamDecl:
		// ParamDecl is only ever consumed by the FuncDecl prologue scan;
		// reaching it directly means a malformed block, tolerated as a
		// no-op.

	case bytecode.OpEOF, bytecode.OpFuncReturn:
		m.frames = m.frames[:len(m.frames)-1]

	case bytecode.OpPush:
		m.push(buildPushValue(types.Kind(args[0]), args[1]))

	case bytecode.OpPop:
		if _, err := m.pop(); err != nil {
			return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
		}

	case bytecode.OpPushSelf:
		if f.obj == nil {
			return m.raiseFault(f, "no-self", "self used outside of a method", types.Object)
		}
		m.push(types.NewObject(f.obj.ID))

	case bytecode.OpPushLocalVar, bytecode.OpPushLocalValue:
		h := hash.Hash(args[0])
		if f.fn == nil {
			return m.raiseFault(f, "unknown-variable", "local variable reference outside of a function", types.Null)
		}
		v, ok := f.fn.Context.Lookup(h)
		if !ok {
			return m.raiseFault(f, "unknown-variable", "unknown local variable", types.Null)
		}
		cell := &frameCell{slots: &f.slots, idx: v.Offset, kind: v.Kind}
		if op == bytecode.OpPushLocalVar {
			m.push(types.NewRef(types.StackVar, h, cell))
		} else {
			m.push(cell.Get())
		}

	case bytecode.OpPushGlobalVar, bytecode.OpPushGlobalValue:
		h := hash.Hash(args[0])
		v, ok := m.Reg.Global.Members[h]
		if !ok {
			return m.raiseFault(f, "unknown-variable", "unknown global variable", types.Null)
		}
		if op == bytecode.OpPushGlobalVar {
			m.push(types.NewRef(types.LocalVar, h, v))
		} else {
			m.push(v.Get())
		}

	case bytecode.OpPushMember, bytecode.OpPushMemberVal:
		recv, err := m.pop()
		if err != nil {
			return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
		}
		obj, ok := m.Objs.ByID(recv.Resolve().ObjID)
		if !ok {
			return m.raiseFault(f, "unknown-object", "member access on an unknown object", types.Null)
		}
		h := hash.Hash(args[0])
		member, ok := obj.FindMember(h)
		if !ok {
			return m.raiseFault(f, "unknown-member", "unknown member", types.Null)
		}
		if op == bytecode.OpPushMember {
			m.push(types.NewRef(types.MemberRef, h, member))
		} else {
			m.push(member.Get())
		}

	case bytecode.OpArrayHash:
		if err := m.doArrayHash(f, int(args[0])); err != nil {
			return err
		}

	case bytecode.OpPushArrayVar, bytecode.OpPushArrayValue:
		if err := m.doArrayPush(f, op == bytecode.OpPushArrayVar); err != nil {
			return err
		}

	case bytecode.OpArrayVarDecl:
		if err := m.doArrayVarDecl(f, types.Kind(args[0])); err != nil {
			return err
		}

	case bytecode.OpAssign:
		if err := m.doAssign(f); err != nil {
			return err
		}

	case bytecode.OpAssignAdd, bytecode.OpAssignSub, bytecode.OpAssignMult,
		bytecode.OpAssignDiv, bytecode.OpAssignMod, bytecode.OpAssignLeftShift,
		bytecode.OpAssignRightShift, bytecode.OpAssignBitAnd, bytecode.OpAssignBitOr,
		bytecode.OpAssignBitXor:
		if err := m.doCompoundAssign(f, op); err != nil {
			return err
		}

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMult, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpBitLeftShift, bytecode.OpBitRightShift, bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor:
		if err := m.doBinaryArith(f, op); err != nil {
			return err
		}

	case bytecode.OpCompareEqual, bytecode.OpCompareNotEqual, bytecode.OpCompareLess,
		bytecode.OpCompareLessEqual, bytecode.OpCompareGreater, bytecode.OpCompareGreaterEqual:
		if err := m.doCompare(f, op); err != nil {
			return err
		}

	case bytecode.OpBooleanAnd, bytecode.OpBooleanOr:
		v, err := m.pop()
		if err != nil {
			return m.raiseFault(f, "stack-underflow", err.Error(), types.Bool)
		}
		m.push(types.NewBool(v.Resolve().Truthy()))

	case bytecode.OpUnaryNeg, bytecode.OpUnaryPos, bytecode.OpUnaryNot, bytecode.OpUnaryBitInvert:
		if err := m.doUnary(f, op); err != nil {
			return err
		}

	case bytecode.OpUnaryPreInc, bytecode.OpUnaryPreDec:
		// the surface grammar never emits these; they are reserved
		// opcode numbers in the serialized format.
		return m.raiseFault(f, "unsupported-opcode", "pre-increment/decrement is not supported", types.Null)

	case bytecode.OpBranch:
		f.pc = int(args[0])

	case bytecode.OpBranchTrue, bytecode.OpBranchFalse:
		v, err := m.pop()
		if err != nil {
			return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
		}
		truthy := v.Resolve().Truthy()
		if (op == bytecode.OpBranchTrue) == truthy {
			f.pc = int(args[0])
		}

	case bytecode.OpFuncDecl:
		next, err := m.registerFuncDecl(f, hash.Hash(args[0]), hash.Hash(args[1]), int(args[2]))
		if err != nil {
			return err
		}
		f.pc = next

	case bytecode.OpFuncDeclEnd:
		// only reached if control falls into a function body linearly
		// (should never happen: FuncDecl always skips past it).

	case bytecode.OpVarDecl:
		m.doVarDecl(f, hash.Hash(args[0]), types.Kind(args[1]))

	case bytecode.OpSelfVarDecl:
		if f.obj != nil {
			h := hash.Hash(args[0])
			if _, ok := f.obj.FindMember(h); !ok {
				name, _ := m.Strtab.Lookup(h)
				f.obj.AddDynamicVariable(name, h, types.Kind(args[1]))
			}
		}

	case bytecode.OpPushParam:
		if len(m.pending) == 0 {
			return m.raiseFault(f, "no-pending-call", "push-param outside of a call", types.Null)
		}
		top := m.pending[len(m.pending)-1]
		idx := int(args[0])
		if idx >= len(top.slots) {
			return m.raiseFault(f, "too-many-parameters", "argument count exceeds the function's parameter list", types.Null)
		}
		cell := &frameCell{slots: &top.slots, idx: idx, kind: top.kinds[idx]}
		m.push(types.NewRef(types.StackVar, 0, cell))

	case bytecode.OpFuncCallArgs:
		fn, ok := m.Reg.Global.Methods[hash.Hash(args[0])]
		if !ok {
			return m.raiseFault(f, "unknown-function", "unknown function", types.Int)
		}
		m.pushPending(fn, nil)

	case bytecode.OpMethodCallArgs:
		recv, err := m.pop()
		if err != nil {
			return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
		}
		obj, ok := m.Objs.ByID(recv.Resolve().ObjID)
		if !ok {
			return m.raiseFault(f, "unknown-object", "method call on an unknown object", types.Int)
		}
		h := hash.Hash(args[0])
		fn, _ := obj.Namespace.FindMethod(h)
		if fn == nil {
			return m.raiseFault(f, "method-not-found", "method not found", types.Int)
		}
		m.pushPending(fn, obj)

	case bytecode.OpNSMethodCallArgs:
		recv, err := m.pop()
		if err != nil {
			return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
		}
		obj, ok := m.Objs.ByID(recv.Resolve().ObjID)
		if !ok {
			return m.raiseFault(f, "unknown-object", "namespaced method call on an unknown object", types.Int)
		}
		ns, ok := m.Reg.Class(hash.Hash(args[0]))
		if !ok {
			return m.raiseFault(f, "unknown-namespace", "unknown namespace", types.Int)
		}
		fn, _ := ns.FindMethod(hash.Hash(args[1]))
		if fn == nil {
			return m.raiseFault(f, "method-not-found", "method not found", types.Int)
		}
		m.pushPending(fn, obj)

	case bytecode.OpFuncCall:
		if err := m.doFuncCall(f); err != nil {
			return err
		}

	case bytecode.OpScheduleBegin:
		m.pendingSched = append(m.pendingSched, &pendingSchedule{
			delay: int64(int32(args[0])), fnHash: hash.Hash(args[1]), nsHash: hash.Hash(args[2]),
		})

	case bytecode.OpScheduleParam:
		v, err := m.pop()
		if err != nil {
			return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
		}
		top := m.pendingSched[len(m.pendingSched)-1]
		top.args = append(top.args, v.Resolve())

	case bytecode.OpScheduleEnd:
		if err := m.doScheduleEnd(f); err != nil {
			return err
		}

	case bytecode.OpCreateObject:
		if err := m.doCreateObject(f, hash.Hash(args[0]), hash.Hash(args[1])); err != nil {
			return err
		}

	case bytecode.OpDestroyObject:
		if err := m.doDestroyObject(f); err != nil {
			return err
		}

	default:
		return m.raiseFault(f, "bad-opcode", "unrecognized opcode", types.Null)
	}
	return nil
}

// buildPushValue materializes an OpPush's two immediate words into a
// first-class Value.
func buildPushValue(kind types.Kind, raw uint32) types.Value {
	switch kind {
	case types.Int:
		return types.NewInt(int32(raw))
	case types.Bool:
		return types.NewBool(raw != 0)
	case types.Float:
		return types.NewFloat(math.Float32frombits(raw))
	case types.String:
		return types.NewString(hash.Hash(raw))
	case types.Void:
		return types.Value{Kind: types.Void}
	default:
		return types.NullValue
	}
}

// pushPending reserves a new activation record for fn against receiver
// obj (nil for free functions), ready to be filled by PushParam/Assign
// pairs.
func (m *Machine) pushPending(fn *symtab.Function, obj *objects.Object) {
	slots, kinds := makeSlotsAndKinds(fn)
	m.pending = append(m.pending, &pendingCall{fn: fn, obj: obj, slots: slots, kinds: kinds})
}

// doFuncCall pops the top pending activation record and transfers
// control to it: for a script function, a fresh frame is pushed and
// executed to completion (its FuncReturn leaves the result on the shared
// operand stack); for a native function, the dispatcher is invoked
// synchronously and its result is pushed explicitly.
func (m *Machine) doFuncCall(f *frame) error {
	if len(m.pending) == 0 {
		return m.raiseFault(f, "no-pending-call", "func-call with no pending activation record", types.Int)
	}
	pc := m.pending[len(m.pending)-1]
	m.pending = m.pending[:len(m.pending)-1]
	return m.invoke(f, pc.fn, pc.obj, pc.slots)
}

// invoke runs fn to completion against slots (already filled for a
// script call, or zero-valued for a host-triggered lifecycle callback),
// pushing its return value onto the shared operand stack. Reentrant
// native -> script -> native chains push new activation records on the
// same stacks.
func (m *Machine) invoke(caller *frame, fn *symtab.Function, obj *objects.Object, slots []types.Value) error {
	if fn.Kind != symtab.FuncScript {
		var self uintptr
		if obj != nil {
			self = obj.HostAddr
		}
		ret, err := fn.Native(self, slots[1:])
		if err != nil {
			return m.raiseFault(caller, "native-error", err.Error(), types.Int)
		}
		m.push(ret)
		return nil
	}
	block, ok := m.Code.Block(fn.BlockFile)
	if !ok {
		return m.raiseFault(caller, "unknown-code-block", "code block for function not found", types.Int)
	}
	nf := &frame{fn: fn, obj: obj, block: block, pc: fn.Offset, slots: slots}
	m.frames = append(m.frames, nf)
	return m.runLoop(len(m.frames) - 1)
}

// callLifecycle invokes fn (OnCreate/OnDestroy) against obj with no
// arguments, discarding its return value.
func (m *Machine) callLifecycle(caller *frame, fn *symtab.Function, obj *objects.Object) error {
	slots, _ := makeSlotsAndKinds(fn)
	if err := m.invoke(caller, fn, obj, slots); err != nil {
		return err
	}
	_, err := m.pop()
	return err
}

// registerFuncDecl handles an OpFuncDecl encountered during linear
// execution: it reads the function's ParamDecl prologue, registers the
// function (idempotently) against its namespace, and returns the pc just
// past the matching OpFuncDeclEnd so the body is not executed inline.
// Nested function definitions are rejected by the code generator, so a flat
// linear scan never needs to track nesting depth.
func (m *Machine) registerFuncDecl(f *frame, nameHash, nsHash hash.Hash, paramCount int) (int, error) {
	code := f.block.Code
	bodyStart := f.pc
	type paramInfo struct {
		h    hash.Hash
		kind types.Kind
	}
	params := make([]paramInfo, paramCount)
	for i := 0; i < paramCount; i++ {
		params[i] = paramInfo{h: hash.Hash(code[bodyStart+1]), kind: types.Kind(code[bodyStart+2])}
		bodyStart += bytecode.Width(bytecode.OpParamDecl)
	}

	scan := bodyStart
	for bytecode.Op(code[scan]) != bytecode.OpFuncDeclEnd {
		scan += bytecode.Width(bytecode.Op(code[scan]))
		if scan >= len(code) {
			return 0, m.raiseFault(f, "malformed-bytecode", "function body missing its end marker", types.Null)
		}
	}
	skipPast := scan + bytecode.Width(bytecode.OpFuncDeclEnd)

	ns := m.Reg.Global
	if nsHash != symtab.GlobalNamespaceHash {
		name, _ := m.Strtab.Lookup(nsHash)
		var err error
		ns, err = m.Reg.DeclareClass(name, "")
		if err != nil {
			return 0, m.raiseFault(f, "link-error", err.Error(), types.Null)
		}
	}
	if _, exists := ns.Methods[nameHash]; !exists {
		fc := symtab.NewFuncContext()
		for _, p := range params {
			name, _ := m.Strtab.Lookup(p.h)
			fc.AddParam(name, p.h, p.kind)
		}
		name, _ := m.Strtab.Lookup(nameHash)
		fn := &symtab.Function{
			Name: name, Hash: nameHash, NamespaceHash: nsHash, Kind: symtab.FuncScript,
			BlockFile: f.block.Filename, Offset: bodyStart, Context: fc,
		}
		ns.AddMethod(fn)
	}
	return skipPast, nil
}

// doVarDecl declares a variable at its first execution. Globals are
// added to the global namespace's member table; function locals are
// registered in the function's context and the running frame grows to
// cover the new slot (subsequent calls size the whole record up front).
func (m *Machine) doVarDecl(f *frame, h hash.Hash, kind types.Kind) {
	if f.fn != nil {
		fc := f.fn.Context
		if _, ok := fc.Lookup(h); !ok {
			name, _ := m.Strtab.Lookup(h)
			fc.AddLocal(name, h, kind)
		}
		for len(f.slots) < fc.FrameSize() {
			f.slots = append(f.slots, zeroOf(fc.FrameKinds()[len(f.slots)]))
		}
		return
	}
	if _, exists := m.Reg.Global.Members[h]; exists {
		return
	}
	name, _ := m.Strtab.Lookup(h)
	m.Reg.Global.AddMember(name, h, kind)
}

func (m *Machine) doArrayHash(f *frame, count int) error {
	vals := make([]types.Value, count)
	for i := count - 1; i >= 0; i-- {
		v, err := m.pop()
		if err != nil {
			return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
		}
		vals[i] = v.Resolve()
	}
	key := hash.Zero
	for _, v := range vals {
		key = hash.Append(key, types.Format(v, m.Strtab))
	}
	// a transient marker carrying the computed key, consumed immediately
	// by the following array-entry opcode.
	m.push(types.Value{Kind: types.Resolve, H: key})
	return nil
}

// popHashtable pops the key marker left by doArrayHash and the hashtable
// reference beneath it.
func (m *Machine) popHashtable(f *frame) (ht types.Value, key hash.Hash, err error) {
	keyMarker, perr := m.pop()
	if perr != nil {
		return types.Value{}, 0, m.raiseFault(f, "stack-underflow", perr.Error(), types.Null)
	}
	htRef, perr := m.pop()
	if perr != nil {
		return types.Value{}, 0, m.raiseFault(f, "stack-underflow", perr.Error(), types.Null)
	}
	ht = htRef.Resolve()
	if ht.Kind != types.Hashtable {
		return types.Value{}, 0, m.raiseFault(f, "not-a-hashtable", "array index used on a non-hashtable value", types.Null)
	}
	return ht, keyMarker.H, nil
}

func (m *Machine) doArrayPush(f *frame, asRef bool) error {
	ht, key, err := m.popHashtable(f)
	if err != nil || ht.Kind != types.Hashtable {
		return err
	}
	entry, ok := ht.Table[key]
	if !ok {
		if !asRef {
			return m.raiseFault(f, "unknown-hashtable-entry", "unknown hashtable entry", types.Null)
		}
		entry = symtab.NewVariable("", key, types.Void, symtab.StorageHashtableEntry)
		ht.Table[key] = entry
	}
	if asRef {
		m.push(types.NewRef(types.HashtableVarRef, key, entry))
	} else {
		m.push(entry.Get())
	}
	return nil
}

// doArrayVarDecl creates a typed hashtable entry if one does not already
// exist under the computed key. An existing entry keeps its kind.
func (m *Machine) doArrayVarDecl(f *frame, kind types.Kind) error {
	ht, key, err := m.popHashtable(f)
	if err != nil || ht.Kind != types.Hashtable {
		return err
	}
	if _, ok := ht.Table[key]; !ok {
		ht.Table[key] = symtab.NewVariable("", key, kind, symtab.StorageHashtableEntry)
	}
	return nil
}

func (m *Machine) doAssign(f *frame) error {
	valRaw, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	refVal, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	if refVal.Ref == nil {
		return m.raiseFault(f, "not-assignable", "assignment target is not a reference", types.Null)
	}
	converted, err := convertForAssign(refVal.Ref, valRaw.Resolve(), m.Strtab)
	if err != nil {
		return m.raiseFault(f, "type-incompatible", err.Error(), types.Null)
	}
	refVal.Ref.Set(converted)
	m.push(converted)
	return nil
}

// convertForAssign coerces val to the target's declared kind, except
// when ref is an implicitly-created, still-untyped hashtable entry
// (declared Void): such an entry takes on the assigned value's own kind
// on first write.
func convertForAssign(ref types.VarRef, val types.Value, reg types.Registry) (types.Value, error) {
	if ref.DeclaredKind() == types.Void {
		return val, nil
	}
	return types.Convert(ref.DeclaredKind(), val, reg)
}

func (m *Machine) doCompoundAssign(f *frame, op bytecode.Op) error {
	rhsRaw, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	refVal, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	if refVal.Ref == nil {
		return m.raiseFault(f, "not-assignable", "compound-assignment target is not a reference", types.Null)
	}
	sym := compoundSymbol[op]
	result, aerr := arith(sym, refVal.Ref.Get(), rhsRaw.Resolve())
	if aerr != nil {
		return m.raiseFault(f, faultKindFor(aerr), aerr.Error(), types.Int)
	}
	converted, cerr := convertForAssign(refVal.Ref, result, m.Strtab)
	if cerr != nil {
		return m.raiseFault(f, "type-incompatible", cerr.Error(), types.Null)
	}
	refVal.Ref.Set(converted)
	m.push(converted)
	return nil
}

func (m *Machine) doBinaryArith(f *frame, op bytecode.Op) error {
	b, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	a, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	result, aerr := arith(binarySymbol[op], a.Resolve(), b.Resolve())
	if aerr != nil {
		return m.raiseFault(f, faultKindFor(aerr), aerr.Error(), types.Int)
	}
	m.push(result)
	return nil
}

func (m *Machine) doCompare(f *frame, op bytecode.Op) error {
	b, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	a, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	result, cerr := compare(compareSymbol[op], a.Resolve(), b.Resolve(), m.Strtab)
	if cerr != nil {
		return m.raiseFault(f, "type-incompatible", cerr.Error(), types.Bool)
	}
	m.push(result)
	return nil
}

func (m *Machine) doUnary(f *frame, op bytecode.Op) error {
	a, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	result, uerr := unary(op, a.Resolve())
	if uerr != nil {
		return m.raiseFault(f, "type-incompatible", uerr.Error(), types.Int)
	}
	m.push(result)
	return nil
}

func faultKindFor(err error) string {
	if err == errDivByZero {
		return "division-by-zero"
	}
	return "type-incompatible"
}

// pendingSchedule accumulates a schedule(...) call's fields between
// ScheduleBegin and ScheduleEnd.
type pendingSchedule struct {
	delay  int64
	fnHash hash.Hash
	nsHash hash.Hash
	args   []types.Value
}

func (m *Machine) doScheduleEnd(f *frame) error {
	target, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	if len(m.pendingSched) == 0 {
		return m.raiseFault(f, "no-pending-schedule", "schedule-end with no pending schedule", types.Null)
	}
	top := m.pendingSched[len(m.pendingSched)-1]
	m.pendingSched = m.pendingSched[:len(m.pendingSched)-1]

	var objID uint32
	tv := target.Resolve()
	switch tv.Kind {
	case types.Object:
		objID = tv.ObjID
	case types.Int:
		objID = uint32(tv.I)
	}
	m.Sched.ScheduleCall(objID, m.now, top.delay, top.fnHash, top.nsHash, top.args)
	return nil
}

func (m *Machine) doCreateObject(f *frame, classHash, nameHash hash.Hash) error {
	name, _ := m.Strtab.Lookup(classHash)
	ns, ok := m.Reg.Class(classHash)
	if !ok {
		return m.raiseFault(f, "unknown-class", "unknown class "+name, types.Object)
	}
	var hostAddr uintptr
	if ns.Ctor != nil {
		objName, _ := m.Strtab.Lookup(nameHash)
		addr, err := ns.Ctor(objName)
		if err != nil {
			return m.raiseFault(f, "native-ctor-failed", err.Error(), types.Object)
		}
		hostAddr = addr
	}
	obj, err := m.Objs.Register(ns, nameHash, hostAddr)
	if err != nil {
		return m.raiseFault(f, "object-create-failed", err.Error(), types.Object)
	}
	if fn, _ := ns.FindMethod(onCreateHash); fn != nil {
		if err := m.callLifecycle(f, fn, obj); err != nil {
			return err
		}
	}
	m.push(types.NewObject(obj.ID))
	return nil
}

func (m *Machine) doDestroyObject(f *frame) error {
	idVal, err := m.pop()
	if err != nil {
		return m.raiseFault(f, "stack-underflow", err.Error(), types.Null)
	}
	id := idVal.Resolve().ObjID
	found, err := m.destroyObject(f, id)
	if err != nil {
		return err
	}
	if !found {
		return m.raiseFault(f, "unknown-object", "destroy of an unknown object", types.Null)
	}
	return nil
}

// destroyObject runs an object's OnDestroy callback, cancels its pending
// scheduled commands and releases its host resources, then removes it
// from the registry. Reports whether id named a live object. Shared by
// the destroy(...) statement and the host-facing DestroyObjectByID entry
// point.
func (m *Machine) destroyObject(f *frame, id uint32) (bool, error) {
	obj, ok := m.Objs.ByID(id)
	if !ok {
		return false, nil
	}
	if fn, _ := obj.Namespace.FindMethod(onDestroyHash); fn != nil {
		if err := m.callLifecycle(f, fn, obj); err != nil {
			return true, err
		}
	}
	m.Sched.CancelObject(id)
	if obj.Namespace.Dtor != nil && obj.HostAddr != 0 {
		obj.Namespace.Dtor(obj.HostAddr)
	}
	m.Objs.Destroy(id)
	return true, nil
}
