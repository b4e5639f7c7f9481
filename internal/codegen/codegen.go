// Package codegen implements the code generator: it walks the compile
// tree from internal/parser and emits a bytecode.Block. Emission is a
// single tree-walk with backpatched branch targets.
package codegen

import (
	"fmt"
	"math"

	"github.com/tinscript/tin/bytecode"
	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/parser"
	"github.com/tinscript/tin/internal/strtab"
	"github.com/tinscript/tin/internal/symtab"
	"github.com/tinscript/tin/internal/types"
)

// Generator turns a compile tree into bytecode.
type Generator struct {
	strtab *strtab.Table
	block  *bytecode.Block

	fc        *symtab.FuncContext
	namespace string // enclosing method's namespace name, "" at top level

	breakTargets    [][]int // patch lists, one per enclosing loop
	continueTargets [][]int

	errs []error
}

// New creates a generator that interns identifier and string text into
// reg, shared with the running context's string table.
func New(reg *strtab.Table) *Generator {
	return &Generator{strtab: reg}
}

// Generate compiles root (as produced by parser.Parse) into a named
// bytecode.Block. Errors are semantic (e.g. break outside a loop); they
// do not abort emission, since by this stage the tree is already
// structurally valid.
func (g *Generator) Generate(filename string, root *parser.Node) (*bytecode.Block, error) {
	g.block = bytecode.NewBlock(filename)
	for _, stmt := range root.List {
		g.genTopLevel(stmt)
	}
	g.emit(bytecode.OpEOF)
	if len(g.errs) > 0 {
		return g.block, g.errs[0]
	}
	return g.block, nil
}

func (g *Generator) errorf(line int, format string, args ...interface{}) {
	g.errs = append(g.errs, fmt.Errorf("%s:%d: %s", g.block.Filename, line, fmt.Sprintf(format, args...)))
}

func (g *Generator) intern(s string) hash.Hash { return g.strtab.Intern(s) }

func (g *Generator) setLine(line int) {
	n := len(g.block.Code)
	if len(g.block.Lines) > 0 && g.block.Lines[len(g.block.Lines)-1].Line == line {
		return
	}
	g.block.Lines = append(g.block.Lines, bytecode.LinePair{Offset: n, Line: line})
}

func (g *Generator) emit(op bytecode.Op, args ...uint32) int {
	pc := len(g.block.Code)
	g.block.Code = append(g.block.Code, uint32(op))
	g.block.Code = append(g.block.Code, args...)
	return pc
}

func (g *Generator) patchArg(pc, argIdx int, val uint32) {
	g.block.Code[pc+1+argIdx] = val
}

func (g *Generator) here() uint32 { return uint32(len(g.block.Code)) }

func (g *Generator) genTopLevel(n *parser.Node) {
	if n.Kind == parser.NFuncDecl {
		g.genFuncDecl(n)
		return
	}
	g.genStmt(n)
}

func (g *Generator) genFuncDecl(n *parser.Node) {
	nameHash := g.intern(n.Text)
	nsHash := hash.Zero
	if n.Namespace != "" {
		nsHash = g.intern(n.Namespace)
	}
	g.block.Funcs[nameHash] = true

	prevFC, prevNS := g.fc, g.namespace
	g.fc = symtab.NewFuncContext()
	g.namespace = n.Namespace
	for _, p := range n.Params {
		g.fc.AddParam(p.Text, g.intern(p.Text), types.KindFromName(p.TypeName))
	}

	g.emit(bytecode.OpFuncDecl, uint32(nameHash), uint32(nsHash), uint32(len(n.Params)))
	for _, p := range n.Params {
		g.emit(bytecode.OpParamDecl, uint32(g.intern(p.Text)), uint32(types.KindFromName(p.TypeName)))
	}

	for _, s := range n.Body.List {
		g.genStmt(s)
	}

	// a body that falls through returns 0, so callers may uniformly pop
	// one result cell.
	g.emit(bytecode.OpPush, uint32(types.Int), 0)
	g.emit(bytecode.OpFuncReturn)
	g.emit(bytecode.OpFuncDeclEnd)

	g.fc, g.namespace = prevFC, prevNS
}

func (g *Generator) genStmt(n *parser.Node) {
	if n == nil {
		return
	}
	g.setLine(n.Line)
	switch n.Kind {
	case parser.NBlock:
		for _, s := range n.List {
			g.genStmt(s)
		}
	case parser.NVarDecl:
		g.genVarDecl(n)
	case parser.NSelfVarDecl:
		g.genSelfVarDecl(n)
	case parser.NArrayVarDecl:
		g.genArrayVarDecl(n)
	case parser.NFuncDecl:
		g.errorf(n.Line, "nested function declarations are not supported")
	case parser.NIf:
		g.genIf(n)
	case parser.NWhile:
		g.genWhile(n)
	case parser.NFor:
		g.genFor(n)
	case parser.NBreak:
		if len(g.breakTargets) == 0 {
			g.errorf(n.Line, "break outside of a loop")
			return
		}
		top := len(g.breakTargets) - 1
		pc := g.emit(bytecode.OpBranch, 0)
		g.breakTargets[top] = append(g.breakTargets[top], pc)
	case parser.NContinue:
		if len(g.continueTargets) == 0 {
			g.errorf(n.Line, "continue outside of a loop")
			return
		}
		top := len(g.continueTargets) - 1
		pc := g.emit(bytecode.OpBranch, 0)
		g.continueTargets[top] = append(g.continueTargets[top], pc)
	case parser.NReturn:
		if n.Left != nil {
			g.genExpr(n.Left)
		} else {
			g.emit(bytecode.OpPush, uint32(types.Void), 0)
		}
		g.emit(bytecode.OpFuncReturn)
	case parser.NDestroyObject:
		g.genExpr(n.Left)
		g.emit(bytecode.OpDestroyObject)
	case parser.NSchedule:
		g.genSchedule(n)
	case parser.NExprStmt:
		g.genExpr(n.Left)
		g.emit(bytecode.OpPop)
	default:
		g.errorf(n.Line, "internal: unexpected statement node %v", n.Kind)
	}
}

func (g *Generator) genIf(n *parser.Node) {
	g.genExpr(n.Cond)
	branchFalse := g.emit(bytecode.OpBranchFalse, 0)
	g.genStmt(n.Then)
	if n.Else != nil {
		branchEnd := g.emit(bytecode.OpBranch, 0)
		g.patchArg(branchFalse, 0, g.here())
		g.genStmt(n.Else)
		g.patchArg(branchEnd, 0, g.here())
	} else {
		g.patchArg(branchFalse, 0, g.here())
	}
}

func (g *Generator) genWhile(n *parser.Node) {
	top := g.here()
	g.genExpr(n.Cond)
	branchFalse := g.emit(bytecode.OpBranchFalse, 0)

	g.breakTargets = append(g.breakTargets, nil)
	g.continueTargets = append(g.continueTargets, nil)
	g.genStmt(n.Body)
	contPC := g.here()
	g.emit(bytecode.OpBranch, top)
	end := g.here()
	g.patchArg(branchFalse, 0, end)
	g.patchList(g.popBreaks(), end)
	g.patchList(g.popContinues(), contPC)
}

// genFor lowers "for (init; cond; step) body" to
// "init; while (cond) { body; step; }"; continue jumps to the step.
func (g *Generator) genFor(n *parser.Node) {
	if n.Left != nil {
		g.genStmt(n.Left)
	}
	top := g.here()
	var branchFalse int
	hasCond := n.Cond != nil
	if hasCond {
		g.genExpr(n.Cond)
		branchFalse = g.emit(bytecode.OpBranchFalse, 0)
	}

	g.breakTargets = append(g.breakTargets, nil)
	g.continueTargets = append(g.continueTargets, nil)
	g.genStmt(n.Body)
	contPC := g.here()
	if n.Right != nil {
		g.genStmt(n.Right)
	}
	g.emit(bytecode.OpBranch, top)
	end := g.here()
	if hasCond {
		g.patchArg(branchFalse, 0, end)
	}
	g.patchList(g.popBreaks(), end)
	g.patchList(g.popContinues(), contPC)
}

func (g *Generator) popBreaks() []int {
	top := len(g.breakTargets) - 1
	list := g.breakTargets[top]
	g.breakTargets = g.breakTargets[:top]
	return list
}

func (g *Generator) popContinues() []int {
	top := len(g.continueTargets) - 1
	list := g.continueTargets[top]
	g.continueTargets = g.continueTargets[:top]
	return list
}

func (g *Generator) patchList(pcs []int, target uint32) {
	for _, pc := range pcs {
		g.patchArg(pc, 0, target)
	}
}

// genVarDecl emits a declaration: a global at top level, a per-call
// function local inside any function or method body. Members are never
// created implicitly; only the explicit "type self.name;" form declares
// one (genSelfVarDecl).
func (g *Generator) genVarDecl(n *parser.Node) {
	h := g.intern(n.Text)
	kind := types.KindFromName(n.TypeName)
	if n.Op == "array" {
		kind = types.Hashtable
	}

	if g.fc != nil {
		if kind == types.Hashtable {
			g.errorf(n.Line, "hashtable %q cannot be declared as a local variable (only globals and object members may be hashtables)", n.Text)
			return
		}
		if g.fc.Locals[h] == nil {
			g.fc.AddLocal(n.Text, h, kind)
		}
	}
	g.emit(bytecode.OpVarDecl, uint32(h), uint32(kind))

	if n.Right == nil {
		return
	}
	g.pushRefByHash(h)
	g.genExpr(n.Right)
	g.emit(bytecode.OpAssign)
	g.emit(bytecode.OpPop)
}

// genSelfVarDecl handles the explicit "type self.name;" member
// declaration form, valid only inside a method body. The member lives on
// the receiver; subsequent accesses still spell out "self.name", a bare
// identifier never resolves to it.
func (g *Generator) genSelfVarDecl(n *parser.Node) {
	if g.fc == nil || g.namespace == "" {
		g.errorf(n.Line, "member declaration %q outside of a method", n.Text)
		return
	}
	h := g.intern(n.Text)
	kind := types.KindFromName(n.TypeName)
	if n.Op == "array" {
		kind = types.Hashtable
	}
	g.emit(bytecode.OpSelfVarDecl, uint32(h), uint32(kind))
	if n.Right == nil {
		return
	}
	g.emit(bytecode.OpPushSelf)
	g.emit(bytecode.OpPushMember, uint32(h))
	g.genExpr(n.Right)
	g.emit(bytecode.OpAssign)
	g.emit(bytecode.OpPop)
}

// genArrayVarDecl handles "type ht[key, ...];": it declares a typed
// entry, keyed by the rendered key sequence, inside the hashtable named
// by the identifier.
func (g *Generator) genArrayVarDecl(n *parser.Node) {
	h := g.intern(n.Text)
	kind := types.KindFromName(n.TypeName)
	if kind == types.Hashtable {
		g.errorf(n.Line, "hashtable entry %q cannot itself be a hashtable", n.Text)
		return
	}
	emitEntry := func(tail bytecode.Op, args ...uint32) {
		g.pushRefByHash(h)
		for _, k := range n.List {
			g.genExpr(k)
		}
		g.emit(bytecode.OpArrayHash, uint32(len(n.List)))
		g.emit(tail, args...)
	}
	emitEntry(bytecode.OpArrayVarDecl, uint32(kind))
	if n.Right == nil {
		return
	}
	emitEntry(bytecode.OpPushArrayVar)
	g.genExpr(n.Right)
	g.emit(bytecode.OpAssign)
	g.emit(bytecode.OpPop)
}

// isLocal reports whether a bare identifier's hash names a parameter or
// local of the current function. A bare identifier never resolves to a
// member; member access always spells out "self.name".
func (g *Generator) isLocal(h hash.Hash) bool {
	if g.fc == nil {
		return false
	}
	_, ok := g.fc.Lookup(h)
	return ok
}

// pushRefByHash emits the reference-kind push for h (an l-value), used
// both by genVarDecl's initializer and by genAccess's NIdent case.
func (g *Generator) pushRefByHash(h hash.Hash) {
	if g.isLocal(h) {
		g.emit(bytecode.OpPushLocalVar, uint32(h))
	} else {
		g.emit(bytecode.OpPushGlobalVar, uint32(h))
	}
}

// pushValueByHash emits the resolved-value push for h (an r-value).
func (g *Generator) pushValueByHash(h hash.Hash) {
	if g.isLocal(h) {
		g.emit(bytecode.OpPushLocalValue, uint32(h))
	} else {
		g.emit(bytecode.OpPushGlobalValue, uint32(h))
	}
}

// genAccess emits the code to reach the value denoted by n (NIdent,
// NMember or NArrayIndex): a reference-kind push when asRef is true (for
// assignment targets), a resolved-value push otherwise. ArrayIndex and
// Member recurse through genAccess/genExpr so the same code handles both
// `ht["a"]` and `self.ht["a"]` uniformly.
func (g *Generator) genAccess(n *parser.Node, asRef bool) {
	switch n.Kind {
	case parser.NIdent:
		h := g.intern(n.Text)
		if asRef {
			g.pushRefByHash(h)
		} else {
			g.pushValueByHash(h)
		}
	case parser.NMember:
		g.genExpr(n.Left)
		h := g.intern(n.Text)
		if asRef {
			g.emit(bytecode.OpPushMember, uint32(h))
		} else {
			g.emit(bytecode.OpPushMemberVal, uint32(h))
		}
	case parser.NArrayIndex:
		g.genAccess(n.Left, true)
		for _, k := range n.List {
			g.genExpr(k)
		}
		g.emit(bytecode.OpArrayHash, uint32(len(n.List)))
		if asRef {
			g.emit(bytecode.OpPushArrayVar)
		} else {
			g.emit(bytecode.OpPushArrayValue)
		}
	default:
		g.errorf(n.Line, "internal: node kind %v is not a valid assignment target", n.Kind)
	}
}

// genLValue emits a reference-kind push suitable as an assignment target
// or compound-assignment operand; the reference is written through, never
// resolved.
func (g *Generator) genLValue(n *parser.Node) { g.genAccess(n, true) }

var binOpCode = map[string]bytecode.Op{
	"+": bytecode.OpAdd, "-": bytecode.OpSub, "*": bytecode.OpMult,
	"/": bytecode.OpDiv, "%": bytecode.OpMod,
	"==": bytecode.OpCompareEqual, "!=": bytecode.OpCompareNotEqual,
	"<": bytecode.OpCompareLess, "<=": bytecode.OpCompareLessEqual,
	">": bytecode.OpCompareGreater, ">=": bytecode.OpCompareGreaterEqual,
	"<<": bytecode.OpBitLeftShift, ">>": bytecode.OpBitRightShift,
	"&": bytecode.OpBitAnd, "|": bytecode.OpBitOr, "^": bytecode.OpBitXor,
}

var compoundOpCode = map[string]bytecode.Op{
	"+=": bytecode.OpAssignAdd, "-=": bytecode.OpAssignSub,
	"*=": bytecode.OpAssignMult, "/=": bytecode.OpAssignDiv, "%=": bytecode.OpAssignMod,
	"<<=": bytecode.OpAssignLeftShift, ">>=": bytecode.OpAssignRightShift,
	"&=": bytecode.OpAssignBitAnd, "|=": bytecode.OpAssignBitOr, "^=": bytecode.OpAssignBitXor,
}

var unaryOpCode = map[string]bytecode.Op{
	"-": bytecode.OpUnaryNeg, "+": bytecode.OpUnaryPos,
	"!": bytecode.OpUnaryNot, "~": bytecode.OpUnaryBitInvert,
}

// genExpr emits code that leaves exactly one resolved value on the
// operand stack.
func (g *Generator) genExpr(n *parser.Node) {
	if n == nil {
		g.emit(bytecode.OpPush, uint32(types.Void), 0)
		return
	}
	switch n.Kind {
	case parser.NLiteralInt:
		g.emit(bytecode.OpPush, uint32(types.Int), uint32(n.IntVal))
	case parser.NLiteralBool:
		v := uint32(0)
		if n.BoolVal {
			v = 1
		}
		g.emit(bytecode.OpPush, uint32(types.Bool), v)
	case parser.NLiteralFloat:
		g.emit(bytecode.OpPush, uint32(types.Float), math.Float32bits(n.FloatVal))
	case parser.NLiteralString:
		g.emit(bytecode.OpPush, uint32(types.String), uint32(g.intern(n.Text)))
	case parser.NSelf:
		g.emit(bytecode.OpPushSelf)
	case parser.NIdent, parser.NMember, parser.NArrayIndex:
		g.genAccess(n, false)
	case parser.NAssign:
		g.genLValue(n.Left)
		g.genExpr(n.Right)
		g.emit(bytecode.OpAssign)
	case parser.NCompoundAssign:
		op, ok := compoundOpCode[n.Op]
		if !ok {
			g.errorf(n.Line, "internal: unknown compound assignment operator %q", n.Op)
			return
		}
		g.genLValue(n.Left)
		g.genExpr(n.Right)
		g.emit(op)
	case parser.NBinOp:
		g.genBinOp(n)
	case parser.NUnaryOp:
		op, ok := unaryOpCode[n.Op]
		if !ok {
			g.errorf(n.Line, "internal: unknown unary operator %q", n.Op)
			return
		}
		g.genExpr(n.Left)
		g.emit(op)
	case parser.NCall:
		g.genCall(n)
	case parser.NMethodCall:
		g.genMethodCall(n)
	case parser.NNSMethodCall:
		g.genNSMethodCall(n)
	case parser.NCreateObject:
		g.genCreate(n)
	default:
		g.errorf(n.Line, "internal: unexpected expression node %v", n.Kind)
	}
}

// genBinOp handles short-circuit && and || via branches and dispatches
// every other binary operator to a single opcode over two
// already-evaluated operands. The operand stack after a short-circuit
// expression contains exactly one bool.
func (g *Generator) genBinOp(n *parser.Node) {
	switch n.Op {
	case "&&":
		g.genExpr(n.Left)
		bf := g.emit(bytecode.OpBranchFalse, 0)
		g.genExpr(n.Right)
		g.emit(bytecode.OpBooleanAnd)
		end := g.emit(bytecode.OpBranch, 0)
		g.patchArg(bf, 0, g.here())
		g.emit(bytecode.OpPush, uint32(types.Bool), 0)
		g.patchArg(end, 0, g.here())
		return
	case "||":
		g.genExpr(n.Left)
		bt := g.emit(bytecode.OpBranchTrue, 0)
		g.genExpr(n.Right)
		g.emit(bytecode.OpBooleanOr)
		end := g.emit(bytecode.OpBranch, 0)
		g.patchArg(bt, 0, g.here())
		g.emit(bytecode.OpPush, uint32(types.Bool), 1)
		g.patchArg(end, 0, g.here())
		return
	}
	op, ok := binOpCode[n.Op]
	if !ok {
		g.errorf(n.Line, "internal: unknown binary operator %q", n.Op)
		return
	}
	g.genExpr(n.Left)
	g.genExpr(n.Right)
	g.emit(op)
}

// genCall emits a free-function call: reserve an activation record, fill
// parameters 1..N via push-param/assign pairs, then transfer control.
// The callee's return value ends up as this expression's single result.
func (g *Generator) genCall(n *parser.Node) {
	nameHash := g.intern(n.Text)
	g.emit(bytecode.OpFuncCallArgs, uint32(nameHash), uint32(len(n.List)))
	g.genCallArgs(n.List)
	g.emit(bytecode.OpFuncCall)
}

// genMethodCall emits a "." dispatch: the receiver expression's value is
// pushed first and bound as the callee's self; the method is resolved by
// walking the receiver's namespace chain.
func (g *Generator) genMethodCall(n *parser.Node) {
	g.genExpr(n.Left)
	nameHash := g.intern(n.Text)
	g.emit(bytecode.OpMethodCallArgs, uint32(nameHash))
	g.genCallArgs(n.List)
	g.emit(bytecode.OpFuncCall)
}

// genNSMethodCall emits a "NS::m(...)" dispatch: binds to NS's method
// (or that of NS's nearest ancestor defining m), skipping dispatch on the
// receiver's own class, implicitly against the current
// self (the only receiver available to a namespace-qualified call
// written inside a method body).
func (g *Generator) genNSMethodCall(n *parser.Node) {
	g.emit(bytecode.OpPushSelf)
	nsHash := g.intern(n.Left.Text)
	methodHash := g.intern(n.Text)
	g.emit(bytecode.OpNSMethodCallArgs, uint32(nsHash), uint32(methodHash))
	g.genCallArgs(n.List)
	g.emit(bytecode.OpFuncCall)
}

// genCallArgs fills parameter slots 1..N of the pending activation
// record with the evaluated args, one push-param/assign/pop triple each,
// so the sequence is stack-neutral overall.
func (g *Generator) genCallArgs(args []*parser.Node) {
	for i, a := range args {
		g.emit(bytecode.OpPushParam, uint32(i+1))
		g.genExpr(a)
		g.emit(bytecode.OpAssign)
		g.emit(bytecode.OpPop)
	}
}

// genCreate emits object creation. The sole meaningful argument is a
// string literal naming the new object; anything else in the argument
// list is accepted syntactically but ignored.
func (g *Generator) genCreate(n *parser.Node) {
	classHash := g.intern(n.Text)
	nameHash := hash.Zero
	if len(n.List) == 1 && n.List[0].Kind == parser.NLiteralString {
		nameHash = g.intern(n.List[0].Text)
	}
	g.emit(bytecode.OpCreateObject, uint32(classHash), uint32(nameHash))
}

func (g *Generator) genSchedule(n *parser.Node) {
	fnHash := g.intern(n.Text)
	g.emit(bytecode.OpScheduleBegin, uint32(n.DelaySrc), uint32(fnHash), uint32(hash.Zero))
	g.genExpr(n.Target)
	for _, arg := range n.List {
		g.genExpr(arg)
		g.emit(bytecode.OpScheduleParam)
	}
	g.emit(bytecode.OpScheduleEnd)
}
