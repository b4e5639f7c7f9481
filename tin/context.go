package tin

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/tinscript/tin/bytecode"
	"github.com/tinscript/tin/internal/codegen"
	"github.com/tinscript/tin/internal/objects"
	"github.com/tinscript/tin/internal/parser"
	"github.com/tinscript/tin/internal/scheduler"
	"github.com/tinscript/tin/internal/strtab"
	"github.com/tinscript/tin/internal/symtab"
	"github.com/tinscript/tin/internal/types"
	"github.com/tinscript/tin/vm"
)

// Context is one script context: it owns the string table, namespace and
// object registries, scheduler and VM core that back a single running
// instance. A Context and everything it owns must only ever be touched
// from one host thread; independent contexts share nothing and may run
// on separate threads.
type Context struct {
	strtab *strtab.Table
	reg    *symtab.Registry
	objs   *objects.Registry
	sched  *scheduler.Scheduler
	m      *vm.Machine

	blocks map[string]*bytecode.Block

	stringTableFile string
	lastNow         int64
}

// codeBlocks implements vm.CodeLoader over the Context's compiled-block
// cache, keyed by source filename; a function may be defined in a
// different file than the one currently executing.
type codeBlocks struct{ c *Context }

func (cb codeBlocks) Block(filename string) (*bytecode.Block, bool) {
	b, ok := cb.c.blocks[filename]
	return b, ok
}

// NewContext creates a Context with default registries and applies opts
// in order.
func NewContext(opts ...Option) (*Context, error) {
	c := &Context{
		strtab: strtab.New(),
		reg:    symtab.NewRegistry(),
		objs:   objects.New(),
		sched:  scheduler.New(),
		blocks: make(map[string]*bytecode.Block),
	}
	c.m = vm.New(c.strtab, c.reg, c.objs, c.sched, codeBlocks{c})

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	// default script-visible output native, wired to the PrintHandler;
	// a host may re-register Print to replace it.
	c.RegisterNativeFunction("Print", []Kind{types.Void},
		func(_ uintptr, args []types.Value) (types.Value, error) {
			if c.m.Print != nil && len(args) > 0 {
				c.m.Print(types.Format(args[0], c.strtab))
			}
			return types.Value{Kind: types.Void}, nil
		})

	if c.stringTableFile != "" {
		if err := c.strtab.LoadFile(c.stringTableFile); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// isRegisteredType reports whether name is a declared class, native or
// script.
func (c *Context) isRegisteredType(name string) bool {
	_, ok := c.reg.ClassByName(name)
	return ok
}

// compile runs the lex/parse/codegen pipeline over src named filename,
// caching the resulting block for later function/method dispatch.
func (c *Context) compile(src, filename string) (*bytecode.Block, error) {
	p := parser.New(strings.NewReader(src), filename)
	p.SetTypeChecker(c.isRegisteredType)
	tree, err := p.Parse()
	if err != nil {
		return nil, errors.Wrapf(err, "tin: parse %s", filename)
	}
	g := codegen.New(c.strtab)
	block, err := g.Generate(filename, tree)
	if err != nil {
		return nil, errors.Wrapf(err, "tin: codegen %s", filename)
	}
	c.blocks[filename] = block
	return block, nil
}

// ExecuteText compiles and runs src as an anonymous translation unit
// named filename.
func (c *Context) ExecuteText(src, filename string) error {
	block, err := c.compile(src, filename)
	if err != nil {
		return err
	}
	return c.m.ExecuteBlock(block)
}

// ExecuteFile compiles and runs the source at path. A compiled binary is
// kept next to the source (path + "c"); it is reused when it is at least
// as new as the source and regenerated otherwise. Symbol text referenced
// by a reused binary comes from the string table, so cross-process reuse
// needs WithStringTableFile.
func (c *Context) ExecuteFile(path string) error {
	cachePath := path + "c"
	block, err := bytecode.LoadIfFresh(cachePath, path, path)
	if err != nil {
		return errors.Wrapf(err, "tin: load %s", cachePath)
	}
	if block == nil {
		src, rerr := readFile(path)
		if rerr != nil {
			return errors.Wrapf(rerr, "tin: read %s", path)
		}
		if block, err = c.compile(src, path); err != nil {
			return err
		}
		// cache write is best-effort; execution proceeds either way.
		_ = block.Save(cachePath)
	}
	c.blocks[path] = block
	return c.m.ExecuteBlock(block)
}

// UpdateContext advances the scheduler to nowMs and dispatches every
// command now due, in nondecreasing dispatch-time order. A source-text
// command is recompiled and run as its own translation unit; a
// function-hash command is dispatched directly through the VM, bypassing
// the compile pipeline entirely.
func (c *Context) UpdateContext(nowMs int64) error {
	c.lastNow = nowMs
	c.m.SetNow(nowMs)
	for _, cmd := range c.sched.Due(nowMs) {
		var err error
		if cmd.Source != "" {
			err = c.ExecuteText(cmd.Source, "<scheduled>")
		} else {
			err = c.m.CallByHash(cmd.NamespaceHash, cmd.FuncHash, cmd.TargetObjID, cmd.Args)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Disassemble writes a listing of the compiled block for filename (a
// name previously passed to ExecuteFile or ExecuteText) to w.
func (c *Context) Disassemble(filename string, w io.Writer) error {
	b, ok := c.blocks[filename]
	if !ok {
		return errors.Errorf("tin: no compiled block for %q", filename)
	}
	return b.Disassemble(w)
}

// AddBreakpoint normalizes a requested source line to the nearest
// instruction at or after it and records the breakpoint. Returns the
// normalized line.
func (c *Context) AddBreakpoint(file string, line int) (int, error) {
	return c.m.AddBreakpoint(file, line)
}

// FormatValue renders v to text using the context's string table.
func (c *Context) FormatValue(v Value) string {
	return types.Format(v, c.strtab)
}

// InternString adds s to the context's string table and returns a
// string-kind Value carrying its hash.
func (c *Context) InternString(s string) Value {
	return types.NewString(c.strtab.Intern(s))
}

// LookupString resolves a string-kind Value back to its interned text.
func (c *Context) LookupString(v Value) (string, bool) {
	return c.strtab.Lookup(v.H)
}

// SaveStringTable writes the context's string table to path, so a later
// process (or an attached debugger) can resolve hashes back to text.
func (c *Context) SaveStringTable(path string) error {
	return c.strtab.SaveFile(path)
}

// Fault re-exports vm.Fault so hosts need not import the vm package
// directly to inspect an assert callback's argument.
type Fault = vm.Fault

// Value re-exports types.Value for the same reason (global get/set,
// native function thunks, script-function call results).
type Value = types.Value

// Kind re-exports types.Kind.
type Kind = types.Kind

const (
	KindInt    = types.Int
	KindBool   = types.Bool
	KindFloat  = types.Float
	KindString = types.String
	KindObject = types.Object
	KindVec3   = types.Vec3

	// KindVoid as a native function's declared parameter kind means
	// "accept the caller's value unconverted", the same convention as an
	// untyped hashtable entry. Use it for a generic native like Print
	// that must take any value kind.
	KindVoid = types.Void
)
