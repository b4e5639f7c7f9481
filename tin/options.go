package tin

import "github.com/tinscript/tin/vm"

// Option configures a Context at construction time.
type Option func(*Context) error

// PrintHandler installs the callback invoked by whatever output native
// the host registers; the VM itself never writes output.
func PrintHandler(fn func(string)) Option {
	return func(c *Context) error { c.m.Print = vm.PrintHandler(fn); return nil }
}

// AssertHandler installs the callback invoked on a runtime Fault.
// Returning true continues execution past the fault; false (or never
// setting one) unwinds the call stack to the entry point.
func AssertHandler(fn func(*Fault) bool) Option {
	return func(c *Context) error { c.m.Assert = vm.AssertHandler(fn); return nil }
}

// BreakHandler installs the callback invoked when execution reaches an
// instruction marked by AddBreakpoint.
func BreakHandler(fn func(file string, line int)) Option {
	return func(c *Context) error { c.m.Break = vm.BreakHandler(fn); return nil }
}

// WithStringTableFile reloads a string-table file into the context's
// string table at construction time, keeping hash->text mapping
// consistent with a previous run for debugger symbol resolution and
// compiled-binary reuse.
func WithStringTableFile(path string) Option {
	return func(c *Context) error { c.stringTableFile = path; return nil }
}
