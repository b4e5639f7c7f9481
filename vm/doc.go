// Package vm implements the stack virtual machine: a
// fetch-decode-execute loop over bytecode.Block, a shared operand stack
// of tagged types.Value cells, and a call stack of activation records
// built from the static layout recorded in a function's
// *symtab.FuncContext.
//
// A Machine owns no global state of its own beyond the breakpoint table
// and the operand/call stacks: the string table, object registry,
// namespace registry and scheduler all live in the owning context and
// are threaded in via New.
package vm
