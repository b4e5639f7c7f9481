// Package tin is the host-facing facade of the runtime: a Context owns
// one of every context-scoped registry (string table, namespace
// registry, object registry, scheduler, VM) and exposes the host API:
// execute source, tick the scheduler, register native types, functions,
// classes and methods, create/find/destroy objects, read/write globals,
// and call script functions.
//
// A Context is built with NewContext(opts ...Option): construction
// assembles defaults, then applies each Option in order, any of which
// may fail and abort construction.
package tin
