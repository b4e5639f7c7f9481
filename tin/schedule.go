package tin

import (
	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/symtab"
)

// Schedule enqueues a free-function or method call against objID (0 for
// a free function) to run delayMs from the current UpdateContext time,
// capturing args now. Returns the request id.
func (c *Context) Schedule(objID uint32, delayMs int64, fnName string, args ...Value) uint64 {
	return c.sched.ScheduleCall(objID, c.lastNow, delayMs, hash.Of(fnName), symtab.GlobalNamespaceHash, args)
}

// ScheduleSource enqueues raw source text to compile and run at
// now+delayMs.
func (c *Context) ScheduleSource(objID uint32, delayMs int64, source string) uint64 {
	return c.sched.ScheduleSource(objID, c.lastNow, delayMs, source)
}

// CancelSchedule removes a specific pending request if not yet
// dispatched.
func (c *Context) CancelSchedule(reqID uint64) bool {
	return c.sched.CancelRequest(reqID)
}

// CancelObjectSchedule removes every pending request targeting objID,
// e.g. as part of a host-triggered object teardown.
func (c *Context) CancelObjectSchedule(objID uint32) {
	c.sched.CancelObject(objID)
}

// PendingSchedules reports the number of commands still waiting to fire,
// so a host tick loop knows when it can stop.
func (c *Context) PendingSchedules() int {
	return c.sched.Len()
}
