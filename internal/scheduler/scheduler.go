// Package scheduler implements the time-ordered queue of pending script
// invocations: a container/heap-backed priority queue keyed by dispatch
// time, with FIFO tie-breaking among commands due at the same instant.
package scheduler

import (
	"container/heap"

	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/types"
)

// Command is a deferred call captured at schedule time. Exactly one of
// Source or (FuncHash set) is meaningful: a raw
// source-text command, or a function hash plus pre-materialized
// arguments, so that arguments are captured at schedule time rather than
// at dispatch time.
type Command struct {
	ReqID        uint64
	TargetObjID  uint32 // 0 for a free function
	DispatchTime int64  // absolute ms

	Source string // raw source-text command, or "" if FuncHash is set

	FuncHash      hash.Hash
	NamespaceHash hash.Hash
	Args          []types.Value

	seq int // insertion sequence, for FIFO tie-breaking among equal times
}

// Scheduler is a min-heap of pending Commands ordered by (DispatchTime,
// insertion sequence).
type Scheduler struct {
	q        cmdHeap
	nextReq  uint64
	nextSeq  int
}

// New creates an empty scheduler.
func New() *Scheduler {
	s := &Scheduler{nextReq: 1}
	heap.Init(&s.q)
	return s
}

// minDelayMs is the minimum enforced delay: schedule(obj, 0, F)
// defers to the next tick rather than executing inline.
const minDelayMs int64 = 1

// ScheduleSource enqueues a raw source-text command to run against
// targetObjID (0 for a free statement) at now+delayMs (at least
// now+minDelayMs). Returns the request id.
func (s *Scheduler) ScheduleSource(targetObjID uint32, now, delayMs int64, source string) uint64 {
	return s.schedule(targetObjID, now, delayMs, Command{Source: source})
}

// ScheduleCall enqueues a function call, capturing its arguments now so
// they are not re-evaluated at dispatch time.
func (s *Scheduler) ScheduleCall(targetObjID uint32, now, delayMs int64, fn, ns hash.Hash, args []types.Value) uint64 {
	return s.schedule(targetObjID, now, delayMs, Command{FuncHash: fn, NamespaceHash: ns, Args: args})
}

func (s *Scheduler) schedule(targetObjID uint32, now, delayMs int64, c Command) uint64 {
	if delayMs < minDelayMs {
		delayMs = minDelayMs
	}
	c.ReqID = s.nextReq
	s.nextReq++
	c.TargetObjID = targetObjID
	c.DispatchTime = now + delayMs
	c.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.q, &c)
	return c.ReqID
}

// Due pops and returns every command with DispatchTime <= now, in
// nondecreasing dispatch-time order with FIFO tie-breaking.
func (s *Scheduler) Due(now int64) []*Command {
	var due []*Command
	for s.q.Len() > 0 && s.q[0].DispatchTime <= now {
		due = append(due, heap.Pop(&s.q).(*Command))
	}
	return due
}

// CancelRequest removes a specific pending command if not yet
// dispatched. Returns whether it was found.
func (s *Scheduler) CancelRequest(reqID uint64) bool {
	for i, c := range s.q {
		if c.ReqID == reqID {
			heap.Remove(&s.q, i)
			return true
		}
	}
	return false
}

// CancelObject removes all pending commands targeting objID, e.g. fired
// automatically at object destruction.
func (s *Scheduler) CancelObject(objID uint32) {
	kept := s.q[:0]
	for _, c := range s.q {
		if c.TargetObjID != objID {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(s.q); i++ {
		s.q[i] = nil
	}
	s.q = kept
	heap.Init(&s.q)
}

// Len reports the number of pending commands.
func (s *Scheduler) Len() int { return s.q.Len() }

// cmdHeap implements container/heap.Interface over *Command, ordered by
// (DispatchTime, seq).
type cmdHeap []*Command

func (h cmdHeap) Len() int { return len(h) }
func (h cmdHeap) Less(i, j int) bool {
	if h[i].DispatchTime != h[j].DispatchTime {
		return h[i].DispatchTime < h[j].DispatchTime
	}
	return h[i].seq < h[j].seq
}
func (h cmdHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cmdHeap) Push(x interface{}) {
	*h = append(*h, x.(*Command))
}

func (h *cmdHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
