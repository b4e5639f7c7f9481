package vm

import (
	"github.com/pkg/errors"

	"github.com/tinscript/tin/bytecode"
	"github.com/tinscript/tin/internal/hash"
	"github.com/tinscript/tin/internal/objects"
	"github.com/tinscript/tin/internal/symtab"
	"github.com/tinscript/tin/internal/types"
)

// schedulerFrame is a placeholder caller frame used only for fault
// attribution when a call is dispatched outside of any running script.
var schedulerFrame = &frame{block: &bytecode.Block{Filename: "<scheduler>"}}

// SetNow records the current time for subsequent schedule(...) calls;
// the owning context calls this once per update tick before draining due
// commands.
func (m *Machine) SetNow(now int64) { m.now = now }

// CallByHash dispatches a scheduled command carrying a function
// reference. targetObjID of 0 means a free function call. The return
// value is discarded, matching a scheduled command's fire-and-forget
// semantics; use CallFunction for a host call that needs the result.
func (m *Machine) CallByHash(nsHash, fnHash hash.Hash, targetObjID uint32, args []types.Value) error {
	_, err := m.CallFunction(nsHash, fnHash, targetObjID, args)
	return err
}

// CallFunction invokes a script or native function by (namespace hash,
// function hash) with pre-built args, outside of any currently running
// script. targetObjID of 0 means a free function call; otherwise the
// function is looked up as a method against that object, walking its
// namespace's inheritance chain.
func (m *Machine) CallFunction(nsHash, fnHash hash.Hash, targetObjID uint32, args []types.Value) (types.Value, error) {
	if targetObjID != 0 {
		o, ok := m.Objs.ByID(targetObjID)
		if !ok {
			return types.Value{}, errors.Errorf("vm: call targets unknown object %d", targetObjID)
		}
		fn, _ := o.Namespace.FindMethod(fnHash)
		if fn == nil {
			return types.Value{}, errors.Errorf("vm: method not found")
		}
		return m.invokeWithArgs(fn, o, args)
	}
	fn, _, ok := m.lookupFunction(nsHash, fnHash)
	if !ok {
		return types.Value{}, errors.Errorf("vm: function not found")
	}
	return m.invokeWithArgs(fn, nil, args)
}

// DestroyObjectByID runs the same lifecycle teardown as a script
// destroy(...) statement, for a host-triggered destroy outside of any
// running script. Returns an error if id does not name a live object.
func (m *Machine) DestroyObjectByID(id uint32) error {
	found, err := m.destroyObject(schedulerFrame, id)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("vm: destroy of unknown object %d", id)
	}
	return nil
}

func (m *Machine) invokeWithArgs(fn *symtab.Function, obj *objects.Object, args []types.Value) (types.Value, error) {
	slots, _ := makeSlotsAndKinds(fn)
	for i, a := range args {
		if i+1 < len(slots) {
			slots[i+1] = a
		}
	}
	if err := m.invoke(schedulerFrame, fn, obj, slots); err != nil {
		return types.Value{}, err
	}
	return m.pop()
}
