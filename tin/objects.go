package tin

import (
	"github.com/pkg/errors"

	"github.com/tinscript/tin/internal/hash"
)

// ObjectHandle is the host-visible summary of a registered object.
type ObjectHandle struct {
	ID        uint32
	ClassName string
	HostAddr  uintptr
}

// RegisterObject registers a pre-existing host object under class,
// optionally named name ("" for anonymous), returning its id. Unlike a
// script `create` expression this never invokes OnCreate: the object
// already exists on the host side.
func (c *Context) RegisterObject(hostAddr uintptr, class, name string) (uint32, error) {
	ns, ok := c.reg.ClassByName(class)
	if !ok {
		return 0, errors.Errorf("tin: register object: unknown class %q", class)
	}
	nameHash := hash.Zero
	if name != "" {
		nameHash = c.strtab.Intern(name)
	}
	obj, err := c.objs.Register(ns, nameHash, hostAddr)
	if err != nil {
		return 0, errors.Wrap(err, "tin: register object")
	}
	return obj.ID, nil
}

// FindObjectByID looks up a registered object by id.
func (c *Context) FindObjectByID(id uint32) (ObjectHandle, bool) {
	o, ok := c.objs.ByID(id)
	if !ok {
		return ObjectHandle{}, false
	}
	return ObjectHandle{ID: o.ID, ClassName: o.Namespace.Name, HostAddr: o.HostAddr}, true
}

// FindObjectByName looks up a registered object by name.
func (c *Context) FindObjectByName(name string) (ObjectHandle, bool) {
	o, ok := c.objs.ByName(hash.Of(name))
	if !ok {
		return ObjectHandle{}, false
	}
	return ObjectHandle{ID: o.ID, ClassName: o.Namespace.Name, HostAddr: o.HostAddr}, true
}

// FindObjectByAddr looks up a registered object by host address.
func (c *Context) FindObjectByAddr(addr uintptr) (ObjectHandle, bool) {
	o, ok := c.objs.ByAddr(addr)
	if !ok {
		return ObjectHandle{}, false
	}
	return ObjectHandle{ID: o.ID, ClassName: o.Namespace.Name, HostAddr: o.HostAddr}, true
}

// DestroyObject runs OnDestroy and the native destructor (if any) for id
// and removes it from the registry.
func (c *Context) DestroyObject(id uint32) error {
	return c.m.DestroyObjectByID(id)
}
