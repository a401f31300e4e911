package gc

// Root registries. Both kinds are intrusive doubly-linked lists anchored by
// permanent sentinels embedded in the GC, so registration and release are a
// pointer splice regardless of how many roots exist.
//
// A Ptr is a registered slot holding one pointer into the heap (possibly
// nil). A Root is a registered value-family object living outside the heap
// whose out-edges are traced in place. Release must be called on every exit
// path, normally via defer.

import "unsafe"

// Ptr is a pointer-slot root. The slot's referent is reachable for as long
// as the slot is registered.
type Ptr struct {
	prev, next *Ptr
	obj        *Object
}

// RootPtr registers a new pointer-slot root holding obj.
func (g *GC) RootPtr(obj *Object) *Ptr {
	p := &Ptr{obj: obj}
	p.prev = g.backPtr.prev
	p.next = &g.backPtr
	p.prev.next = p
	g.backPtr.prev = p
	return p
}

// Release unregisters the slot. The slot must not be used afterwards.
func (p *Ptr) Release() {
	p.prev.next = p.next
	p.next.prev = p.prev
	p.prev = nil
	p.next = nil
	p.obj = nil
}

func (p *Ptr) Get() *Object    { return p.obj }
func (p *Ptr) Set(obj *Object) { p.obj = obj }

// Root is an embedded-object root: the value itself lives in the node, not
// on the heap, and its children are marked during collection. The value
// starts out as Null.
type Root struct {
	prev, next *Root

	// Value is a by-value object with the value-family layout: one
	// header word and two payload words. Its address never enters the
	// heap; only its out-edges do.
	Value RootValue
}

// RootValue has the exact memory layout of a heap value-family object so the
// trace table can walk it in place.
type RootValue struct {
	header word
	p0, p1 word
}

// Object views the embedded value as an object header for mutation through
// the usual accessors.
func (v *RootValue) Object() *Object {
	return (*Object)(unsafe.Pointer(v))
}

// RootObj registers a new embedded-object root, initialized to Null.
func (g *GC) RootObj() *Root {
	r := &Root{}
	r.Value.header = word(TagNull)
	r.prev = g.backRoot.prev
	r.next = &g.backRoot
	r.prev.next = r
	g.backRoot.prev = r
	return r
}

// Release unregisters the root. The root must not be used afterwards.
func (r *Root) Release() {
	r.prev.next = r.next
	r.next.prev = r.prev
	r.prev = nil
	r.next = nil
}

// Set copies a value-family object into the root by value, so the root keeps
// the object's whole out-edge set alive without the object itself needing to
// stay on the heap.
func (r *Root) Set(obj *Object) {
	if tag := obj.Tag(); tag < TagInt || tag > TagFloat {
		fatalf("cannot embed %v object at %#x in a root", tag, obj.addr())
	}
	r.Value.header = obj.header &^ markBit
	r.Value.p0 = *obj.payload(0)
	r.Value.p1 = *obj.payload(1)
}

// countRoots reports how many registrations of each kind are still live.
func (g *GC) countRoots() (ptrs, roots int) {
	for p := g.frontPtr.next; p != &g.backPtr; p = p.next {
		ptrs++
	}
	for r := g.frontRoot.next; r != &g.backRoot; r = r.next {
		roots++
	}
	return
}
