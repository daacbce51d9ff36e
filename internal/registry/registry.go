// Package registry is the process-wide class table: a
// name→*heap.Class map seeded with the bootstrap hierarchy every
// interpreter image carries, flattened to mruby/c's single-inheritance
// chain.
package registry

import (
	"fmt"
	"sync"

	"github.com/tinyrb/mrbcvm/internal/alloc"
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/symbol"
	"github.com/tinyrb/mrbcvm/internal/value"
)

type entry struct {
	class *heap.Class
	val   value.Value // the CLASS-tagged value owning class's heap cell
}

// Registry is the process-wide name->*heap.Class table. It also
// remembers each class's owning value.Value so callers that only have
// a *heap.Class can put it back into a register without allocating a
// second cell for the same class.
type Registry struct {
	mu      sync.RWMutex
	classes map[symbol.ID]entry
}

// New creates an empty registry. Use Bootstrap to seed the built-in
// hierarchy.
func New() *Registry {
	return &Registry{classes: make(map[symbol.ID]entry)}
}

// Get returns the class named by sym, if defined.
func (r *Registry) Get(sym symbol.ID) (*heap.Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.classes[sym]
	return e.class, ok
}

// ValueOf returns the CLASS-tagged value.Value for the class named by
// sym, if defined.
func (r *Registry) ValueOf(sym symbol.ID) (value.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.classes[sym]
	return e.val, ok
}

// Define registers class (and the value.Value owning its cell) under
// its own Name symbol. CLASS reuses an existing registry entry if the
// script reopens a class name, the way mruby/c's class table is a
// single flat namespace.
func (r *Registry) Define(c *heap.Class, v value.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[c.Name] = entry{class: c, val: v}
}

// All returns every (symbol, *heap.Class) pair currently registered.
func (r *Registry) All() map[symbol.ID]*heap.Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[symbol.ID]*heap.Class, len(r.classes))
	for s, e := range r.classes {
		out[s] = e.class
	}
	return out
}

// Names lists every registered class name symbol, for diagnostics/console.
func (r *Registry) Names() []symbol.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]symbol.ID, 0, len(r.classes))
	for s := range r.classes {
		out = append(out, s)
	}
	return out
}

func (r *Registry) define(h *heap.Heap, name string, super *heap.Class, intern func(string) symbol.ID) *heap.Class {
	v, c, ok := heap.NewClass(h, alloc.VMID(0), intern(name), super)
	if !ok {
		panic(fmt.Sprintf("registry: allocator exhausted defining bootstrap class %q", name))
	}
	r.Define(c, v)
	return c
}

// Builtin names, matching the bootstrap hierarchy every mruby/c image
// carries regardless of which opcodes a given script happens to use.
const (
	Object    = "Object"
	NilClass  = "NilClass"
	TrueClass = "TrueClass"
	FalseCls  = "FalseClass"
	Fixnum    = "Fixnum"
	Float     = "Float"
	Symbol    = "Symbol"
	String    = "String"
	Array     = "Array"
	Hash      = "Hash"
	Range     = "Range"
	Proc      = "Proc"
	ClassCls  = "Class"
)

// Bootstrap seeds the registry with the built-in class hierarchy
// reachable through the opcode set. Every bootstrap class is allocated
// raw (VMID 0) — it outlives any one VM's teardown.
func Bootstrap(h *heap.Heap, symbols *symbol.Table) (*Registry, error) {
	r := New()
	intern := func(name string) symbol.ID {
		id, ok := symbols.Intern(name)
		if !ok {
			panic(fmt.Sprintf("registry: symbol table exhausted interning bootstrap class %q", name))
		}
		return id
	}

	define := func(name string, super *heap.Class) *heap.Class {
		return r.define(h, name, super, intern)
	}

	object := define(Object, nil)
	define(NilClass, object)
	define(TrueClass, object)
	define(FalseCls, object)
	define(Fixnum, object)
	define(Float, object)
	define(Symbol, object)
	define(String, object)
	define(Array, object)
	define(Hash, object)
	define(Range, object)
	define(Proc, object)
	define(ClassCls, object)

	defineNative(h, object, intern("new"), nativeNew)

	return r, nil
}

// defineNative attaches a native proc to a bootstrap class, allocated
// raw (VMID 0) alongside the classes themselves since it outlives
// every VM.
func defineNative(h *heap.Heap, class *heap.Class, sym symbol.ID, fn heap.NativeFunc) {
	procVal, ok := heap.NewProc(h, alloc.VMID(0), &heap.Proc{Name: sym, Native: fn})
	if !ok {
		panic("registry: allocator exhausted defining bootstrap native method")
	}
	h.DefineMethod(class, sym, procVal)
}

// nativeNew is Object#new: allocates a bare instance of the receiver
// class. It does not dispatch `initialize` — that is a regular method
// the compiled bytecode sends itself when one is defined.
func nativeNew(ctx heap.NativeContext, regs []value.Value, argc int) {
	h := ctx.Heap()
	cls, ok := h.ClassBody(regs[0])
	if !ok {
		ctx.Diagf("TypeError: new called on a non-class receiver")
		return
	}
	h.Release(regs[0])
	obj, ok := heap.NewObject(h, ctx.VMID(), cls)
	if !ok {
		ctx.Diagf("allocator exhausted allocating instance")
		return
	}
	regs[0] = obj
}
