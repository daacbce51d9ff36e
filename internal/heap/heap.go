// Package heap implements the built-in heap types: strings, arrays,
// hashes, ranges, object instances, procs, and classes, all sharing a
// reference-count header and served out of a single
// internal/alloc.Pool.
//
// Values never hold raw Go pointers to cells; a heap-tagged
// value.Value carries an alloc.Ref, and the VM resolves it through a
// *Heap. This keeps double-free and use-after-free detectable (the
// Ref's generation must match the cell's) instead of relying on Go's
// GC to paper over dangling references, which would hide the exact
// refcount bugs the tests are designed to catch.
package heap

import (
	"fmt"

	"github.com/tinyrb/mrbcvm/internal/alloc"
	"github.com/tinyrb/mrbcvm/internal/irep"
	"github.com/tinyrb/mrbcvm/internal/symbol"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// Header is the reference-count header every heap cell begins with.
type Header struct {
	Refcount uint32
	VMID     alloc.VMID
	Kind     value.Tag
}

// maxRefcount is the refcount saturation ceiling.
const maxRefcount = 1<<32 - 1

// Body is the type-specific payload of a heap cell.
type Body interface {
	kind() value.Tag
}

// Cell is one arena slot: header plus body, indexed in lockstep with
// the backing alloc.Pool so a Ref resolves to both at once.
type Cell struct {
	Header
	Gen  uint32
	Body Body
}

// Heap is the typed arena built over a fixed-pool allocator.
type Heap struct {
	pool  *alloc.Pool
	cells []Cell
}

// New wraps pool as the backing allocator for a typed heap arena.
func New(pool *alloc.Pool) *Heap {
	return &Heap{pool: pool}
}

// Pool returns the backing allocator (for statistics/diagnostics).
func (h *Heap) Pool() *alloc.Pool { return h.pool }

// cellSize is a rough per-kind byte estimate charged against the pool;
// the point is budget accounting, not byte-exact layout.
func cellSize(k value.Tag) int {
	switch k {
	case value.TagString:
		return 32
	case value.TagArray, value.TagHash:
		return 48
	case value.TagRange:
		return 24
	case value.TagObject:
		return 40
	case value.TagProc:
		return 32
	case value.TagClass:
		return 48
	default:
		return 16
	}
}

func (h *Heap) alloc(vm alloc.VMID, body Body) (alloc.Ref, bool) {
	k := body.kind()
	ref, ok := h.pool.Alloc(vm, cellSize(k))
	if !ok {
		return alloc.Ref{}, false
	}
	cell := Cell{Header: Header{Refcount: 1, VMID: vm, Kind: k}, Gen: ref.Gen, Body: body}
	if int(ref.Index) < len(h.cells) {
		h.cells[ref.Index] = cell
	} else {
		for int(ref.Index) > len(h.cells) {
			h.cells = append(h.cells, Cell{})
		}
		h.cells = append(h.cells, cell)
	}
	return ref, true
}

func (h *Heap) cell(r alloc.Ref) (*Cell, bool) {
	if int(r.Index) >= len(h.cells) {
		return nil, false
	}
	c := &h.cells[int(r.Index)]
	if c.Gen != r.Gen {
		return nil, false
	}
	return c, true
}

// Get resolves a heap-tagged value to its cell body. ok is false for a
// stale or out-of-range reference (should never happen under a correct
// dispatcher, but callers must not crash on it).
func (h *Heap) Get(v value.Value) (Body, bool) {
	if !v.Tag.IsHeap() {
		return nil, false
	}
	c, ok := h.cell(v.Ref())
	if !ok {
		return nil, false
	}
	return c.Body, true
}

// Retain increments a heap value's refcount. Non-heap values are no-ops.
func (h *Heap) Retain(v value.Value) {
	if !v.Tag.IsHeap() {
		return
	}
	c, ok := h.cell(v.Ref())
	if !ok {
		return
	}
	if c.Refcount < maxRefcount {
		c.Refcount++
	}
}

// Release decrements a heap value's refcount, recursively releasing
// contained values and freeing the cell's block at zero. Non-heap
// values are no-ops, so register assignment can release its prior
// content unconditionally even when that content was an immediate.
func (h *Heap) Release(v value.Value) {
	if !v.Tag.IsHeap() {
		return
	}
	c, ok := h.cell(v.Ref())
	if !ok {
		return
	}
	if c.Refcount == 0 {
		return // already freed; tolerate double release rather than crash
	}
	c.Refcount--
	if c.Refcount > 0 {
		return
	}
	vm := c.VMID
	h.destroy(c.Body)
	c.Body = nil
	h.pool.Free(vm, v.Ref())
	c.Gen++ // mirror the pool's generation bump so stale refs stop resolving
}

// destroy recursively releases everything a cell body owns.
func (h *Heap) destroy(b Body) {
	switch t := b.(type) {
	case *String:
		// no contained values
	case *Array:
		for _, e := range t.Elems {
			h.Release(e)
		}
	case *Hash:
		for _, e := range t.Entries {
			h.Release(e.Key)
			h.Release(e.Value)
		}
	case *Range:
		h.Release(t.Low)
		h.Release(t.High)
	case *Object:
		for _, v := range t.IVars {
			h.Release(v)
		}
	case *Proc:
		// native/IREP pointers are not refcounted cells themselves
	case *Class:
		m := t.Methods
		for m != nil {
			h.Release(m.ProcVal)
			m = m.Next
		}
	}
}

// ---- String ----

type String struct {
	Data []byte
}

func (*String) kind() value.Tag { return value.TagString }

// NewString allocates a fresh, mutable string cell (STRING opcode).
func NewString(h *Heap, vm alloc.VMID, s string) (value.Value, bool) {
	ref, ok := h.alloc(vm, &String{Data: []byte(s)})
	if !ok {
		return value.Value{}, false
	}
	return value.HeapValue(value.TagString, ref), true
}

func (h *Heap) StringBody(v value.Value) (*String, bool) {
	b, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	s, ok := b.(*String)
	return s, ok
}

// ---- Array ----

type Array struct {
	Elems []value.Value
}

func (*Array) kind() value.Tag { return value.TagArray }

// NewArray builds an array taking ownership of elems (ARRAY opcode:
// "moves, not copies, preserving refcounts" — callers must not retain
// elems again after this call succeeds).
func NewArray(h *Heap, vm alloc.VMID, elems []value.Value) (value.Value, bool) {
	ref, ok := h.alloc(vm, &Array{Elems: elems})
	if !ok {
		return value.Value{}, false
	}
	return value.HeapValue(value.TagArray, ref), true
}

func (h *Heap) ArrayBody(v value.Value) (*Array, bool) {
	b, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	a, ok := b.(*Array)
	return a, ok
}

// ---- Hash ----

type HashEntry struct {
	Key   value.Value
	Value value.Value
}

type Hash struct {
	Entries []HashEntry
}

func (*Hash) kind() value.Tag { return value.TagHash }

// NewHash builds a hash from C key-value pairs (HASH opcode), moving
// ownership the same way NewArray does.
func NewHash(h *Heap, vm alloc.VMID, entries []HashEntry) (value.Value, bool) {
	ref, ok := h.alloc(vm, &Hash{Entries: entries})
	if !ok {
		return value.Value{}, false
	}
	return value.HeapValue(value.TagHash, ref), true
}

func (h *Heap) HashBody(v value.Value) (*Hash, bool) {
	b, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	hh, ok := b.(*Hash)
	return hh, ok
}

// ---- Range ----

type Range struct {
	Low, High value.Value
	Exclusive bool
}

func (*Range) kind() value.Tag { return value.TagRange }

// NewRange duplicates low/high into the new cell (RANGE opcode:
// "duplicating them into the range cell" — caller must Retain before
// handing them here, or pass freshly-owned values).
func NewRange(h *Heap, vm alloc.VMID, low, high value.Value, exclusive bool) (value.Value, bool) {
	ref, ok := h.alloc(vm, &Range{Low: low, High: high, Exclusive: exclusive})
	if !ok {
		return value.Value{}, false
	}
	return value.HeapValue(value.TagRange, ref), true
}

func (h *Heap) RangeBody(v value.Value) (*Range, bool) {
	b, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	r, ok := b.(*Range)
	return r, ok
}

// ---- Object ----

type Object struct {
	Class *Class
	IVars map[symbol.ID]value.Value
}

func (*Object) kind() value.Tag { return value.TagObject }

// NewObject allocates a bare instance of class (no ivars set yet;
// `initialize` is a regular method dispatched through SEND).
func NewObject(h *Heap, vm alloc.VMID, class *Class) (value.Value, bool) {
	ref, ok := h.alloc(vm, &Object{Class: class, IVars: make(map[symbol.ID]value.Value)})
	if !ok {
		return value.Value{}, false
	}
	return value.HeapValue(value.TagObject, ref), true
}

func (h *Heap) ObjectBody(v value.Value) (*Object, bool) {
	b, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	o, ok := b.(*Object)
	return o, ok
}

// ---- Proc ----

// NativeContext is the minimal surface a native method implementation
// needs, kept deliberately small so package heap does not depend on
// package vm.
type NativeContext interface {
	Heap() *Heap
	VMID() alloc.VMID
	Diagf(format string, args ...any)
}

// NativeFunc implements a native proc. regs is the callee's register
// window (regs[0] is receiver/return slot, regs[1..argc] are
// arguments); the function must write its result to regs[0] after
// releasing its prior content. Argument slots are released by the
// dispatcher once the call returns, so a native that wants to keep an
// argument alive must Retain it — natives balance refcounts.
type NativeFunc func(ctx NativeContext, regs []value.Value, argc int)

type Proc struct {
	Name   symbol.ID
	Native NativeFunc // non-nil for a native proc
	IREP   *irep.IREP // non-nil for a script proc
}

func (*Proc) kind() value.Tag { return value.TagProc }

// IsNative reports whether this proc is implemented in the host
// language rather than as script bytecode.
func (p *Proc) IsNative() bool { return p.Native != nil }

// NewProc allocates a first-class proc value (LAMBDA opcode).
func NewProc(h *Heap, vm alloc.VMID, p *Proc) (value.Value, bool) {
	ref, ok := h.alloc(vm, p)
	if !ok {
		return value.Value{}, false
	}
	return value.HeapValue(value.TagProc, ref), true
}

func (h *Heap) ProcBody(v value.Value) (*Proc, bool) {
	b, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	p, ok := b.(*Proc)
	return p, ok
}

// ---- Class ----

// MethodEntry is one node of a class's singly-linked method list.
type MethodEntry struct {
	Sym     symbol.ID
	ProcVal value.Value // PROC-tagged; the class table owns this reference
	Next    *MethodEntry
}

type Class struct {
	Name    symbol.ID
	Super   *Class // nullable; only the root Object has none
	Methods *MethodEntry
}

func (*Class) kind() value.Tag { return value.TagClass }

// NewClass allocates a class cell with the given name and superclass.
func NewClass(h *Heap, vm alloc.VMID, name symbol.ID, super *Class) (value.Value, *Class, bool) {
	c := &Class{Name: name, Super: super}
	ref, ok := h.alloc(vm, c)
	if !ok {
		return value.Value{}, nil, false
	}
	return value.HeapValue(value.TagClass, ref), c, true
}

func (h *Heap) ClassBody(v value.Value) (*Class, bool) {
	b, ok := h.Get(v)
	if !ok {
		return nil, false
	}
	c, ok := b.(*Class)
	return c, ok
}

// DefineMethod attaches procVal (a PROC value whose reference is moved,
// not duplicated) to class under sym, unlinking and releasing any
// existing method of that name.
func (h *Heap) DefineMethod(class *Class, sym symbol.ID, procVal value.Value) {
	var prev *MethodEntry
	for m := class.Methods; m != nil; m = m.Next {
		if m.Sym == sym {
			if prev == nil {
				class.Methods = m.Next
			} else {
				prev.Next = m.Next
			}
			h.Release(m.ProcVal)
			break
		}
		prev = m
	}
	class.Methods = &MethodEntry{Sym: sym, ProcVal: procVal, Next: class.Methods}
}

// Lookup walks class and its superclass chain for sym, returning the
// proc and the class that actually defines it (the "target class" for
// the resulting call frame).
func Lookup(class *Class, sym symbol.ID) (*MethodEntry, *Class) {
	for c := class; c != nil; c = c.Super {
		for m := c.Methods; m != nil; m = m.Next {
			if m.Sym == sym {
				return m, c
			}
		}
	}
	return nil, nil
}

// Compare returns 0 when equal, negative when a < b, positive when
// a > b. EMPTY and NIL compare equal (a deliberate quirk preserved
// for compatibility with existing test corpora).
// Mixed fixnum/float promotes to float. Unequal tags otherwise compare
// by tag order; heap types with no natural order compare by handle
// identity.
func Compare(h *Heap, a, b value.Value) int {
	if (a.Tag == value.TagEmpty && b.Tag == value.TagNil) ||
		(a.Tag == value.TagNil && b.Tag == value.TagEmpty) {
		return 0
	}
	if a.IsNumeric() && b.IsNumeric() {
		if a.Tag == value.TagFixnum && b.Tag == value.TagFixnum {
			return cmpInt64(a.FixnumValue(), b.FixnumValue())
		}
		return cmpFloat64(a.AsFloat64(), b.AsFloat64())
	}
	if a.Tag != b.Tag {
		return cmpInt64(int64(a.Tag), int64(b.Tag))
	}
	switch a.Tag {
	case value.TagEmpty, value.TagNil, value.TagFalse, value.TagTrue:
		return 0
	case value.TagSymbol:
		return cmpInt64(int64(a.SymbolValue()), int64(b.SymbolValue()))
	case value.TagString:
		sa, _ := h.StringBody(a)
		sb, _ := h.StringBody(b)
		return cmpBytes(sa, sb)
	case value.TagArray:
		aa, _ := h.ArrayBody(a)
		ab, _ := h.ArrayBody(b)
		return cmpArrays(h, aa, ab)
	case value.TagRange:
		ra, _ := h.RangeBody(a)
		rb, _ := h.RangeBody(b)
		if c := Compare(h, ra.Low, rb.Low); c != 0 {
			return c
		}
		return Compare(h, ra.High, rb.High)
	case value.TagHash:
		// no natural ordering beyond identity; hashes compare equal only
		// when they are literally the same cell.
		return identityCompare(a, b)
	default: // CLASS, OBJECT, PROC: compare by handle identity
		return identityCompare(a, b)
	}
}

func identityCompare(a, b value.Value) int {
	ra, rb := a.Ref(), b.Ref()
	if ra.Index == rb.Index && ra.Gen == rb.Gen {
		return 0
	}
	return cmpInt64(int64(ra.Index), int64(rb.Index))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b *String) int {
	if a == nil || b == nil {
		return identityCompareNilSafe(a, b)
	}
	switch {
	case string(a.Data) < string(b.Data):
		return -1
	case string(a.Data) > string(b.Data):
		return 1
	default:
		return 0
	}
}

func identityCompareNilSafe(a, b *String) int {
	if a == b {
		return 0
	}
	if a == nil {
		return -1
	}
	return 1
}

func cmpArrays(h *Heap, a, b *Array) int {
	if a == nil || b == nil {
		return identityCompareNilSafe2(a, b)
	}
	n := len(a.Elems)
	if len(b.Elems) < n {
		n = len(b.Elems)
	}
	for i := 0; i < n; i++ {
		if c := Compare(h, a.Elems[i], b.Elems[i]); c != 0 {
			return c
		}
	}
	return cmpInt64(int64(len(a.Elems)), int64(len(b.Elems)))
}

func identityCompareNilSafe2(a, b *Array) int {
	if a == b {
		return 0
	}
	if a == nil {
		return -1
	}
	return 1
}

// String renders a debug label for a cell, used by diagnostics.
func (c *Cell) String() string {
	return fmt.Sprintf("<%T refcount=%d vm=%d>", c.Body, c.Refcount, c.VMID)
}
