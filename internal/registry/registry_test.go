package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrb/mrbcvm/internal/alloc"
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/symbol"
	"github.com/tinyrb/mrbcvm/internal/value"
)

func newTestRegistry(t *testing.T) (*Registry, *heap.Heap, *symbol.Table) {
	t.Helper()
	pool := alloc.NewPool(make([]byte, 1<<16))
	h := heap.New(pool)
	symbols := symbol.NewTable(256)
	r, err := Bootstrap(h, symbols)
	require.NoError(t, err)
	return r, h, symbols
}

func TestBootstrapSeedsBuiltinHierarchy(t *testing.T) {
	r, _, symbols := newTestRegistry(t)

	names := []string{Object, NilClass, TrueClass, FalseCls, Fixnum, Float, Symbol, String, Array, Hash, Range, Proc, ClassCls}
	for _, name := range names {
		id, ok := symbols.Intern(name)
		require.True(t, ok)
		_, ok = r.Get(id)
		assert.True(t, ok, "bootstrap must define %s", name)
	}
}

func TestBootstrapClassesChainToObject(t *testing.T) {
	r, _, symbols := newTestRegistry(t)

	objID, _ := symbols.Intern(Object)
	objClass, ok := r.Get(objID)
	require.True(t, ok)

	fixID, _ := symbols.Intern(Fixnum)
	fixClass, ok := r.Get(fixID)
	require.True(t, ok)

	assert.Same(t, objClass, fixClass.Super)
	assert.Nil(t, objClass.Super, "Object has no superclass")
}

func TestObjectNewAllocatesBareInstance(t *testing.T) {
	r, h, symbols := newTestRegistry(t)

	objID, _ := symbols.Intern(Object)
	objClassVal, ok := r.ValueOf(objID)
	require.True(t, ok)

	newSym, _ := symbols.Intern("new")
	entry, _ := heap.Lookup(mustClassBody(t, h, objClassVal), newSym)
	require.NotNil(t, entry, "Object must define #new")

	proc, ok := h.ProcBody(entry.ProcVal)
	require.True(t, ok)
	require.True(t, proc.IsNative())

	// the dispatcher retains the receiver into the register window; new
	// releases that reference, leaving the registry's own intact.
	h.Retain(objClassVal)
	regs := []value.Value{objClassVal}
	ctx := &fakeCtx{h: h, vmid: 1}
	proc.Native(ctx, regs, 0)

	assert.Equal(t, value.TagObject, regs[0].Tag)
	obj, ok := h.ObjectBody(regs[0])
	require.True(t, ok)
	assert.Same(t, mustClassBody(t, h, objClassVal), obj.Class)
}

func mustClassBody(t *testing.T, h *heap.Heap, v value.Value) *heap.Class {
	t.Helper()
	c, ok := h.ClassBody(v)
	require.True(t, ok)
	return c
}

type fakeCtx struct {
	h    *heap.Heap
	vmid alloc.VMID
}

func (f *fakeCtx) Heap() *heap.Heap     { return f.h }
func (f *fakeCtx) VMID() alloc.VMID     { return f.vmid }
func (f *fakeCtx) Diagf(format string, args ...any) {}
