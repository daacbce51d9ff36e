package vm

import (
	"strings"

	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/symbol"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// opGetglobal/opSetglobal implement the process-wide global table. An
// unset global reads as nil, not a diagnostic — only GETCONST's miss is
// a NameError.
func opGetglobal(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	sym := v.curSyms[b]
	val, ok := v.rt.Globals.Get(sym)
	if !ok {
		v.setR(a, value.Nil)
		return
	}
	v.retain(val)
	v.setR(a, val)
}

func opSetglobal(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	sym := v.curSyms[b]
	val := v.R(a)
	if old, ok := v.rt.Globals.Get(sym); ok {
		v.release(old)
	}
	v.retain(val)
	v.rt.Globals.Set(sym, val)
}

// opGetconst backs both GETCONST and GETMCNST — nested-constant
// lookup is flattened to a plain constant lookup. A miss is a
// NameError diagnostic and the result slot becomes nil.
func opGetconst(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	sym := v.curSyms[b]
	val, ok := v.rt.Constants.Get(sym)
	if !ok {
		v.diagNameError(v.rt.Symbols.MustName(sym))
		v.setR(a, value.Nil)
		return
	}
	v.retain(val)
	v.setR(a, val)
}

func opSetconst(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	sym := v.curSyms[b]
	val := v.R(a)
	if old, ok := v.rt.Constants.Get(sym); ok {
		v.release(old)
	}
	v.retain(val)
	v.rt.Constants.Set(sym, val)
}

// ivarKey strips the leading '@' the compiler encodes
// instance-variable symbols with, re-interning the bare name as the
// map key used on heap.Object.IVars.
func (v *VM) ivarKey(sym symbol.ID) symbol.ID {
	name := v.rt.Symbols.MustName(sym)
	bare := strings.TrimPrefix(name, "@")
	id, ok := v.rt.Symbols.Intern(bare)
	if !ok {
		return sym
	}
	return id
}

func opGetiv(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	obj, ok := v.rt.Heap.ObjectBody(v.R(0))
	if !ok {
		v.setR(a, value.Nil)
		return
	}
	key := v.ivarKey(v.curSyms[b])
	val, ok := obj.IVars[key]
	if !ok {
		v.setR(a, value.Nil)
		return
	}
	v.retain(val)
	v.setR(a, val)
}

func opSetiv(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	obj, ok := v.rt.Heap.ObjectBody(v.R(0))
	if !ok {
		// self is not an OBJECT (e.g. a Fixnum receiver); there is
		// nowhere to store the ivar. Non-fatal, like the rest of the
		// continue-don't-crash error taxonomy.
		return
	}
	key := v.ivarKey(v.curSyms[b])
	val := v.R(a)
	if old, exists := obj.IVars[key]; exists {
		v.release(old)
	}
	v.retain(val)
	obj.IVars[key] = val
}

// upvalueBase walks C*2+1 call-info links back from the current frame
// for GETUPVAR/SETUPVAR, returning the register base of that ancestor
// frame. The C*2+1 formula is a quirk of the compiler's block
// encoding, preserved exactly rather than simplified.
func (v *VM) upvalueBase(c int) (int, bool) {
	n := c*2 + 1
	if n <= 0 || n > len(v.callStack) {
		return 0, false
	}
	idx := len(v.callStack) - n
	return v.callStack[idx].SavedBase, true
}

func opGetupvar(v *VM, ins opcode.Instruction) {
	a, b, c := ins.ABC()
	base, ok := v.upvalueBase(c)
	if !ok {
		v.setR(a, value.Nil)
		return
	}
	val := v.regs[base+b]
	v.retain(val)
	v.setR(a, val)
}

// opSetupvar releases the target slot before overwriting it.
func opSetupvar(v *VM, ins opcode.Instruction) {
	a, b, c := ins.ABC()
	base, ok := v.upvalueBase(c)
	if !ok {
		return
	}
	val := v.R(a)
	v.retain(val)
	v.rt.Heap.Release(v.regs[base+b])
	v.regs[base+b] = val
}
