package vm

import (
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/irep"
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// opMove releases R(A), duplicates R(B), and copies the slot.
func opMove(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	val := v.R(b)
	v.retain(val)
	v.setR(a, val)
}

// opLoadl releases R(A) and shallow-copies literal pool entry Bx.
// Fixnum/Float entries are scalar and copied directly;
// a String entry (some front ends route string literals through LOADL
// rather than STRING) is materialized as a fresh heap cell, matching
// STRING's "constructs a fresh mutable string" semantics.
func opLoadl(v *VM, ins opcode.Instruction) {
	a, bx := ins.ABx()
	if bx < 0 || bx >= len(v.curIREP.Pools) {
		v.diagTypeMismatch("literal index", "LOADL")
		return
	}
	lit := v.curIREP.Pools[bx]
	switch lit.Kind {
	case irep.LiteralFixnum:
		v.setR(a, value.Fixnum(lit.Int))
	case irep.LiteralFloat:
		v.setR(a, value.Float(lit.Float))
	case irep.LiteralString:
		sv, ok := heap.NewString(v.rt.Heap, v.id, string(lit.Str))
		if !ok {
			v.diagAllocExhausted("LOADL string literal")
			return
		}
		v.setR(a, sv)
	}
}

// opLoadi stores the signed immediate sBx as a FIXNUM.
func opLoadi(v *VM, ins opcode.Instruction) {
	a, sbx := ins.AsBx()
	v.setR(a, value.Fixnum(int64(sbx)))
}

// opLoadsym stores the SYMBOL named by symbol-pool index Bx.
func opLoadsym(v *VM, ins opcode.Instruction) {
	a, bx := ins.ABx()
	if bx < 0 || bx >= len(v.curSyms) {
		v.diagTypeMismatch("symbol index", "LOADSYM")
		return
	}
	v.setR(a, value.Symbol(v.curSyms[bx]))
}

func opLoadnil(v *VM, ins opcode.Instruction) {
	a, _, _ := ins.ABC()
	v.setR(a, value.Nil)
}

// opLoadself duplicates R(0) into R(A).
func opLoadself(v *VM, ins opcode.Instruction) {
	a, _, _ := ins.ABC()
	self := v.R(0)
	v.retain(self)
	v.setR(a, self)
}

func opLoadt(v *VM, ins opcode.Instruction) {
	a, _, _ := ins.ABC()
	v.setR(a, value.True)
}

func opLoadf(v *VM, ins opcode.Instruction) {
	a, _, _ := ins.ABC()
	v.setR(a, value.False)
}
