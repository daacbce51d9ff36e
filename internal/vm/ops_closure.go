package vm

import (
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/symbol"
)

// opLambda (LAMBDA A Bz) constructs a script proc whose IREP is the
// child reps[Bz]; the proc is an independent heap cell with refcount
// 1.
func opLambda(v *VM, ins opcode.Instruction) {
	a, bz := ins.ABx()
	if bz < 0 || bz >= len(v.curIREP.Reps) {
		v.diagTypeMismatch("child IREP index", "LAMBDA")
		return
	}
	proc, ok := heap.NewProc(v.rt.Heap, v.id, &heap.Proc{Name: symbol.NoSymbol, IREP: v.curIREP.Reps[bz]})
	if !ok {
		v.diagAllocExhausted("LAMBDA proc cell")
		return
	}
	v.setR(a, proc)
}

// opRange (RANGE A B C) constructs an inclusive (C=0) or exclusive
// (C=1) range over the two operand slots, duplicating them into the
// range cell.
func opRange(v *VM, ins opcode.Instruction) {
	a, b, c := ins.ABC()
	low := v.R(b)
	high := v.R(b + 1)
	v.retain(low)
	v.retain(high)
	r, ok := heap.NewRange(v.rt.Heap, v.id, low, high, c == opcode.RangeExclusive)
	if !ok {
		v.diagAllocExhausted("RANGE cell")
		return
	}
	v.setR(a, r)
}
