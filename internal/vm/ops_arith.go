package vm

import (
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// arith implements the shared fast path of ADD/SUB/MUL: fixnum
// pairs stay fixnum, any other numeric pair promotes to float, and
// anything else falls back to SEND with the operator symbol named in
// operand B — the receiver is R(A), the argument R(A+1), matching the
// register layout SEND itself uses.
func (v *VM) arith(ins opcode.Instruction, fi func(a, b int64) int64, ff func(a, b float64) float64) {
	a, b, _ := ins.ABC()
	lhs := v.R(a)
	rhs := v.R(a + 1)
	switch {
	case lhs.Tag == value.TagFixnum && rhs.Tag == value.TagFixnum:
		v.setR(a, value.Fixnum(fi(lhs.FixnumValue(), rhs.FixnumValue())))
	case lhs.IsNumeric() && rhs.IsNumeric():
		v.setR(a, value.Float(ff(lhs.AsFloat64(), rhs.AsFloat64())))
	default:
		// a binary operator has exactly one argument, R(A+1)
		v.send(a, v.curSyms[b], 1)
	}
}

func opAdd(v *VM, ins opcode.Instruction) {
	v.arith(ins, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
}

func opSub(v *VM, ins opcode.Instruction) {
	v.arith(ins, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
}

func opMul(v *VM, ins opcode.Instruction) {
	v.arith(ins, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
}

// opDiv special-cases fixnum division by zero: rather than panic on
// integer divide-by-zero, it promotes to FLOAT and lets IEEE division
// produce +Inf/-Inf/NaN — the dispatcher must never crash on a value
// it can represent.
func opDiv(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	lhs := v.R(a)
	rhs := v.R(a + 1)
	switch {
	case lhs.Tag == value.TagFixnum && rhs.Tag == value.TagFixnum:
		rv := rhs.FixnumValue()
		if rv == 0 {
			v.setR(a, value.Float(float64(lhs.FixnumValue())/float64(rv)))
			return
		}
		v.setR(a, value.Fixnum(lhs.FixnumValue()/rv))
	case lhs.IsNumeric() && rhs.IsNumeric():
		v.setR(a, value.Float(lhs.AsFloat64()/rhs.AsFloat64()))
	default:
		v.send(a, v.curSyms[b], 1)
	}
}

// opAddi/opSubi apply the immediate packed in operand C directly to
// R(A). There is no second register to dispatch SEND against when
// R(A) isn't numeric, so that case is a type-mismatch diagnostic
// instead.
func opAddi(v *VM, ins opcode.Instruction) {
	a, _, c := ins.ABC()
	switch r := v.R(a); r.Tag {
	case value.TagFixnum:
		v.setR(a, value.Fixnum(r.FixnumValue()+int64(c)))
	case value.TagFloat:
		v.setR(a, value.Float(r.FloatValue()+float64(c)))
	default:
		v.diagTypeMismatch("Numeric", "ADDI")
	}
}

func opSubi(v *VM, ins opcode.Instruction) {
	a, _, c := ins.ABC()
	switch r := v.R(a); r.Tag {
	case value.TagFixnum:
		v.setR(a, value.Fixnum(r.FixnumValue()-int64(c)))
	case value.TagFloat:
		v.setR(a, value.Float(r.FloatValue()-float64(c)))
	default:
		v.diagTypeMismatch("Numeric", "SUBI")
	}
}

// opEq always uses the value comparator, never falling back to SEND —
// equality is by value even for types whose other operators dispatch
// through methods.
func opEq(v *VM, ins opcode.Instruction) {
	a, _, _ := ins.ABC()
	eq := heap.Compare(v.rt.Heap, v.R(a), v.R(a+1)) == 0
	v.setR(a, value.Bool(eq))
}

// compareOp backs LT/LE/GT/GE: fixnum/float pairs compare directly;
// anything else falls back to SEND with the comparison symbol in B, the
// same as ADD/SUB/MUL.
func (v *VM) compareOp(ins opcode.Instruction, want func(cmp int) bool) {
	a, b, _ := ins.ABC()
	lhs := v.R(a)
	rhs := v.R(a + 1)
	if lhs.IsNumeric() && rhs.IsNumeric() {
		v.setR(a, value.Bool(want(heap.Compare(v.rt.Heap, lhs, rhs))))
		return
	}
	v.send(a, v.curSyms[b], 1)
}

func opLt(v *VM, ins opcode.Instruction) { v.compareOp(ins, func(c int) bool { return c < 0 }) }
func opLe(v *VM, ins opcode.Instruction) { v.compareOp(ins, func(c int) bool { return c <= 0 }) }
func opGt(v *VM, ins opcode.Instruction) { v.compareOp(ins, func(c int) bool { return c > 0 }) }
func opGe(v *VM, ins opcode.Instruction) { v.compareOp(ins, func(c int) bool { return c >= 0 }) }
