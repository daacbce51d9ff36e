package vm

import "github.com/tinyrb/mrbcvm/internal/opcode"

// opJmp adds sBx-1 to pc; the -1 compensates for the post-fetch
// increment.
func opJmp(v *VM, ins opcode.Instruction) {
	_, sbx := ins.AsBx()
	v.pc += sbx - 1
}

func opJmpif(v *VM, ins opcode.Instruction) {
	a, sbx := ins.AsBx()
	if v.R(a).Truthy() {
		v.pc += sbx - 1
	}
}

func opJmpnot(v *VM, ins opcode.Instruction) {
	a, sbx := ins.AsBx()
	if !v.R(a).Truthy() {
		v.pc += sbx - 1
	}
}
