package vm

import (
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// opStop releases every slot in the register file and sets the
// preemption flag — the whole register file, not
// just the current window, since halting the VM abandons every frame
// on the call stack at once.
func opStop(v *VM, ins opcode.Instruction) {
	for i := range v.regs {
		v.release(v.regs[i])
		v.regs[i] = value.Empty
	}
	v.halted = true
	v.preempt = true
}

// opAbort sets the preemption flag without releasing anything, used
// when an error leaves the register file unsafe to touch.
func opAbort(v *VM, ins opcode.Instruction) {
	v.halted = true
	v.preempt = true
}
