package vm

import (
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// opReturn moves R(A) into R(0) (the source slot becomes EMPTY, no
// release — ownership transfers to the caller,
// since R(0) of the callee's window is the same physical slot as the
// caller's receiver register). B selects the unwind style.
func opReturn(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	retval := v.R(a)
	v.clearR(a)
	if a != 0 {
		v.release(v.R(0))
	}
	v.regs[v.base+0] = retval

	switch b {
	case opcode.ReturnNormal:
		v.returnNormal()
	case opcode.ReturnBreak:
		v.returnBreak()
	default:
		// reserved B values: treated as a normal return rather than
		// left to corrupt the call stack.
		v.returnNormal()
	}
}

// returnNormal releases every register above R(0) in the current
// window, pops one call-info frame, and restores the caller's state.
// Returning from the outermost frame halts the VM instead of
// underflowing the call stack.
func (v *VM) returnNormal() {
	for i := 1; i < v.curIREP.NRegs; i++ {
		v.release(v.regs[v.base+i])
		v.regs[v.base+i] = value.Empty
	}
	if len(v.callStack) == 0 {
		v.preempt = true
		v.halted = true
		return
	}
	frame := v.callStack[len(v.callStack)-1]
	v.callStack = v.callStack[:len(v.callStack)-1]
	v.restoreFrame(frame)
}

// returnBreak unwinds an inline block back through its lexical
// enclosing method, popping frames until the register base changes.
// Frames sharing the current base belong to the same
// enclosing call (e.g. EXEC-pushed class/module bodies); popping
// continues through them and stops once a frame that actually moves the
// base has been applied.
func (v *VM) returnBreak() {
	startBase := v.base
	for len(v.callStack) > 0 {
		frame := v.callStack[len(v.callStack)-1]
		v.callStack = v.callStack[:len(v.callStack)-1]
		changesBase := frame.SavedBase != startBase
		v.restoreFrame(frame)
		if changesBase {
			return
		}
	}
}

func (v *VM) restoreFrame(frame CallInfo) {
	v.pc = frame.SavedIP
	v.curIREP = frame.SavedIREP
	v.curSyms = frame.SavedSyms
	v.base = frame.SavedBase
	v.targetClass = frame.SavedTargetClass
	v.methodSym = frame.SavedMethodSym
	v.argCount = frame.SavedArgCount
}
