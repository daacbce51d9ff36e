package vm

import (
	"github.com/tinyrb/mrbcvm/internal/opcode"
)

// handlerFunc executes one decoded instruction. Handlers that jump or
// push/pop a call frame set v.pc directly; step's post-fetch increment
// has already run by the time a handler is invoked.
type handlerFunc func(v *VM, ins opcode.Instruction)

var dispatchTable [opcode.Count]handlerFunc

func init() {
	dispatchTable[opcode.NOP] = opNop

	dispatchTable[opcode.MOVE] = opMove
	dispatchTable[opcode.LOADL] = opLoadl
	dispatchTable[opcode.LOADI] = opLoadi
	dispatchTable[opcode.LOADSYM] = opLoadsym
	dispatchTable[opcode.LOADNIL] = opLoadnil
	dispatchTable[opcode.LOADSELF] = opLoadself
	dispatchTable[opcode.LOADT] = opLoadt
	dispatchTable[opcode.LOADF] = opLoadf

	dispatchTable[opcode.GETGLOBAL] = opGetglobal
	dispatchTable[opcode.SETGLOBAL] = opSetglobal
	dispatchTable[opcode.GETCONST] = opGetconst
	dispatchTable[opcode.SETCONST] = opSetconst
	dispatchTable[opcode.GETMCNST] = opGetconst // nested-constant lookup is flattened to GETCONST
	dispatchTable[opcode.GETIV] = opGetiv
	dispatchTable[opcode.SETIV] = opSetiv
	dispatchTable[opcode.GETUPVAR] = opGetupvar
	dispatchTable[opcode.SETUPVAR] = opSetupvar

	dispatchTable[opcode.JMP] = opJmp
	dispatchTable[opcode.JMPIF] = opJmpif
	dispatchTable[opcode.JMPNOT] = opJmpnot

	dispatchTable[opcode.ADD] = opAdd
	dispatchTable[opcode.SUB] = opSub
	dispatchTable[opcode.MUL] = opMul
	dispatchTable[opcode.DIV] = opDiv
	dispatchTable[opcode.ADDI] = opAddi
	dispatchTable[opcode.SUBI] = opSubi
	dispatchTable[opcode.EQ] = opEq
	dispatchTable[opcode.LT] = opLt
	dispatchTable[opcode.LE] = opLe
	dispatchTable[opcode.GT] = opGt
	dispatchTable[opcode.GE] = opGe

	dispatchTable[opcode.SEND] = opSend
	dispatchTable[opcode.SENDB] = opSendb
	dispatchTable[opcode.CALL] = opCall
	dispatchTable[opcode.SUPER] = opSuper
	dispatchTable[opcode.ARGARY] = opArgary

	dispatchTable[opcode.ENTER] = opEnter
	dispatchTable[opcode.RETURN] = opReturn

	dispatchTable[opcode.ARRAY] = opArray
	dispatchTable[opcode.HASH] = opHash
	dispatchTable[opcode.STRING] = opString
	dispatchTable[opcode.STRCAT] = opStrcat

	dispatchTable[opcode.LAMBDA] = opLambda
	dispatchTable[opcode.RANGE] = opRange

	dispatchTable[opcode.CLASS] = opClass
	dispatchTable[opcode.EXEC] = opExec
	dispatchTable[opcode.METHOD] = opMethod
	dispatchTable[opcode.TCLASS] = opTclass
	dispatchTable[opcode.SCLASS] = opSclass

	dispatchTable[opcode.STOP] = opStop
	dispatchTable[opcode.ABORT] = opAbort
}

func opNop(v *VM, ins opcode.Instruction) {}

// step fetches, decodes, and executes one instruction.
// Unknown opcodes are tolerated: a diagnostic is emitted and execution
// continues at the next instruction, rather than treated as a crash.
func (v *VM) step() error {
	ins := opcode.Instruction(v.curIREP.Code[v.pc])
	op := ins.Op()
	v.pc++
	if int(op) >= opcode.Count || dispatchTable[op] == nil {
		v.diagUnsupportedOpcode(op)
		return nil
	}
	h := dispatchTable[op]
	h(v, ins)
	return nil
}
