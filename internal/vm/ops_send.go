package vm

import (
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/irep"
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/registry"
	"github.com/tinyrb/mrbcvm/internal/symbol"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// classOf returns the class method dispatch walks for val.
// OBJECT instances carry their class directly; every other tag maps to
// one of the bootstrap built-in classes of package registry.
func (v *VM) classOf(val value.Value) *heap.Class {
	switch val.Tag {
	case value.TagClass:
		c, _ := v.rt.Heap.ClassBody(val)
		return c
	case value.TagObject:
		o, ok := v.rt.Heap.ObjectBody(val)
		if !ok {
			return nil
		}
		return o.Class
	default:
		name := builtinClassNameFor(val.Tag)
		if name == "" {
			return nil
		}
		sym, ok := v.rt.Symbols.Intern(name)
		if !ok {
			return nil
		}
		c, _ := v.rt.Classes.Get(sym)
		return c
	}
}

func builtinClassNameFor(t value.Tag) string {
	switch t {
	case value.TagNil:
		return registry.NilClass
	case value.TagTrue:
		return registry.TrueClass
	case value.TagFalse:
		return registry.FalseCls
	case value.TagFixnum:
		return registry.Fixnum
	case value.TagFloat:
		return registry.Float
	case value.TagSymbol:
		return registry.Symbol
	case value.TagString:
		return registry.String
	case value.TagArray:
		return registry.Array
	case value.TagHash:
		return registry.Hash
	case value.TagRange:
		return registry.Range
	case value.TagProc:
		return registry.Proc
	default:
		return ""
	}
}

// send implements SEND/SENDB's method dispatch:
// receiver sits at R(recvReg), argc arguments follow it in the register
// window. A matching native proc runs inline; a matching script proc
// pushes a new CallInfo/register window. A block argument passed by
// SENDB rides along in the same window (R(recvReg+argc+1)) without any
// distinct invocation machinery of its own — script bodies that expect
// a block read it the same way they read any other argument register.
func (v *VM) send(recvReg int, sym symbol.ID, argc int) {
	recv := v.R(recvReg)
	class := v.classOf(recv)
	if class == nil {
		// no class to resolve against: diagnose and leave R(A) untouched,
		// the same continue-don't-crash contract as a lookup miss.
		v.diagMethodNotFound("?", v.rt.Symbols.MustName(sym))
		return
	}
	entry, defClass := heap.Lookup(class, sym)
	if entry == nil {
		// "No method" is non-fatal and R(A) stays unchanged, so a
		// script can observe the stale receiver with later opcodes.
		className, _ := v.rt.Symbols.NameOf(class.Name)
		methodName, _ := v.rt.Symbols.NameOf(sym)
		v.diagMethodNotFound(className, methodName)
		return
	}
	proc, ok := v.rt.Heap.ProcBody(entry.ProcVal)
	if !ok {
		return
	}
	if proc.IsNative() {
		window := v.regs[v.base+recvReg : v.base+recvReg+argc+1]
		proc.Native(v, window, argc)
		v.releaseArgs(recvReg, argc)
		return
	}
	v.pushFrame(recvReg, proc.IREP, defClass, sym, argc)
}

// releaseArgs drops R(A+1)..R(A+C+1) after a native invocation —
// arguments plus the trailing block slot. The dispatcher, not the
// native method, owns these references; natives only release
// the prior R(A) before writing their result.
func (v *VM) releaseArgs(recvReg, argc int) {
	for i := recvReg + 1; i <= recvReg+argc+1; i++ {
		if v.base+i >= len(v.regs) {
			break
		}
		v.release(v.regs[v.base+i])
		v.regs[v.base+i] = value.Empty
	}
}

// pushFrame installs a new register window for a script method/block
// body, saving the caller's state onto the call-info stack. The
// register file is fixed-size (no growth): exhausting it is reported
// the same way allocator exhaustion is, never a panic.
func (v *VM) pushFrame(recvReg int, body *irep.IREP, defClass *heap.Class, sym symbol.ID, argc int) {
	syms, ok := body.ResolveSymbols(v.rt.Symbols)
	if !ok {
		v.diagAllocExhausted("symbol table exhausted resolving method body")
		return
	}
	newBase := v.base + recvReg
	if newBase+body.NRegs > len(v.regs) {
		v.diagAllocExhausted("register file exhausted")
		return
	}
	v.callStack = append(v.callStack, CallInfo{
		SavedIP:          v.pc,
		SavedIREP:        v.curIREP,
		SavedSyms:        v.curSyms,
		SavedBase:        v.base,
		SavedTargetClass: v.targetClass,
		SavedMethodSym:   v.methodSym,
		SavedArgCount:    v.argCount,
	})
	// Arguments plus the trailing block slot ride into the callee's
	// window; everything above them starts EMPTY, releasing whatever
	// caller temps occupied those slots.
	for i := argc + 2; i < body.NRegs; i++ {
		v.release(v.regs[newBase+i])
		v.regs[newBase+i] = value.Empty
	}
	v.base = newBase
	v.curIREP = body
	v.curSyms = syms
	v.targetClass = defClass
	v.methodSym = sym
	v.argCount = argc
	v.pc = 0
}

func opSend(v *VM, ins opcode.Instruction) {
	a, b, c := ins.ABC()
	// R(A+C+1) is the trailing block slot; plain SEND passes no block.
	if a+c+1 < len(v.regs)-v.base {
		v.setR(a+c+1, value.Nil)
	}
	v.send(a, v.curSyms[b], c)
}

// opSendb passes the existing contents of R(A+C+1) as the block. A
// non-proc, non-nil block slot is nil'd and the send abandoned without
// a diagnostic — preserved verbatim from the source even though it can
// mask script bugs (a deliberate compatibility quirk, not hardened).
func opSendb(v *VM, ins opcode.Instruction) {
	a, b, c := ins.ABC()
	if a+c+1 < len(v.regs)-v.base {
		blk := v.R(a + c + 1)
		if blk.Tag != value.TagProc && blk.Tag != value.TagNil {
			v.setR(a+c+1, value.Nil)
			return
		}
	}
	v.send(a, v.curSyms[b], c)
}

// CALL invokes the proc value already sitting at R(0) directly, used
// for a previously LAMBDA'd block/proc rather than a symbol-named
// method.
func opCall(v *VM, ins opcode.Instruction) {
	a, _, _ := ins.ABC()
	procVal := v.R(0)
	proc, ok := v.rt.Heap.ProcBody(procVal)
	if !ok {
		v.diagTypeMismatch("Proc", "CALL target")
		return
	}
	if proc.IsNative() {
		window := v.regs[v.base : v.base+a+1]
		proc.Native(v, window, a)
		return
	}
	v.pushFrame(0, proc.IREP, v.targetClass, v.methodSym, a)
}

// SUPER re-dispatches the currently executing method's name starting
// one class above the class that defined it, with self unchanged at
// R(0).
func opSuper(v *VM, ins opcode.Instruction) {
	_, _, c := ins.ABC()
	if v.targetClass == nil || v.targetClass.Super == nil {
		v.diagMethodNotFound("?", v.rt.Symbols.MustName(v.methodSym))
		v.setR(0, value.Nil)
		return
	}
	entry, defClass := heap.Lookup(v.targetClass.Super, v.methodSym)
	if entry == nil {
		className, _ := v.rt.Symbols.NameOf(v.targetClass.Super.Name)
		methodName, _ := v.rt.Symbols.NameOf(v.methodSym)
		v.diagMethodNotFound(className, methodName)
		v.setR(0, value.Nil)
		return
	}
	proc, ok := v.rt.Heap.ProcBody(entry.ProcVal)
	if !ok {
		v.setR(0, value.Nil)
		return
	}
	if proc.IsNative() {
		window := v.regs[v.base : v.base+c+1]
		proc.Native(v, window, c)
		return
	}
	v.pushFrame(0, proc.IREP, defClass, v.methodSym, c)
}

// ENTER honors only the required/optional fields of its argument-count
// bitfield and skips the compiled default-argument instructions the
// caller already covered; rest-args, post-args, keywords, and the
// block-arg bit are decoded but treated as no-ops.
func opEnter(v *VM, ins opcode.Instruction) {
	required, optional, _, _, _, _, _ := opcode.DecodeEnter(ins.Ax())
	if optional > 0 && v.argCount < required+optional {
		v.pc += v.argCount - required
	}
}

// opArgary is accepted but unimplemented, like SCLASS: scripts that
// emit it get a diagnostic and undefined results rather than a crash.
func opArgary(v *VM, ins opcode.Instruction) {
	v.emit(&Diagnostic{Kind: DiagUnsupportedOpcode, Message: "ARGARY is accepted but unimplemented"})
}
