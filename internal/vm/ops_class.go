package vm

import (
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/symbol"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// opClass (CLASS A B) defines a new class named by symbol B, with the
// superclass taken from R(A+1) if that holds a class value, else the
// root Object, and stores the class value into R(A). A script
// that reopens an existing class name gets the existing class back
// rather than a duplicate registry entry.
func opClass(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	nameSym := v.curSyms[b]

	if existing, ok := v.rt.Classes.Get(nameSym); ok {
		classVal, _, _ := v.rt.classCellOf(existing)
		v.retain(classVal)
		v.setR(a, classVal)
		return
	}

	super := v.rootObjectClass()
	if superArg := v.R(a + 1); superArg.Tag == value.TagClass {
		if c, ok := v.rt.Heap.ClassBody(superArg); ok {
			super = c
		}
	}

	classVal, class, ok := heap.NewClass(v.rt.Heap, v.id, nameSym, super)
	if !ok {
		v.diagAllocExhausted("CLASS cell")
		return
	}
	v.rt.Classes.Define(class, classVal)
	v.rt.registerClassCell(class, classVal)
	v.retain(classVal)
	v.setR(a, classVal)
}

// rootObjectClass looks up the bootstrap Object class, the default
// superclass CLASS uses when R(A+1) isn't itself a class value.
func (v *VM) rootObjectClass() *heap.Class {
	sym, ok := v.rt.Symbols.Intern("Object")
	if !ok {
		return nil
	}
	c, _ := v.rt.Classes.Get(sym)
	return c
}

// opExec (EXEC A Bx) enters a new frame executing child IREP Bx with
// target_class set to the class of R(A) — the body-of-class-definition
// mechanism. It shifts the register window
// the same way SEND does, so the class body's self (R(0)) is the class
// value itself.
func opExec(v *VM, ins opcode.Instruction) {
	a, bx := ins.ABx()
	if bx < 0 || bx >= len(v.curIREP.Reps) {
		v.diagTypeMismatch("child IREP index", "EXEC")
		return
	}
	child := v.curIREP.Reps[bx]
	cls := v.classOf(v.R(a))
	v.pushFrame(a, child, cls, symbol.NoSymbol, 0)
}

// opMethod (METHOD A B) takes the proc in R(A+1) and attaches it to
// the class in R(A) under symbol B; a method already defined under
// that symbol is unlinked and freed first. Ownership of
// the proc reference moves into the class's method list (mirrors
// ARRAY/HASH's move convention), so R(A+1) is cleared, not released.
func opMethod(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	cls, ok := v.rt.Heap.ClassBody(v.R(a))
	if !ok {
		v.diagTypeMismatch("Class", "METHOD target")
		return
	}
	sym := v.curSyms[b]
	procVal := v.R(a + 1)
	v.rt.Heap.DefineMethod(cls, sym, procVal)
	v.clearR(a + 1)
}

// opTclass writes the current target_class into R(A).
func opTclass(v *VM, ins opcode.Instruction) {
	a, _, _ := ins.ABC()
	if v.targetClass == nil {
		v.setR(a, value.Nil)
		return
	}
	classVal, _, ok := v.rt.classCellOf(v.targetClass)
	if !ok {
		v.setR(a, value.Nil)
		return
	}
	v.retain(classVal)
	v.setR(a, classVal)
}

// opSclass is accepted but unimplemented: decoded,
// diagnosed, and otherwise a no-op rather than treated as an unknown
// opcode.
func opSclass(v *VM, ins opcode.Instruction) {
	v.emit(&Diagnostic{Kind: DiagUnsupportedOpcode, Message: "SCLASS is accepted but unimplemented"})
}
