package vm

import (
	"fmt"

	"github.com/tinyrb/mrbcvm/internal/alloc"
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/irep"
	"github.com/tinyrb/mrbcvm/internal/symbol"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// CallInfo is one saved caller frame, recording enough to resume the
// caller and to let GETUPVAR/SETUPVAR walk back through enclosing
// scopes. Stored in a slice grown by append rather than a linked list
// of heap nodes — one allocation per call is wasteful on embedded
// targets.
type CallInfo struct {
	SavedIP          int
	SavedIREP        *irep.IREP
	SavedSyms        []symbol.ID
	SavedBase        int
	SavedTargetClass *heap.Class
	SavedMethodSym   symbol.ID
	SavedArgCount    int
}

// VM is one cooperatively-scheduled script task. It owns a flat
// register file window into the task's own portion of work; the shared
// Runtime carries everything process-wide.
type VM struct {
	rt *Runtime
	id alloc.VMID

	regs []value.Value
	base int

	callStack []CallInfo

	pc          int
	curIREP     *irep.IREP
	curSyms     []symbol.ID
	targetClass *heap.Class
	methodSym   symbol.ID
	argCount    int // incoming argument count of the currently executing frame

	preempt bool
	halted  bool

	lastDiag *Diagnostic
}

// Open allocates a VM id and a zeroed register file. existingSlot is
// accepted for parity with the C-style open call but unused: this
// implementation always allocates a fresh register file rather than
// reusing a caller-supplied one, since Go has no equivalent of reusing
// a raw memory slot across instances.
func Open(rt *Runtime, existingSlot any) (*VM, error) {
	id, err := rt.IDs.Alloc()
	if err != nil {
		return nil, err
	}
	v := &VM{
		rt:   rt,
		id:   id,
		regs: make([]value.Value, rt.Config.MaxRegsSize),
	}
	return v, nil
}

// ID returns the VM's instance id.
func (v *VM) ID() alloc.VMID { return v.id }

// Heap returns the shared typed heap, satisfying heap.NativeContext.
func (v *VM) Heap() *heap.Heap { return v.rt.Heap }

// VMID satisfies heap.NativeContext.
func (v *VM) VMID() alloc.VMID { return v.id }

// Diagf satisfies heap.NativeContext, routing native-method diagnostics
// through the same stream as dispatcher diagnostics.
func (v *VM) Diagf(format string, args ...any) {
	v.emit(&Diagnostic{Kind: DiagNative, Message: fmt.Sprintf(format, args...)})
}

// Begin points the instruction pointer at the root IREP and seeds
// R(0) with the root Object class as self.
func (v *VM) Begin(root *irep.IREP) error {
	syms, ok := root.ResolveSymbols(v.rt.Symbols)
	if !ok {
		return fmt.Errorf("vm: symbol table exhausted resolving root IREP")
	}
	v.curIREP = root
	v.curSyms = syms
	v.pc = 0
	v.base = 0
	v.callStack = v.callStack[:0]

	objectSym, ok := v.rt.Symbols.Intern("Object")
	if !ok {
		return fmt.Errorf("vm: symbol table exhausted interning Object")
	}
	objectClass, ok := v.rt.Classes.Get(objectSym)
	if !ok {
		return fmt.Errorf("vm: root Object class not bootstrapped")
	}
	v.targetClass = objectClass
	v.methodSym = symbol.NoSymbol

	for i := range v.regs {
		v.regs[i] = value.Empty
	}
	classVal, _, ok := classValueOf(v, objectClass)
	if !ok {
		return fmt.Errorf("vm: could not build root self value")
	}
	v.retain(classVal)
	v.regs[0] = classVal
	return nil
}

// classValueOf builds a CLASS-tagged value.Value for an existing
// *heap.Class without re-allocating a cell — classes are looked up by
// identity through a small side table populated at Bootstrap/CLASS
// time (see Runtime.classCells).
func classValueOf(v *VM, c *heap.Class) (value.Value, *heap.Class, bool) {
	return v.rt.classCellOf(c)
}

// Run dispatches opcodes until the preemption flag is set: by
// STOP/ABORT (terminal) or by a scheduler tick observed between
// instructions.
func (v *VM) Run() error {
	v.preempt = false
	for !v.preempt {
		if v.pc < 0 || v.pc >= len(v.curIREP.Code) {
			return fmt.Errorf("vm: pc %d out of bounds for irep with %d instructions", v.pc, len(v.curIREP.Code))
		}
		if err := v.step(); err != nil {
			return err
		}
	}
	return nil
}

// RunSlice executes at most maxSteps opcodes, returning early if
// STOP/ABORT sets the preemption flag. This is the Go-native analogue
// of the scheduler's periodic timer tick: there is no
// hardware IRQ to interrupt a running goroutine mid-instruction, so the
// cooperative scheduler bounds how many opcodes one slice may run
// instead of relying on an asynchronous signal.
func (v *VM) RunSlice(maxSteps int) error {
	v.preempt = false
	for i := 0; i < maxSteps && !v.preempt; i++ {
		if v.pc < 0 || v.pc >= len(v.curIREP.Code) {
			return fmt.Errorf("vm: pc %d out of bounds for irep with %d instructions", v.pc, len(v.curIREP.Code))
		}
		if err := v.step(); err != nil {
			return err
		}
	}
	return nil
}

// Preempt requests that the dispatcher return to the scheduler after
// the current instruction — the scheduler-tick half of the single
// suspension point; STOP/ABORT set the same flag from inside the
// dispatcher.
func (v *VM) Preempt() { v.preempt = true }

// Halted reports whether STOP/ABORT has terminated this VM.
func (v *VM) Halted() bool { return v.halted }

// LastDiagnostic returns the most recent diagnostic emitted, if any —
// used by tests and the debug console; does not clear it.
func (v *VM) LastDiagnostic() *Diagnostic { return v.lastDiag }

// End clears this VM's references from process-wide tables. The default
// Runtime shares globals/constants across all VMs, so there is nothing
// VM-scoped to remove by default; hosts that want per-VM global scoping
// can layer it by swapping Runtime.Globals before Begin.
func (v *VM) End() {}

// Close releases this VM's IREP tree reference and reclaims every
// heap cell tagged with its id, then frees its id slot. Must only be
// called on a quiescent VM — closing a VM mid-Run is not supported.
func (v *VM) Close() {
	v.curIREP = nil
	v.curSyms = nil
	v.callStack = nil
	v.rt.Heap.Pool().FreeAll(v.id)
	v.rt.IDs.Free(v.id)
}

// R returns the value at logical register n in the active window.
func (v *VM) R(n int) value.Value {
	return v.regs[v.base+n]
}

// setR releases the prior occupant of register n — assignment to a
// register must first release its prior content — and stores val
// without additional retain; callers that want to
// duplicate an existing value must Retain it themselves first (this
// mirrors MOVE: "releases R(A), duplicates R(B)").
func (v *VM) setR(n int, val value.Value) {
	v.rt.Heap.Release(v.regs[v.base+n])
	v.regs[v.base+n] = val
}

// clearR sets register n to EMPTY without releasing — used where
// ownership is being moved elsewhere (ARRAY/HASH/RETURN's source
// slots) rather than replaced.
func (v *VM) clearR(n int) {
	v.regs[v.base+n] = value.Empty
}

func (v *VM) retain(val value.Value) { v.rt.Heap.Retain(val) }
func (v *VM) release(val value.Value) { v.rt.Heap.Release(val) }
