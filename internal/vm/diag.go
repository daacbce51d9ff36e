package vm

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

// DiagKind identifies one entry of the dispatcher's error taxonomy.
type DiagKind int

const (
	DiagAllocExhausted DiagKind = iota // fatal: stops this VM cleanly
	DiagMethodNotFound
	DiagNameError
	DiagUnsupportedOpcode
	DiagTypeMismatch
	DiagNative // a native method reported something via heap.NativeContext.Diagf
)

// Diagnostic is one line of the diagnostic stream, an embedded
// operator's only recovery channel when something goes wrong.
type Diagnostic struct {
	Kind    DiagKind
	Message string
	When    time.Time
}

// Fatal reports whether this diagnostic halts the VM.
func (d *Diagnostic) Fatal() bool { return d.Kind == DiagAllocExhausted }

// timeNow is overridable in tests so diagnostic output is deterministic.
var timeNow = time.Now

// String formats the diagnostic as a plain message (e.g. "No method.
// Class:Fixnum Method:nope") prefixed with a strftime-style timestamp —
// the format embedded operators reading a UART log are used to, rather
// than Go's reference layout strings.
func (d *Diagnostic) String() string {
	ts := strftime.Format("%Y-%m-%d %H:%M:%S", d.When)
	return fmt.Sprintf("[%s] %s", ts, d.Message)
}

// emit writes a diagnostic to the VM's stream and records it as the
// last diagnostic seen. Only allocator exhaustion also halts the VM.
func (v *VM) emit(d *Diagnostic) {
	d.When = timeNow()
	v.lastDiag = d
	if v.rt.Diag != nil {
		fmt.Fprintln(v.rt.Diag, d.String())
	}
	if d.Fatal() {
		v.halted = true
		v.preempt = true
	}
}

func (v *VM) diagMethodNotFound(className, methodName string) {
	v.emit(&Diagnostic{Kind: DiagMethodNotFound, Message: fmt.Sprintf("No method. Class:%s Method:%s", className, methodName)})
}

func (v *VM) diagNameError(constName string) {
	v.emit(&Diagnostic{Kind: DiagNameError, Message: fmt.Sprintf("NameError: uninitialized constant %s", constName)})
}

func (v *VM) diagUnsupportedOpcode(op fmt.Stringer) {
	v.emit(&Diagnostic{Kind: DiagUnsupportedOpcode, Message: fmt.Sprintf("Unsupported opcode: %s", op)})
}

func (v *VM) diagAllocExhausted(what string) {
	v.emit(&Diagnostic{Kind: DiagAllocExhausted, Message: fmt.Sprintf("allocator exhausted: %s", what)})
}

func (v *VM) diagTypeMismatch(want, where string) {
	v.emit(&Diagnostic{Kind: DiagTypeMismatch, Message: fmt.Sprintf("TypeError: expected %s (%s)", want, where)})
}
