package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrb/mrbcvm/internal/config"
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/irep"
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// newTestVM builds a fresh Runtime and a VM begun against root, for
// white-box opcode-level testing within package vm.
func newTestVM(t *testing.T, root *irep.IREP) *VM {
	t.Helper()
	rt, err := NewRuntime(config.Default())
	require.NoError(t, err)
	v, err := Open(rt, nil)
	require.NoError(t, err)
	require.NoError(t, v.Begin(root))
	return v
}

// TestArithmeticAssignment runs "a = 1 + 2; stop": R(1) holds FIXNUM 3
// once ADD has executed, before STOP wipes the register file.
func TestArithmeticAssignment(t *testing.T) {
	root := &irep.IREP{
		NRegs: 3,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 1)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 2)),
			uint32(opcode.EncodeABC(opcode.ADD, 1, 0, 0)),
			uint32(opcode.EncodeABC(opcode.STOP, 0, 0, 0)),
		},
	}
	v := newTestVM(t, root)

	require.NoError(t, v.RunSlice(3))
	assert.Equal(t, value.Fixnum(3), v.R(1))
	assert.False(t, v.Halted())

	require.NoError(t, v.RunSlice(1))
	assert.True(t, v.Halted())
}

func TestArrayConstructionMovesSourceSlots(t *testing.T) {
	root := &irep.IREP{
		NRegs: 5,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 10)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 20)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 3, 30)),
			uint32(opcode.EncodeABC(opcode.ARRAY, 4, 1, 3)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(4))

	arr, ok := v.rt.Heap.ArrayBody(v.R(4))
	require.True(t, ok)
	assert.Equal(t, []value.Value{value.Fixnum(10), value.Fixnum(20), value.Fixnum(30)}, arr.Elems)

	assert.Equal(t, value.Empty, v.R(1))
	assert.Equal(t, value.Empty, v.R(2))
	assert.Equal(t, value.Empty, v.R(3))
}

func TestMoveRetainsAndReleasesPriorContent(t *testing.T) {
	root := &irep.IREP{
		NRegs: 3,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 99)),
			uint32(opcode.EncodeABC(opcode.MOVE, 2, 1, 0)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(2))

	assert.Equal(t, value.Fixnum(99), v.R(1))
	assert.Equal(t, value.Fixnum(99), v.R(2))
}

func TestGlobalRoundTrip(t *testing.T) {
	root := &irep.IREP{
		NRegs: 2,
		Syms:  []string{"$count"},
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 7)),
			uint32(opcode.EncodeABC(opcode.SETGLOBAL, 1, 0, 0)),
			uint32(opcode.EncodeABC(opcode.LOADNIL, 1, 0, 0)),
			uint32(opcode.EncodeABC(opcode.GETGLOBAL, 1, 0, 0)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(4))
	assert.Equal(t, value.Fixnum(7), v.R(1))
}

func TestConstantMissEmitsNameError(t *testing.T) {
	root := &irep.IREP{
		NRegs: 2,
		Syms:  []string{"Undefined"},
		Code: []uint32{
			uint32(opcode.EncodeABC(opcode.GETCONST, 1, 0, 0)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(1))

	assert.Equal(t, value.Nil, v.R(1))
	diag := v.LastDiagnostic()
	require.NotNil(t, diag)
	assert.Equal(t, DiagNameError, diag.Kind)
}

// TestSendUnknownMethodDiagnostic: calling an
// undefined method on a Fixnum receiver emits "No method. Class:Fixnum
// Method:nope", leaves R(A) unchanged, and the VM keeps running rather
// than halting.
func TestSendUnknownMethodDiagnostic(t *testing.T) {
	root := &irep.IREP{
		NRegs: 3,
		Syms:  []string{"nope"},
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 5)),
			uint32(opcode.EncodeABC(opcode.SEND, 1, 0, 0)),
			uint32(opcode.EncodeABC(opcode.STOP, 0, 0, 0)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(2))

	assert.Equal(t, value.Fixnum(5), v.R(1), "the receiver register must stay untouched")
	assert.Equal(t, value.Nil, v.R(2), "the trailing block slot is still nil'd")
	assert.False(t, v.Halted())
	diag := v.LastDiagnostic()
	require.NotNil(t, diag)
	assert.Equal(t, DiagMethodNotFound, diag.Kind)
	assert.Equal(t, "No method. Class:Fixnum Method:nope", diag.Message)
}

// TestClassDefinitionMethodCallReturnsValue: defining a class with a
// method via CLASS/LAMBDA/METHOD, instantiating
// it through Object#new, then calling the method returns its literal
// value and leaves the call stack empty again.
func TestClassDefinitionMethodCallReturnsValue(t *testing.T) {
	methodBody := &irep.IREP{
		NRegs: 2,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 42)),
			uint32(opcode.EncodeABC(opcode.RETURN, 1, opcode.ReturnNormal, 0)),
		},
	}
	root := &irep.IREP{
		NRegs: 3,
		Syms:  []string{"C", "new", "m"},
		Reps:  []*irep.IREP{methodBody},
		Code: []uint32{
			uint32(opcode.EncodeABC(opcode.LOADNIL, 2, 0, 0)),
			uint32(opcode.EncodeABC(opcode.CLASS, 1, 0, 0)),
			uint32(opcode.EncodeABx(opcode.LAMBDA, 2, 0)),
			uint32(opcode.EncodeABC(opcode.METHOD, 1, 2, 0)),
			uint32(opcode.EncodeABC(opcode.SEND, 1, 1, 0)), // C.new
			uint32(opcode.EncodeABC(opcode.SEND, 1, 2, 0)), // instance.m
			uint32(opcode.EncodeABC(opcode.STOP, 0, 0, 0)),
		},
	}
	v := newTestVM(t, root)

	require.NoError(t, v.RunSlice(8))
	assert.Equal(t, value.Fixnum(42), v.R(1))
	assert.Empty(t, v.callStack, "call stack must be empty once the method call has returned")
	assert.False(t, v.Halted())
}

func TestJumpIfSkipsNextInstruction(t *testing.T) {
	root := &irep.IREP{
		NRegs: 3,
		Code: []uint32{
			uint32(opcode.EncodeABC(opcode.LOADT, 1, 0, 0)),
			uint32(opcode.EncodeAsBx(opcode.JMPIF, 1, 2)), // skip the next instruction
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 111)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 222)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(2))
	require.NoError(t, v.RunSlice(1))
	assert.Equal(t, value.Fixnum(222), v.R(2))
}

func TestDivisionByZeroPromotesToFloatInfinity(t *testing.T) {
	root := &irep.IREP{
		NRegs: 3,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 10)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 0)),
			uint32(opcode.EncodeABC(opcode.DIV, 1, 0, 0)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(3))

	result := v.R(1)
	assert.Equal(t, value.TagFloat, result.Tag)
	assert.True(t, math.IsInf(result.FloatValue(), 1))
}

// defineScriptMethod attaches a script-proc method to the bootstrap
// Object class, standing in for the METHOD opcode when a test only
// cares about the call path.
func defineScriptMethod(t *testing.T, rt *Runtime, name string, body *irep.IREP) {
	t.Helper()
	sym, ok := rt.Symbols.Intern(name)
	require.True(t, ok)
	objSym, _ := rt.Symbols.Intern("Object")
	objClass, ok := rt.Classes.Get(objSym)
	require.True(t, ok)
	procVal, ok := heap.NewProc(rt.Heap, 0, &heap.Proc{Name: sym, IREP: body})
	require.True(t, ok)
	rt.Heap.DefineMethod(objClass, sym, procVal)
}

// TestMethodCallWithArgument: "def f(x); x+1;
// end; f(5)" leaves FIXNUM 6 in the caller's result slot, an empty
// call-info stack, and allocator usage back at the pre-call baseline.
func TestMethodCallWithArgument(t *testing.T) {
	rt, err := NewRuntime(config.Default())
	require.NoError(t, err)

	fBody := &irep.IREP{
		NRegs: 3,
		Code: []uint32{
			uint32(opcode.EncodeAx(opcode.ENTER, opcode.EnterAx(1, 0, 0, 0))),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 1)),
			uint32(opcode.EncodeABC(opcode.ADD, 1, 0, 0)),
			uint32(opcode.EncodeABC(opcode.RETURN, 1, opcode.ReturnNormal, 0)),
		},
	}
	defineScriptMethod(t, rt, "f", fBody)

	root := &irep.IREP{
		NRegs: 4,
		Syms:  []string{"f"},
		Code: []uint32{
			uint32(opcode.EncodeABC(opcode.LOADSELF, 1, 0, 0)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 5)),
			uint32(opcode.EncodeABC(opcode.SEND, 1, 0, 1)),
		},
	}
	v, err := Open(rt, nil)
	require.NoError(t, err)
	require.NoError(t, v.Begin(root))

	baseline := rt.Pool.Statistics().Used
	require.NoError(t, v.RunSlice(7))

	assert.Equal(t, value.Fixnum(6), v.R(1))
	assert.Empty(t, v.callStack)
	assert.Equal(t, baseline, rt.Pool.Statistics().Used, "a balanced call must not drift allocator usage")
}

// TestUpvalueReadsLiveOuterSlot: a block entered
// after the outer variable changes observes the new value, because
// GETUPVAR walks back to the live outer register rather than snapshotting
// it at closure creation.
func TestUpvalueReadsLiveOuterSlot(t *testing.T) {
	block := &irep.IREP{
		NRegs: 2,
		Code: []uint32{
			uint32(opcode.EncodeABC(opcode.GETUPVAR, 1, 1, 0)),
			uint32(opcode.EncodeABC(opcode.RETURN, 1, opcode.ReturnNormal, 0)),
		},
	}
	root := &irep.IREP{
		NRegs: 6,
		Reps:  []*irep.IREP{block},
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 10)),
			uint32(opcode.EncodeABC(opcode.LOADNIL, 2, 0, 0)),
			uint32(opcode.EncodeABx(opcode.EXEC, 2, 0)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 20)),
			uint32(opcode.EncodeABC(opcode.LOADNIL, 4, 0, 0)),
			uint32(opcode.EncodeABx(opcode.EXEC, 4, 0)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(10))

	assert.Equal(t, value.Fixnum(10), v.R(2), "first entry reads the outer slot's initial value")
	assert.Equal(t, value.Fixnum(20), v.R(4), "second entry reads the reassigned outer slot")
}

func TestSetupvarWritesLiveOuterSlot(t *testing.T) {
	block := &irep.IREP{
		NRegs: 2,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 99)),
			uint32(opcode.EncodeABC(opcode.SETUPVAR, 1, 1, 0)),
			uint32(opcode.EncodeABC(opcode.RETURN, 0, opcode.ReturnNormal, 0)),
		},
	}
	root := &irep.IREP{
		NRegs: 4,
		Reps:  []*irep.IREP{block},
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 1)),
			uint32(opcode.EncodeABC(opcode.LOADNIL, 2, 0, 0)),
			uint32(opcode.EncodeABx(opcode.EXEC, 2, 0)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(6))
	assert.Equal(t, value.Fixnum(99), v.R(1))
}

// TestEnterSkipsCoveredOptionalDefaults: with one optional argument
// supplied, ENTER advances pc past the one default-value setup
// instruction the caller already covered.
func TestEnterSkipsCoveredOptionalDefaults(t *testing.T) {
	body := &irep.IREP{
		NRegs: 3,
		Code: []uint32{
			uint32(opcode.EncodeAx(opcode.ENTER, opcode.EnterAx(0, 2, 0, 0))),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 1)), // default for the first optional
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 2)), // default for the second optional
			uint32(opcode.EncodeABC(opcode.RETURN, 1, opcode.ReturnNormal, 0)),
		},
	}

	t.Run("one argument supplied skips the first default", func(t *testing.T) {
		rt, err := NewRuntime(config.Default())
		require.NoError(t, err)
		defineScriptMethod(t, rt, "f", body)
		root := &irep.IREP{
			NRegs: 4,
			Syms:  []string{"f"},
			Code: []uint32{
				uint32(opcode.EncodeABC(opcode.LOADSELF, 1, 0, 0)),
				uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 5)),
				uint32(opcode.EncodeABC(opcode.SEND, 1, 0, 1)),
			},
		}
		v, err := Open(rt, nil)
		require.NoError(t, err)
		require.NoError(t, v.Begin(root))
		require.NoError(t, v.RunSlice(6))
		assert.Equal(t, value.Fixnum(5), v.R(1), "the supplied argument survives; its default setup was skipped")
	})

	t.Run("no arguments runs every default", func(t *testing.T) {
		rt, err := NewRuntime(config.Default())
		require.NoError(t, err)
		defineScriptMethod(t, rt, "f", body)
		root := &irep.IREP{
			NRegs: 3,
			Syms:  []string{"f"},
			Code: []uint32{
				uint32(opcode.EncodeABC(opcode.LOADSELF, 1, 0, 0)),
				uint32(opcode.EncodeABC(opcode.SEND, 1, 0, 0)),
			},
		}
		v, err := Open(rt, nil)
		require.NoError(t, err)
		require.NoError(t, v.Begin(root))
		require.NoError(t, v.RunSlice(6))
		assert.Equal(t, value.Fixnum(1), v.R(1))
	})
}

// TestUnknownOpcodeSkipped: an unknown opcode advances pc by
// one word, emits a diagnostic, and leaves every register untouched.
func TestUnknownOpcodeSkipped(t *testing.T) {
	root := &irep.IREP{
		NRegs: 3,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 8)),
			uint32(120), // no such opcode
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 9)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(2))

	assert.Equal(t, value.Fixnum(8), v.R(1))
	assert.Equal(t, 2, v.pc)
	diag := v.LastDiagnostic()
	require.NotNil(t, diag)
	assert.Equal(t, DiagUnsupportedOpcode, diag.Kind)

	require.NoError(t, v.RunSlice(1))
	assert.Equal(t, value.Fixnum(9), v.R(2))
}

// TestSendbNilsNonProcBlockAndReturnsEarly pins a compatibility
// quirk: SENDB with a non-proc, non-nil block slot nils the slot
// and abandons the send without any diagnostic.
func TestSendbNilsNonProcBlockAndReturnsEarly(t *testing.T) {
	root := &irep.IREP{
		NRegs: 4,
		Syms:  []string{"each"},
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 5)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 7)), // fixnum where the block belongs
			uint32(opcode.EncodeABC(opcode.SENDB, 1, 0, 0)),
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(3))

	assert.Equal(t, value.Fixnum(5), v.R(1), "the send never dispatched")
	assert.Equal(t, value.Nil, v.R(2))
	assert.Nil(t, v.LastDiagnostic(), "the early return is silent")
}

// TestSuperDispatchesOneClassUp builds B < A with m defined on both and
// checks SUPER inside B#m reaches A#m.
func TestSuperDispatchesOneClassUp(t *testing.T) {
	aBody := &irep.IREP{
		NRegs: 2,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 7)),
			uint32(opcode.EncodeABC(opcode.RETURN, 1, opcode.ReturnNormal, 0)),
		},
	}
	bBody := &irep.IREP{
		NRegs: 2,
		Code: []uint32{
			uint32(opcode.EncodeABC(opcode.SUPER, 0, 0, 0)),
			uint32(opcode.EncodeABC(opcode.RETURN, 0, opcode.ReturnNormal, 0)),
		},
	}
	root := &irep.IREP{
		NRegs: 6,
		Syms:  []string{"A", "m", "B", "new"},
		Reps:  []*irep.IREP{aBody, bBody},
		Code: []uint32{
			uint32(opcode.EncodeABC(opcode.LOADNIL, 2, 0, 0)),
			uint32(opcode.EncodeABC(opcode.CLASS, 1, 0, 0)), // class A
			uint32(opcode.EncodeABx(opcode.LAMBDA, 2, 0)),
			uint32(opcode.EncodeABC(opcode.METHOD, 1, 1, 0)), // A#m
			uint32(opcode.EncodeABC(opcode.MOVE, 4, 1, 0)),   // superclass operand for CLASS B
			uint32(opcode.EncodeABC(opcode.CLASS, 3, 2, 0)),  // class B < A
			uint32(opcode.EncodeABx(opcode.LAMBDA, 4, 1)),
			uint32(opcode.EncodeABC(opcode.METHOD, 3, 1, 0)), // B#m
			uint32(opcode.EncodeABC(opcode.SEND, 3, 3, 0)),   // B.new
			uint32(opcode.EncodeABC(opcode.SEND, 3, 1, 0)),   // instance.m
		},
	}
	v := newTestVM(t, root)
	require.NoError(t, v.RunSlice(14))

	assert.Equal(t, value.Fixnum(7), v.R(3))
	assert.Empty(t, v.callStack)
}

// TestLambdaCallReturnIsRefcountNeutral: LAMBDA; CALL;
// RETURN NORMAL leaves the caller's register file and allocator usage
// exactly where they started.
func TestLambdaCallReturnIsRefcountNeutral(t *testing.T) {
	block := &irep.IREP{
		NRegs: 2,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, 5)),
			uint32(opcode.EncodeABC(opcode.RETURN, 1, opcode.ReturnNormal, 0)),
		},
	}
	root := &irep.IREP{
		NRegs: 3,
		Reps:  []*irep.IREP{block},
		Code: []uint32{
			uint32(opcode.EncodeABx(opcode.LAMBDA, 1, 0)),
			uint32(opcode.EncodeABC(opcode.MOVE, 0, 1, 0)),
			uint32(opcode.EncodeABC(opcode.CALL, 0, 0, 0)),
		},
	}
	v := newTestVM(t, root)
	baseline := v.rt.Pool.Statistics().Used

	require.NoError(t, v.RunSlice(5))

	assert.Equal(t, value.Fixnum(5), v.R(0))
	assert.Empty(t, v.callStack)
	assert.Equal(t, baseline, v.rt.Pool.Statistics().Used, "the proc cell must be freed once nothing references it")
}

// TestStopReleasesRegisterFileToBaseline: STOP
// releases every slot, so the allocator returns to its post-Begin
// usage with no drift from the containers the script built.
func TestStopReleasesRegisterFileToBaseline(t *testing.T) {
	root := &irep.IREP{
		NRegs: 5,
		Pools: []irep.Literal{{Kind: irep.LiteralString, Str: []byte("scratch")}},
		Code: []uint32{
			uint32(opcode.EncodeABx(opcode.STRING, 1, 0)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 2, 1)),
			uint32(opcode.EncodeAsBx(opcode.LOADI, 3, 2)),
			uint32(opcode.EncodeABC(opcode.ARRAY, 2, 2, 2)),
			uint32(opcode.EncodeABC(opcode.STOP, 0, 0, 0)),
		},
	}
	v := newTestVM(t, root)
	baseline := v.rt.Pool.Statistics().Used

	require.NoError(t, v.RunSlice(5))

	assert.True(t, v.Halted())
	assert.Equal(t, baseline, v.rt.Pool.Statistics().Used)
	for i := 0; i < root.NRegs; i++ {
		assert.Equal(t, value.Empty, v.R(i))
	}
}
