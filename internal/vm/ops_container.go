package vm

import (
	"strconv"

	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// opArray (ARRAY A B C) moves C consecutive slots starting at R(B)
// into a new array and zeroes the source slots — moves, not copies,
// preserving refcounts. Sources are cleared before the result is
// written so the common A==B case never double-releases the slot it
// also writes to.
func opArray(v *VM, ins opcode.Instruction) {
	a, b, c := ins.ABC()
	elems := make([]value.Value, c)
	for i := 0; i < c; i++ {
		elems[i] = v.R(b + i)
		v.clearR(b + i)
	}
	arr, ok := heap.NewArray(v.rt.Heap, v.id, elems)
	if !ok {
		v.diagAllocExhausted("ARRAY cell")
		return
	}
	v.setR(a, arr)
}

// opHash (HASH A B C) packs C key-value pairs the same way.
func opHash(v *VM, ins opcode.Instruction) {
	a, b, c := ins.ABC()
	entries := make([]heap.HashEntry, c)
	for i := 0; i < c; i++ {
		key := v.R(b + 2*i)
		val := v.R(b + 2*i + 1)
		v.clearR(b + 2*i)
		v.clearR(b + 2*i + 1)
		entries[i] = heap.HashEntry{Key: key, Value: val}
	}
	h, ok := heap.NewHash(v.rt.Heap, v.id, entries)
	if !ok {
		v.diagAllocExhausted("HASH cell")
		return
	}
	v.setR(a, h)
}

// opString constructs a fresh mutable string from pool entry Bx.
func opString(v *VM, ins opcode.Instruction) {
	a, bx := ins.ABx()
	if bx < 0 || bx >= len(v.curIREP.Pools) {
		v.diagTypeMismatch("literal index", "STRING")
		return
	}
	lit := v.curIREP.Pools[bx]
	s, ok := heap.NewString(v.rt.Heap, v.id, string(lit.Str))
	if !ok {
		v.diagAllocExhausted("STRING cell")
		return
	}
	v.setR(a, s)
}

// toS renders val the way STRCAT's "invokes to_s on R(B)" fast path
// does: built-in scalars, strings and classes format directly; anything
// else (OBJECT, PROC, ARRAY, etc.) falls back to a handle-style label rather
// than dispatching a full method call, which keeps STRCAT from needing
// its own call-frame machinery.
func (v *VM) toS(val value.Value) string {
	switch val.Tag {
	case value.TagNil:
		return ""
	case value.TagTrue:
		return "true"
	case value.TagFalse:
		return "false"
	case value.TagFixnum:
		return strconv.FormatInt(val.FixnumValue(), 10)
	case value.TagFloat:
		return strconv.FormatFloat(val.FloatValue(), 'g', -1, 64)
	case value.TagSymbol:
		return v.rt.Symbols.MustName(val.SymbolValue())
	case value.TagString:
		s, _ := v.rt.Heap.StringBody(val)
		if s == nil {
			return ""
		}
		return string(s.Data)
	case value.TagClass:
		c, _ := v.rt.Heap.ClassBody(val)
		if c == nil {
			return "#<Class>"
		}
		return v.rt.Symbols.MustName(c.Name)
	default:
		class := v.classOf(val)
		if class != nil {
			return "#<" + v.rt.Symbols.MustName(class.Name) + ">"
		}
		return "#<Object>"
	}
}

// opStrcat invokes to_s on R(B), then concatenates the result into
// R(A).
func opStrcat(v *VM, ins opcode.Instruction) {
	a, b, _ := ins.ABC()
	dst, ok := v.rt.Heap.StringBody(v.R(a))
	if !ok {
		v.diagTypeMismatch("String", "STRCAT target")
		return
	}
	rhs := v.R(b)
	dst.Data = append(dst.Data, v.toS(rhs)...)
	v.release(rhs)
	v.clearR(b)
}
