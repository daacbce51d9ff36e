// Package value implements the VM's tagged value: a one-word
// discriminator plus a one-word payload, compact enough to
// pass by value through registers, pools, and hash entries.
package value

import (
	"math"

	"github.com/tinyrb/mrbcvm/internal/alloc"
	"github.com/tinyrb/mrbcvm/internal/symbol"
)

// Tag is the value discriminator. The ordering below is load-bearing:
// truthiness and the fallback comparator both depend on it.
type Tag uint8

const (
	TagEmpty Tag = iota // uninitialised slot; must never be observed by scripts
	TagNil
	TagFalse
	TagTrue
	TagFixnum
	TagFloat
	TagSymbol
	TagClass
	TagObject
	TagProc
	TagArray
	TagString
	TagRange
	TagHash
)

// Value is one register/operand slot.
type Value struct {
	Tag     Tag
	Payload uint64
}

// Empty is the uninitialised-slot sentinel.
var Empty = Value{Tag: TagEmpty}

// Nil is the canonical nil value.
var Nil = Value{Tag: TagNil}

// True and False are the boolean singletons.
var (
	True  = Value{Tag: TagTrue}
	False = Value{Tag: TagFalse}
)

// Bool returns True or False.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Fixnum constructs a FIXNUM value.
func Fixnum(i int64) Value {
	return Value{Tag: TagFixnum, Payload: uint64(i)}
}

// Float constructs a FLOAT value.
func Float(f float64) Value {
	return Value{Tag: TagFloat, Payload: math.Float64bits(f)}
}

// Symbol constructs a SYMBOL value.
func Symbol(id symbol.ID) Value {
	return Value{Tag: TagSymbol, Payload: uint64(id)}
}

// FixnumValue extracts the payload as an int64. Caller must check Tag.
func (v Value) FixnumValue() int64 { return int64(v.Payload) }

// FloatValue extracts the payload as a float64. Caller must check Tag.
func (v Value) FloatValue() float64 { return math.Float64frombits(v.Payload) }

// SymbolValue extracts the payload as a symbol id. Caller must check Tag.
func (v Value) SymbolValue() symbol.ID { return symbol.ID(v.Payload) }

// heapRef packs an alloc.Ref into the payload word.
func heapRef(tag Tag, r alloc.Ref) Value {
	return Value{Tag: tag, Payload: uint64(r.Index)<<32 | uint64(r.Gen)}
}

// Ref unpacks the payload as an alloc.Ref. Caller must check IsHeap().
func (v Value) Ref() alloc.Ref {
	return alloc.Ref{Index: uint32(v.Payload >> 32), Gen: uint32(v.Payload)}
}

// HeapValue builds a heap-tagged value around a pool reference.
func HeapValue(tag Tag, r alloc.Ref) Value {
	if !tag.IsHeap() {
		panic("value: HeapValue called with non-heap tag")
	}
	return heapRef(tag, r)
}

// IsHeap reports whether tag carries an owning heap reference.
func (t Tag) IsHeap() bool {
	switch t {
	case TagClass, TagObject, TagProc, TagArray, TagString, TagRange, TagHash:
		return true
	default:
		return false
	}
}

// Truthy reports Ruby truthiness: any tag above FALSE is truthy.
func (v Value) Truthy() bool { return v.Tag > TagFalse }

// IsNumeric reports whether the value is FIXNUM or FLOAT.
func (v Value) IsNumeric() bool { return v.Tag == TagFixnum || v.Tag == TagFloat }

// AsFloat64 promotes FIXNUM/FLOAT to a float64; panics otherwise (callers
// must guard with IsNumeric).
func (v Value) AsFloat64() float64 {
	switch v.Tag {
	case TagFixnum:
		return float64(v.FixnumValue())
	case TagFloat:
		return v.FloatValue()
	default:
		panic("value: AsFloat64 on non-numeric value")
	}
}
