// Package irep implements the intermediate representation: an
// immutable per-method record holding its instruction stream,
// literal pool, symbol pool, and child IREPs for nested block/method/
// class bodies.
package irep

import (
	"github.com/tinyrb/mrbcvm/internal/symbol"
)

// LiteralKind distinguishes the three literal-pool record shapes:
// large integers, floats, and pre-baked strings.
type LiteralKind byte

const (
	LiteralFixnum LiteralKind = iota
	LiteralFloat
	LiteralString
)

// Literal is one literal-pool entry. Fixnum/Float entries are scalar
// and are shallow-copied directly into a register by LOADL; String
// entries are raw bytes that STRING clones into a fresh, VM-owned
// heap cell on each use.
type Literal struct {
	Kind  LiteralKind
	Int   int64
	Float float64
	Str   []byte
}

// IREP is one compiled method/block body. IREPs form a tree rooted at
// the loaded program; the tree is produced entirely by the loader
// (package irep/loader) — bytecode compilation from source text is out
// of scope.
type IREP struct {
	Code    []uint32  // packed 32-bit instructions
	Pools   []Literal // owned literal values (large ints, floats, pre-baked strings)
	Syms    []string  // symbol names referenced by index from SEND/GETGLOBAL/etc. operands
	Reps    []*IREP   // child IREPs, produced by nested block/method/class bodies
	NRegs   int       // stack-frame size
	NLocals int
}

// ResolveSymbols interns every name in Syms into the process symbol
// table, returning the parallel slice of ids used at dispatch time.
// The VM calls it in Begin and on every frame push; interning is
// idempotent, so repeated calls return the same ids.
func (r *IREP) ResolveSymbols(t *symbol.Table) ([]symbol.ID, bool) {
	ids := make([]symbol.ID, len(r.Syms))
	for i, name := range r.Syms {
		id, ok := t.Intern(name)
		if !ok {
			return nil, false
		}
		ids[i] = id
	}
	return ids, true
}
