// Package globaltbl implements the process-wide symbol-keyed mappings
// backing globals and constants. Both are process-wide and share this
// same shape; instance variables are per-object instead (carried
// directly on heap.Object, see package heap).
package globaltbl

import (
	"sync"

	"github.com/tinyrb/mrbcvm/internal/symbol"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// Table is a symbol.ID -> value.Value map. Because execution is
// single-threaded cooperative, the mutex here guards
// against concurrent Go-level access from tooling (e.g. the debug
// console reading globals while a VM runs under a different
// goroutine-based scheduler policy), not against VM-to-VM races.
type Table struct {
	mu   sync.RWMutex
	vals map[symbol.ID]value.Value
}

func New() *Table {
	return &Table{vals: make(map[symbol.ID]value.Value)}
}

// Get returns the current value for sym, or (Empty, false) if unset.
// GETGLOBAL turns that miss into nil; GETCONST's NameError is the
// constant-specific miss diagnostic, not this one.
func (t *Table) Get(sym symbol.ID) (value.Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.vals[sym]
	return v, ok
}

// Set stores v under sym, replacing (not releasing) any prior value —
// callers own refcounting of the value being replaced.
func (t *Table) Set(sym symbol.ID, v value.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vals[sym] = v
}

// Delete removes sym's previous binding (used on per-VM teardown for
// constants/globals a script VM introduced, if the host chooses to
// scope them — the default runtime shares one Table across all VMs).
func (t *Table) Delete(sym symbol.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.vals, sym)
}
