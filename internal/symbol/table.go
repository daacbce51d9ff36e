// Package symbol interns short names into small integer IDs. The
// table is process-wide and capacity-bounded; symbols are never
// reclaimed.
package symbol

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/slices"
)

// ID is an interned symbol id. 0 is reserved for "no symbol".
type ID uint32

// NoSymbol is the reserved empty id.
const NoSymbol ID = 0

// Table interns names to IDs within a fixed capacity.
type Table struct {
	mu    sync.Mutex
	names []string // index 0 unused (reserved for NoSymbol)
	index []int     // positions into names, kept sorted by name for lookup
	cap   int
}

// NewTable creates a table bounded to capacity entries (MAX_SYMBOLS_COUNT).
func NewTable(capacity int) *Table {
	t := &Table{
		names: make([]string, 1, capacity+1),
		cap:   capacity,
	}
	t.names[0] = ""
	return t
}

// Intern returns the id for name, allocating a new one if unseen.
// Overflowing capacity is fatal; callers
// embedded in the VM should treat a non-ok return as fatal.
func (t *Table) Intern(name string) (ID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := sort.Search(len(t.index), func(i int) bool {
		return t.names[t.index[i]] >= name
	})
	if pos < len(t.index) && t.names[t.index[pos]] == name {
		return ID(t.index[pos]), true
	}
	if len(t.names)-1 >= t.cap {
		return NoSymbol, false
	}
	id := ID(len(t.names))
	t.names = append(t.names, name)
	t.index = slices.Insert(t.index, pos, int(id))
	return id, true
}

// NameOf returns the interned name for id, if any.
func (t *Table) NameOf(id ID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == NoSymbol || int(id) >= len(t.names) {
		return "", false
	}
	return t.names[id], true
}

// Len reports the number of interned symbols (excluding NoSymbol).
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.names) - 1
}

// MustName is a convenience for diagnostics where a missing symbol
// indicates a VM-internal bug rather than a recoverable condition.
func (t *Table) MustName(id ID) string {
	name, ok := t.NameOf(id)
	if !ok {
		return fmt.Sprintf("<bad-symbol:%d>", id)
	}
	return name
}
