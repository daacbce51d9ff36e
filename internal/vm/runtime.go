// Package vm implements the bytecode dispatcher: the
// fetch-decode-execute loop, the register file and call-info stack it
// shares with method dispatch, and the VM lifecycle.
//
// The split is between a shared per-process runtime and per-task
// execution state: Runtime holds everything process-wide (symbols,
// globals, constants, the class registry, the allocator), and VM holds
// everything scoped to one script task.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/tinyrb/mrbcvm/internal/alloc"
	"github.com/tinyrb/mrbcvm/internal/config"
	"github.com/tinyrb/mrbcvm/internal/globaltbl"
	"github.com/tinyrb/mrbcvm/internal/heap"
	"github.com/tinyrb/mrbcvm/internal/idpool"
	"github.com/tinyrb/mrbcvm/internal/registry"
	"github.com/tinyrb/mrbcvm/internal/symbol"
	"github.com/tinyrb/mrbcvm/internal/value"
)

// Runtime is the process-wide state: shared and mutable, but
// requiring no locking under the cooperative model — the symbol table,
// the global and constant tables, and the class registry. One Runtime
// backs every VM instance.
type Runtime struct {
	Config    config.Config
	Symbols   *symbol.Table
	Pool      *alloc.Pool
	Heap      *heap.Heap
	Classes   *registry.Registry
	Globals   *globaltbl.Table
	Constants *globaltbl.Table
	IDs       *idpool.Pool

	Diag io.Writer

	// classCells lets callers holding only a *heap.Class pointer (e.g.
	// from registry lookups) recover the CLASS-tagged value.Value that
	// owns its heap cell, so TCLASS, CLASS and Begin can put a class
	// into a register without allocating a second cell for the same
	// class.
	classCells map[*heap.Class]value.Value
}

func (rt *Runtime) registerClassCell(c *heap.Class, v value.Value) {
	if rt.classCells == nil {
		rt.classCells = make(map[*heap.Class]value.Value)
	}
	rt.classCells[c] = v
}

func (rt *Runtime) classCellOf(c *heap.Class) (value.Value, *heap.Class, bool) {
	v, ok := rt.classCells[c]
	return v, c, ok
}

// NewRuntime builds a Runtime from cfg, bootstrapping the allocator,
// symbol table, and built-in class hierarchy.
func NewRuntime(cfg config.Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool := alloc.NewPool(make([]byte, cfg.PoolBytes))
	h := heap.New(pool)
	symbols := symbol.NewTable(cfg.MaxSymbolsCount)
	classes, err := registry.Bootstrap(h, symbols)
	if err != nil {
		return nil, fmt.Errorf("vm: bootstrap classes: %w", err)
	}
	rt := &Runtime{
		Config:    cfg,
		Symbols:   symbols,
		Pool:      pool,
		Heap:      h,
		Classes:   classes,
		Globals:   globaltbl.New(),
		Constants: globaltbl.New(),
		IDs:       idpool.New(cfg.MaxVMCount),
		Diag:      os.Stderr,
	}
	for sym, c := range classes.All() {
		if v, ok := classes.ValueOf(sym); ok {
			rt.registerClassCell(c, v)
		}
	}
	return rt, nil
}
