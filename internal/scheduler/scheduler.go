// Package scheduler implements the cooperative round-robin task
// scheduler: it owns no VM internals, only
// the "yield point" hook the VM dispatcher exposes, and picks the next
// runnable VM in round-robin order once the current one's preemption
// flag is set.
package scheduler

import (
	"context"
	"fmt"

	"github.com/tinyrb/mrbcvm/internal/vm"
)

// defaultSlice bounds how many opcodes a VM runs before voluntarily
// yielding, standing in for the periodic hardware timer tick an
// embedded port would wire up. Go has no equivalent asynchronous IRQ
// to interrupt a goroutine mid-instruction, so the scheduler caps
// slice length instead; the suspension point itself (the post-opcode
// flag check) is unchanged.
const defaultSlice = 1 << 16

// Scheduler runs a fixed set of VM instances round-robin on one
// goroutine; the model is single-threaded and cooperative — no VM
// ever runs concurrently with another.
type Scheduler struct {
	tasks []*vm.VM
	slice int
}

// New creates a scheduler whose time slices run at most sliceOpcodes
// instructions before voluntarily yielding. sliceOpcodes <= 0 uses
// defaultSlice.
func New(sliceOpcodes int) *Scheduler {
	if sliceOpcodes <= 0 {
		sliceOpcodes = defaultSlice
	}
	return &Scheduler{slice: sliceOpcodes}
}

// Add registers a VM to be scheduled. A VM must already be past
// vm_begin before it is added.
func (s *Scheduler) Add(v *vm.VM) {
	s.tasks = append(s.tasks, v)
}

// Tasks returns the currently registered VMs, for diagnostics/console
// use (e.g. listing running tasks).
func (s *Scheduler) Tasks() []*vm.VM {
	return s.tasks
}

// Run executes every registered VM round-robin until all have halted or
// ctx is canceled. A VM that halts (STOP or
// ABORT) is skipped on subsequent rounds rather than removed from the
// task list, so callers can still inspect it afterward.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.tasks) == 0 {
		return nil
	}
	for {
		allHalted := true
		for _, t := range s.tasks {
			if t.Halted() {
				continue
			}
			allHalted = false
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := t.RunSlice(s.slice); err != nil {
				return fmt.Errorf("scheduler: vm %d: %w", t.ID(), err)
			}
		}
		if allHalted {
			return nil
		}
	}
}
