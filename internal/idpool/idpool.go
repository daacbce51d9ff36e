// Package idpool allocates VM instance ids from a fixed-size bitmap,
// the Go analogue of mruby/c's static free_vm_bitmap, sized
// dynamically here from the configured capacity instead of a
// compile-time array.
package idpool

import (
	"fmt"

	"github.com/tinyrb/mrbcvm/internal/alloc"
)

// Pool hands out VM ids in [1, capacity]. 0 is reserved to mean
// "no VM" / "raw allocation" throughout the rest of the codebase.
type Pool struct {
	bitmap   []uint32
	capacity int
}

const bitWidth = 32

// New creates a pool capable of issuing `capacity` concurrent VM ids
// (MAX_VM_COUNT).
func New(capacity int) *Pool {
	return &Pool{
		bitmap:   make([]uint32, capacity/bitWidth+1),
		capacity: capacity,
	}
}

// Alloc returns the lowest-numbered free id, or an error if the pool is
// exhausted.
func (p *Pool) Alloc() (alloc.VMID, error) {
	for id := 1; id <= p.capacity; id++ {
		word, bit := (id-1)/bitWidth, uint((id-1)%bitWidth)
		if p.bitmap[word]&(1<<bit) == 0 {
			p.bitmap[word] |= 1 << bit
			return alloc.VMID(id), nil
		}
	}
	return 0, fmt.Errorf("idpool: exhausted (MAX_VM_COUNT=%d)", p.capacity)
}

// Free reclaims id's slot so it can be reissued.
func (p *Pool) Free(id alloc.VMID) {
	if id == 0 || int(id) > p.capacity {
		return
	}
	word, bit := (int(id)-1)/bitWidth, uint((int(id)-1)%bitWidth)
	p.bitmap[word] &^= 1 << bit
}

// InUse reports whether id is currently allocated.
func (p *Pool) InUse(id alloc.VMID) bool {
	if id == 0 || int(id) > p.capacity {
		return false
	}
	word, bit := (int(id)-1)/bitWidth, uint((int(id)-1)%bitWidth)
	return p.bitmap[word]&(1<<bit) != 0
}
