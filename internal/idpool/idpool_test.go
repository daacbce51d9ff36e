package idpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrb/mrbcvm/internal/alloc"
)

func TestAllocIsLowestFree(t *testing.T) {
	p := New(4)
	id1, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, alloc.VMID(1), id1)

	id2, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, alloc.VMID(2), id2)
}

func TestFreeAllowsReuse(t *testing.T) {
	p := New(2)
	id1, _ := p.Alloc()
	p.Free(id1)
	id2, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestExhaustionReturnsError(t *testing.T) {
	p := New(1)
	_, err := p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()
	assert.Error(t, err)
}

func TestInUseReflectsAllocationState(t *testing.T) {
	p := New(2)
	id, _ := p.Alloc()
	assert.True(t, p.InUse(id))
	p.Free(id)
	assert.False(t, p.InUse(id))
}

func TestInUseOutOfRangeIsFalse(t *testing.T) {
	p := New(2)
	assert.False(t, p.InUse(alloc.VMID(99)))
	assert.False(t, p.InUse(alloc.VMID(0)))
}
