package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrb/mrbcvm/internal/config"
	"github.com/tinyrb/mrbcvm/internal/irep"
	"github.com/tinyrb/mrbcvm/internal/opcode"
	"github.com/tinyrb/mrbcvm/internal/vm"
)

func countdownIREP(from int) *irep.IREP {
	return &irep.IREP{
		NRegs: 3,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.LOADI, 1, from)),
			uint32(opcode.EncodeABC(opcode.STOP, 0, 0, 0)),
		},
	}
}

func TestRunDrivesEveryTaskToHalt(t *testing.T) {
	rt, err := vm.NewRuntime(config.Default())
	require.NoError(t, err)

	s := New(1) // one opcode per slice, to exercise round-robin interleaving
	for i := 0; i < 3; i++ {
		v, err := vm.Open(rt, nil)
		require.NoError(t, err)
		require.NoError(t, v.Begin(countdownIREP(i)))
		s.Add(v)
	}

	require.NoError(t, s.Run(context.Background()))
	for _, task := range s.Tasks() {
		assert.True(t, task.Halted())
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	rt, err := vm.NewRuntime(config.Default())
	require.NoError(t, err)

	// An IREP that jumps to itself never halts, so cancellation is the
	// only way Run returns.
	spin := &irep.IREP{
		NRegs: 1,
		Code: []uint32{
			uint32(opcode.EncodeAsBx(opcode.JMP, 0, 0)),
		},
	}
	v, err := vm.Open(rt, nil)
	require.NoError(t, err)
	require.NoError(t, v.Begin(spin))

	s := New(1)
	s.Add(v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsNonPositiveSliceWithDefault(t *testing.T) {
	s := New(0)
	assert.Equal(t, defaultSlice, s.slice)
}
