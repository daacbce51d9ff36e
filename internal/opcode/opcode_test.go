package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeABCRoundTrip(t *testing.T) {
	ins := EncodeABC(SEND, 3, 17, 5)
	assert.Equal(t, SEND, ins.Op())
	a, b, c := ins.ABC()
	assert.Equal(t, 3, a)
	assert.Equal(t, 17, b)
	assert.Equal(t, 5, c)
}

func TestEncodeABxRoundTrip(t *testing.T) {
	ins := EncodeABx(LOADL, 2, 1000)
	assert.Equal(t, LOADL, ins.Op())
	a, bx := ins.ABx()
	assert.Equal(t, 2, a)
	assert.Equal(t, 1000, bx)
}

func TestEncodeAsBxRoundTripNegative(t *testing.T) {
	ins := EncodeAsBx(JMP, 0, -5)
	a, sbx := ins.AsBx()
	assert.Equal(t, 0, a)
	assert.Equal(t, -5, sbx)
}

func TestEncodeAsBxRoundTripPositive(t *testing.T) {
	ins := EncodeAsBx(JMPIF, 1, 200)
	_, sbx := ins.AsBx()
	assert.Equal(t, 200, sbx)
}

func TestEncodeAxRoundTrip(t *testing.T) {
	ins := EncodeAx(STOP, 1<<20)
	assert.Equal(t, STOP, ins.Op())
	assert.Equal(t, 1<<20, ins.Ax())
}

func TestOpcodeStringKnown(t *testing.T) {
	assert.Equal(t, "ADD", ADD.String())
	assert.Equal(t, "RETURN", RETURN.String())
}

func TestOpcodeStringUnknownBeyondTable(t *testing.T) {
	assert.Equal(t, "UNKNOWN", Opcode(200).String())
}

func TestDispatchTableSizeMatchesCount(t *testing.T) {
	assert.Equal(t, int(opCount), Count)
}

func TestEnterAxRoundTrip(t *testing.T) {
	ax := EnterAx(3, 2, 1, 4)
	req, opt, rest, post, key, kdict, block := DecodeEnter(ax)
	assert.Equal(t, 3, req)
	assert.Equal(t, 2, opt)
	assert.Equal(t, 1, rest)
	assert.Equal(t, 4, post)
	assert.Equal(t, 0, key)
	assert.Equal(t, 0, kdict)
	assert.Equal(t, 0, block)
}
