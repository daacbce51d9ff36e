// Package loader parses the length-prefixed IREP binary tree format.
// Bytecode compilation from source text is out of scope for this
// interpreter; turning an already-compiled tree into package irep's
// in-memory form is this package's whole job — vm.Begin has nothing
// to point at without it.
//
// Two framing details are this implementation's own choice: the
// literal pool and the child-IREP subtree are each prefixed with a
// 4-byte count, symmetrically with the symbol table's count prefix,
// rather than being length-implicit.
package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/tinyrb/mrbcvm/internal/irep"
)

// Load parses one IREP tree from r. littleEndian selects the
// byte-order build flag; pass config.Config.LittleEndian.
func Load(r io.Reader, littleEndian bool) (*irep.IREP, error) {
	d := &decoder{r: r, order: byteOrder(littleEndian)}
	return d.readIREP()
}

func byteOrder(little bool) binary.ByteOrder {
	if little {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

type decoder struct {
	r     io.Reader
	order binary.ByteOrder
}

func (d *decoder) u16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return d.order.Uint16(b[:]), nil
}

func (d *decoder) u32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return d.order.Uint32(b[:]), nil
}

func (d *decoder) byte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *decoder) readIREP() (*irep.IREP, error) {
	nregs, err := d.u16()
	if err != nil {
		return nil, fmt.Errorf("irep: read nregs: %w", err)
	}
	nlocals, err := d.u16()
	if err != nil {
		return nil, fmt.Errorf("irep: read nlocals: %w", err)
	}
	ninst, err := d.u32()
	if err != nil {
		return nil, fmt.Errorf("irep: read instruction count: %w", err)
	}
	code := make([]uint32, ninst)
	for i := range code {
		w, err := d.u32()
		if err != nil {
			return nil, fmt.Errorf("irep: read instruction %d: %w", i, err)
		}
		code[i] = w
	}

	pools, err := d.readPools()
	if err != nil {
		return nil, fmt.Errorf("irep: read literal pool: %w", err)
	}

	syms, err := d.readSymbols()
	if err != nil {
		return nil, fmt.Errorf("irep: read symbol table: %w", err)
	}

	nreps, err := d.u32()
	if err != nil {
		return nil, fmt.Errorf("irep: read child count: %w", err)
	}
	reps := make([]*irep.IREP, nreps)
	for i := range reps {
		child, err := d.readIREP()
		if err != nil {
			return nil, fmt.Errorf("irep: read child %d: %w", i, err)
		}
		reps[i] = child
	}

	return &irep.IREP{
		Code:    code,
		Pools:   pools,
		Syms:    syms,
		Reps:    reps,
		NRegs:   int(nregs),
		NLocals: int(nlocals),
	}, nil
}

func (d *decoder) readPools() ([]irep.Literal, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	out := make([]irep.Literal, n)
	for i := range out {
		t, err := d.byte()
		if err != nil {
			return nil, err
		}
		length, err := d.u16()
		if err != nil {
			return nil, err
		}
		raw, err := d.bytes(int(length))
		if err != nil {
			return nil, err
		}
		switch irep.LiteralKind(t) {
		case irep.LiteralFixnum:
			if len(raw) != 8 {
				return nil, fmt.Errorf("fixnum literal %d: want 8 bytes, got %d", i, len(raw))
			}
			out[i] = irep.Literal{Kind: irep.LiteralFixnum, Int: int64(d.order.Uint64(raw))}
		case irep.LiteralFloat:
			if len(raw) != 8 {
				return nil, fmt.Errorf("float literal %d: want 8 bytes, got %d", i, len(raw))
			}
			bits := d.order.Uint64(raw)
			out[i] = irep.Literal{Kind: irep.LiteralFloat, Float: math.Float64frombits(bits)}
		case irep.LiteralString:
			out[i] = irep.Literal{Kind: irep.LiteralString, Str: raw}
		default:
			return nil, fmt.Errorf("literal %d: unknown type byte %d", i, t)
		}
	}
	return out, nil
}

func (d *decoder) readSymbols() ([]string, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		length, err := d.u16()
		if err != nil {
			return nil, err
		}
		raw, err := d.bytes(int(length))
		if err != nil {
			return nil, err
		}
		nul, err := d.byte()
		if err != nil {
			return nil, err
		}
		if nul != 0 {
			return nil, fmt.Errorf("symbol %d: missing NUL terminator", i)
		}
		out[i] = string(bytes.TrimRight(raw, "\x00"))
	}
	return out, nil
}
