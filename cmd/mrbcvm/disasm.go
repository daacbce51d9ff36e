package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tinyrb/mrbcvm/internal/irep"
	"github.com/tinyrb/mrbcvm/internal/irep/loader"
	"github.com/tinyrb/mrbcvm/internal/opcode"
)

var disasmCommand = &cli.Command{
	Name:      "disasm",
	Usage:     "Print the decoded instructions of an IREP bytecode file",
	ArgsUsage: "<file.mrb>",
	Flags:     configFlags,
	Action:    disasmAction,
}

func disasmAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("disasm: missing bytecode file argument")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("disasm: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("disasm: %w", err)
	}
	defer f.Close()

	root, err := loader.Load(f, cfg.LittleEndian)
	if err != nil {
		return fmt.Errorf("disasm: load %s: %w", path, err)
	}

	printIREP(root, 0)
	return nil
}

// layout classifies each opcode's operand encoding so disasm can print
// the right fields without threading a layout tag through package
// opcode itself.
type layout int

const (
	layoutABC layout = iota
	layoutABx
	layoutAsBx
	layoutAx
)

var layouts = map[opcode.Opcode]layout{
	opcode.LOADL:    layoutABx,
	opcode.LOADI:    layoutAsBx,
	opcode.LOADSYM:  layoutABx,
	opcode.JMP:      layoutAsBx,
	opcode.JMPIF:    layoutAsBx,
	opcode.JMPNOT:   layoutAsBx,
	opcode.STRING:   layoutABx,
	opcode.LAMBDA:   layoutABx,
	opcode.EXEC:     layoutABx,
	opcode.ENTER:    layoutAx,
}

func layoutOf(op opcode.Opcode) layout {
	if l, ok := layouts[op]; ok {
		return l
	}
	return layoutABC
}

func printIREP(ir *irep.IREP, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Printf("%sIREP nregs=%d nlocals=%d ninst=%d nsyms=%d nchildren=%d\n",
		indent, ir.NRegs, ir.NLocals, len(ir.Code), len(ir.Syms), len(ir.Reps))

	for pc, word := range ir.Code {
		ins := opcode.Instruction(word)
		op := ins.Op()
		switch layoutOf(op) {
		case layoutABx:
			a, bx := ins.ABx()
			fmt.Printf("%s%04d  %-10s R%d, %d\n", indent, pc, op, a, bx)
		case layoutAsBx:
			a, sbx := ins.AsBx()
			fmt.Printf("%s%04d  %-10s R%d, %+d\n", indent, pc, op, a, sbx)
		case layoutAx:
			ax := ins.Ax()
			fmt.Printf("%s%04d  %-10s %d\n", indent, pc, op, ax)
		default:
			a, b, c := ins.ABC()
			fmt.Printf("%s%04d  %-10s R%d, %d, %d\n", indent, pc, op, a, b, c)
		}
	}

	for i, lit := range ir.Pools {
		fmt.Printf("%s  pool[%d] = %s\n", indent, i, formatLiteral(lit))
	}
	for i, name := range ir.Syms {
		fmt.Printf("%s  sym[%d] = %s\n", indent, i, name)
	}
	for i, child := range ir.Reps {
		fmt.Printf("%s  child[%d]:\n", indent, i)
		printIREP(child, depth+2)
	}
}

func formatLiteral(lit irep.Literal) string {
	switch lit.Kind {
	case irep.LiteralFixnum:
		return fmt.Sprintf("fixnum %d", lit.Int)
	case irep.LiteralFloat:
		return fmt.Sprintf("float %g", lit.Float)
	case irep.LiteralString:
		return fmt.Sprintf("string %q", string(lit.Str))
	default:
		return "unknown"
	}
}
