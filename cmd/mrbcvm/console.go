package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/tinyrb/mrbcvm/internal/irep/loader"
	"github.com/tinyrb/mrbcvm/internal/vm"
)

// consoleCommand is an interactive single-step debugger over a loaded
// IREP file: step opcodes one at a time, inspect registers, and watch
// allocator pressure as the script runs. Commands stand in for source
// statements, since there is no compiler front end here to feed a REPL
// with fresh source each line.
var consoleCommand = &cli.Command{
	Name:      "console",
	Usage:     "Interactively single-step an IREP bytecode file",
	ArgsUsage: "<file.mrb>",
	Flags:     configFlags,
	Action:    consoleAction,
}

func consoleAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("console: missing bytecode file argument")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	root, err := loader.Load(f, cfg.LittleEndian)
	f.Close()
	if err != nil {
		return fmt.Errorf("console: load %s: %w", path, err)
	}

	rt, err := vm.NewRuntime(cfg)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	v, err := vm.Open(rt, nil)
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	defer v.Close()
	if err := v.Begin(root); err != nil {
		return fmt.Errorf("console: %w", err)
	}

	prompt := "mrbcvm> "
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		prompt = ""
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("console: %w", err)
	}
	defer rl.Close()

	fmt.Println("mrbcvm console. Commands: step [n], run, regs [n], stats, quit")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if handleConsoleLine(v, strings.TrimSpace(line)) {
			return nil
		}
	}
}

// handleConsoleLine executes one console command, returning true when
// the session should end.
func handleConsoleLine(v *vm.VM, line string) bool {
	if line == "" {
		return false
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "quit", "exit":
		return true
	case "step":
		n := 1
		if len(fields) > 1 {
			if parsed, err := strconv.Atoi(fields[1]); err == nil {
				n = parsed
			}
		}
		if err := v.RunSlice(n); err != nil {
			fmt.Println("error:", err)
		}
	case "run":
		for !v.Halted() {
			if err := v.RunSlice(1000); err != nil {
				fmt.Println("error:", err)
				break
			}
		}
	case "regs":
		n := 8
		if len(fields) > 1 {
			if parsed, err := strconv.Atoi(fields[1]); err == nil {
				n = parsed
			}
		}
		for i := 0; i < n; i++ {
			fmt.Printf("R%d = %v\n", i, v.R(i))
		}
	case "stats":
		st := v.Heap().Pool().Statistics()
		fmt.Printf("pool: used %s / total %s (%d live cells, %d free blocks)\n",
			humanize.Bytes(uint64(st.Used)), humanize.Bytes(uint64(st.Total)), st.LiveCells, st.Fragment)
	case "halted":
		fmt.Println(v.Halted())
	default:
		fmt.Println("unknown command:", fields[0])
	}
	return false
}
