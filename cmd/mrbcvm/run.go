package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tinyrb/mrbcvm/internal/irep/loader"
	"github.com/tinyrb/mrbcvm/internal/vm"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Load an IREP bytecode file and run it to completion",
	ArgsUsage: "<file.mrb>",
	Flags:     append([]cli.Flag{&cli.IntFlag{Name: "slice", Value: 100000, Usage: "Opcodes per RunSlice step"}}, configFlags...),
	Action:    runAction,
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("run: missing bytecode file argument")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer f.Close()

	root, err := loader.Load(f, cfg.LittleEndian)
	if err != nil {
		return fmt.Errorf("run: load %s: %w", path, err)
	}

	rt, err := vm.NewRuntime(cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	v, err := vm.Open(rt, nil)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer v.Close()

	if err := v.Begin(root); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	slice := cmd.Int("slice")
	for !v.Halted() {
		if err := v.RunSlice(slice); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	return nil
}
