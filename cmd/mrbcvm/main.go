// Command mrbcvm runs pre-compiled IREP bytecode files against the
// register VM of package vm: a urfave/cli/v3 root command with verb
// subcommands and flags layered over an optional config file. There is
// no compiler front end here; every subcommand consumes bytecode that
// was compiled elsewhere.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tinyrb/mrbcvm/internal/config"
	"github.com/tinyrb/mrbcvm/version"
)

func main() {
	app := &cli.Command{
		Name:  "mrbcvm",
		Usage: "Run compiled IREP bytecode on a tagged-value register VM",
		Commands: []*cli.Command{
			runCommand,
			disasmCommand,
			consoleCommand,
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "version", Aliases: []string{"v"}, Usage: "Show version", Action: func(ctx context.Context, cmd *cli.Command, b bool) error {
				fmt.Println(version.Version())
				return nil
			}},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig applies --config, then flag overrides, on top of
// config.Default().
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if cmd.IsSet("max-vms") {
		cfg.MaxVMCount = cmd.Int("max-vms")
	}
	if cmd.IsSet("max-regs") {
		cfg.MaxRegsSize = cmd.Int("max-regs")
	}
	if cmd.IsSet("max-symbols") {
		cfg.MaxSymbolsCount = cmd.Int("max-symbols")
	}
	if cmd.IsSet("pool-bytes") {
		cfg.PoolBytes = cmd.Int("pool-bytes")
	}
	if cmd.IsSet("use-float") {
		cfg.UseFloat = cmd.Bool("use-float")
	}
	if cmd.IsSet("use-string") {
		cfg.UseString = cmd.Bool("use-string")
	}
	if cmd.IsSet("little-endian") {
		cfg.LittleEndian = cmd.Bool("little-endian")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var configFlags = []cli.Flag{
	&cli.StringFlag{Name: "config", Usage: "Path to a YAML config file (internal/config.Config)"},
	&cli.IntFlag{Name: "max-vms", Usage: "Override max_vm_count"},
	&cli.IntFlag{Name: "max-regs", Usage: "Override max_regs_size"},
	&cli.IntFlag{Name: "max-symbols", Usage: "Override max_symbols_count"},
	&cli.IntFlag{Name: "pool-bytes", Usage: "Override the allocator's byte budget"},
	&cli.BoolFlag{Name: "use-float", Usage: "Set use_float in the config (recorded only; FLOAT opcodes are always enabled)"},
	&cli.BoolFlag{Name: "use-string", Usage: "Set use_string in the config (recorded only; STRING/STRCAT opcodes are always enabled)"},
	&cli.BoolFlag{Name: "little-endian", Usage: "Decode IREP files as little-endian"},
}
