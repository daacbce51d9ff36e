// Package config holds the interpreter's build-time option set,
// reproduced as a runtime-loaded struct instead of C preprocessor
// defines.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the knob set of mruby/c's vm_config.h. UseFloat,
// UseString, UseMath, Require32Align and Debug are loaded and carried
// but not read by the VM: float and string support is always enabled.
type Config struct {
	MaxVMCount      int  `yaml:"max_vm_count"`
	MaxRegsSize     int  `yaml:"max_regs_size"`
	MaxSymbolsCount int  `yaml:"max_symbols_count"`
	UseFloat        bool `yaml:"use_float"`
	UseString       bool `yaml:"use_string"`
	UseMath         bool `yaml:"use_math"`
	LittleEndian    bool `yaml:"little_endian"`
	Require32Align  bool `yaml:"require_32bit_alignment"`
	Debug           bool `yaml:"debug"`

	// PoolBytes sizes the contiguous buffer handed to the fixed-pool
	// allocator. Not a vm_config.h knob (in C that buffer is a static
	// array sized by the firmware image); exposed here so a host
	// process can pick a budget at startup.
	PoolBytes int `yaml:"pool_bytes"`
}

// Default matches mruby/c's stock vm_config.h values.
func Default() Config {
	return Config{
		MaxVMCount:      5,
		MaxRegsSize:     100,
		MaxSymbolsCount: 300,
		UseFloat:        true,
		UseString:       true,
		UseMath:         false,
		LittleEndian:    true,
		Require32Align:  false,
		Debug:           false,
		PoolBytes:       64 * 1024,
	}
}

// Load reads a YAML configuration file, starting from Default() and
// overriding only the fields present in the file.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects option combinations the rest of the VM assumes
// cannot happen.
func (c Config) Validate() error {
	if c.MaxVMCount <= 0 || c.MaxVMCount > 1024 {
		return fmt.Errorf("config: max_vm_count must be in (0,1024], got %d", c.MaxVMCount)
	}
	if c.MaxRegsSize <= 0 {
		return fmt.Errorf("config: max_regs_size must be positive, got %d", c.MaxRegsSize)
	}
	if c.MaxSymbolsCount <= 0 {
		return fmt.Errorf("config: max_symbols_count must be positive, got %d", c.MaxSymbolsCount)
	}
	if c.PoolBytes <= 0 {
		return fmt.Errorf("config: pool_bytes must be positive, got %d", c.PoolBytes)
	}
	return nil
}
