package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsExcessiveVMCount(t *testing.T) {
	c := Default()
	c.MaxVMCount = 2000
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.MaxRegsSize = 0 },
		func(c *Config) { c.MaxSymbolsCount = -1 },
		func(c *Config) { c.PoolBytes = 0 },
	}
	for _, mutate := range cases {
		c := Default()
		mutate(&c)
		assert.Error(t, c.Validate())
	}
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_vm_count: 2\nuse_math: true\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, c.MaxVMCount)
	assert.True(t, c.UseMath)
	// fields absent from the file keep Default()'s values
	assert.Equal(t, Default().MaxSymbolsCount, c.MaxSymbolsCount)
	assert.Equal(t, Default().PoolBytes, c.PoolBytes)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
