package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsNonPositiveRevealTimeout(t *testing.T) {
	cfg := &Config{RevealTimeout: 0, SettleTimeout: 100, ConfirmationBlocks: 1}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeConfirmationBlocks(t *testing.T) {
	cfg := &Config{RevealTimeout: 10, SettleTimeout: 100, ConfirmationBlocks: -1}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsInsufficientSettleTimeoutMargin(t *testing.T) {
	cfg := &Config{RevealTimeout: 10, SettleTimeout: 20, ConfirmationBlocks: 1}
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsConsistentConfig(t *testing.T) {
	cfg := &Config{RevealTimeout: 10, SettleTimeout: 600, ConfirmationBlocks: 6}
	require.NoError(t, cfg.Validate())
}

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, int64(10), cfg.RevealTimeout)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadRejectsInvalidExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RevealTimeout = 5\nSettleTimeout = 5\nConfirmationBlocks = 1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
