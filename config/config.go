// Package config loads the environment options the core consumes
// (spec.md §6): reveal_timeout, settle_timeout, confirmation_blocks.
// Modeled on josephblackelite-nhbchain/config/config.go's
// Load/createDefault shape, backed by TOML.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the environment options consumed by the core's transition
// functions (spec.md §6).
type Config struct {
	RevealTimeout      int64 `toml:"RevealTimeout"`
	SettleTimeout      int64 `toml:"SettleTimeout"`
	ConfirmationBlocks int64 `toml:"ConfirmationBlocks"`
}

// Validate enforces the §6 relationship lock.expiration < settle_timeout is
// even reachable: reveal_timeout must leave room under settle_timeout.
func (c *Config) Validate() error {
	if c.RevealTimeout <= 0 {
		return fmt.Errorf("config: reveal_timeout must be positive, got %d", c.RevealTimeout)
	}
	if c.ConfirmationBlocks < 0 {
		return fmt.Errorf("config: confirmation_blocks must not be negative, got %d", c.ConfirmationBlocks)
	}
	if c.SettleTimeout <= 2*c.RevealTimeout {
		return fmt.Errorf("config: settle_timeout (%d) must exceed 2*reveal_timeout (%d)", c.SettleTimeout, 2*c.RevealTimeout)
	}
	return nil
}

// Load loads the configuration from path, writing a default file on first run.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RevealTimeout:      10,
		SettleTimeout:      600,
		ConfirmationBlocks: 6,
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
