package api

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/ledger"
	"github.com/govm-net/vmhost/logging"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/wasi"
)

// DefaultProtocolVersion is the host interface version this build implements.
const DefaultProtocolVersion = 22

// Config configures a VM.
type Config struct {
	// NetworkPassphrase identifies the network; its sha256 is the network id
	// mixed into signatures and contract ids.
	NetworkPassphrase string       `yaml:"network_passphrase"`
	Ledger            LedgerConfig `yaml:"ledger"`
	// MaxCallDepth bounds nested contract calls.
	MaxCallDepth int `yaml:"max_call_depth"`
	// MaxCodeSize bounds uploaded contract code in bytes.
	MaxCodeSize uint64         `yaml:"max_code_size"`
	Debug       bool           `yaml:"debug"`
	Limits      budget.Limits  `yaml:"limits"`
	Wasm        wasi.Config    `yaml:"wasm"`
	Log         logging.Config `yaml:"log"`
}

// LedgerConfig selects the ledger backend and the ledger parameters
// invocations run against.
type LedgerConfig struct {
	Backend ledger.BackendType `yaml:"backend"`
	// Path is the database file or directory of persistent backends.
	Path             string `yaml:"path"`
	types.LedgerInfo `yaml:",inline"`
}

// DefaultConfig returns a configuration for a local in-memory ledger.
func DefaultConfig() Config {
	return Config{
		NetworkPassphrase: "Local Contract Network",
		Ledger: LedgerConfig{
			Backend: ledger.MemoryBackend,
			LedgerInfo: types.LedgerInfo{
				ProtocolVersion:  DefaultProtocolVersion,
				Sequence:         1,
				MinTemporaryTTL:  16,
				MinPersistentTTL: 4096,
				MaxEntryTTL:      6_312_000,
				MaxTemporaryTTL:  535_680,
				MaxPersistentTTL: 6_311_999,
				MaxInstanceSize:  64 * 1024,
			},
		},
		MaxCallDepth: 20,
		MaxCodeSize:  128 * 1024,
		Limits:       budget.DefaultLimits(),
		Wasm:         wasi.DefaultConfig(),
		Log:          logging.DefaultConfig(),
	}
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks the configuration for values the host cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.NetworkPassphrase == "":
		return fmt.Errorf("%w: network passphrase is empty", ErrInvalidConfig)
	case c.MaxCallDepth <= 0:
		return fmt.Errorf("%w: invalid max call depth %d", ErrInvalidConfig, c.MaxCallDepth)
	case c.MaxCodeSize == 0:
		return fmt.Errorf("%w: invalid max code size %d", ErrInvalidConfig, c.MaxCodeSize)
	case c.Ledger.ProtocolVersion == 0:
		return fmt.Errorf("%w: protocol version is zero", ErrInvalidConfig)
	case c.Ledger.MinTemporaryTTL == 0 || c.Ledger.MinPersistentTTL == 0:
		return fmt.Errorf("%w: minimum TTLs must be positive", ErrInvalidConfig)
	case c.Ledger.MaxEntryTTL < c.Ledger.MinPersistentTTL || c.Ledger.MaxEntryTTL < c.Ledger.MinTemporaryTTL:
		return fmt.Errorf("%w: max entry TTL %d is below a minimum TTL", ErrInvalidConfig, c.Ledger.MaxEntryTTL)
	case c.Ledger.MaxTemporaryTTL != 0 && c.Ledger.MaxTemporaryTTL < c.Ledger.MinTemporaryTTL,
		c.Ledger.MaxPersistentTTL != 0 && c.Ledger.MaxPersistentTTL < c.Ledger.MinPersistentTTL:
		return fmt.Errorf("%w: a durability maximum TTL is below its minimum", ErrInvalidConfig)
	case c.Ledger.Backend != ledger.MemoryBackend && c.Ledger.Path == "":
		return fmt.Errorf("%w: %s ledger needs a path", ErrInvalidConfig, c.Ledger.Backend)
	}
	if c.Limits.CPUInstructions == 0 || c.Limits.MemoryBytes == 0 {
		return fmt.Errorf("%w: cpu and memory limits must be positive", ErrInvalidConfig)
	}
	return nil
}

// NetworkID is the sha256 of the network passphrase.
func (c *Config) NetworkID() types.Hash {
	return sha256.Sum256([]byte(c.NetworkPassphrase))
}

// LedgerInfo returns the ledger parameters with the network id filled in.
func (c *Config) LedgerInfo() types.LedgerInfo {
	info := c.Ledger.LedgerInfo
	info.NetworkID = c.NetworkID()
	return info
}

// LedgerParams are the parameters passed to the ledger backend constructor.
func (c *Config) LedgerParams() map[string]any {
	return map[string]any{"db_path": c.Ledger.Path}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
