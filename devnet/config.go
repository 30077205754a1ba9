package devnet

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
)

// DefaultGasLimit is the destination gas limit used when a destination does not set one.
const DefaultGasLimit = 200_000

// ErrInvalidConfig is returned when a topology file fails validation.
var ErrInvalidConfig = errors.New("invalid devnet config")

// Selector is a chain selector that decodes from a TOML string or integer.
// Real selectors exceed the int64 range of TOML integers and are written as strings.
type Selector interfaces.ChainSelector

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(text []byte) error {
	sel, err := interfaces.ParseChainSelector(string(text))
	if err != nil {
		return err
	}
	*s = Selector(sel)
	return nil
}

// ChainSelector converts to the interfaces type.
func (s Selector) ChainSelector() interfaces.ChainSelector {
	return interfaces.ChainSelector(s)
}

// Duration decodes from a Go duration string such as "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// NetworkConfig describes one chain of the devnet.
type NetworkConfig struct {
	Name     string         `toml:"name"`
	Selector Selector       `toml:"selector"`
	Router   common.Address `toml:"router"`
	// Stores are record store URIs for the chain's Lookup. Empty means in-memory.
	Stores []string `toml:"stores"`
}

// DestinationConfig is a destination chain plus the delivery settings the
// source Register enables it with.
type DestinationConfig struct {
	NetworkConfig
	Strict   bool   `toml:"strict"`
	GasLimit uint64 `toml:"gas_limit"`
}

// FeeConfig is the bridge fee schedule in the smallest native unit.
type FeeConfig struct {
	BaseFee  *big.Int `toml:"base_fee"`
	GasPrice *big.Int `toml:"gas_price"`
	ByteFee  *big.Int `toml:"byte_fee"`
}

// RelayerConfig controls background delivery.
type RelayerConfig struct {
	MaxAttempts uint     `toml:"max_attempts"`
	RetryDelay  Duration `toml:"retry_delay"`
	// Interval of the background relayer. Zero disables it; relay then only runs on request.
	Interval  Duration `toml:"interval"`
	Unordered bool     `toml:"unordered"`
}

// Allocation credits an account on the source chain at genesis.
type Allocation struct {
	Account common.Address `toml:"account"`
	Balance *big.Int       `toml:"balance"`
}

// Config is the devnet topology.
type Config struct {
	Deployer     common.Address      `toml:"deployer"`
	Suffix       string              `toml:"suffix"`
	Source       NetworkConfig       `toml:"source"`
	Destinations []DestinationConfig `toml:"destinations"`
	Fees         FeeConfig           `toml:"fees"`
	Relayer      RelayerConfig       `toml:"relayer"`
	Genesis      []Allocation        `toml:"genesis"`
}

// LoadConfig reads and validates a TOML topology file.
// Environment variables in store URIs are expanded.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidConfig, undecoded)
	}

	expand := func(uris []string) {
		for i := range uris {
			uris[i] = os.ExpandEnv(uris[i])
		}
	}
	expand(cfg.Source.Stores)
	for i := range cfg.Destinations {
		expand(cfg.Destinations[i].Stores)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the topology and fills in defaults.
func (c *Config) Validate() error {
	if c.Deployer == (common.Address{}) {
		return fmt.Errorf("%w: deployer is required", ErrInvalidConfig)
	}
	if c.Suffix == "" {
		c.Suffix = interfaces.DefaultNameSuffix
	}

	names := make(map[string]bool)
	selectors := make(map[Selector]bool)
	check := func(n NetworkConfig) error {
		if n.Name == "" {
			return fmt.Errorf("%w: network without a name", ErrInvalidConfig)
		}
		if n.Router == (common.Address{}) {
			return fmt.Errorf("%w: network %s has no router", ErrInvalidConfig, n.Name)
		}
		key := strings.ToLower(n.Name)
		if names[key] {
			return fmt.Errorf("%w: duplicate network %s", ErrInvalidConfig, n.Name)
		}
		if selectors[n.Selector] {
			return fmt.Errorf("%w: duplicate chain selector %d", ErrInvalidConfig, n.Selector)
		}
		names[key] = true
		selectors[n.Selector] = true
		return nil
	}

	if err := check(c.Source); err != nil {
		return err
	}
	for i := range c.Destinations {
		if err := check(c.Destinations[i].NetworkConfig); err != nil {
			return err
		}
		if c.Destinations[i].GasLimit == 0 {
			c.Destinations[i].GasLimit = DefaultGasLimit
		}
	}

	for _, alloc := range c.Genesis {
		if alloc.Balance == nil || alloc.Balance.Sign() <= 0 {
			return fmt.Errorf("%w: genesis balance of %s must be positive", ErrInvalidConfig, alloc.Account.Hex())
		}
	}
	return nil
}
