package config

import "fmt"

// validStrategies are the accepted coin selection strategy names.
var validStrategies = map[string]bool{
	"largest_first":  true,
	"smallest_first": true,
	"oldest_first":   true,
	"random":         true,
}

// Validate checks the configuration for obvious mistakes before startup.
func (c *Config) Validate() error {
	switch c.Network {
	case Mainnet, Testnet:
	default:
		return fmt.Errorf("invalid network %q (want mainnet or testnet)", c.Network)
	}

	if c.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}

	if c.RPC.Enabled {
		if c.RPC.Port < 1 || c.RPC.Port > 65535 {
			return fmt.Errorf("invalid rpc.port %d", c.RPC.Port)
		}
	}

	switch c.Builder.Network {
	case string(Mainnet), string(Testnet), "":
	default:
		return fmt.Errorf("invalid builder.network %q", c.Builder.Network)
	}
	if c.Builder.Strategy != "" && !validStrategies[c.Builder.Strategy] {
		return fmt.Errorf("invalid builder.strategy %q", c.Builder.Strategy)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}

	return nil
}
