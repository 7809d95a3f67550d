package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Load assembles the configuration from defaults, the config file,
// environment variables, and finally command-line flags (highest
// precedence).
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	// Handle help/version
	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("stackmintd version 0.1.0")
		os.Exit(0)
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == "testnet" || os.Getenv("STACKMINT_NETWORK") == "testnet" {
		network = Testnet
	}

	// Start with defaults
	cfg := Default(network)

	// Override datadir if specified
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	// Determine config file path
	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyEnv(cfg)

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// ApplyEnv overrides config values from STACKMINT_* environment variables.
// The binary loads a .env file before calling this, so both real env vars
// and .env entries land here.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("STACKMINT_NETWORK"); v != "" {
		cfg.Network = NetworkType(v)
	}
	if v := os.Getenv("STACKMINT_DATADIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("STACKMINT_RPC_ADDR"); v != "" {
		cfg.RPC.Addr = v
	}
	if v := os.Getenv("STACKMINT_RPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.RPC.Port = port
		}
	}
	if v := os.Getenv("STACKMINT_FEE_RATE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Builder.FeeRate = n
		}
	}
	if v := os.Getenv("STACKMINT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Idempotent, safe to call on every
// startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.LedgerDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	// Create default config if it doesn't exist.
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}

func printUsage() {
	fmt.Print(`stackmintd - token ledger and payout construction service

Usage:
  stackmintd [flags]

Flags:
  --network <name>      Network type: mainnet or testnet
  --datadir <path>      Data directory
  --config <path>       Config file path
  --rpc=<bool>          Enable the RPC server (default true)
  --rpc-addr <addr>     RPC listen address
  --rpc-port <port>     RPC listen port
  --rpc-allowed <list>  Comma-separated allowed client IPs/CIDRs
  --rpc-cors <list>     Comma-separated allowed CORS origins
  --fee-rate <n>        Payout fee rate in satoshis/byte
  --dust <n>            Payout dust threshold
  --strategy <name>     Coin selection strategy
  --log-level <level>   debug, info, warn, error
  --log-file <path>     Log file path
  --log-json            Log in JSON format
  --version             Show version
  --help                Show this help
`)
}
