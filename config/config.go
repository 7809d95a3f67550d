// Package config handles application configuration.
//
// All knobs are runtime settings passed explicitly to the components that
// need them; no component reads configuration from globals.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds service runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// RPC server
	RPC RPCConfig

	// Payout builder defaults
	Builder BuilderConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// BuilderConfig holds the payout builder's defaults. Per-request values
// in payout_build override these.
type BuilderConfig struct {
	Network       string  `conf:"builder.network"`
	FeeRate       uint64  `conf:"builder.feerate"` // satoshis per byte
	DustThreshold uint64  `conf:"builder.dust"`
	Strategy      string  `conf:"builder.strategy"`
	SecondaryRate float64 `conf:"builder.secondaryrate"` // USD -> secondary currency
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.stackmint
//	macOS:   ~/Library/Application Support/Stackmint
//	Windows: %APPDATA%\Stackmint
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stackmint"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Stackmint")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Stackmint")
		}
		return filepath.Join(home, "AppData", "Roaming", "Stackmint")
	default:
		return filepath.Join(home, ".stackmint")
	}
}

// LedgerDir returns the ledger database directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.DataDir, string(c.Network), "ledger")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "stackmint.conf")
}
