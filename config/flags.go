package config

import (
	"flag"
	"fmt"
	"os"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string

	// Builder
	FeeRate       uint64
	DustThreshold uint64
	Strategy      string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetRPC     bool
	SetLogJSON bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("stackmintd", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable the RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Comma-separated allowed RPC client IPs/CIDRs")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Comma-separated allowed CORS origins")

	// Builder
	fs.Uint64Var(&f.FeeRate, "fee-rate", 0, "Payout fee rate (satoshis/byte)")
	fs.Uint64Var(&f.DustThreshold, "dust", 0, "Payout dust threshold")
	fs.StringVar(&f.Strategy, "strategy", "", "Coin selection strategy")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Log in JSON format")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "flag error: %v\n", err)
		os.Exit(2)
	}
	f.Args = fs.Args()

	// Track which bool flags were set explicitly so "false" can override
	// a "true" in the config file.
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "rpc":
			f.SetRPC = true
		case "log-json":
			f.SetLogJSON = true
		}
	})

	return f
}

// ApplyFlags overrides config values with explicitly-set flags.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = parseStringList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = parseStringList(f.RPCCORS)
	}
	if f.FeeRate != 0 {
		cfg.Builder.FeeRate = f.FeeRate
	}
	if f.DustThreshold != 0 {
		cfg.Builder.DustThreshold = f.DustThreshold
	}
	if f.Strategy != "" {
		cfg.Builder.Strategy = f.Strategy
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}
