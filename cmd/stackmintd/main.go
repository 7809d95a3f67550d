// Stackmint service daemon: token ledger plus payout construction over
// JSON-RPC.
//
// Usage:
//
//	stackmintd [--network=testnet --rpc-port=8690 ...]  Run the service
//	stackmintd --help                                   Show help
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/stackmint/stackmint-core/config"
	"github.com/stackmint/stackmint-core/internal/ledger"
	"github.com/stackmint/stackmint-core/internal/log"
	"github.com/stackmint/stackmint-core/internal/rpc"
	"github.com/stackmint/stackmint-core/internal/storage"
)

func main() {
	// Local .env overrides are optional; a missing file is fine.
	_ = godotenv.Load()

	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logging: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("network", string(cfg.Network)).
		Str("datadir", cfg.DataDir).
		Msg("starting stackmintd")

	db, err := storage.NewBadger(cfg.LedgerDir())
	if err != nil {
		log.Fatal().Err(err).Msg("open ledger database")
	}
	defer db.Close()

	l := ledger.New(db)

	var server *rpc.Server
	if cfg.RPC.Enabled {
		addr := net.JoinHostPort(cfg.RPC.Addr, strconv.Itoa(cfg.RPC.Port))
		server = rpc.New(addr, l, cfg.Builder, cfg.RPC)
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("start rpc server")
		}
		log.Info().Str("addr", server.Addr()).Msg("rpc server listening")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	if server != nil {
		if err := server.Stop(); err != nil {
			log.Error().Err(err).Msg("rpc shutdown")
		}
	}
}
