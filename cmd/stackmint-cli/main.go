// stackmint-cli is a command-line client for a stackmintd service, plus a
// few offline tools for payout construction and key inspection.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/stackmint/stackmint-core/internal/rpc"
	"github.com/stackmint/stackmint-core/internal/rpcclient"
	"github.com/stackmint/stackmint-core/pkg/crypto"
	"github.com/stackmint/stackmint-core/pkg/keys"
	"github.com/stackmint/stackmint-core/pkg/tx"
	"github.com/stackmint/stackmint-core/pkg/types"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	rpcURL := "http://127.0.0.1:8590"
	if v := os.Getenv("STACKMINT_RPC_URL"); v != "" {
		rpcURL = v
	}
	network := "mainnet"

	// Scan for --rpc and --network before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "tokens":
		cmdTokens(client)
	case "register-token":
		cmdRegisterToken(client, cmdArgs)
	case "balance":
		cmdBalance(client, cmdArgs)
	case "holders":
		cmdHolders(client, cmdArgs)
	case "transactions":
		cmdTransactions(client, cmdArgs)
	case "withdrawals":
		cmdWithdrawals(client)
	case "confirm-withdrawal":
		cmdResolveWithdrawal(client, "withdrawal_confirm", cmdArgs)
	case "reject-withdrawal":
		cmdResolveWithdrawal(client, "withdrawal_reject", cmdArgs)
	case "build-payout":
		cmdBuildPayout(cmdArgs, network)
	case "wif":
		cmdWIF(cmdArgs)
	case "addr":
		cmdAddr(cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`stackmint-cli - stackmintd client and offline payout tools

Usage:
  stackmint-cli [--rpc <url>] [--network <name>] <command> [args]

Service commands:
  tokens                                List registered tokens
  register-token <ticker> <name> <supply> [price-usd]
  balance <token-id> <user-id>          Show a user's balance
  holders <token-id> [min-balance]      Show a token's cap table
  transactions [user-id]                Show the transaction log
  withdrawals                           List pending withdrawals
  confirm-withdrawal <id> <txid>        Confirm a pending withdrawal
  reject-withdrawal <id> <reason>       Reject a pending withdrawal

Offline tools:
  build-payout --utxos <file.json> --to <addr:amount> [--to ...]
               [--change <addr>] [--fee-rate <n>] [--strategy <name>] [--rbf]
  wif <wif>                             Inspect a WIF private key
  addr <address>                        Validate an address
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(data))
}

func cmdTokens(client *rpcclient.Client) {
	var res rpc.TokenListResult
	if err := client.Call("token_list", struct{}{}, &res); err != nil {
		fatal(err)
	}
	printJSON(res)
}

func cmdRegisterToken(client *rpcclient.Client, args []string) {
	if len(args) < 3 {
		fatal(fmt.Errorf("usage: register-token <ticker> <name> <supply> [price-usd]"))
	}
	supply, err := types.ParseAmount(args[2])
	if err != nil {
		fatal(err)
	}
	priceUsd := 0.0
	if len(args) > 3 {
		priceUsd, err = strconv.ParseFloat(args[3], 64)
		if err != nil {
			fatal(fmt.Errorf("invalid price: %w", err))
		}
	}

	var res json.RawMessage
	err = client.Call("token_register", rpc.TokenRegisterParam{
		Ticker:      args[0],
		Name:        args[1],
		TotalSupply: supply,
		PriceUsd:    priceUsd,
	}, &res)
	if err != nil {
		fatal(err)
	}
	printJSON(res)
}

func cmdBalance(client *rpcclient.Client, args []string) {
	if len(args) != 2 {
		fatal(fmt.Errorf("usage: balance <token-id> <user-id>"))
	}
	var res rpc.BalanceResult
	if err := client.Call("ledger_getBalance", rpc.BalanceParam{TokenID: args[0], UserID: args[1]}, &res); err != nil {
		fatal(err)
	}
	printJSON(res)
}

func cmdHolders(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal(fmt.Errorf("usage: holders <token-id> [min-balance]"))
	}
	p := rpc.HoldersParam{TokenID: args[0]}
	if len(args) > 1 {
		min, err := types.ParseAmount(args[1])
		if err != nil {
			fatal(err)
		}
		p.MinBalance = min
	}
	var res rpc.HoldersResult
	if err := client.Call("ledger_getHolders", p, &res); err != nil {
		fatal(err)
	}
	printJSON(res)
}

func cmdTransactions(client *rpcclient.Client, args []string) {
	p := rpc.TransactionsParam{Limit: 50}
	if len(args) > 0 {
		p.UserID = args[0]
	}
	var res rpc.TransactionsResult
	if err := client.Call("ledger_getTransactions", p, &res); err != nil {
		fatal(err)
	}
	printJSON(res)
}

func cmdWithdrawals(client *rpcclient.Client) {
	var res rpc.WithdrawalsResult
	if err := client.Call("withdrawal_listPending", struct{}{}, &res); err != nil {
		fatal(err)
	}
	printJSON(res)
}

func cmdResolveWithdrawal(client *rpcclient.Client, method string, args []string) {
	if len(args) != 2 {
		fatal(fmt.Errorf("usage: %s <id> <txid-or-reason>", strings.TrimPrefix(method, "withdrawal_")))
	}
	p := rpc.WithdrawalResolveParam{ID: args[0]}
	if method == "withdrawal_confirm" {
		p.Txid = args[1]
	} else {
		p.Reason = args[1]
	}
	var res json.RawMessage
	if err := client.Call(method, p, &res); err != nil {
		fatal(err)
	}
	printJSON(res)
}

// utxoFile is the on-disk format build-payout reads, the shape wallet
// indexers commonly export.
type utxoFile struct {
	UTXOs []rpc.PayoutUTXO `json:"utxos"`
}

func cmdBuildPayout(args []string, network string) {
	fs := flag.NewFlagSet("build-payout", flag.ExitOnError)
	utxoPath := fs.String("utxos", "", "Path to UTXO JSON file")
	change := fs.String("change", "", "Change address")
	feeRate := fs.Uint64("fee-rate", 0, "Fee rate in satoshis/byte")
	strategy := fs.String("strategy", "", "Coin selection strategy")
	rbf := fs.Bool("rbf", false, "Signal replace-by-fee")
	var toFlags multiFlag
	fs.Var(&toFlags, "to", "Output as addr:amount (repeatable)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	if *utxoPath == "" || len(toFlags) == 0 {
		fatal(fmt.Errorf("build-payout requires --utxos and at least one --to"))
	}

	data, err := os.ReadFile(*utxoPath)
	if err != nil {
		fatal(err)
	}
	var file utxoFile
	if err := json.Unmarshal(data, &file); err != nil {
		// Also accept a bare JSON array.
		if err2 := json.Unmarshal(data, &file.UTXOs); err2 != nil {
			fatal(fmt.Errorf("parse %s: %w", *utxoPath, err))
		}
	}
	if len(file.UTXOs) == 0 {
		fatal(fmt.Errorf("no utxos in %s", *utxoPath))
	}

	net, err := types.NetworkByName(network)
	if err != nil {
		fatal(err)
	}
	b := tx.NewBuilder(tx.Options{
		Network:       net,
		FeeRate:       *feeRate,
		Strategy:      tx.Strategy(*strategy),
		ChangeAddress: *change,
		EnableRBF:     *rbf,
	})

	for _, u := range file.UTXOs {
		txid, err := types.HexToHash(u.TxID)
		if err != nil {
			fatal(fmt.Errorf("utxo txid %q: %w", u.TxID, err))
		}
		var script []byte
		if u.Script != "" {
			script, err = hex.DecodeString(u.Script)
			if err != nil {
				fatal(fmt.Errorf("utxo script: %w", err))
			}
		}
		b.AddUTXO(tx.UTXO{
			TxID:          txid,
			Vout:          u.Vout,
			Value:         u.Value,
			Script:        script,
			Confirmations: uint64(u.Confirmations),
		})
	}

	for _, spec := range toFlags {
		addr, amtStr, ok := strings.Cut(spec, ":")
		if !ok {
			fatal(fmt.Errorf("invalid --to %q (want addr:amount)", spec))
		}
		amt, err := strconv.ParseUint(amtStr, 10, 64)
		if err != nil {
			fatal(fmt.Errorf("invalid amount in %q: %w", spec, err))
		}
		if err := b.AddP2PKHOutput(addr, amt); err != nil {
			fatal(err)
		}
	}

	built, err := b.Build()
	if err != nil {
		fatal(err)
	}

	printJSON(rpc.PayoutBuildResult{
		Txid:   built.TxID.String(),
		Raw:    hex.EncodeToString(built.Raw),
		Size:   built.Size,
		Fee:    built.Fee,
		Change: built.Change,
	})
}

func cmdWIF(args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: wif <wif>"))
	}
	priv, compressed, version, err := keys.DecodeWIF(args[0])
	if err != nil {
		fatal(err)
	}
	crypto.SecureZero(priv)

	netName := "unknown"
	switch version {
	case types.Mainnet.WIFVersion:
		netName = types.Mainnet.Name
	case types.Testnet.WIFVersion:
		netName = types.Testnet.Name
	}

	addr, err := keys.AddressFromWIF(args[0])
	if err != nil {
		fatal(err)
	}
	printJSON(map[string]interface{}{
		"network":    netName,
		"compressed": compressed,
		"address":    addr.String(),
	})
}

func cmdAddr(args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: addr <address>"))
	}
	addr, err := types.DecodeAddress(args[0])
	if err != nil {
		fatal(err)
	}
	out := map[string]interface{}{
		"valid":   true,
		"version": addr.Version,
		"hash160": hex.EncodeToString(addr.Hash[:]),
	}
	for _, net := range []types.Network{types.Mainnet, types.Testnet} {
		if net.IsAddressVersion(addr.Version) {
			out["network"] = net.Name
			out["script_hash"] = addr.Version == net.ScriptHashVersion
			break
		}
	}
	printJSON(out)
}

// multiFlag collects repeated flag values.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
