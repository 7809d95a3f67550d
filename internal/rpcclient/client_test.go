package rpcclient

import (
	"errors"
	"testing"

	"github.com/stackmint/stackmint-core/config"
	"github.com/stackmint/stackmint-core/internal/ledger"
	"github.com/stackmint/stackmint-core/internal/rpc"
	"github.com/stackmint/stackmint-core/internal/storage"
	"github.com/stackmint/stackmint-core/pkg/types"
)

// setupTestEnv boots a full server on an ephemeral port and returns a
// client pointed at it.
func setupTestEnv(t *testing.T) *Client {
	t.Helper()

	l := ledger.New(storage.NewMemory())
	s := rpc.New("127.0.0.1:0", l, config.BuilderConfig{Network: "mainnet"})
	if err := s.Start(); err != nil {
		t.Fatalf("start rpc server: %v", err)
	}
	t.Cleanup(func() { s.Stop() })

	return New("http://" + s.Addr())
}

func TestCallRoundTrip(t *testing.T) {
	client := setupTestEnv(t)

	supply, err := types.ParseAmount("1000000")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}

	var tok ledger.Token
	err = client.Call("token_register", rpc.TokenRegisterParam{
		Ticker:      "STK",
		Name:        "Stackmint Token",
		TotalSupply: supply,
	}, &tok)
	if err != nil {
		t.Fatalf("token_register: %v", err)
	}
	if tok.ID == "" {
		t.Fatal("empty token id")
	}

	var pur ledger.Purchase
	err = client.Call("ledger_recordPurchase", rpc.PurchaseParam{
		UserID:   "u1",
		TokenID:  tok.ID,
		Amount:   amount(t, "1000"),
		UsdValue: 10,
	}, &pur)
	if err != nil {
		t.Fatalf("ledger_recordPurchase: %v", err)
	}

	var bal rpc.BalanceResult
	err = client.Call("ledger_getBalance", rpc.BalanceParam{TokenID: tok.ID, UserID: "u1"}, &bal)
	if err != nil {
		t.Fatalf("ledger_getBalance: %v", err)
	}
	if bal.Balance.Balance.String() != "1000" {
		t.Errorf("balance = %s, want 1000", bal.Balance.Balance)
	}
}

func TestCallServerError(t *testing.T) {
	client := setupTestEnv(t)

	err := client.Call("token_getInfo", rpc.TokenIDParam{TokenID: "missing"}, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("err = %v, want *RPCError", err)
	}
	if rpcErr.Code != rpc.CodeNotFound {
		t.Errorf("code = %d, want %d", rpcErr.Code, rpc.CodeNotFound)
	}
}

func TestCallConnectionRefused(t *testing.T) {
	client := New("http://127.0.0.1:1")
	if err := client.Call("token_list", nil, nil); err == nil {
		t.Fatal("expected a transport error")
	}
}

func amount(t *testing.T, s string) types.Amount {
	t.Helper()
	a, err := types.ParseAmount(s)
	if err != nil {
		t.Fatalf("parse amount %q: %v", s, err)
	}
	return a
}
