package rpc

import (
	"github.com/stackmint/stackmint-core/internal/ledger"
	"github.com/stackmint/stackmint-core/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeInsufficient   = -32001
	CodeConflict       = -32002
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Token param/result types ────────────────────────────────────────────

// TokenRegisterParam is used by token_register.
type TokenRegisterParam struct {
	Ticker      string       `json:"ticker"`
	Name        string       `json:"name"`
	TotalSupply types.Amount `json:"total_supply"`
	Decimals    uint8        `json:"decimals"`
	Blockchain  string       `json:"blockchain"`
	PriceUsd    float64      `json:"price_usd"`
}

// TokenIDParam is used by endpoints that take a single token id.
type TokenIDParam struct {
	TokenID string `json:"token_id"`
}

// TokenListResult is returned by token_list.
type TokenListResult struct {
	Count  int            `json:"count"`
	Tokens []ledger.Token `json:"tokens"`
}

// ── Ledger param types ──────────────────────────────────────────────────

// BalanceParam is used by ledger_getBalance.
type BalanceParam struct {
	TokenID string `json:"token_id"`
	UserID  string `json:"user_id"`
}

// UserParam is used by endpoints that take only a user id.
type UserParam struct {
	UserID string `json:"user_id"`
}

// PortfolioParam is used by ledger_getPortfolio.
type PortfolioParam struct {
	UserID        string  `json:"user_id"`
	SecondaryRate float64 `json:"secondary_rate,omitempty"`
}

// HoldersParam is used by ledger_getHolders.
type HoldersParam struct {
	TokenID    string       `json:"token_id"`
	MinBalance types.Amount `json:"min_balance,omitempty"`
}

// RecordParam is used by ledger_recordTransaction.
type RecordParam struct {
	Type     string       `json:"type"`
	TokenID  string       `json:"token_id"`
	Amount   types.Amount `json:"amount"`
	FromUser string       `json:"from_user,omitempty"`
	ToUser   string       `json:"to_user,omitempty"`
	Address  string       `json:"address,omitempty"`
	Txid     string       `json:"txid,omitempty"`
	Verified bool         `json:"verified,omitempty"`
}

// PurchaseParam is used by ledger_recordPurchase.
type PurchaseParam struct {
	UserID        string       `json:"user_id"`
	TokenID       string       `json:"token_id"`
	Amount        types.Amount `json:"amount"`
	UsdValue      float64      `json:"usd_value"`
	PaymentMethod string       `json:"payment_method,omitempty"`
	Currency      string       `json:"currency,omitempty"`
	Txid          string       `json:"txid,omitempty"`
}

// TransferParam is used by ledger_transfer.
type TransferParam struct {
	FromUser string       `json:"from_user"`
	ToUser   string       `json:"to_user"`
	TokenID  string       `json:"token_id"`
	Amount   types.Amount `json:"amount"`
}

// WithdrawalRequestParam is used by withdrawal_request.
type WithdrawalRequestParam struct {
	UserID      string       `json:"user_id"`
	TokenID     string       `json:"token_id"`
	Amount      types.Amount `json:"amount"`
	Destination string       `json:"destination"`
	Blockchain  string       `json:"blockchain,omitempty"`
}

// WithdrawalResolveParam is used by withdrawal_confirm/reject/fail.
type WithdrawalResolveParam struct {
	ID     string `json:"id"`
	Txid   string `json:"txid,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// TransactionsParam is used by ledger_getTransactions.
type TransactionsParam struct {
	UserID  string   `json:"user_id,omitempty"`
	TokenID string   `json:"token_id,omitempty"`
	Types   []string `json:"types,omitempty"`
	After   string   `json:"after,omitempty"`  // RFC 3339
	Before  string   `json:"before,omitempty"` // RFC 3339
	Offset  int      `json:"offset,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// DividendsParam is used by ledger_getPendingDividends. The user reference
// may be an id or an email address.
type DividendsParam struct {
	User string `json:"user"`
}

// ── Ledger result types ─────────────────────────────────────────────────

// BalancesResult is returned by ledger_getBalances.
type BalancesResult struct {
	UserID   string           `json:"user_id"`
	Balances []ledger.Balance `json:"balances"`
}

// BalanceResult is returned by ledger_getBalance.
type BalanceResult struct {
	Balance   ledger.Balance `json:"balance"`
	Available types.Amount   `json:"available"`
}

// HoldersResult is returned by ledger_getHolders.
type HoldersResult struct {
	TokenID string          `json:"token_id"`
	Count   int             `json:"count"`
	Holders []ledger.Holder `json:"holders"`
}

// TransactionsResult is returned by ledger_getTransactions.
type TransactionsResult struct {
	Count   int             `json:"count"`
	Records []ledger.Record `json:"records"`
}

// DividendsResult is returned by ledger_getPendingDividends.
type DividendsResult struct {
	UserID  string                   `json:"user_id"`
	Pending []ledger.DividendPayment `json:"pending"`
}

// WithdrawalsResult is returned by withdrawal_listPending.
type WithdrawalsResult struct {
	Count    int                 `json:"count"`
	Requests []ledger.Withdrawal `json:"requests"`
}

// ── Payout builder param/result types ───────────────────────────────────

// PayoutUTXO is a spendable candidate supplied by the caller's wallet
// or indexer.
type PayoutUTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Value         uint64 `json:"value"`
	Script        string `json:"script,omitempty"` // hex
	Confirmations uint32 `json:"confirmations,omitempty"`
}

// PayoutOutput is one requested payment.
type PayoutOutput struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// PayoutBuildParam is used by payout_build.
type PayoutBuildParam struct {
	UTXOs         []PayoutUTXO   `json:"utxos"`
	Outputs       []PayoutOutput `json:"outputs"`
	ChangeAddress string         `json:"change_address,omitempty"`
	FeeRate       uint64         `json:"fee_rate,omitempty"`
	Strategy      string         `json:"strategy,omitempty"`
	Network       string         `json:"network,omitempty"`
	EnableRBF     bool           `json:"enable_rbf,omitempty"`
	OpReturnData  string         `json:"op_return_data,omitempty"` // hex
}

// PayoutBuildResult is returned by payout_build.
type PayoutBuildResult struct {
	Txid   string `json:"txid"`
	Raw    string `json:"raw"` // hex-encoded serialized transaction
	Size   int    `json:"size"`
	Fee    uint64 `json:"fee"`
	Change uint64 `json:"change"`
}

// ── Address/key tool param/result types ─────────────────────────────────

// AddressParam is used by address_validate.
type AddressParam struct {
	Address string `json:"address"`
}

// AddressValidateResult is returned by address_validate.
type AddressValidateResult struct {
	Valid      bool   `json:"valid"`
	Network    string `json:"network,omitempty"`
	ScriptHash bool   `json:"script_hash,omitempty"`
	Error      string `json:"error,omitempty"`
}
