package ledger

import (
	"time"

	"github.com/stackmint/stackmint-core/pkg/types"
)

// RecordType classifies a transaction record.
type RecordType string

// Record types. A record's type determines which balance deltas it carries.
const (
	TypePurchase    RecordType = "purchase"
	TypeSale        RecordType = "sale"
	TypeTransferIn  RecordType = "transfer_in"
	TypeTransferOut RecordType = "transfer_out"
	TypeDeposit     RecordType = "deposit"
	TypeWithdrawal  RecordType = "withdrawal"
	TypeAirdrop     RecordType = "airdrop"
	TypeMint        RecordType = "mint"
	TypeBurn        RecordType = "burn"
)

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	switch t {
	case TypePurchase, TypeSale, TypeTransferIn, TypeTransferOut,
		TypeDeposit, TypeWithdrawal, TypeAirdrop, TypeMint, TypeBurn:
		return true
	}
	return false
}

// WithdrawalStatus is the lifecycle state of a withdrawal request.
// Pending is the only non-terminal state.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalConfirmed WithdrawalStatus = "confirmed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

// Token is a registered token and its supply accounting.
type Token struct {
	ID              string       `json:"id"`
	Ticker          string       `json:"ticker"`
	Name            string       `json:"name"`
	TotalSupply     types.Amount `json:"totalSupply"`
	Decimals        uint8        `json:"decimals"`
	Blockchain      string       `json:"blockchain"`
	PriceUsd        float64      `json:"priceUsd"`
	TokensSold      types.Amount `json:"tokensSold"`
	TokensAvailable types.Amount `json:"tokensAvailable"`
	TreasuryBalance float64      `json:"treasuryBalance"`
	DeployTxid      string       `json:"deployTxid,omitempty"`
	IsDeployed      bool         `json:"isDeployed"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// Balance is one user's position in one token. Created on first credit,
// never deleted.
type Balance struct {
	UserID           string       `json:"userId"`
	TokenID          string       `json:"tokenId"`
	Balance          types.Amount `json:"balance"`
	TotalPurchased   types.Amount `json:"totalPurchased"`
	TotalReceived    types.Amount `json:"totalReceived"`
	TotalSent        types.Amount `json:"totalSent"`
	TotalWithdrawn   types.Amount `json:"totalWithdrawn"`
	AverageBuyPrice  float64      `json:"averageBuyPrice"`
	TotalInvestedUsd float64      `json:"totalInvestedUsd"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// Record is an immutable, append-only transaction log entry. Every balance
// mutation writes exactly one record in the same unit of work.
type Record struct {
	ID        string       `json:"id"`
	Type      RecordType   `json:"type"`
	TokenID   string       `json:"tokenId"`
	Amount    types.Amount `json:"amount"`
	FromUser  string       `json:"fromUser,omitempty"`
	ToUser    string       `json:"toUser,omitempty"`
	Address   string       `json:"address,omitempty"`
	Txid      string       `json:"txid,omitempty"`
	Verified  bool         `json:"verified"`
	Timestamp time.Time    `json:"timestamp"`
}

// Purchase is a primary-market sale out of the token's available supply.
type Purchase struct {
	ID            string       `json:"id"`
	UserID        string       `json:"userId"`
	TokenID       string       `json:"tokenId"`
	Amount        types.Amount `json:"amount"`
	UsdValue      float64      `json:"usdValue"`
	PricePerToken float64      `json:"pricePerToken"`
	PaymentMethod string       `json:"paymentMethod,omitempty"`
	Currency      string       `json:"currency,omitempty"`
	Confirmed     bool         `json:"confirmed"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Withdrawal is a request to move tokens off-ledger. While pending it
// reserves funds against availableBalance without touching balance; the
// debit happens only on confirmation.
type Withdrawal struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	TokenID     string           `json:"tokenId"`
	Amount      types.Amount     `json:"amount"`
	Destination string           `json:"destination"`
	Blockchain  string           `json:"blockchain"`
	Status      WithdrawalStatus `json:"status"`
	Txid        string           `json:"txid,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	RequestedAt time.Time        `json:"requestedAt"`
	ResolvedAt  time.Time        `json:"resolvedAt,omitempty"`
}

// DividendPayment is a per-holder payout row computed by an external
// distribution sweep. The ledger stores and serves them; it never computes
// them.
type DividendPayment struct {
	ID             string       `json:"id"`
	DistributionID string       `json:"distributionId"`
	UserID         string       `json:"userId"`
	TokenID        string       `json:"tokenId"`
	Amount         types.Amount `json:"amount"`
	Paid           bool         `json:"paid"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// User is the identity record behind balances. Lookups accept either the
// id or the email.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Position is one row of a portfolio valuation.
type Position struct {
	Token    Token   `json:"token"`
	Balance  Balance `json:"balance"`
	ValueUsd float64 `json:"valueUsd"`
}

// Portfolio is a point-in-time valuation of a user's holdings. It is a
// snapshot computed from current prices, not a stored fact.
type Portfolio struct {
	UserID         string     `json:"userId"`
	Positions      []Position `json:"positions"`
	TotalUsd       float64    `json:"totalUsd"`
	TotalSecondary float64    `json:"totalSecondary"`
}

// Holder is one row of a token's cap table.
type Holder struct {
	UserID  string       `json:"userId"`
	Balance types.Amount `json:"balance"`
}
