// Package ledger is the source of truth for token balances and their
// history. Every balance mutation is paired with exactly one immutable
// transaction record, and the pair commits atomically: there is never a
// record without its balance effect or a balance effect without its record.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stackmint/stackmint-core/internal/log"
	"github.com/stackmint/stackmint-core/internal/storage"
	"github.com/stackmint/stackmint-core/pkg/types"
)

// Ledger sentinels.
var (
	// ErrInsufficientBalance reports a debit larger than the funds
	// available to it.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrTokenNotFound reports an unknown token id.
	ErrTokenNotFound = errors.New("ledger: token not found")
	// ErrTokenExists reports a duplicate token registration.
	ErrTokenExists = errors.New("ledger: token already registered")
	// ErrUserNotFound reports an identity that resolved to nothing.
	ErrUserNotFound = errors.New("ledger: user not found")
	// ErrWithdrawalNotFound reports an unknown withdrawal id.
	ErrWithdrawalNotFound = errors.New("ledger: withdrawal not found")
	// ErrNotPending reports a state transition on a withdrawal that has
	// already reached a terminal state.
	ErrNotPending = errors.New("ledger: withdrawal is not pending")
	// ErrOversell reports a purchase larger than the token's remaining
	// available supply.
	ErrOversell = errors.New("ledger: purchase exceeds available supply")
	// ErrConcurrentModification reports a write that kept losing races
	// with concurrent writers after retries. The caller may retry the
	// whole operation.
	ErrConcurrentModification = errors.New("ledger: concurrent modification")
	// ErrInvalidInput reports a request that failed validation before any
	// mutation was attempted.
	ErrInvalidInput = errors.New("ledger: invalid input")
)

// maxRetries bounds the conflict-retry loop around each mutation.
const maxRetries = 8

// Ledger provides atomic balance accounting over a transactional store.
type Ledger struct {
	db     storage.DB
	logger zerolog.Logger

	// now is the clock. Overridable in tests.
	now func() time.Time
}

// New creates a ledger backed by db.
func New(db storage.DB) *Ledger {
	return &Ledger{
		db:     db,
		logger: log.Ledger,
		now:    time.Now,
	}
}

// update runs fn in a read-write transaction, retrying serialization
// conflicts. fn must be safe to re-run: losing writers re-read everything
// they touched, so no update is ever silently dropped.
func (l *Ledger) update(fn func(storage.Txn) error) error {
	for i := 0; i < maxRetries; i++ {
		err := l.db.Update(fn)
		if errors.Is(err, storage.ErrConflict) {
			l.logger.Debug().Int("attempt", i+1).Msg("transaction conflict, retrying")
			continue
		}
		return err
	}
	return ErrConcurrentModification
}

// RegisterToken registers a new token and seeds its available supply to
// the full total supply.
func (l *Ledger) RegisterToken(tok Token) (*Token, error) {
	if tok.Ticker == "" || tok.Name == "" {
		return nil, fmt.Errorf("%w: ticker and name are required", ErrInvalidInput)
	}
	if tok.TotalSupply.IsZero() {
		return nil, fmt.Errorf("%w: total supply must be positive", ErrInvalidInput)
	}
	if tok.ID == "" {
		tok.ID = uuid.NewString()
	}
	tok.Ticker = strings.ToUpper(tok.Ticker)
	tok.TokensAvailable = tok.TotalSupply
	tok.TokensSold = types.NewAmount(0)
	tok.TreasuryBalance = 0
	tok.CreatedAt = l.now()

	err := l.update(func(txn storage.Txn) error {
		ok, err := txn.Has(tokenKey(tok.ID))
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", ErrTokenExists, tok.ID)
		}
		return putJSON(txn, tokenKey(tok.ID), &tok)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("token", tok.ID).
		Str("ticker", tok.Ticker).
		Str("supply", tok.TotalSupply.String()).
		Msg("token registered")
	return &tok, nil
}

// PutUser stores a user and its email index entry.
func (l *Ledger) PutUser(u User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = l.now()
	}
	u.Email = strings.ToLower(u.Email)

	err := l.update(func(txn storage.Txn) error {
		if err := putJSON(txn, userKey(u.ID), &u); err != nil {
			return err
		}
		if u.Email != "" {
			return txn.Set(emailKey(u.Email), []byte(u.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordInput describes a generic ledger entry for RecordTransaction.
type RecordInput struct {
	Type     RecordType
	TokenID  string
	Amount   types.Amount
	FromUser string
	ToUser   string
	Address  string
	Txid     string
	Verified bool
}

// RecordTransaction is the generic atomic entry point: it inserts one
// immutable record and applies the balance delta(s) its type implies, all
// in one unit of work.
func (l *Ledger) RecordTransaction(in RecordInput) (*Record, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown record type %q", ErrInvalidInput, in.Type)
	}
	if in.Amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	rec := Record{
		ID:        uuid.NewString(),
		Type:      in.Type,
		TokenID:   in.TokenID,
		Amount:    in.Amount,
		FromUser:  in.FromUser,
		ToUser:    in.ToUser,
		Address:   in.Address,
		Txid:      in.Txid,
		Verified:  in.Verified,
		Timestamp: l.now(),
	}

	err := l.update(func(txn storage.Txn) error {
		ok, err := txn.Has(tokenKey(rec.TokenID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrTokenNotFound, rec.TokenID)
		}
		if err := l.applyDeltas(txn, &rec); err != nil {
			return err
		}
		return putJSON(txn, recordKey(rec.Timestamp, rec.ID), &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// applyDeltas applies the balance effects implied by a record's type.
// Validation happens before any write: a failed debit leaves no state.
func (l *Ledger) applyDeltas(txn storage.Txn, rec *Record) error {
	switch rec.Type {
	case TypePurchase, TypeDeposit, TypeAirdrop, TypeMint:
		if rec.ToUser == "" {
			return fmt.Errorf("%w: %s requires a recipient", ErrInvalidInput, rec.Type)
		}
		return l.credit(txn, rec.TokenID, rec.ToUser, rec.Amount, rec.Type)

	case TypeSale, TypeWithdrawal, TypeBurn:
		if rec.FromUser == "" {
			return fmt.Errorf("%w: %s requires a sender", ErrInvalidInput, rec.Type)
		}
		return l.debit(txn, rec.TokenID, rec.FromUser, rec.Amount, rec.Type)

	case TypeTransferOut, TypeTransferIn:
		if rec.FromUser == "" || rec.ToUser == "" {
			return fmt.Errorf("%w: transfer requires both parties", ErrInvalidInput)
		}
		if err := l.debit(txn, rec.TokenID, rec.FromUser, rec.Amount, TypeTransferOut); err != nil {
			return err
		}
		return l.credit(txn, rec.TokenID, rec.ToUser, rec.Amount, TypeTransferIn)
	}
	return fmt.Errorf("%w: unknown record type %q", ErrInvalidInput, rec.Type)
}

// loadBalance returns the balance row for user x token, creating a zero
// row if none exists yet.
func (l *Ledger) loadBalance(txn storage.Txn, tokenID, userID string) (*Balance, error) {
	var bal Balance
	err := getJSON(txn, balanceKey(tokenID, userID), &bal)
	if errors.Is(err, storage.ErrNotFound) {
		return &Balance{UserID: userID, TokenID: tokenID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// credit adds amount to the user's balance and bumps the counter the
// record type implies.
func (l *Ledger) credit(txn storage.Txn, tokenID, userID string, amount types.Amount, typ RecordType) error {
	bal, err := l.loadBalance(txn, tokenID, userID)
	if err != nil {
		return err
	}
	bal.Balance = bal.Balance.Add(amount)
	switch typ {
	case TypePurchase:
		bal.TotalPurchased = bal.TotalPurchased.Add(amount)
	case TypeTransferIn, TypeDeposit, TypeAirdrop, TypeMint:
		bal.TotalReceived = bal.TotalReceived.Add(amount)
	}
	bal.UpdatedAt = l.now()
	return putJSON(txn, balanceKey(tokenID, userID), bal)
}

// debit removes amount from the user's balance, failing with
// ErrInsufficientBalance before any write if the funds are not there.
func (l *Ledger) debit(txn storage.Txn, tokenID, userID string, amount types.Amount, typ RecordType) error {
	bal, err := l.loadBalance(txn, tokenID, userID)
	if err != nil {
		return err
	}
	next, err := bal.Balance.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: user %s has %s, needs %s",
			ErrInsufficientBalance, userID, bal.Balance, amount)
	}
	bal.Balance = next
	switch typ {
	case TypeTransferOut, TypeSale:
		bal.TotalSent = bal.TotalSent.Add(amount)
	case TypeWithdrawal:
		bal.TotalWithdrawn = bal.TotalWithdrawn.Add(amount)
	}
	bal.UpdatedAt = l.now()
	return putJSON(txn, balanceKey(tokenID, userID), bal)
}

// PurchaseInput describes a primary-market purchase.
type PurchaseInput struct {
	UserID        string
	TokenID       string
	Amount        types.Amount
	UsdValue      float64
	PaymentMethod string
	Currency      string
	Txid          string
}

// RecordPurchase atomically inserts a purchase record, credits the buyer,
// and moves the purchased amount from available supply to sold supply.
// An oversell is rejected before any state changes.
func (l *Ledger) RecordPurchase(in PurchaseInput) (*Purchase, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if in.Amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if in.UsdValue < 0 {
		return nil, fmt.Errorf("%w: usd value must not be negative", ErrInvalidInput)
	}

	now := l.now()
	pur := Purchase{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		TokenID:       in.TokenID,
		Amount:        in.Amount,
		UsdValue:      in.UsdValue,
		PaymentMethod: in.PaymentMethod,
		Currency:      in.Currency,
		Confirmed:     true,
		Timestamp:     now,
	}
	if f := in.Amount.Float64(); f > 0 {
		pur.PricePerToken = in.UsdValue / f
	}
	rec := Record{
		ID:        uuid.NewString(),
		Type:      TypePurchase,
		TokenID:   in.TokenID,
		Amount:    in.Amount,
		ToUser:    in.UserID,
		Txid:      in.Txid,
		Verified:  in.Txid != "",
		Timestamp: now,
	}

	err := l.update(func(txn storage.Txn) error {
		var tok Token
		if err := getJSON(txn, tokenKey(in.TokenID), &tok); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrTokenNotFound, in.TokenID)
			}
			return err
		}
		remaining, err := tok.TokensAvailable.Sub(in.Amount)
		if err != nil {
			return fmt.Errorf("%w: %s available, %s requested",
				ErrOversell, tok.TokensAvailable, in.Amount)
		}

		bal, err := l.loadBalance(txn, in.TokenID, in.UserID)
		if err != nil {
			return err
		}
		bal.Balance = bal.Balance.Add(in.Amount)
		bal.TotalPurchased = bal.TotalPurchased.Add(in.Amount)
		bal.TotalInvestedUsd += in.UsdValue
		if f := bal.TotalPurchased.Float64(); f > 0 {
			bal.AverageBuyPrice = bal.TotalInvestedUsd / f
		}
		bal.UpdatedAt = now

		tok.TokensAvailable = remaining
		tok.TokensSold = tok.TokensSold.Add(in.Amount)
		tok.TreasuryBalance += in.UsdValue

		if err := putJSON(txn, tokenKey(tok.ID), &tok); err != nil {
			return err
		}
		if err := putJSON(txn, balanceKey(in.TokenID, in.UserID), bal); err != nil {
			return err
		}
		if err := putJSON(txn, purchaseKey(pur.ID), &pur); err != nil {
			return err
		}
		return putJSON(txn, recordKey(rec.Timestamp, rec.ID), &rec)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("token", in.TokenID).
		Str("user", in.UserID).
		Str("amount", in.Amount.String()).
		Float64("usd", in.UsdValue).
		Msg("purchase recorded")
	return &pur, nil
}

// Transfer moves amount between two users of the same token. Debit and
// credit are two halves of one atomic unit, logged as a single record.
func (l *Ledger) Transfer(fromUser, toUser, tokenID string, amount types.Amount) (*Record, error) {
	if fromUser == "" || toUser == "" {
		return nil, fmt.Errorf("%w: both users are required", ErrInvalidInput)
	}
	if fromUser == toUser {
		return nil, fmt.Errorf("%w: cannot transfer to self", ErrInvalidInput)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	rec := Record{
		ID:        uuid.NewString(),
		Type:      TypeTransferOut,
		TokenID:   tokenID,
		Amount:    amount,
		FromUser:  fromUser,
		ToUser:    toUser,
		Verified:  true,
		Timestamp: l.now(),
	}

	err := l.update(func(txn storage.Txn) error {
		ok, err := txn.Has(tokenKey(tokenID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
		}
		if err := l.debit(txn, tokenID, fromUser, amount, TypeTransferOut); err != nil {
			return err
		}
		if err := l.credit(txn, tokenID, toUser, amount, TypeTransferIn); err != nil {
			return err
		}
		return putJSON(txn, recordKey(rec.Timestamp, rec.ID), &rec)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("token", tokenID).
		Str("from", fromUser).
		Str("to", toUser).
		Str("amount", amount.String()).
		Msg("transfer recorded")
	return &rec, nil
}

// WithdrawalInput describes a withdrawal request.
type WithdrawalInput struct {
	UserID      string
	TokenID     string
	Amount      types.Amount
	Destination string
	Blockchain  string
}

// RequestWithdrawal creates a pending withdrawal. The request reserves
// funds against availableBalance but does not debit balance; that happens
// only when the external confirmation step calls ConfirmWithdrawal.
func (l *Ledger) RequestWithdrawal(in WithdrawalInput) (*Withdrawal, error) {
	if in.UserID == "" || in.Destination == "" {
		return nil, fmt.Errorf("%w: user and destination are required", ErrInvalidInput)
	}
	if in.Amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	wd := Withdrawal{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		TokenID:     in.TokenID,
		Amount:      in.Amount,
		Destination: in.Destination,
		Blockchain:  in.Blockchain,
		Status:      WithdrawalPending,
		RequestedAt: l.now(),
	}

	err := l.update(func(txn storage.Txn) error {
		ok, err := txn.Has(tokenKey(in.TokenID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrTokenNotFound, in.TokenID)
		}

		bal, err := l.loadBalance(txn, in.TokenID, in.UserID)
		if err != nil {
			return err
		}
		pending, err := l.pendingSum(txn, in.TokenID, in.UserID)
		if err != nil {
			return err
		}
		available, err := bal.Balance.Sub(pending)
		if err != nil {
			available = types.NewAmount(0)
		}
		if in.Amount.Cmp(available) > 0 {
			return fmt.Errorf("%w: %s available (balance %s, %s reserved), %s requested",
				ErrInsufficientBalance, available, bal.Balance, pending, in.Amount)
		}

		if err := putJSON(txn, withdrawalKey(wd.ID), &wd); err != nil {
			return err
		}
		return txn.Set(pendingKey(in.TokenID, in.UserID, wd.ID), []byte(in.Amount.String()))
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("withdrawal", wd.ID).
		Str("user", in.UserID).
		Str("amount", in.Amount.String()).
		Msg("withdrawal requested")
	return &wd, nil
}

// pendingSum totals the user's pending withdrawal reservations for a token.
func (l *Ledger) pendingSum(txn storage.Txn, tokenID, userID string) (types.Amount, error) {
	sum := types.NewAmount(0)
	err := txn.ForEach(pendingPrefix(tokenID, userID), func(_, value []byte) error {
		amt, err := types.ParseAmount(string(value))
		if err != nil {
			return fmt.Errorf("corrupt reservation: %w", err)
		}
		sum = sum.Add(amt)
		return nil
	})
	if err != nil {
		return types.Amount{}, err
	}
	return sum, nil
}

// ConfirmWithdrawal transitions a pending withdrawal to confirmed,
// debiting the balance and logging the withdrawal record. txid is the
// on-chain transaction that settled it.
func (l *Ledger) ConfirmWithdrawal(id, txid string) (*Withdrawal, error) {
	return l.resolveWithdrawal(id, WithdrawalConfirmed, txid, "")
}

// RejectWithdrawal transitions a pending withdrawal to rejected and
// releases its reservation. The balance is untouched.
func (l *Ledger) RejectWithdrawal(id, reason string) (*Withdrawal, error) {
	return l.resolveWithdrawal(id, WithdrawalRejected, "", reason)
}

// FailWithdrawal transitions a pending withdrawal to failed and releases
// its reservation. The balance is untouched.
func (l *Ledger) FailWithdrawal(id, reason string) (*Withdrawal, error) {
	return l.resolveWithdrawal(id, WithdrawalFailed, "", reason)
}

// resolveWithdrawal applies the single allowed transition out of pending.
func (l *Ledger) resolveWithdrawal(id string, status WithdrawalStatus, txid, reason string) (*Withdrawal, error) {
	var wd Withdrawal
	err := l.update(func(txn storage.Txn) error {
		wd = Withdrawal{}
		if err := getJSON(txn, withdrawalKey(id), &wd); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrWithdrawalNotFound, id)
			}
			return err
		}
		if wd.Status != WithdrawalPending {
			return fmt.Errorf("%w: %s is %s", ErrNotPending, id, wd.Status)
		}

		wd.Status = status
		wd.Txid = txid
		wd.Reason = reason
		wd.ResolvedAt = l.now()

		if status == WithdrawalConfirmed {
			if err := l.debit(txn, wd.TokenID, wd.UserID, wd.Amount, TypeWithdrawal); err != nil {
				return err
			}
			rec := Record{
				ID:        uuid.NewString(),
				Type:      TypeWithdrawal,
				TokenID:   wd.TokenID,
				Amount:    wd.Amount,
				FromUser:  wd.UserID,
				Address:   wd.Destination,
				Txid:      txid,
				Verified:  true,
				Timestamp: wd.ResolvedAt,
			}
			if err := putJSON(txn, recordKey(rec.Timestamp, rec.ID), &rec); err != nil {
				return err
			}
		}

		if err := txn.Delete(pendingKey(wd.TokenID, wd.UserID, wd.ID)); err != nil {
			return err
		}
		return putJSON(txn, withdrawalKey(wd.ID), &wd)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("withdrawal", id).
		Str("status", string(status)).
		Msg("withdrawal resolved")
	return &wd, nil
}

// MintTokens credits newly created supply to a user and grows the token's
// total supply by the same amount.
func (l *Ledger) MintTokens(tokenID, toUser string, amount types.Amount) (*Record, error) {
	if toUser == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	rec := Record{
		ID:        uuid.NewString(),
		Type:      TypeMint,
		TokenID:   tokenID,
		Amount:    amount,
		ToUser:    toUser,
		Verified:  true,
		Timestamp: l.now(),
	}
	err := l.update(func(txn storage.Txn) error {
		var tok Token
		if err := getJSON(txn, tokenKey(tokenID), &tok); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
			}
			return err
		}
		tok.TotalSupply = tok.TotalSupply.Add(amount)
		if err := putJSON(txn, tokenKey(tokenID), &tok); err != nil {
			return err
		}
		if err := l.credit(txn, tokenID, toUser, amount, TypeMint); err != nil {
			return err
		}
		return putJSON(txn, recordKey(rec.Timestamp, rec.ID), &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// BurnTokens destroys tokens held by a user and shrinks the token's total
// supply by the same amount.
func (l *Ledger) BurnTokens(tokenID, fromUser string, amount types.Amount) (*Record, error) {
	if fromUser == "" {
		return nil, fmt.Errorf("%w: holder is required", ErrInvalidInput)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	rec := Record{
		ID:        uuid.NewString(),
		Type:      TypeBurn,
		TokenID:   tokenID,
		Amount:    amount,
		FromUser:  fromUser,
		Verified:  true,
		Timestamp: l.now(),
	}
	err := l.update(func(txn storage.Txn) error {
		var tok Token
		if err := getJSON(txn, tokenKey(tokenID), &tok); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrTokenNotFound, tokenID)
			}
			return err
		}
		supply, err := tok.TotalSupply.Sub(amount)
		if err != nil {
			return fmt.Errorf("%w: burn exceeds total supply", ErrInvalidInput)
		}
		tok.TotalSupply = supply
		if err := putJSON(txn, tokenKey(tokenID), &tok); err != nil {
			return err
		}
		if err := l.debit(txn, tokenID, fromUser, amount, TypeBurn); err != nil {
			return err
		}
		return putJSON(txn, recordKey(rec.Timestamp, rec.ID), &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordDividendPayment stores a per-holder payout row computed by an
// external distribution sweep.
func (l *Ledger) RecordDividendPayment(p DividendPayment) (*DividendPayment, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = l.now()
	}
	err := l.update(func(txn storage.Txn) error {
		return putJSON(txn, dividendKey(p.UserID, p.ID), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkDividendPaid flags a payout row as settled.
func (l *Ledger) MarkDividendPaid(userID, paymentID string) error {
	return l.update(func(txn storage.Txn) error {
		var p DividendPayment
		if err := getJSON(txn, dividendKey(userID, paymentID), &p); err != nil {
			return err
		}
		p.Paid = true
		return putJSON(txn, dividendKey(userID, paymentID), &p)
	})
}
