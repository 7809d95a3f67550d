package ledger

import (
	"errors"
	"sync"
	"testing"

	"github.com/stackmint/stackmint-core/internal/storage"
	"github.com/stackmint/stackmint-core/pkg/types"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(storage.NewMemory())
}

func registerTestToken(t *testing.T, l *Ledger, supply uint64) *Token {
	t.Helper()
	tok, err := l.RegisterToken(Token{
		Ticker:      "STK",
		Name:        "Stackmint Token",
		TotalSupply: types.NewAmount(supply),
		Decimals:    8,
		Blockchain:  "bitcoin",
		PriceUsd:    0.01,
	})
	if err != nil {
		t.Fatalf("RegisterToken: %v", err)
	}
	return tok
}

func TestRegisterToken(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000_000)

	if tok.TokensAvailable.Cmp(tok.TotalSupply) != 0 {
		t.Errorf("TokensAvailable = %s, want %s", tok.TokensAvailable, tok.TotalSupply)
	}
	if !tok.TokensSold.IsZero() {
		t.Errorf("TokensSold = %s, want 0", tok.TokensSold)
	}
	if tok.Ticker != "STK" {
		t.Errorf("Ticker = %q, want STK", tok.Ticker)
	}

	got, err := l.GetToken(tok.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.Name != "Stackmint Token" {
		t.Errorf("Name = %q", got.Name)
	}

	if _, err := l.RegisterToken(Token{ID: tok.ID, Ticker: "DUP", Name: "dup", TotalSupply: types.NewAmount(1)}); !errors.Is(err, ErrTokenExists) {
		t.Errorf("duplicate registration err = %v, want ErrTokenExists", err)
	}
	if _, err := l.GetToken("nope"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("GetToken(nope) err = %v, want ErrTokenNotFound", err)
	}
}

// The purchase scenario: 1000 tokens for $10 against a supply of 1e9.
func TestRecordPurchase(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000_000)

	pur, err := l.RecordPurchase(PurchaseInput{
		UserID:   "u1",
		TokenID:  tok.ID,
		Amount:   types.NewAmount(1000),
		UsdValue: 10,
	})
	if err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if pur.PricePerToken != 0.01 {
		t.Errorf("PricePerToken = %v, want 0.01", pur.PricePerToken)
	}

	bal, err := l.GetBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Balance.Cmp(types.NewAmount(1000)) != 0 {
		t.Errorf("balance = %s, want 1000", bal.Balance)
	}
	if bal.TotalInvestedUsd != 10 {
		t.Errorf("TotalInvestedUsd = %v, want 10", bal.TotalInvestedUsd)
	}
	if bal.AverageBuyPrice != 0.01 {
		t.Errorf("AverageBuyPrice = %v, want 0.01", bal.AverageBuyPrice)
	}

	got, err := l.GetToken(tok.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.TokensAvailable.Cmp(types.NewAmount(999_999_000)) != 0 {
		t.Errorf("TokensAvailable = %s, want 999999000", got.TokensAvailable)
	}
	if got.TokensSold.Cmp(types.NewAmount(1000)) != 0 {
		t.Errorf("TokensSold = %s, want 1000", got.TokensSold)
	}
	if got.TreasuryBalance != 10 {
		t.Errorf("TreasuryBalance = %v, want 10", got.TreasuryBalance)
	}

	// One purchase record must exist in the log.
	recs, err := l.GetTransactions(RecordQuery{UserID: "u1", Types: []RecordType{TypePurchase}})
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d purchase records, want 1", len(recs))
	}
}

func TestRecordPurchase_Oversell(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 500)

	_, err := l.RecordPurchase(PurchaseInput{
		UserID:   "u1",
		TokenID:  tok.ID,
		Amount:   types.NewAmount(501),
		UsdValue: 5.01,
	})
	if !errors.Is(err, ErrOversell) {
		t.Fatalf("oversell err = %v, want ErrOversell", err)
	}

	// Rejection must leave no partial state.
	bal, err := l.GetBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Balance.IsZero() {
		t.Errorf("balance = %s after rejected purchase, want 0", bal.Balance)
	}
	got, err := l.GetToken(tok.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.TokensAvailable.Cmp(types.NewAmount(500)) != 0 {
		t.Errorf("TokensAvailable = %s, want 500", got.TokensAvailable)
	}
	recs, err := l.GetTransactions(RecordQuery{})
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records after rejected purchase, want 0", len(recs))
	}
}

func TestTransfer(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000_000)

	if _, err := l.RecordPurchase(PurchaseInput{UserID: "u1", TokenID: tok.ID, Amount: types.NewAmount(1000), UsdValue: 10}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if _, err := l.Transfer("u1", "u2", tok.ID, types.NewAmount(400)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	b1, err := l.GetBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("GetBalance(u1): %v", err)
	}
	b2, err := l.GetBalance(tok.ID, "u2")
	if err != nil {
		t.Fatalf("GetBalance(u2): %v", err)
	}
	if b1.Balance.Cmp(types.NewAmount(600)) != 0 {
		t.Errorf("u1 balance = %s, want 600", b1.Balance)
	}
	if b2.Balance.Cmp(types.NewAmount(400)) != 0 {
		t.Errorf("u2 balance = %s, want 400", b2.Balance)
	}
	if b1.TotalSent.Cmp(types.NewAmount(400)) != 0 {
		t.Errorf("u1 TotalSent = %s, want 400", b1.TotalSent)
	}
	if b2.TotalReceived.Cmp(types.NewAmount(400)) != 0 {
		t.Errorf("u2 TotalReceived = %s, want 400", b2.TotalReceived)
	}

	// Exactly one transfer record for the pair.
	recs, err := l.GetTransactions(RecordQuery{Types: []RecordType{TypeTransferOut}})
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d transfer records, want 1", len(recs))
	}
	if recs[0].FromUser != "u1" || recs[0].ToUser != "u2" {
		t.Errorf("transfer record parties = %s -> %s", recs[0].FromUser, recs[0].ToUser)
	}

	if _, err := l.Transfer("u1", "u2", tok.ID, types.NewAmount(601)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraw err = %v, want ErrInsufficientBalance", err)
	}
	if _, err := l.Transfer("u1", "u1", tok.ID, types.NewAmount(1)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("self transfer err = %v, want ErrInvalidInput", err)
	}
}

// Supply conservation: tokensAvailable + sum of balances stays equal to
// totalSupply through purchases and transfers.
func TestSupplyConservation(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000)

	if _, err := l.RecordPurchase(PurchaseInput{UserID: "u1", TokenID: tok.ID, Amount: types.NewAmount(5000), UsdValue: 50}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if _, err := l.RecordPurchase(PurchaseInput{UserID: "u2", TokenID: tok.ID, Amount: types.NewAmount(2500), UsdValue: 30}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if _, err := l.Transfer("u1", "u3", tok.ID, types.NewAmount(1200)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	got, err := l.GetToken(tok.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	holders, err := l.GetHolders(tok.ID, types.Amount{})
	if err != nil {
		t.Fatalf("GetHolders: %v", err)
	}
	sum := got.TokensAvailable
	for _, h := range holders {
		sum = sum.Add(h.Balance)
	}
	if sum.Cmp(got.TotalSupply) != 0 {
		t.Errorf("available + balances = %s, want %s", sum, got.TotalSupply)
	}
}

// The withdrawal scenario: with balance 1000 and a 400 transfer out, a
// 700 request is rejected, a 500 request reserves, leaving 100 available.
func TestRequestWithdrawal(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000_000)

	if _, err := l.RecordPurchase(PurchaseInput{UserID: "u1", TokenID: tok.ID, Amount: types.NewAmount(1000), UsdValue: 10}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	if _, err := l.Transfer("u1", "u2", tok.ID, types.NewAmount(400)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	_, err := l.RequestWithdrawal(WithdrawalInput{
		UserID: "u1", TokenID: tok.ID,
		Amount:      types.NewAmount(700),
		Destination: "16UwLL9Risc3QfPqBUvKofHmBQ7wMtjvM",
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("700 request err = %v, want ErrInsufficientBalance", err)
	}

	wd, err := l.RequestWithdrawal(WithdrawalInput{
		UserID: "u1", TokenID: tok.ID,
		Amount:      types.NewAmount(500),
		Destination: "16UwLL9Risc3QfPqBUvKofHmBQ7wMtjvM",
	})
	if err != nil {
		t.Fatalf("500 request: %v", err)
	}
	if wd.Status != WithdrawalPending {
		t.Errorf("status = %s, want pending", wd.Status)
	}

	// A pending request reserves funds without debiting balance.
	bal, err := l.GetBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Balance.Cmp(types.NewAmount(600)) != 0 {
		t.Errorf("balance = %s, want 600 (pending must not debit)", bal.Balance)
	}
	available, err := l.AvailableBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if available.Cmp(types.NewAmount(100)) != 0 {
		t.Errorf("available = %s, want 100", available)
	}

	// The reservation binds even though balance alone would cover it.
	_, err = l.RequestWithdrawal(WithdrawalInput{
		UserID: "u1", TokenID: tok.ID,
		Amount:      types.NewAmount(200),
		Destination: "16UwLL9Risc3QfPqBUvKofHmBQ7wMtjvM",
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("over-reserve err = %v, want ErrInsufficientBalance", err)
	}
}

func TestConfirmWithdrawal(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000)

	if _, err := l.RecordPurchase(PurchaseInput{UserID: "u1", TokenID: tok.ID, Amount: types.NewAmount(1000), UsdValue: 10}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	wd, err := l.RequestWithdrawal(WithdrawalInput{
		UserID: "u1", TokenID: tok.ID,
		Amount:      types.NewAmount(300),
		Destination: "16UwLL9Risc3QfPqBUvKofHmBQ7wMtjvM",
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}

	confirmed, err := l.ConfirmWithdrawal(wd.ID, "deadbeef")
	if err != nil {
		t.Fatalf("ConfirmWithdrawal: %v", err)
	}
	if confirmed.Status != WithdrawalConfirmed || confirmed.Txid != "deadbeef" {
		t.Errorf("confirmed = %+v", confirmed)
	}

	bal, err := l.GetBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Balance.Cmp(types.NewAmount(700)) != 0 {
		t.Errorf("balance = %s, want 700 after confirmation", bal.Balance)
	}
	if bal.TotalWithdrawn.Cmp(types.NewAmount(300)) != 0 {
		t.Errorf("TotalWithdrawn = %s, want 300", bal.TotalWithdrawn)
	}

	// The reservation is released.
	available, err := l.AvailableBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if available.Cmp(types.NewAmount(700)) != 0 {
		t.Errorf("available = %s, want 700", available)
	}

	// Terminal states transition exactly once.
	if _, err := l.ConfirmWithdrawal(wd.ID, "again"); !errors.Is(err, ErrNotPending) {
		t.Errorf("double confirm err = %v, want ErrNotPending", err)
	}
	if _, err := l.RejectWithdrawal(wd.ID, "nope"); !errors.Is(err, ErrNotPending) {
		t.Errorf("reject after confirm err = %v, want ErrNotPending", err)
	}

	// Confirmation writes a withdrawal record.
	recs, err := l.GetTransactions(RecordQuery{Types: []RecordType{TypeWithdrawal}})
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d withdrawal records, want 1", len(recs))
	}
	if recs[0].Txid != "deadbeef" {
		t.Errorf("record txid = %q", recs[0].Txid)
	}
}

func TestRejectWithdrawalReleasesReservation(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000)

	if _, err := l.RecordPurchase(PurchaseInput{UserID: "u1", TokenID: tok.ID, Amount: types.NewAmount(500), UsdValue: 5}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}
	wd, err := l.RequestWithdrawal(WithdrawalInput{
		UserID: "u1", TokenID: tok.ID,
		Amount:      types.NewAmount(500),
		Destination: "16UwLL9Risc3QfPqBUvKofHmBQ7wMtjvM",
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}

	rejected, err := l.RejectWithdrawal(wd.ID, "destination flagged")
	if err != nil {
		t.Fatalf("RejectWithdrawal: %v", err)
	}
	if rejected.Status != WithdrawalRejected || rejected.Reason != "destination flagged" {
		t.Errorf("rejected = %+v", rejected)
	}

	// Balance untouched, reservation gone.
	bal, err := l.GetBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Balance.Cmp(types.NewAmount(500)) != 0 {
		t.Errorf("balance = %s, want 500", bal.Balance)
	}
	available, err := l.AvailableBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if available.Cmp(types.NewAmount(500)) != 0 {
		t.Errorf("available = %s, want 500", available)
	}

	if _, err := l.FailWithdrawal("missing", "x"); !errors.Is(err, ErrWithdrawalNotFound) {
		t.Errorf("FailWithdrawal(missing) err = %v, want ErrWithdrawalNotFound", err)
	}
}

func TestGetTransactionsFilters(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000)

	for i := 0; i < 5; i++ {
		if _, err := l.RecordPurchase(PurchaseInput{UserID: "u1", TokenID: tok.ID, Amount: types.NewAmount(100), UsdValue: 1}); err != nil {
			t.Fatalf("RecordPurchase: %v", err)
		}
	}
	if _, err := l.Transfer("u1", "u2", tok.ID, types.NewAmount(50)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	all, err := l.GetTransactions(RecordQuery{})
	if err != nil {
		t.Fatalf("GetTransactions: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("got %d records, want 6", len(all))
	}
	// Newest first.
	for i := 1; i < len(all); i++ {
		if all[i-1].Timestamp.Before(all[i].Timestamp) {
			t.Errorf("records out of order at %d", i)
		}
	}
	if all[0].Type != TypeTransferOut {
		t.Errorf("newest record type = %s, want transfer_out", all[0].Type)
	}

	u2, err := l.GetTransactions(RecordQuery{UserID: "u2"})
	if err != nil {
		t.Fatalf("GetTransactions(u2): %v", err)
	}
	if len(u2) != 1 {
		t.Errorf("u2 records = %d, want 1", len(u2))
	}

	page, err := l.GetTransactions(RecordQuery{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("GetTransactions(page): %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	if page[0].ID != all[1].ID || page[1].ID != all[2].ID {
		t.Errorf("pagination window mismatch")
	}

	purchases, err := l.GetTransactions(RecordQuery{Types: []RecordType{TypePurchase}})
	if err != nil {
		t.Fatalf("GetTransactions(purchases): %v", err)
	}
	if len(purchases) != 5 {
		t.Errorf("purchase records = %d, want 5", len(purchases))
	}
}

func TestGetHolders(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000)

	amounts := map[string]uint64{"alice": 300, "bob": 900, "carol": 10}
	for user, amt := range amounts {
		if _, err := l.RecordPurchase(PurchaseInput{UserID: user, TokenID: tok.ID, Amount: types.NewAmount(amt), UsdValue: float64(amt) / 100}); err != nil {
			t.Fatalf("RecordPurchase(%s): %v", user, err)
		}
	}

	holders, err := l.GetHolders(tok.ID, types.NewAmount(100))
	if err != nil {
		t.Fatalf("GetHolders: %v", err)
	}
	if len(holders) != 2 {
		t.Fatalf("got %d holders, want 2 (carol below minimum)", len(holders))
	}
	if holders[0].UserID != "bob" || holders[1].UserID != "alice" {
		t.Errorf("order = %s, %s; want bob, alice", holders[0].UserID, holders[1].UserID)
	}
}

func TestGetPortfolio(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000) // price 0.01 USD

	if _, err := l.RecordPurchase(PurchaseInput{UserID: "u1", TokenID: tok.ID, Amount: types.NewAmount(1000), UsdValue: 10}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}

	p, err := l.GetPortfolio("u1", 0.92)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if len(p.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(p.Positions))
	}
	if p.TotalUsd != 10 {
		t.Errorf("TotalUsd = %v, want 10", p.TotalUsd)
	}
	if p.TotalSecondary != 9.2 {
		t.Errorf("TotalSecondary = %v, want 9.2", p.TotalSecondary)
	}
}

func TestDividends(t *testing.T) {
	l := newTestLedger(t)

	u, err := l.PutUser(User{Email: "Alice@Example.com"})
	if err != nil {
		t.Fatalf("PutUser: %v", err)
	}

	paid, err := l.RecordDividendPayment(DividendPayment{
		DistributionID: "dist-1", UserID: u.ID, TokenID: "tok-1",
		Amount: types.NewAmount(40), Paid: true,
	})
	if err != nil {
		t.Fatalf("RecordDividendPayment: %v", err)
	}
	pendingRow, err := l.RecordDividendPayment(DividendPayment{
		DistributionID: "dist-2", UserID: u.ID, TokenID: "tok-1",
		Amount: types.NewAmount(60),
	})
	if err != nil {
		t.Fatalf("RecordDividendPayment: %v", err)
	}

	// Lookup by id and by email resolve to the same rows.
	for _, ref := range []string{u.ID, "alice@example.com", "Alice@Example.com"} {
		pending, err := l.GetPendingDividends(ref)
		if err != nil {
			t.Fatalf("GetPendingDividends(%s): %v", ref, err)
		}
		if len(pending) != 1 {
			t.Fatalf("GetPendingDividends(%s) = %d rows, want 1", ref, len(pending))
		}
		if pending[0].ID != pendingRow.ID {
			t.Errorf("pending row = %s, want %s", pending[0].ID, pendingRow.ID)
		}
	}

	if err := l.MarkDividendPaid(u.ID, pendingRow.ID); err != nil {
		t.Fatalf("MarkDividendPaid: %v", err)
	}
	pending, err := l.GetPendingDividends(u.ID)
	if err != nil {
		t.Fatalf("GetPendingDividends: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after payout = %d, want 0", len(pending))
	}
	_ = paid

	if _, err := l.GetPendingDividends("nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user err = %v, want ErrUserNotFound", err)
	}
}

func TestMintAndBurn(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1000)

	if _, err := l.MintTokens(tok.ID, "u1", types.NewAmount(500)); err != nil {
		t.Fatalf("MintTokens: %v", err)
	}
	got, err := l.GetToken(tok.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.TotalSupply.Cmp(types.NewAmount(1500)) != 0 {
		t.Errorf("TotalSupply after mint = %s, want 1500", got.TotalSupply)
	}
	bal, err := l.GetBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Balance.Cmp(types.NewAmount(500)) != 0 {
		t.Errorf("balance after mint = %s, want 500", bal.Balance)
	}

	if _, err := l.BurnTokens(tok.ID, "u1", types.NewAmount(200)); err != nil {
		t.Fatalf("BurnTokens: %v", err)
	}
	got, err = l.GetToken(tok.ID)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.TotalSupply.Cmp(types.NewAmount(1300)) != 0 {
		t.Errorf("TotalSupply after burn = %s, want 1300", got.TotalSupply)
	}

	if _, err := l.BurnTokens(tok.ID, "u1", types.NewAmount(10_000)); !errors.Is(err, ErrInsufficientBalance) && !errors.Is(err, ErrInvalidInput) {
		t.Errorf("overburn err = %v", err)
	}
}

// Concurrent transfers between the same accounts must not lose updates.
func TestConcurrentTransfers(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000)

	if _, err := l.RecordPurchase(PurchaseInput{UserID: "u1", TokenID: tok.ID, Amount: types.NewAmount(10_000), UsdValue: 100}); err != nil {
		t.Fatalf("RecordPurchase: %v", err)
	}

	const workers = 8
	const perWorker = 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := l.Transfer("u1", "u2", tok.ID, types.NewAmount(10)); err != nil {
					t.Errorf("Transfer: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	b1, err := l.GetBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("GetBalance(u1): %v", err)
	}
	b2, err := l.GetBalance(tok.ID, "u2")
	if err != nil {
		t.Fatalf("GetBalance(u2): %v", err)
	}
	moved := types.NewAmount(workers * perWorker * 10)
	if b2.Balance.Cmp(moved) != 0 {
		t.Errorf("u2 balance = %s, want %s", b2.Balance, moved)
	}
	want, _ := types.NewAmount(10_000).Sub(moved)
	if b1.Balance.Cmp(want) != 0 {
		t.Errorf("u1 balance = %s, want %s", b1.Balance, want)
	}
}

// conflictDB always reports a serialization conflict, driving the retry
// loop to exhaustion.
type conflictDB struct{ storage.DB }

func (c conflictDB) Update(func(storage.Txn) error) error {
	return storage.ErrConflict
}

func TestConcurrentModificationSurfaces(t *testing.T) {
	l := New(conflictDB{storage.NewMemory()})
	_, err := l.RegisterToken(Token{Ticker: "X", Name: "x", TotalSupply: types.NewAmount(1)})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("err = %v, want ErrConcurrentModification", err)
	}
}

func TestRecordTransactionGeneric(t *testing.T) {
	l := newTestLedger(t)
	tok := registerTestToken(t, l, 1_000_000)

	if _, err := l.RecordTransaction(RecordInput{Type: TypeDeposit, TokenID: tok.ID, Amount: types.NewAmount(250), ToUser: "u1"}); err != nil {
		t.Fatalf("RecordTransaction(deposit): %v", err)
	}
	bal, err := l.GetBalance(tok.ID, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Balance.Cmp(types.NewAmount(250)) != 0 {
		t.Errorf("balance = %s, want 250", bal.Balance)
	}

	if _, err := l.RecordTransaction(RecordInput{Type: TypeSale, TokenID: tok.ID, Amount: types.NewAmount(500), FromUser: "u1"}); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("oversized sale err = %v, want ErrInsufficientBalance", err)
	}
	if _, err := l.RecordTransaction(RecordInput{Type: "bogus", TokenID: tok.ID, Amount: types.NewAmount(1)}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bogus type err = %v, want ErrInvalidInput", err)
	}
	if _, err := l.RecordTransaction(RecordInput{Type: TypeDeposit, TokenID: "nope", Amount: types.NewAmount(1), ToUser: "u1"}); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("unknown token err = %v, want ErrTokenNotFound", err)
	}
}
