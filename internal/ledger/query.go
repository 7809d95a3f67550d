package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stackmint/stackmint-core/internal/storage"
	"github.com/stackmint/stackmint-core/pkg/types"
)

// GetToken returns a token by id.
func (l *Ledger) GetToken(id string) (*Token, error) {
	var tok Token
	err := l.db.View(func(txn storage.Txn) error {
		return getJSON(txn, tokenKey(id), &tok)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// ListTokens returns all registered tokens ordered by id.
func (l *Ledger) ListTokens() ([]Token, error) {
	var tokens []Token
	err := l.db.View(func(txn storage.Txn) error {
		return txn.ForEach([]byte("tok/"), func(_, value []byte) error {
			var tok Token
			if err := decode(value, &tok); err != nil {
				return err
			}
			tokens = append(tokens, tok)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// GetBalance returns the user's balance row for a token. A user with no
// history has a zero row, not an error.
func (l *Ledger) GetBalance(tokenID, userID string) (*Balance, error) {
	var bal *Balance
	err := l.db.View(func(txn storage.Txn) error {
		var err error
		bal, err = l.loadBalance(txn, tokenID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bal, nil
}

// GetBalances returns all of a user's balance rows across tokens.
func (l *Ledger) GetBalances(userID string) ([]Balance, error) {
	suffix := "/" + userID
	var balances []Balance
	err := l.db.View(func(txn storage.Txn) error {
		return txn.ForEach([]byte("bal/"), func(key, value []byte) error {
			if !strings.HasSuffix(string(key), suffix) {
				return nil
			}
			var bal Balance
			if err := decode(value, &bal); err != nil {
				return err
			}
			balances = append(balances, bal)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// AvailableBalance returns balance minus the sum of the user's pending
// withdrawal reservations for a token.
func (l *Ledger) AvailableBalance(tokenID, userID string) (types.Amount, error) {
	var available types.Amount
	err := l.db.View(func(txn storage.Txn) error {
		bal, err := l.loadBalance(txn, tokenID, userID)
		if err != nil {
			return err
		}
		pending, err := l.pendingSum(txn, tokenID, userID)
		if err != nil {
			return err
		}
		available, err = bal.Balance.Sub(pending)
		if err != nil {
			available = types.NewAmount(0)
		}
		return nil
	})
	if err != nil {
		return types.Amount{}, err
	}
	return available, nil
}

// GetPortfolio values a user's holdings at current token prices. The
// result is a snapshot, not a stored fact. secondaryRate converts the USD
// total into a secondary display currency.
func (l *Ledger) GetPortfolio(userID string, secondaryRate float64) (*Portfolio, error) {
	balances, err := l.GetBalances(userID)
	if err != nil {
		return nil, err
	}

	p := &Portfolio{UserID: userID}
	err = l.db.View(func(txn storage.Txn) error {
		for _, bal := range balances {
			if bal.Balance.IsZero() {
				continue
			}
			var tok Token
			if err := getJSON(txn, tokenKey(bal.TokenID), &tok); err != nil {
				return err
			}
			value := bal.Balance.Float64() * tok.PriceUsd
			p.Positions = append(p.Positions, Position{
				Token:    tok,
				Balance:  bal,
				ValueUsd: value,
			})
			p.TotalUsd += value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.TotalSecondary = p.TotalUsd * secondaryRate
	return p, nil
}

// GetHolders returns a token's holders with balance >= minBalance, ordered
// by balance descending.
func (l *Ledger) GetHolders(tokenID string, minBalance types.Amount) ([]Holder, error) {
	var holders []Holder
	err := l.db.View(func(txn storage.Txn) error {
		return txn.ForEach(balancePrefix(tokenID), func(_, value []byte) error {
			var bal Balance
			if err := decode(value, &bal); err != nil {
				return err
			}
			if bal.Balance.Cmp(minBalance) < 0 {
				return nil
			}
			holders = append(holders, Holder{UserID: bal.UserID, Balance: bal.Balance})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(holders, func(i, j int) bool {
		return holders[i].Balance.Cmp(holders[j].Balance) > 0
	})
	return holders, nil
}

// RecordQuery filters the transaction log. Zero values mean "no filter".
type RecordQuery struct {
	UserID  string
	TokenID string
	Types   []RecordType
	After   time.Time
	Before  time.Time
	Offset  int
	Limit   int
}

// matches reports whether a record passes the query's filters.
func (q *RecordQuery) matches(rec *Record) bool {
	if q.UserID != "" && rec.FromUser != q.UserID && rec.ToUser != q.UserID {
		return false
	}
	if q.TokenID != "" && rec.TokenID != q.TokenID {
		return false
	}
	if len(q.Types) > 0 {
		found := false
		for _, t := range q.Types {
			if rec.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !q.After.IsZero() && rec.Timestamp.Before(q.After) {
		return false
	}
	if !q.Before.IsZero() && rec.Timestamp.After(q.Before) {
		return false
	}
	return true
}

// GetTransactions returns matching records newest-first. Limit <= 0 means
// no limit. The log's key layout stores inverted timestamps, so a plain
// ascending scan already yields newest-first order and pagination can stop
// early.
func (l *Ledger) GetTransactions(q RecordQuery) ([]Record, error) {
	var records []Record
	errDone := errors.New("done")
	skipped := 0

	err := l.db.View(func(txn storage.Txn) error {
		err := txn.ForEach([]byte("rec/"), func(_, value []byte) error {
			var rec Record
			if err := decode(value, &rec); err != nil {
				return err
			}
			if !q.matches(&rec) {
				return nil
			}
			if skipped < q.Offset {
				skipped++
				return nil
			}
			records = append(records, rec)
			if q.Limit > 0 && len(records) >= q.Limit {
				return errDone
			}
			return nil
		})
		if errors.Is(err, errDone) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetWithdrawal returns a withdrawal request by id.
func (l *Ledger) GetWithdrawal(id string) (*Withdrawal, error) {
	var wd Withdrawal
	err := l.db.View(func(txn storage.Txn) error {
		return getJSON(txn, withdrawalKey(id), &wd)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWithdrawalNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &wd, nil
}

// ListPendingWithdrawals returns every withdrawal still in the pending
// state, for the external sweep to work through.
func (l *Ledger) ListPendingWithdrawals() ([]Withdrawal, error) {
	var pending []Withdrawal
	err := l.db.View(func(txn storage.Txn) error {
		return txn.ForEach([]byte("wd/"), func(_, value []byte) error {
			var wd Withdrawal
			if err := decode(value, &wd); err != nil {
				return err
			}
			if wd.Status == WithdrawalPending {
				pending = append(pending, wd)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// GetUser resolves an identity reference that may be a user id or an
// email address. The id form is tried first, then the email index.
func (l *Ledger) GetUser(ref string) (*User, error) {
	var u User
	err := l.db.View(func(txn storage.Txn) error {
		err := getJSON(txn, userKey(ref), &u)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		id, err := txn.Get(emailKey(strings.ToLower(ref)))
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(string(id)), &u)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetPendingDividends returns a user's unpaid dividend payout rows. The
// user reference may be an id or an email.
func (l *Ledger) GetPendingDividends(userRef string) ([]DividendPayment, error) {
	u, err := l.GetUser(userRef)
	if err != nil {
		return nil, err
	}

	var pending []DividendPayment
	err = l.db.View(func(txn storage.Txn) error {
		return txn.ForEach(dividendPrefix(u.ID), func(_, value []byte) error {
			var p DividendPayment
			if err := decode(value, &p); err != nil {
				return err
			}
			if !p.Paid {
				pending = append(pending, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}
