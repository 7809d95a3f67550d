package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/stackmint/stackmint-core/internal/storage"
)

// Key layout. All values are JSON.
//
//	tok/<tokenID>                         Token
//	bal/<tokenID>/<userID>                Balance (prefix scan = cap table)
//	rec/<inverted-ns>/<recordID>          Record (ascending scan = newest first)
//	pur/<purchaseID>                      Purchase
//	wd/<withdrawalID>                     Withdrawal
//	wdp/<tokenID>/<userID>/<withdrawalID> pending-withdrawal amount (reservation index)
//	div/<userID>/<paymentID>              DividendPayment
//	usr/id/<userID>                       User
//	usr/email/<email>                     userID (identity index)

func tokenKey(id string) []byte {
	return []byte("tok/" + id)
}

func balanceKey(tokenID, userID string) []byte {
	return []byte("bal/" + tokenID + "/" + userID)
}

func balancePrefix(tokenID string) []byte {
	return []byte("bal/" + tokenID + "/")
}

// recordKey orders the log newest-first under ascending iteration by
// storing an inverted nanosecond timestamp. The record id breaks ties
// between same-nanosecond writes.
func recordKey(ts time.Time, id string) []byte {
	inv := uint64(math.MaxInt64 - ts.UnixNano())
	return fmt.Appendf(nil, "rec/%020d/%s", inv, id)
}

func purchaseKey(id string) []byte {
	return []byte("pur/" + id)
}

func withdrawalKey(id string) []byte {
	return []byte("wd/" + id)
}

func pendingKey(tokenID, userID, withdrawalID string) []byte {
	return []byte("wdp/" + tokenID + "/" + userID + "/" + withdrawalID)
}

func pendingPrefix(tokenID, userID string) []byte {
	return []byte("wdp/" + tokenID + "/" + userID + "/")
}

func dividendKey(userID, paymentID string) []byte {
	return []byte("div/" + userID + "/" + paymentID)
}

func dividendPrefix(userID string) []byte {
	return []byte("div/" + userID + "/")
}

func userKey(id string) []byte {
	return []byte("usr/id/" + id)
}

func emailKey(email string) []byte {
	return []byte("usr/email/" + email)
}

// getJSON loads and unmarshals the value at key into v.
func getJSON(txn storage.Txn, key []byte, v interface{}) error {
	data, err := txn.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// decode unmarshals a raw stored value into v.
func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode stored value: %w", err)
	}
	return nil
}

// putJSON marshals v and stores it at key.
func putJSON(txn storage.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}
