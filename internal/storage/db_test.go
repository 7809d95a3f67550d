package storage

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// testDB runs the shared test suite against a DB implementation.
func testDB(t *testing.T, db DB) {
	t.Helper()

	t.Run("SetAndGet", func(t *testing.T) {
		err := db.Update(func(txn Txn) error {
			return txn.Set([]byte("key1"), []byte("value1"))
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		err = db.View(func(txn Txn) error {
			v, err := txn.Get([]byte("key1"))
			if err != nil {
				return err
			}
			if !bytes.Equal(v, []byte("value1")) {
				t.Errorf("Get = %q, want value1", v)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("View: %v", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		err := db.View(func(txn Txn) error {
			_, err := txn.Get([]byte("missing"))
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("View: %v", err)
		}
	})

	t.Run("ReadYourWrites", func(t *testing.T) {
		err := db.Update(func(txn Txn) error {
			if err := txn.Set([]byte("ryw"), []byte("a")); err != nil {
				return err
			}
			v, err := txn.Get([]byte("ryw"))
			if err != nil {
				return err
			}
			if !bytes.Equal(v, []byte("a")) {
				t.Errorf("uncommitted read = %q, want a", v)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	})

	t.Run("FailedUpdateRollsBack", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.Update(func(txn Txn) error {
			if err := txn.Set([]byte("rollback"), []byte("x")); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update err = %v, want boom", err)
		}
		err = db.View(func(txn Txn) error {
			ok, err := txn.Has([]byte("rollback"))
			if err != nil {
				return err
			}
			if ok {
				t.Error("failed update must leave no partial state")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("View: %v", err)
		}
	})

	t.Run("EmptyValue", func(t *testing.T) {
		err := db.Update(func(txn Txn) error {
			return txn.Set([]byte("empty"), nil)
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		err = db.View(func(txn Txn) error {
			ok, err := txn.Has([]byte("empty"))
			if err != nil {
				return err
			}
			if !ok {
				t.Error("a key with an empty value is still a present key")
			}
			v, err := txn.Get([]byte("empty"))
			if err != nil {
				return err
			}
			if len(v) != 0 {
				t.Errorf("Get = %q, want empty", v)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("View: %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		err := db.Update(func(txn Txn) error {
			if err := txn.Set([]byte("gone"), []byte("x")); err != nil {
				return err
			}
			return txn.Delete([]byte("gone"))
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		err = db.View(func(txn Txn) error {
			ok, err := txn.Has([]byte("gone"))
			if err != nil {
				return err
			}
			if ok {
				t.Error("deleted key should not exist")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("View: %v", err)
		}
	})

	t.Run("ForEachOrdered", func(t *testing.T) {
		err := db.Update(func(txn Txn) error {
			for i := 9; i >= 0; i-- {
				key := fmt.Appendf(nil, "scan/%02d", i)
				if err := txn.Set(key, []byte{byte(i)}); err != nil {
					return err
				}
			}
			return txn.Set([]byte("other/x"), []byte("noise"))
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}

		var got []string
		err = db.View(func(txn Txn) error {
			return txn.ForEach([]byte("scan/"), func(key, _ []byte) error {
				got = append(got, string(key))
				return nil
			})
		})
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		if len(got) != 10 {
			t.Fatalf("ForEach visited %d keys, want 10", len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i-1] >= got[i] {
				t.Errorf("keys out of order: %q before %q", got[i-1], got[i])
			}
		}
	})

	t.Run("ForEachEarlyStop", func(t *testing.T) {
		stop := errors.New("stop")
		count := 0
		err := db.View(func(txn Txn) error {
			err := txn.ForEach([]byte("scan/"), func(_, _ []byte) error {
				count++
				if count == 3 {
					return stop
				}
				return nil
			})
			if !errors.Is(err, stop) {
				t.Errorf("ForEach err = %v, want stop", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("View: %v", err)
		}
		if count != 3 {
			t.Errorf("visited %d keys, want 3", count)
		}
	})
}

func TestMemoryDB(t *testing.T) {
	testDB(t, NewMemory())
}

func TestBadgerDB(t *testing.T) {
	db, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	defer db.Close()
	testDB(t, db)
}

func TestMemoryDB_UpdateSeesPendingInForEach(t *testing.T) {
	db := NewMemory()
	err := db.Update(func(txn Txn) error {
		if err := txn.Set([]byte("p/1"), []byte("a")); err != nil {
			return err
		}
		found := false
		err := txn.ForEach([]byte("p/"), func(key, _ []byte) error {
			if string(key) == "p/1" {
				found = true
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !found {
			t.Error("ForEach must observe the transaction's own writes")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}
