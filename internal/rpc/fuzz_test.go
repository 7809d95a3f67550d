package rpc

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stackmint/stackmint-core/config"
	"github.com/stackmint/stackmint-core/internal/ledger"
	"github.com/stackmint/stackmint-core/internal/storage"
)

// FuzzHandleRequest feeds arbitrary bodies to the HTTP handler. Whatever
// comes in, the server must answer with a well-formed envelope and never
// panic.
func FuzzHandleRequest(f *testing.F) {
	f.Add([]byte(`{"jsonrpc":"2.0","method":"token_list","id":1}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"ledger_transfer","params":{"amount":"-1"},"id":2}`))
	f.Add([]byte(`{`))
	f.Add([]byte(``))
	f.Add([]byte(`[1,2,3]`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"payout_build","params":{"utxos":[{"txid":"zz"}],"outputs":[{}]},"id":3}`))

	l := ledger.New(storage.NewMemory())
	s := New("127.0.0.1:0", l, config.BuilderConfig{})

	f.Fuzz(func(t *testing.T, body []byte) {
		req := httptest.NewRequest("POST", "/", bytes.NewReader(body))
		w := httptest.NewRecorder()
		s.handleRequest(w, req)
		if w.Code == 0 {
			t.Fatal("no status written")
		}
	})
}
