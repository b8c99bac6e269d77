package drift_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"driftexport/pkg/drift"
	"driftexport/pkg/drift/drifttest"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newRPCServer answers JSON-RPC calls with results produced by handle.
func newRPCServer(t *testing.T, handle func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": handle(req)}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func accountJSON(data []byte) map[string]interface{} {
	return map[string]interface{}{
		"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
		"executable": false,
		"lamports":   1_000_000,
		"owner":      drift.DefaultProgramID,
		"rentEpoch":  0,
		"space":      len(data),
	}
}

func newClient(url string) *drift.RPCClient {
	return drift.NewRPCClient(url, solana.MustPublicKeyFromBase58(drift.DefaultProgramID), "confirmed", 5*time.Second)
}

// go test -v --run TestListAccountKeys
func TestListAccountKeys(t *testing.T) {
	var gotMethod string
	var gotOpts map[string]interface{}
	srv := newRPCServer(t, func(req rpcRequest) interface{} {
		gotMethod = req.Method
		require.Len(t, req.Params, 2)
		require.NoError(t, json.Unmarshal(req.Params[1], &gotOpts))
		return []interface{}{
			map[string]interface{}{"pubkey": authority, "account": accountJSON(nil)},
			map[string]interface{}{"pubkey": referrer, "account": accountJSON(nil)},
		}
	})

	keys, err := newClient(srv.URL).ListAccountKeys(context.Background(), drift.AccountUserStats)
	require.NoError(t, err)

	assert.Equal(t, "getProgramAccounts", gotMethod)
	assert.Equal(t, []solana.PublicKey{
		solana.MustPublicKeyFromBase58(authority),
		solana.MustPublicKeyFromBase58(referrer),
	}, keys)

	// Key-only listing filtered by discriminator.
	assert.Equal(t, map[string]interface{}{"offset": float64(0), "length": float64(0)}, gotOpts["dataSlice"])
	filters, ok := gotOpts["filters"].([]interface{})
	require.True(t, ok)
	require.Len(t, filters, 1)
	disc := drift.Discriminator(drift.AccountUserStats)
	memcmp := filters[0].(map[string]interface{})["memcmp"].(map[string]interface{})
	assert.Equal(t, solana.Base58(disc[:]).String(), memcmp["bytes"])
}

func TestListAccountKeysUnknownType(t *testing.T) {
	_, err := newClient("http://127.0.0.1:0").ListAccountKeys(context.Background(), "PerpMarket")
	assert.Error(t, err)
}

// go test -v --run TestGetAccounts
func TestGetAccounts(t *testing.T) {
	stats := drifttest.UserStats(drift.UserStats{Authority: authority, FuelTaker: 9})
	srv := newRPCServer(t, func(req rpcRequest) interface{} {
		assert.Equal(t, "getMultipleAccounts", req.Method)
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 321},
			"value":   []interface{}{accountJSON(stats), nil},
		}
	})

	keys := []solana.PublicKey{
		solana.MustPublicKeyFromBase58(authority),
		solana.MustPublicKeyFromBase58(referrer),
	}
	batch, err := newClient(srv.URL).GetAccounts(context.Background(), keys)
	require.NoError(t, err)

	assert.Equal(t, uint64(321), batch.Slot)
	require.Len(t, batch.Accounts, 2)
	require.NotNil(t, batch.Accounts[0])
	assert.Nil(t, batch.Accounts[1])
	assert.Equal(t, keys[0], batch.Accounts[0].Address)
	assert.Equal(t, stats, batch.Accounts[0].Data)
}

func TestGetAccountNotFound(t *testing.T) {
	srv := newRPCServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value":   nil,
		}
	})

	_, _, err := newClient(srv.URL).GetAccount(context.Background(), solana.MustPublicKeyFromBase58(authority))
	assert.ErrorIs(t, err, drift.ErrAccountNotFound)
}

func TestSlot(t *testing.T) {
	srv := newRPCServer(t, func(req rpcRequest) interface{} {
		assert.Equal(t, "getSlot", req.Method)
		return 777
	})

	slot, err := newClient(srv.URL).Slot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(777), slot)
}

func TestWSURLFromRPC(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"https://api.mainnet-beta.solana.com", "wss://api.mainnet-beta.solana.com", false},
		{"http://127.0.0.1:8899/?api-key=abc", "ws://127.0.0.1:8899/?api-key=abc", false},
		{"wss://already.example.com", "wss://already.example.com", false},
		{"ftp://nope", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := drift.WSURLFromRPC(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
