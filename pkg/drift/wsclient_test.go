package drift_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"driftexport/pkg/drift"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type update struct {
	slot uint64
	data []byte
}

// go test -v --run TestWSClientReceivesNotifications
func TestWSClientReceivesNotifications(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := connections.Add(1)

		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if sub["method"] != "accountSubscribe" {
			return
		}
		_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "result": 7, "id": 1})

		payload := base64.StdEncoding.EncodeToString([]byte{byte(n)})
		_ = conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "accountNotification",
			"params": map[string]interface{}{
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 100 + n},
					"value":   map[string]interface{}{"data": []string{payload, "base64"}},
				},
				"subscription": 7,
			},
		})
		// The first connection drops to exercise reconnects.
		if n > 1 {
			_, _, _ = conn.ReadMessage()
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := drift.NewWSClient(wsURL, solana.MustPublicKeyFromBase58(authority), "confirmed", zap.NewNop())
	client.SetRetryDelay(10 * time.Millisecond)

	updates := make(chan update, 4)
	client.SetHandler(func(slot uint64, data []byte) {
		updates <- update{slot: slot, data: data}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))

	done := make(chan error, 1)
	go func() { done <- client.Listen(ctx) }()

	first := <-updates
	assert.Equal(t, uint64(101), first.slot)
	assert.Equal(t, []byte{1}, first.data)

	second := <-updates
	assert.Equal(t, uint64(102), second.slot)
	assert.Equal(t, []byte{2}, second.data)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
