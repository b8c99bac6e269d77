package drift

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AccountHandler receives every account update pushed by the node.
type AccountHandler func(slot uint64, data []byte)

// WSClient subscribes to a single account over the Solana pubsub websocket.
type WSClient struct {
	url        string
	account    solana.PublicKey
	commitment string
	retryDelay time.Duration
	handler    AccountHandler
	logger     *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSClient creates a client for account. Call SetHandler before Listen.
func NewWSClient(wsURL string, account solana.PublicKey, commitment string, logger *zap.Logger) *WSClient {
	if commitment == "" {
		commitment = "confirmed"
	}
	return &WSClient{
		url:        wsURL,
		account:    account,
		commitment: commitment,
		retryDelay: 3 * time.Second,
		logger:     logger,
	}
}

func (c *WSClient) SetHandler(h AccountHandler) {
	c.handler = h
}

// SetRetryDelay overrides the pause between reconnect attempts.
func (c *WSClient) SetRetryDelay(d time.Duration) {
	c.retryDelay = d
}

type subscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type wsMessage struct {
	Method string          `json:"method"`
	ID     *int            `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Params *struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value *struct {
				Data []string `json:"data"`
			} `json:"value"`
		} `json:"result"`
		Subscription uint64 `json:"subscription"`
	} `json:"params,omitempty"`
}

// Connect dials the endpoint and sends accountSubscribe. It does not start the listener.
func (c *WSClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Error("Failed to connect to WebSocket", zap.String("url", c.url), zap.Error(err))
		return err
	}

	if err := conn.WriteJSON(c.subscription()); err != nil {
		_ = conn.Close()
		return fmt.Errorf("websocket subscribe failed: %w", err)
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	c.logger.Info("WebSocket connected", zap.String("url", c.url), zap.Stringer("account", c.account))
	return nil
}

func (c *WSClient) subscription() subscribeRequest {
	return subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "accountSubscribe",
		Params: []interface{}{
			c.account.String(),
			map[string]string{"encoding": "base64", "commitment": c.commitment},
		},
	}
}

// Listen reads notifications until ctx is done, reconnecting on read errors.
func (c *WSClient) Listen(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket not connected")
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("WebSocket read error", zap.Error(err))

			// Retry reconnecting until the context ends
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.retryDelay):
				}
				if err := c.Connect(ctx); err != nil {
					c.logger.Warn("Retrying reconnect...")
					continue
				}
				c.logger.Info("Reconnected successfully")
				break
			}
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) handleMessage(msg []byte) {
	var m wsMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		c.logger.Warn("undecodable websocket message", zap.Error(err))
		return
	}

	switch {
	case m.Error != nil:
		c.logger.Error("subscription error", zap.Int("code", m.Error.Code), zap.String("message", m.Error.Message))
	case m.ID != nil:
		c.logger.Debug("subscription confirmed", zap.ByteString("id", m.Result))
	case m.Method == "accountNotification" && m.Params != nil:
		value := m.Params.Result.Value
		if value == nil || len(value.Data) == 0 {
			return
		}
		data, err := base64.StdEncoding.DecodeString(value.Data[0])
		if err != nil {
			c.logger.Warn("bad account data encoding", zap.Error(err))
			return
		}
		if c.handler != nil {
			c.handler(m.Params.Result.Context.Slot, data)
		}
	}
}

// Close closes the current connection, if any.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// WSURLFromRPC derives the pubsub endpoint from an HTTP RPC URL.
func WSURLFromRPC(rpcURL string) (string, error) {
	u, err := url.Parse(rpcURL)
	if err != nil {
		return "", fmt.Errorf("parse rpc url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported rpc url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
