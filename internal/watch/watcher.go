package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"driftexport/pkg/drift"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AccountSource reads the current state of an account over RPC.
type AccountSource interface {
	GetAccount(ctx context.Context, key solana.PublicKey) (*drift.RawAccount, uint64, error)
}

// Subscriber streams account notifications.
type Subscriber interface {
	SetHandler(h drift.AccountHandler)
	Connect(ctx context.Context) error
	Listen(ctx context.Context) error
}

// Watcher follows one account: it loads the current state, subscribes for
// notifications and, when Resync is set, re-reads the account periodically
// so that missed notifications are caught up.
type Watcher struct {
	Address solana.PublicKey
	Source  AccountSource
	Stream  Subscriber
	Handler drift.AccountHandler
	Resync  time.Duration
	Logger  *zap.Logger

	mu       sync.Mutex
	lastSlot uint64
}

// Run blocks until ctx is done or the stream fails.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Logger == nil {
		w.Logger = zap.NewNop()
	}

	if w.Source != nil {
		if err := w.poll(ctx); err != nil {
			return fmt.Errorf("initial load of %s: %w", w.Address, err)
		}
	}

	w.Stream.SetHandler(w.deliver)
	if err := w.Stream.Connect(ctx); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Stream.Listen(gCtx)
	})
	if w.Source != nil && w.Resync > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.Resync)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					if err := w.poll(gCtx); err != nil && !errors.Is(err, context.Canceled) {
						w.Logger.Warn("resync failed", zap.Error(err))
					}
				}
			}
		})
	}
	return g.Wait()
}

func (w *Watcher) poll(ctx context.Context) error {
	acc, slot, err := w.Source.GetAccount(ctx, w.Address)
	if err != nil {
		return err
	}
	w.deliver(slot, acc.Data)
	return nil
}

// deliver serializes updates and drops any older than the newest seen.
func (w *Watcher) deliver(slot uint64, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if slot < w.lastSlot {
		w.Logger.Debug("dropping out-of-order update", zap.Uint64("slot", slot), zap.Uint64("last_slot", w.lastSlot))
		return
	}
	w.lastSlot = slot
	w.Handler(slot, data)
}
