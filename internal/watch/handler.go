// Package watch follows a single UserStats account and reports FUEL changes.
package watch

import (
	"context"
	"sort"
	"time"

	"driftexport/internal/accounts"
	"driftexport/pkg/drift"

	"go.uber.org/zap"
)

// Recorder persists observed account states.
type Recorder interface {
	SaveUserStats(ctx context.Context, capturedAt time.Time, accounts []drift.UserStats) (int64, error)
}

// MakeUpdateHandler returns a handler for account notifications of the
// UserStats account at address. Each update is decoded, compared with the
// previous state held in store, and logged as per-counter deltas.
// When recorder is non-nil, changed states are also recorded.
func MakeUpdateHandler(logger *zap.Logger, store *accounts.Store, address string, recorder Recorder) drift.AccountHandler {
	return func(slot uint64, data []byte) {
		cur, err := drift.DecodeUserStats(address, data)
		if err != nil {
			logger.Warn("failed to decode user stats update", zap.Uint64("slot", slot), zap.Error(err))
			return
		}

		prev, seen := store.GetByAuthority(cur.Authority)
		store.Put(cur)

		fuel := cur.Fuel()
		if !seen {
			logger.Info("initial fuel",
				zap.Uint64("slot", slot),
				zap.String("authority", cur.Authority),
				zap.Uint64("total", fuel.Total()),
			)
			record(logger, recorder, cur)
			return
		}

		deltas := fuel.Sub(prev.Fuel())
		if len(deltas) == 0 {
			logger.Debug("account updated without fuel change", zap.Uint64("slot", slot))
			return
		}

		names := make([]string, 0, len(deltas))
		for name := range deltas {
			names = append(names, name)
		}
		sort.Strings(names)

		fields := []zap.Field{
			zap.Uint64("slot", slot),
			zap.String("authority", cur.Authority),
			zap.Uint64("total", fuel.Total()),
		}
		for _, name := range names {
			fields = append(fields, zap.Int64(name, deltas[name]))
		}
		logger.Info("fuel changed", fields...)
		record(logger, recorder, cur)
	}
}

func record(logger *zap.Logger, recorder Recorder, s drift.UserStats) {
	if recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := recorder.SaveUserStats(ctx, time.Now().UTC(), []drift.UserStats{s}); err != nil {
		logger.Warn("failed to record user stats", zap.Error(err))
	}
}
