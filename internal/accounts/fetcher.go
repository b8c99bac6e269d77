package accounts

import (
	"context"

	"driftexport/internal/snapshot"
	"driftexport/pkg/drift"

	"go.uber.org/zap"
)

// Options tune a batch fetch.
type Options struct {
	ChunkSize   int
	Concurrency int
}

// UserStatsFetcher loads every UserStats account.
type UserStatsFetcher struct {
	Client  Client
	Options Options
	Logger  *zap.Logger
}

var _ snapshot.Fetcher[UserStatsSet] = (*UserStatsFetcher)(nil)

func (f *UserStatsFetcher) Fetch(ctx context.Context) (UserStatsSet, error) {
	items, slot, stats, err := fetchAll(ctx, f.Client, drift.AccountUserStats,
		drift.DecodeUserStats,
		func(s drift.UserStats) string { return s.Address },
		f.Options.ChunkSize, f.Options.Concurrency, loggerOrNop(f.Logger),
	)
	if err != nil {
		return UserStatsSet{}, err
	}
	return UserStatsSet{Slot: slot, Accounts: items, Stats: stats}, nil
}

// UserFetcher loads every User (sub-account).
type UserFetcher struct {
	Client  Client
	Options Options
	Logger  *zap.Logger
}

var _ snapshot.Fetcher[UserSet] = (*UserFetcher)(nil)

func (f *UserFetcher) Fetch(ctx context.Context) (UserSet, error) {
	items, slot, stats, err := fetchAll(ctx, f.Client, drift.AccountUser,
		drift.DecodeUser,
		func(u drift.User) string { return u.Address },
		f.Options.ChunkSize, f.Options.Concurrency, loggerOrNop(f.Logger),
	)
	if err != nil {
		return UserSet{}, err
	}
	return UserSet{Slot: slot, Accounts: items, Stats: stats}, nil
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
