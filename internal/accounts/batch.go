package accounts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"driftexport/pkg/drift"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxChunkSize is the getMultipleAccounts limit enforced by RPC nodes.
const MaxChunkSize = 100

// Client is what the batch fetch needs from an RPC node.
type Client interface {
	drift.AccountLister
	drift.AccountGetter
}

// BatchStats summarises one batch fetch.
type BatchStats struct {
	Listed       int `json:"listed"`
	Chunks       int `json:"chunks"`
	FailedChunks int `json:"failed_chunks"`
	Missing      int `json:"missing"`
	Undecodable  int `json:"undecodable"`
	Decoded      int `json:"decoded"`
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

type decodeFunc[T any] func(address string, data []byte) (T, error)

type chunkResult[T any] struct {
	slot        uint64
	items       []T
	failed      bool
	missing     int
	undecodable int
}

// fetchAll lists every account of type name and fetches it in chunks.
// A failed chunk is logged and skipped; so is an account that does not decode.
// It fails only when listing fails, the context ends, or every chunk fails.
func fetchAll[T any](
	ctx context.Context,
	client Client,
	name drift.AccountName,
	decode decodeFunc[T],
	addressOf func(T) string,
	chunkSize, concurrency int,
	logger *zap.Logger,
) ([]T, uint64, BatchStats, error) {
	var stats BatchStats
	start := time.Now()

	keys, err := client.ListAccountKeys(ctx, name)
	if err != nil {
		return nil, 0, stats, fmt.Errorf("list %s accounts: %w", name, err)
	}
	stats.Listed = len(keys)
	logger.Info("listed accounts", zap.String("type", string(name)), zap.Int("count", len(keys)))

	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	chunks := Chunk(keys, chunkSize)
	stats.Chunks = len(chunks)
	results := make([]chunkResult[T], len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			results[i] = fetchChunk(gCtx, client, chunk, decode, logger.With(zap.Int("chunk", i)))
			// Never fail the group; one bad chunk must not cancel the rest.
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, stats, err
	}

	var (
		items []T
		slot  uint64
	)
	for _, r := range results {
		if r.failed {
			stats.FailedChunks++
			continue
		}
		stats.Missing += r.missing
		stats.Undecodable += r.undecodable
		slot = max(slot, r.slot)
		items = append(items, r.items...)
	}
	stats.Decoded = len(items)

	if stats.Chunks > 0 && stats.FailedChunks == stats.Chunks {
		return nil, 0, stats, fmt.Errorf("all %d chunks of %s accounts failed", stats.Chunks, name)
	}

	sort.Slice(items, func(i, j int) bool {
		return addressOf(items[i]) < addressOf(items[j])
	})

	logger.Info("fetched accounts",
		zap.String("type", string(name)),
		zap.Int("decoded", stats.Decoded),
		zap.Int("failed_chunks", stats.FailedChunks),
		zap.Int("undecodable", stats.Undecodable),
		zap.Uint64("slot", slot),
		zap.Duration("elapsed", time.Since(start)),
	)
	return items, slot, stats, nil
}

func fetchChunk[T any](
	ctx context.Context,
	client Client,
	keys []solana.PublicKey,
	decode decodeFunc[T],
	logger *zap.Logger,
) chunkResult[T] {
	batch, err := client.GetAccounts(ctx, keys)
	if err != nil {
		logger.Warn("chunk fetch failed, skipping", zap.Int("keys", len(keys)), zap.Error(err))
		return chunkResult[T]{failed: true}
	}

	res := chunkResult[T]{slot: batch.Slot, items: make([]T, 0, len(keys))}
	for i, raw := range batch.Accounts {
		if raw == nil {
			res.missing++
			continue
		}
		item, err := decode(raw.Address.String(), raw.Data)
		if err != nil {
			res.undecodable++
			logger.Debug("skipping undecodable account", zap.Stringer("address", keys[i]), zap.Error(err))
			continue
		}
		res.items = append(res.items, item)
	}
	return res
}
