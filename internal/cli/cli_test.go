package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"driftexport/config"
	"driftexport/internal/report"
	"driftexport/pkg/drift"
	"driftexport/pkg/drift/drifttest"
	"driftexport/pkg/storage/postgres"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(i int) solana.PublicKey {
	var b [32]byte
	b[0] = byte(i)
	b[1] = byte(i >> 8)
	b[31] = 9
	return solana.PublicKeyFromBytes(b[:])
}

// fakeRPC serves fixed account bytes keyed by address.
type fakeRPC struct {
	programID solana.PublicKey
	stats     map[solana.PublicKey][]byte
	users     map[solana.PublicKey][]byte
}

func (f *fakeRPC) ListAccountKeys(_ context.Context, name drift.AccountName) ([]solana.PublicKey, error) {
	src := f.stats
	if name == drift.AccountUser {
		src = f.users
	}
	keys := make([]solana.PublicKey, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeRPC) GetAccounts(_ context.Context, keys []solana.PublicKey) (*drift.AccountBatch, error) {
	batch := &drift.AccountBatch{Slot: 77, Accounts: make([]*drift.RawAccount, len(keys))}
	for i, k := range keys {
		if data, ok := f.lookup(k); ok {
			batch.Accounts[i] = &drift.RawAccount{Address: k, Data: data}
		}
	}
	return batch, nil
}

func (f *fakeRPC) GetAccount(_ context.Context, key solana.PublicKey) (*drift.RawAccount, uint64, error) {
	data, ok := f.lookup(key)
	if !ok {
		return nil, 77, drift.ErrAccountNotFound
	}
	return &drift.RawAccount{Address: key, Data: data}, 77, nil
}

func (f *fakeRPC) lookup(key solana.PublicKey) ([]byte, bool) {
	if data, ok := f.stats[key]; ok {
		return data, true
	}
	data, ok := f.users[key]
	return data, ok
}

func (f *fakeRPC) ProgramID() solana.PublicKey { return f.programID }
func (f *fakeRPC) Close() error                { return nil }

// fakeDB stands in for the postgres history store.
type fakeDB struct {
	saved      []drift.UserStats
	capturedAt time.Time
	history    []postgres.UserStatsRecord
	cutoff     time.Time
	closed     bool
}

func (d *fakeDB) SaveUserStats(_ context.Context, capturedAt time.Time, accs []drift.UserStats) (int64, error) {
	d.capturedAt = capturedAt
	d.saved = append(d.saved, accs...)
	return int64(len(accs)), nil
}

func (d *fakeDB) GetUserStatsHistory(_ context.Context, authority string, limit int) ([]postgres.UserStatsRecord, error) {
	var out []postgres.UserStatsRecord
	for _, r := range d.history {
		if r.Authority == authority && (limit == 0 || len(out) < limit) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *fakeDB) DeleteUserStatsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	d.cutoff = cutoff
	kept := d.history[:0]
	for _, r := range d.history {
		if !r.CapturedAt.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	n := int64(len(d.history) - len(kept))
	d.history = kept
	return n, nil
}

func (d *fakeDB) Close() error {
	d.closed = true
	return nil
}

type harness struct {
	app      *app
	rpc      *fakeRPC
	db       *fakeDB
	dials    atomic.Int32
	cacheDir string
	outDir   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("RPC_URL", "")

	programID, err := drift.ParseProgramID(config.DefaultProgramID)
	require.NoError(t, err)

	h := &harness{cacheDir: t.TempDir(), outDir: t.TempDir()}
	h.rpc = &fakeRPC{
		programID: programID,
		stats:     make(map[solana.PublicKey][]byte),
		users:     make(map[solana.PublicKey][]byte),
	}

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	h.app = newApp("test")
	h.app.now = func() time.Time { return now }
	h.app.dial = func(context.Context, *config.Config) (rpcClient, error) {
		h.dials.Add(1)
		return h.rpc, nil
	}
	h.db = &fakeDB{}
	h.app.openDB = func(*config.Config, bool) (statsDB, error) {
		return h.db, nil
	}
	return h
}

func (h *harness) addStats(t *testing.T, authority solana.PublicKey, s drift.UserStats) solana.PublicKey {
	t.Helper()
	addr, err := drift.UserStatsAddress(h.rpc.programID, authority)
	require.NoError(t, err)
	s.Authority = authority.String()
	h.rpc.stats[addr] = drifttest.UserStats(s)
	return addr
}

func (h *harness) addUser(t *testing.T, authority solana.PublicKey, u drift.User) solana.PublicKey {
	t.Helper()
	addr, err := drift.UserAddress(h.rpc.programID, authority, u.SubAccountID)
	require.NoError(t, err)
	u.Authority = authority.String()
	h.rpc.users[addr] = drifttest.User(u)
	return addr
}

func (h *harness) command(out *bytes.Buffer, args []string) *cobra.Command {
	cmd := newRootCmd(h.app)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append(args, "--cache-dir", h.cacheDir))
	return cmd
}

func (h *harness) run(args ...string) (string, error) {
	var out bytes.Buffer
	err := h.command(&out, args).Execute()
	return out.String(), err
}

// exec runs the command tree the way Execute does and returns the exit code.
func (h *harness) exec(args ...string) (int, string) {
	var out bytes.Buffer
	code := execute(h.command(&out, args))
	return code, out.String()
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

// go test -v --run TestExportFuelReusesSnapshot
func TestExportFuelReusesSnapshot(t *testing.T) {
	h := newHarness(t)
	h.addStats(t, testKey(1), drift.UserStats{FuelTaker: 1500, FuelMaker: 20})
	h.addStats(t, testKey(2), drift.UserStats{})
	h.addStats(t, testKey(3), drift.UserStats{FuelDeposits: 7})

	out := filepath.Join(h.outDir, "fuel.csv")
	_, err := h.run("export", "fuel", "--skip-zero", "--output", out)
	require.NoError(t, err)

	rows := readCSV(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, "authority_address", rows[0][0])
	assert.Equal(t, int32(1), h.dials.Load())

	// Second run within max age reads the cache.
	_, err = h.run("export", "fuel", "--output", out)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, out), 4)
	assert.Equal(t, int32(1), h.dials.Load())

	// A forced refresh in the same second cannot be persisted but still exports.
	logs, err := h.run("export", "fuel", "--force-refresh", "--output", out)
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.dials.Load())
	assert.Contains(t, logs, "snapshot fetched but not saved")
}

func TestExportUserStatsDefaultFilename(t *testing.T) {
	h := newHarness(t)
	h.addStats(t, testKey(1), drift.UserStats{FuelTaker: 3})

	t.Setenv("DRIFTEXPORT_EXPORT_OUTPUT_DIR", h.outDir)
	out, err := h.run("export", "userstats")
	require.NoError(t, err)

	want := filepath.Join(h.outDir, "06012025100000_user_stats_full_export.csv")
	assert.Contains(t, out, want)
	rows := readCSV(t, want)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 30)
}

func TestExportUserStatsRejectsUnknownSink(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("export", "userstats", "--sink", "kafka")
	require.Error(t, err)

	var usage *usageError
	assert.ErrorAs(t, err, &usage)
	assert.Equal(t, int32(0), h.dials.Load())
}

func TestFuelCommand(t *testing.T) {
	h := newHarness(t)
	authority := testKey(5)
	h.addStats(t, authority, drift.UserStats{FuelTaker: 1_234_567, FuelInsurance: 3})

	out, err := h.run("fuel", authority.String())
	require.NoError(t, err)
	assert.Contains(t, out, "FUEL for "+authority.String())
	assert.Contains(t, out, "1,234,570")

	_, err = h.run("fuel", testKey(6).String())
	assert.ErrorIs(t, err, drift.ErrAccountNotFound)
}

func TestDeriveCommands(t *testing.T) {
	h := newHarness(t)
	authority := testKey(8)

	want, err := drift.UserStatsAddress(h.rpc.programID, authority)
	require.NoError(t, err)
	out, err := h.run("derive", "stats", authority.String())
	require.NoError(t, err)
	assert.Equal(t, want.String()+"\n", out)

	out, err = h.run("derive", "users", authority.String(), "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	sub2, err := drift.UserAddress(h.rpc.programID, authority, 2)
	require.NoError(t, err)
	assert.Equal(t, "2\t"+sub2.String(), lines[2])

	_, err = h.run("derive", "users", authority.String(), "0")
	assert.Error(t, err)

	userAddr, err := drift.UserAddress(h.rpc.programID, authority, 4)
	require.NoError(t, err)
	h.rpc.users[userAddr] = drifttest.User(drift.User{Authority: authority.String(), SubAccountID: 4})
	out, err = h.run("derive", "authority", userAddr.String())
	require.NoError(t, err)
	assert.Equal(t, authority.String()+"\tsub_account=4\n", out)
}

func TestTiersAndCompareCommands(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")
	header := "authority_address,user_stats_address,fuel_insurance,fuel_deposits,fuel_borrows,fuel_positions,fuel_taker,fuel_maker,total_fuel\n"
	require.NoError(t, os.WriteFile(first, []byte(header+"a,s1,0,0,0,0,10,0,10\nb,s2,0,0,0,0,0,0,0\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(header+"a,s1,0,0,0,0,12,0,12\nc,s3,0,0,0,0,6000,0,6000\n"), 0o644))

	out, err := h.run("tiers", first)
	require.NoError(t, err)
	assert.Contains(t, out, "Total accounts analyzed: 2")

	merged := filepath.Join(dir, "cmp.csv")
	out, err = h.run("compare", first, second, "--output", merged)
	require.NoError(t, err)
	assert.Contains(t, out, "Present in both files: 1")
	assert.Contains(t, out, "Mismatched balances: 1")

	rows := readCSV(t, merged)
	assert.Equal(t, report.ComparisonColumns, rows[0])
	assert.Len(t, rows, 4)
}

func TestSnapshotsListAndPrune(t *testing.T) {
	h := newHarness(t)
	h.addStats(t, testKey(1), drift.UserStats{FuelTaker: 1})
	out := filepath.Join(h.outDir, "fuel.csv")

	base := h.app.now()
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * 2 * time.Hour)
		h.app.now = func() time.Time { return at }
		_, err := h.run("export", "fuel", "--output", out)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), h.dials.Load())

	listing, err := h.run("snapshots", "list", "--dataset", "userstats")
	require.NoError(t, err)
	assert.Contains(t, listing, "userstats-2025-06-01-14-00-00")
	assert.Contains(t, listing, "userstats-2025-06-01-10-00-00")

	pruned, err := h.run("snapshots", "prune", "--keep", "1", "--dataset", "userstats")
	require.NoError(t, err)
	assert.Contains(t, pruned, "removed userstats-2025-06-01-12-00-00")
	assert.Contains(t, pruned, "removed userstats-2025-06-01-10-00-00")
	assert.NotContains(t, pruned, "14-00-00")

	_, err = h.run("snapshots", "list", "--dataset", "bogus")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("version")
	require.NoError(t, err)
	assert.Equal(t, "driftexport version test\n", out)
}

// go test -v --run TestExitCodes
func TestExitCodes(t *testing.T) {
	h := newHarness(t)
	h.addStats(t, testKey(1), drift.UserStats{FuelTaker: 1})

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"success", []string{"version"}, ExitSuccess},
		{"unknown flag", []string{"export", "fuel", "--bogus"}, ExitUsageError},
		{"bad flag value", []string{"snapshots", "prune", "--keep", "many"}, ExitUsageError},
		{"missing argument", []string{"fuel"}, ExitUsageError},
		{"extra argument", []string{"tiers", "a.csv", "b.csv"}, ExitUsageError},
		{"invalid key", []string{"derive", "stats", "not-a-key"}, ExitUsageError},
		{"unknown sink", []string{"export", "userstats", "--sink", "kafka"}, ExitUsageError},
		{"negative max age", []string{"export", "fuel", "--max-age", "-1m"}, ExitUsageError},
		{"account not found", []string{"fuel", testKey(2).String()}, ExitRuntimeError},
		{"missing csv", []string{"tiers", filepath.Join(h.outDir, "absent.csv")}, ExitRuntimeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := h.exec(tt.args...)
			assert.Equal(t, tt.want, code, out)
		})
	}
}

func TestPositionsCommand(t *testing.T) {
	h := newHarness(t)
	alice, bob := testKey(20), testKey(21)
	h.addUser(t, alice, drift.User{
		SubAccountID:  1,
		SpotPositions: []drift.SpotPosition{{MarketIndex: 0, ScaledBalance: 2_000_000_000}},
	})
	h.addUser(t, alice, drift.User{
		SubAccountID:  0,
		PerpPositions: []drift.PerpPosition{{MarketIndex: 2, BaseAssetAmount: 1_000_000_000, QuoteEntryAmount: 150_000_000}},
	})
	h.addUser(t, bob, drift.User{SubAccountID: 0})

	out, err := h.run("positions")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Unique Authorities: 2")
	assert.Contains(t, out, "Total Sub-Accounts: 3")
	assert.NotContains(t, out, "Using cached data from")
	assert.Equal(t, int32(1), h.dials.Load())

	out, err = h.run("positions", alice.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Positions for Authority: "+alice.String())
	assert.Contains(t, out, "Using cached data from")
	assert.Contains(t, out, "Number of Sub-Accounts: 2")
	assert.Less(t, strings.Index(out, "Sub-Account 0"), strings.Index(out, "Sub-Account 1"))
	assert.Contains(t, out, "Entry Price: $150.0000")
	assert.Contains(t, out, "Amount (scaled): 2.000000")
	assert.Equal(t, int32(1), h.dials.Load())

	_, err = h.run("positions", testKey(22).String())
	assert.ErrorContains(t, err, "no User accounts found")

	code, _ := h.exec("positions", alice.String(), bob.String())
	assert.Equal(t, ExitUsageError, code)
}

func TestExportUserStatsToPostgres(t *testing.T) {
	h := newHarness(t)
	h.addStats(t, testKey(1), drift.UserStats{FuelTaker: 3})
	h.addStats(t, testKey(2), drift.UserStats{FuelMaker: 4})

	_, err := h.run("export", "userstats", "--sink", "postgres")
	require.NoError(t, err)

	assert.Len(t, h.db.saved, 2)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), h.db.capturedAt)
	assert.True(t, h.db.closed)
	assert.Equal(t, int32(1), h.dials.Load())
}

func TestExportKeepsUnsavedSnapshot(t *testing.T) {
	h := newHarness(t)
	h.addStats(t, testKey(1), drift.UserStats{FuelTaker: 5})

	// An unreadable snapshot already occupies this second's directory name.
	require.NoError(t, os.MkdirAll(filepath.Join(h.cacheDir, "userstats-2025-06-01-10-00-00"), 0o755))

	out := filepath.Join(h.outDir, "fuel.csv")
	logs, err := h.run("export", "fuel", "--output", out)
	require.NoError(t, err)
	assert.Contains(t, logs, "snapshot fetched but not saved")
	assert.Equal(t, int32(1), h.dials.Load())
	assert.Len(t, readCSV(t, out), 2)
}

func TestHistoryCommands(t *testing.T) {
	h := newHarness(t)
	authority := testKey(30)
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, total := range []int64{100, 250, 240} {
		h.db.history = append(h.db.history, postgres.UserStatsRecord{
			Authority:  authority.String(),
			CapturedAt: base.Add(time.Duration(i) * 24 * time.Hour),
			FuelTaker:  total,
			TotalFuel:  total,
		})
	}

	out, err := h.run("history", authority.String())
	require.NoError(t, err)
	assert.Contains(t, out, "FUEL history for "+authority.String())
	assert.Contains(t, out, "2025-05-02 00:00:00")
	assert.Contains(t, out, "+150")
	assert.Contains(t, out, "3 recorded states, FUEL +140")
	assert.Equal(t, int32(0), h.dials.Load())

	out, err = h.run("history", authority.String(), "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 recorded states")

	out, err = h.run("history", "prune", "--older-than", "720h")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC), h.db.cutoff)
	assert.Contains(t, out, "Deleted 2 recorded states")
	assert.Len(t, h.db.history, 1)

	code, _ := h.exec("history", "prune", "--older-than", "0s")
	assert.Equal(t, ExitUsageError, code)
}
