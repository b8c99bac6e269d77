package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"driftexport/pkg/drift"
	"driftexport/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDSNEnv = "DRIFTEXPORT_TEST_PG_DSN"

func testClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()

	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	client, err := postgres.NewClient(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.AutoMigrateUserStatsRecord())
	return client
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid port=5432 user=fail password=fail dbname=fail sslmode=disable connect_timeout=1"

	_, err := postgres.NewClient(invalidDSN)
	if err == nil {
		t.Fatal("expected error for invalid DSN, got nil")
	}
}

// go test -v --run ^TestToUserStatsRecord$
func TestToUserStatsRecord(t *testing.T) {
	capturedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("KST", 9*3600))
	s := drift.UserStats{
		Address:             "stats",
		Authority:           "auth",
		Fees:                drift.UserFees{TotalFeePaid: ^uint64(0)},
		TakerVolume30d:      1_500_000,
		NumberOfSubAccounts: 3,
		ReferrerStatus:      drift.ReferrerStatusIsReferrer,
		FuelTaker:           10,
		FuelMaker:           5,
		FuelDeposits:        1,

		LastFuelIfBonusUpdateTs: 1700000000,
	}

	rec := postgres.ToUserStatsRecord(capturedAt, s)

	assert.Equal(t, "stats", rec.UserStatsKey)
	assert.Equal(t, time.UTC, rec.CapturedAt.Location())
	assert.True(t, rec.CapturedAt.Equal(capturedAt))
	assert.Equal(t, "18446744073709551615", rec.TotalFeePaid.String())
	assert.Equal(t, "1500000", rec.TakerVolume30d.String())
	assert.Equal(t, 3, rec.NumberOfSubAccounts)
	assert.True(t, rec.IsReferrer)
	assert.Equal(t, int64(16), rec.TotalFuel)
	assert.Equal(t, int64(1700000000), rec.LastFuelIfBonusUpdateTs.Unix())

	zero := postgres.ToUserStatsRecord(capturedAt, drift.UserStats{Address: "x"})
	assert.True(t, zero.LastFuelIfBonusUpdateTs.IsZero())
}

// go test -v --run ^TestSaveUserStats$
func TestSaveUserStats(t *testing.T) {
	client := testClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.True(t, client.IsHealthy(ctx))

	authority := "test-authority-" + time.Now().Format("150405.000000")
	at := time.Now().UTC().Truncate(time.Second)
	accounts := []drift.UserStats{{Address: authority + "-stats", Authority: authority, FuelTaker: 7}}

	n, err := client.SaveUserStats(ctx, at, accounts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Same key and timestamp is ignored.
	n, err = client.SaveUserStats(ctx, at, accounts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	accounts[0].FuelTaker = 9
	_, err = client.SaveUserStats(ctx, at.Add(time.Minute), accounts)
	require.NoError(t, err)

	history, err := client.GetUserStatsHistory(ctx, authority, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(7), history[0].TotalFuel)
	assert.Equal(t, int64(9), history[1].TotalFuel)

	deleted, err := client.DeleteUserStatsBefore(ctx, at.Add(time.Second))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))

	history, err = client.GetUserStatsHistory(ctx, authority, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(9), history[0].TotalFuel)

	t.Cleanup(func() {
		client.DB.Where("authority = ?", authority).Delete(&postgres.UserStatsRecord{})
	})
}
