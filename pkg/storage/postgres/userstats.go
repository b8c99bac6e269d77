package postgres

import (
	"context"
	"fmt"
	"time"

	"driftexport/pkg/drift"

	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// ToUserStatsRecord converts a decoded account into a row observed at capturedAt.
// u64 amounts stay in raw on-chain units.
func ToUserStatsRecord(capturedAt time.Time, s drift.UserStats) UserStatsRecord {
	fuel := s.Fuel()
	rec := UserStatsRecord{
		UserStatsKey: s.Address,
		CapturedAt:   capturedAt.UTC(),
		Authority:    s.Authority,
		Referrer:     s.Referrer,

		TotalFeePaid:        drift.ScaleUint(s.Fees.TotalFeePaid, 0),
		TotalFeeRebate:      drift.ScaleUint(s.Fees.TotalFeeRebate, 0),
		TotalReferrerReward: drift.ScaleUint(s.Fees.TotalReferrerReward, 0),
		MakerVolume30d:      drift.ScaleUint(s.MakerVolume30d, 0),
		TakerVolume30d:      drift.ScaleUint(s.TakerVolume30d, 0),
		FillerVolume30d:     drift.ScaleUint(s.FillerVolume30d, 0),
		IfStakedQuoteAmount: drift.ScaleUint(s.IfStakedQuoteAssetAmount, 0),
		IfStakedGovAmount:   drift.ScaleUint(s.IfStakedGovTokenAmount, 0),
		NumberOfSubAccounts: int(s.NumberOfSubAccounts),
		IsReferrer:          s.IsReferrer(),
		FuelOverflowStatus:  int(s.FuelOverflowStatus),

		FuelInsurance: int64(fuel.Insurance),
		FuelDeposits:  int64(fuel.Deposits),
		FuelBorrows:   int64(fuel.Borrows),
		FuelPositions: int64(fuel.Positions),
		FuelTaker:     int64(fuel.Taker),
		FuelMaker:     int64(fuel.Maker),
		TotalFuel:     int64(fuel.Total()),
	}
	if s.LastFuelIfBonusUpdateTs != 0 {
		rec.LastFuelIfBonusUpdateTs = time.Unix(int64(s.LastFuelIfBonusUpdateTs), 0).UTC()
	}
	return rec
}

// InsertUserStats inserts records in batches. Rows already stored for the
// same (user_stats_key, captured_at) are left untouched.
func (p *PostgresClient) InsertUserStats(ctx context.Context, records []UserStatsRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	result := p.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, insertBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("insert user stats: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// SaveUserStats records every account as observed at capturedAt.
func (p *PostgresClient) SaveUserStats(ctx context.Context, capturedAt time.Time, accounts []drift.UserStats) (int64, error) {
	records := make([]UserStatsRecord, 0, len(accounts))
	for _, s := range accounts {
		records = append(records, ToUserStatsRecord(capturedAt, s))
	}
	return p.InsertUserStats(ctx, records)
}

// GetUserStatsHistory returns the recorded states of one authority, oldest first.
func (p *PostgresClient) GetUserStatsHistory(ctx context.Context, authority string, limit int) ([]UserStatsRecord, error) {
	var records []UserStatsRecord

	q := p.DB.WithContext(ctx).
		Where("authority = ?", authority).
		Order("captured_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query user stats history: %w", err)
	}
	return records, nil
}

// DeleteUserStatsBefore removes rows captured before cutoff.
func (p *PostgresClient) DeleteUserStatsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := p.DB.WithContext(ctx).
		Where("captured_at < ?", cutoff.UTC()).
		Delete(&UserStatsRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete user stats: %w", result.Error)
	}
	return result.RowsAffected, nil
}
