// Package export writes Drift account datasets as CSV.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"driftexport/pkg/drift"

	"go.uber.org/zap"
)

const progressEvery = 1000

// UserStatsFullColumns is the header of the full UserStats export.
var UserStatsFullColumns = []string{
	"authority",
	"user_stats_account_key",
	"referrer",
	"total_fee_paid",
	"total_fee_rebate",
	"total_token_discount",
	"total_referee_discount",
	"total_referrer_reward",
	"current_epoch_referrer_reward",
	"next_epoch_ts",
	"maker_volume_30d",
	"taker_volume_30d",
	"filler_volume_30d",
	"last_maker_volume_30d_ts",
	"last_taker_volume_30d_ts",
	"last_filler_volume_30d_ts",
	"if_staked_quote_asset_amount",
	"number_of_sub_accounts",
	"number_of_sub_accounts_created",
	"is_referrer",
	"disable_update_perp_bid_ask_twap",
	"fuel_overflow_status",
	"fuel_insurance",
	"fuel_deposits",
	"fuel_borrows",
	"fuel_positions",
	"fuel_taker",
	"fuel_maker",
	"if_staked_gov_token_amount",
	"last_fuel_if_bonus_update_ts",
}

// Result counts written and skipped rows.
type Result struct {
	Exported int
	Skipped  int
}

var errMissingIdentity = errors.New("account has no authority or address")

func u64(v uint64) string { return strconv.FormatUint(v, 10) }
func i64(v int64) string  { return strconv.FormatInt(v, 10) }

func userStatsRow(s drift.UserStats) ([]string, error) {
	if s.Authority == "" || s.Address == "" {
		return nil, errMissingIdentity
	}
	return []string{
		s.Authority,
		s.Address,
		s.Referrer,
		u64(s.Fees.TotalFeePaid),
		u64(s.Fees.TotalFeeRebate),
		u64(s.Fees.TotalTokenDiscount),
		u64(s.Fees.TotalRefereeDiscount),
		u64(s.Fees.TotalReferrerReward),
		u64(s.Fees.CurrentEpochReferrerReward),
		i64(s.NextEpochTs),
		u64(s.MakerVolume30d),
		u64(s.TakerVolume30d),
		u64(s.FillerVolume30d),
		i64(s.LastMakerVolume30dTs),
		i64(s.LastTakerVolume30dTs),
		i64(s.LastFillerVolume30dTs),
		u64(s.IfStakedQuoteAssetAmount),
		u64(uint64(s.NumberOfSubAccounts)),
		u64(uint64(s.NumberOfSubAccountsCreated)),
		strconv.FormatBool(s.IsReferrer()),
		strconv.FormatBool(s.DisableUpdatePerpBidAskTwap),
		u64(uint64(s.FuelOverflowStatus)),
		u64(uint64(s.FuelInsurance)),
		u64(uint64(s.FuelDeposits)),
		u64(uint64(s.FuelBorrows)),
		u64(uint64(s.FuelPositions)),
		u64(uint64(s.FuelTaker)),
		u64(uint64(s.FuelMaker)),
		u64(s.IfStakedGovTokenAmount),
		u64(uint64(s.LastFuelIfBonusUpdateTs)),
	}, nil
}

// WriteUserStatsCSV writes every account with all UserStats fields.
// Rows that cannot be built are logged and skipped.
func WriteUserStatsCSV(w io.Writer, accounts []drift.UserStats, logger *zap.Logger) (Result, error) {
	return writeRows(w, UserStatsFullColumns, accounts, userStatsRow, logger)
}

// writeRows writes header and one row per item, isolating per-row failures.
func writeRows[T any](w io.Writer, header []string, items []T, row func(T) ([]string, error), logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res Result

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return res, fmt.Errorf("write header: %w", err)
	}

	for i, item := range items {
		record, err := row(item)
		if err != nil {
			res.Skipped++
			logger.Warn("skipping row", zap.Int("index", i), zap.Error(err))
			continue
		}
		if record == nil {
			continue
		}
		if err := cw.Write(record); err != nil {
			return res, fmt.Errorf("write row %d: %w", i, err)
		}
		res.Exported++
		if res.Exported%progressEvery == 0 {
			logger.Info("export progress", zap.Int("exported", res.Exported), zap.Int("total", len(items)))
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return res, fmt.Errorf("flush csv: %w", err)
	}
	return res, nil
}
