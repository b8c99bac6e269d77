package export

import (
	"io"
	"strconv"

	"driftexport/pkg/drift"

	"go.uber.org/zap"
)

// FuelColumns is the header of the FUEL export.
var FuelColumns = append(append([]string{
	"authority_address",
	"user_stats_address",
}, drift.FuelColumns...),
	"total_fuel",
	"last_fuel_if_bonus_update_ts",
)

// FuelOptions tune the FUEL export.
type FuelOptions struct {
	// SkipZero drops accounts whose six counters are all zero.
	SkipZero bool
	// Scale divides counters by 10^Scale when positive.
	Scale int32
}

// WriteFuelCSV writes the FUEL counters of every account.
func WriteFuelCSV(w io.Writer, accounts []drift.UserStats, opts FuelOptions, logger *zap.Logger) (Result, error) {
	format := func(v uint64) string {
		if opts.Scale > 0 {
			return drift.ScaleUint(v, opts.Scale).String()
		}
		return strconv.FormatUint(v, 10)
	}

	var filtered int
	res, err := writeRows(w, FuelColumns, accounts, func(s drift.UserStats) ([]string, error) {
		if s.Authority == "" || s.Address == "" {
			return nil, errMissingIdentity
		}
		fuel := s.Fuel()
		if opts.SkipZero && fuel.IsZero() {
			filtered++
			return nil, nil
		}
		row := []string{s.Authority, s.Address}
		for _, v := range fuel.Values() {
			row = append(row, format(v))
		}
		return append(row,
			format(fuel.Total()),
			strconv.FormatUint(uint64(s.LastFuelIfBonusUpdateTs), 10),
		), nil
	}, logger)

	if filtered > 0 && logger != nil {
		logger.Info("skipped accounts without fuel", zap.Int("count", filtered))
	}
	return res, err
}
