package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"driftexport/pkg/drift"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrMissingColumns is returned when a CSV lacks columns a report needs.
var ErrMissingColumns = errors.New("missing required columns")

// FuelTiers labels the distinct tiers. Lower bounds are exclusive except for "1 - 5,000".
var FuelTiers = []string{
	"< 1",
	"1 - 5,000",
	"5,000 - 10,000",
	"10,000 - 20,000",
	"> 20,000",
}

// TierReport counts accounts per FUEL tier.
type TierReport struct {
	Analyzed int
	Counts   []int // aligned with FuelTiers
	Warnings int
}

// AtLeastOne returns the accounts with a total of 1 FUEL or more.
func (r TierReport) AtLeastOne() int {
	return r.Analyzed - r.Counts[0]
}

func tierIndex(total int64) int {
	switch {
	case total < 1:
		return 0
	case total <= 5_000:
		return 1
	case total <= 10_000:
		return 2
	case total <= 20_000:
		return 3
	default:
		return 4
	}
}

// readHeader reads and trims the header row, returning a column index.
func readHeader(r *csv.Reader) ([]string, map[string]int, error) {
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		idx[h] = i
	}
	return header, idx, nil
}

func requireColumns(idx map[string]int, cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// parseAmount parses an integer or decimal cell; empty cells are zero.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// AnalyzeFuelTiers reads a CSV carrying the six fuel_* columns and counts
// accounts per tier of their summed FUEL. Non-numeric cells are logged and
// left out of that row's total.
func AnalyzeFuelTiers(r io.Reader, logger *zap.Logger) (*TierReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	_, idx, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(idx, drift.FuelColumns...); err != nil {
		return nil, err
	}

	rep := &TierReport{Counts: make([]int, len(FuelTiers))}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rep.Analyzed++
		// A non-numeric cell ends the row; earlier columns still count.
		var total int64
		for _, col := range drift.FuelColumns {
			i := idx[col]
			if i >= len(record) {
				continue
			}
			v, err := parseAmount(record[i])
			if err != nil {
				rep.Warnings++
				logger.Warn("non-numeric fuel value",
					zap.Int("line", line),
					zap.String("column", col),
					zap.String("value", record[i]),
				)
				break
			}
			total += v.IntPart()
		}
		rep.Counts[tierIndex(total)]++
	}
	return rep, nil
}

// RenderTiers prints a TierReport.
func RenderTiers(p *Printer, source string, rep *TierReport) {
	p.Title("FUEL Tier Analysis")
	p.Linef("Analyzed CSV file: %s", source)
	p.Linef("Total accounts analyzed: %s", p.Count(rep.Analyzed))
	p.Rule()
	p.Linef("Accounts with %-16s FUEL: %s", FuelTiers[0], p.Count(rep.Counts[0]))
	p.Rule()
	p.Linef("Accounts with >= 1 FUEL (total %s):", p.Count(rep.AtLeastOne()))
	sum := rep.Counts[0]
	for i := 1; i < len(FuelTiers); i++ {
		p.Linef("  %-18s FUEL: %s", FuelTiers[i], p.Count(rep.Counts[i]))
		sum += rep.Counts[i]
	}
	p.Rule()
	p.Linef("Sum across all tiers: %s", p.Count(sum))
	if rep.Warnings > 0 {
		p.Note("%d non-numeric values were ignored", rep.Warnings)
	}
}
