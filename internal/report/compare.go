package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Boolean flag columns of the reference snapshot used for exclusions.
const (
	ColumnIsDriftUser      = "isDriftUser"
	ColumnIsVaultDepositor = "isVaultDepositor"
	ColumnIsVaultManager   = "isVaultManager"
)

var (
	defaultKeyColumns   = []string{"authority", "authority_address"}
	defaultTotalColumns = []string{"totalFuel", "total_fuel"}
)

// CompareOptions select the columns to compare.
type CompareOptions struct {
	// KeyColumn and TotalColumn default to the first of
	// authority/authority_address and totalFuel/total_fuel present in each file.
	KeyColumn   string
	TotalColumn string
	// Exclude drops authorities the first file flags as non-Drift users or vault participants.
	Exclude bool
}

// ExclusionReport counts authorities dropped from both files.
type ExclusionReport struct {
	FirstRows        int
	NotDriftUser     int
	VaultDepositor   int
	VaultManager     int
	Authorities      int
	ExcludedInFirst  int
	ExcludedInSecond int
}

// ComparisonRow is one authority of the outer merge. Missing sides are zero.
type ComparisonRow struct {
	Authority  string
	First      decimal.Decimal
	Second     decimal.Decimal
	Difference decimal.Decimal
	InFirst    bool
	InSecond   bool
}

// Comparison is the outcome of Compare.
type Comparison struct {
	Rows        []ComparisonRow
	FirstCount  int
	SecondCount int
	InBoth      int
	Mismatched  int
	OnlyFirst   int
	OnlySecond  int
	Exclusions  *ExclusionReport
}

type totalsFile struct {
	order  []string
	totals map[string]decimal.Decimal
	flags  map[string][3]bool // isDriftUser, isVaultDepositor, isVaultManager
}

func pickColumn(idx map[string]int, explicit string, defaults []string) (string, error) {
	if explicit != "" {
		if err := requireColumns(idx, explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}
	for _, c := range defaults {
		if _, ok := idx[c]; ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: one of %s", ErrMissingColumns, strings.Join(defaults, ", "))
}

func isTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

func readTotals(r io.Reader, opts CompareOptions, withFlags bool, logger *zap.Logger) (*totalsFile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	_, idx, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	keyCol, err := pickColumn(idx, opts.KeyColumn, defaultKeyColumns)
	if err != nil {
		return nil, err
	}
	totalCol, err := pickColumn(idx, opts.TotalColumn, defaultTotalColumns)
	if err != nil {
		return nil, err
	}
	if withFlags {
		if err := requireColumns(idx, ColumnIsDriftUser, ColumnIsVaultDepositor, ColumnIsVaultManager); err != nil {
			return nil, err
		}
	}

	cell := func(record []string, col string) string {
		if i := idx[col]; i < len(record) {
			return record[i]
		}
		return ""
	}

	f := &totalsFile{totals: make(map[string]decimal.Decimal), flags: make(map[string][3]bool)}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		key := strings.TrimSpace(cell(record, keyCol))
		if key == "" {
			logger.Warn("row without authority", zap.Int("line", line))
			continue
		}
		total, err := parseAmount(cell(record, totalCol))
		if err != nil {
			logger.Warn("non-numeric total, counting as zero", zap.Int("line", line), zap.String("value", cell(record, totalCol)))
			total = decimal.Zero
		}

		prev, seen := f.totals[key]
		if !seen {
			f.order = append(f.order, key)
			prev = decimal.Zero
		}
		f.totals[key] = prev.Add(total)

		if withFlags {
			f.flags[key] = [3]bool{
				isTrue(cell(record, ColumnIsDriftUser)),
				isTrue(cell(record, ColumnIsVaultDepositor)),
				isTrue(cell(record, ColumnIsVaultManager)),
			}
		}
	}
	return f, nil
}

// Compare merges per-authority totals of two CSV snapshots.
func Compare(first, second io.Reader, opts CompareOptions, logger *zap.Logger) (*Comparison, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a, err := readTotals(first, opts, opts.Exclude, logger)
	if err != nil {
		return nil, fmt.Errorf("first file: %w", err)
	}
	b, err := readTotals(second, opts, false, logger)
	if err != nil {
		return nil, fmt.Errorf("second file: %w", err)
	}

	cmp := &Comparison{}
	excluded := map[string]struct{}{}
	if opts.Exclude {
		ex := &ExclusionReport{FirstRows: len(a.order)}
		for _, key := range a.order {
			fl := a.flags[key]
			if !fl[0] {
				ex.NotDriftUser++
			}
			if fl[1] {
				ex.VaultDepositor++
			}
			if fl[2] {
				ex.VaultManager++
			}
			if !fl[0] || fl[1] || fl[2] {
				excluded[key] = struct{}{}
			}
		}
		ex.Authorities = len(excluded)
		for key := range excluded {
			ex.ExcludedInFirst++
			if _, ok := b.totals[key]; ok {
				ex.ExcludedInSecond++
			}
		}
		cmp.Exclusions = ex
	}

	keys := make(map[string]struct{})
	for k := range a.totals {
		if _, skip := excluded[k]; !skip {
			keys[k] = struct{}{}
			cmp.FirstCount++
		}
	}
	for k := range b.totals {
		if _, skip := excluded[k]; !skip {
			keys[k] = struct{}{}
			cmp.SecondCount++
		}
	}

	for k := range keys {
		row := ComparisonRow{Authority: k, First: decimal.Zero, Second: decimal.Zero}
		if v, ok := a.totals[k]; ok {
			row.First, row.InFirst = v, true
		}
		if v, ok := b.totals[k]; ok {
			row.Second, row.InSecond = v, true
		}
		row.Difference = row.First.Sub(row.Second)

		switch {
		case row.InFirst && row.InSecond:
			cmp.InBoth++
			if !row.Difference.IsZero() {
				cmp.Mismatched++
			}
		case row.InFirst:
			cmp.OnlyFirst++
		default:
			cmp.OnlySecond++
		}
		cmp.Rows = append(cmp.Rows, row)
	}
	sort.Slice(cmp.Rows, func(i, j int) bool { return cmp.Rows[i].Authority < cmp.Rows[j].Authority })
	return cmp, nil
}

// ComparisonColumns is the header of the comparison CSV.
var ComparisonColumns = []string{"authority", "balance_first", "balance_second", "difference"}

// WriteComparisonCSV writes every merged row.
func WriteComparisonCSV(w io.Writer, cmp *Comparison) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ComparisonColumns); err != nil {
		return err
	}
	for _, r := range cmp.Rows {
		if err := cw.Write([]string{r.Authority, r.First.String(), r.Second.String(), r.Difference.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderComparison prints the comparison summary.
func RenderComparison(p *Printer, firstName, secondName string, cmp *Comparison) {
	if ex := cmp.Exclusions; ex != nil {
		p.Title("Exclusion Report from " + firstName)
		p.Linef("Initial authorities: %s", p.Count(ex.FirstRows))
		p.Linef("Excluded because %s is false: %s", ColumnIsDriftUser, p.Count(ex.NotDriftUser))
		p.Linef("Excluded because %s is true: %s", ColumnIsVaultDepositor, p.Count(ex.VaultDepositor))
		p.Linef("Excluded because %s is true: %s", ColumnIsVaultManager, p.Count(ex.VaultManager))
		p.Linef("Unique authorities excluded from both files: %s", p.Count(ex.Authorities))
		p.Linef("Excluded records: %s from %s, %s from %s",
			p.Count(ex.ExcludedInFirst), firstName, p.Count(ex.ExcludedInSecond), secondName)
	}

	p.Title("Fuel Snapshot Comparison Report")
	p.Linef("Authorities compared from %s: %s", firstName, p.Count(cmp.FirstCount))
	p.Linef("Authorities compared from %s: %s", secondName, p.Count(cmp.SecondCount))
	p.Rule()
	p.Linef("Present in both files: %s", p.Count(cmp.InBoth))
	p.Linef("Mismatched balances: %s", p.Count(cmp.Mismatched))
	p.Linef("Only in %s: %s", firstName, p.Count(cmp.OnlyFirst))
	p.Linef("Only in %s: %s", secondName, p.Count(cmp.OnlySecond))
	p.Rule()
}
