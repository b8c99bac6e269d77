package report

import (
	"fmt"
	"sort"
	"time"

	"driftexport/pkg/drift"

	"github.com/shopspring/decimal"
)

// PerpAggregate sums perp positions of one market in base units.
type PerpAggregate struct {
	MarketIndex uint16
	LongBase    decimal.Decimal
	ShortBase   decimal.Decimal // absolute value
	QuoteEntry  decimal.Decimal // net, QUOTE units
	LpShares    decimal.Decimal
	Users       int
}

// SpotAggregate sums spot balances of one market in scaled-balance units.
type SpotAggregate struct {
	MarketIndex uint16
	Deposits    decimal.Decimal
	Borrows     decimal.Decimal
	Users       int
}

// PositionsReport aggregates every sub-account of the protocol.
type PositionsReport struct {
	UniqueAuthorities int
	SubAccounts       int
	ProtectedMakers   int
	HighLeverage      int
	BeingLiquidated   int
	TotalDeposits     decimal.Decimal // QUOTE units
	TotalWithdraws    decimal.Decimal
	PerpMarkets       []PerpAggregate
	SpotMarkets       []SpotAggregate
}

// AggregatePositions sums positions per market across users.
func AggregatePositions(users []drift.User) PositionsReport {
	type perpAcc struct {
		PerpAggregate
		authorities map[string]struct{}
	}
	type spotAcc struct {
		SpotAggregate
		authorities map[string]struct{}
	}

	rep := PositionsReport{
		TotalDeposits:  decimal.Zero,
		TotalWithdraws: decimal.Zero,
	}
	authorities := make(map[string]struct{})
	perps := make(map[uint16]*perpAcc)
	spots := make(map[uint16]*spotAcc)

	for _, u := range users {
		rep.SubAccounts++
		authorities[u.Authority] = struct{}{}
		if u.IsProtectedMaker() {
			rep.ProtectedMakers++
		}
		if u.IsHighLeverage() {
			rep.HighLeverage++
		}
		if u.IsBeingLiquidated() {
			rep.BeingLiquidated++
		}
		rep.TotalDeposits = rep.TotalDeposits.Add(drift.ScaleUint(u.TotalDeposits, drift.QuoteDecimals))
		rep.TotalWithdraws = rep.TotalWithdraws.Add(drift.ScaleUint(u.TotalWithdraws, drift.QuoteDecimals))

		for _, p := range u.PerpPositions {
			if p.IsAvailable() {
				continue
			}
			acc, ok := perps[p.MarketIndex]
			if !ok {
				acc = &perpAcc{
					PerpAggregate: PerpAggregate{
						MarketIndex: p.MarketIndex,
						LongBase:    decimal.Zero,
						ShortBase:   decimal.Zero,
						QuoteEntry:  decimal.Zero,
						LpShares:    decimal.Zero,
					},
					authorities: make(map[string]struct{}),
				}
				perps[p.MarketIndex] = acc
			}
			base := drift.BaseAmount(p.BaseAssetAmount)
			if p.BaseAssetAmount > 0 {
				acc.LongBase = acc.LongBase.Add(base)
			} else {
				acc.ShortBase = acc.ShortBase.Add(base.Abs())
			}
			acc.QuoteEntry = acc.QuoteEntry.Add(drift.QuoteAmount(p.QuoteEntryAmount))
			acc.LpShares = acc.LpShares.Add(drift.ScaleUint(p.LpShares, drift.AMMReserveDecimals))
			acc.authorities[u.Authority] = struct{}{}
		}

		for _, s := range u.SpotPositions {
			if s.IsAvailable() {
				continue
			}
			acc, ok := spots[s.MarketIndex]
			if !ok {
				acc = &spotAcc{
					SpotAggregate: SpotAggregate{
						MarketIndex: s.MarketIndex,
						Deposits:    decimal.Zero,
						Borrows:     decimal.Zero,
					},
					authorities: make(map[string]struct{}),
				}
				spots[s.MarketIndex] = acc
			}
			amount := drift.ScaleUint(s.ScaledBalance, drift.SpotBalanceDecimals)
			if s.BalanceType == drift.SpotBalanceBorrow {
				acc.Borrows = acc.Borrows.Add(amount)
			} else {
				acc.Deposits = acc.Deposits.Add(amount)
			}
			acc.authorities[u.Authority] = struct{}{}
		}
	}

	rep.UniqueAuthorities = len(authorities)
	for _, acc := range perps {
		acc.Users = len(acc.authorities)
		rep.PerpMarkets = append(rep.PerpMarkets, acc.PerpAggregate)
	}
	for _, acc := range spots {
		acc.Users = len(acc.authorities)
		rep.SpotMarkets = append(rep.SpotMarkets, acc.SpotAggregate)
	}
	sort.Slice(rep.PerpMarkets, func(i, j int) bool { return rep.PerpMarkets[i].MarketIndex < rep.PerpMarkets[j].MarketIndex })
	sort.Slice(rep.SpotMarkets, func(i, j int) bool { return rep.SpotMarkets[i].MarketIndex < rep.SpotMarkets[j].MarketIndex })
	return rep
}

// SnapshotMeta tells the reader where the data came from.
type SnapshotMeta struct {
	CapturedAt time.Time
	Slot       uint64
	Cached     bool
}

// RenderPositions prints a PositionsReport.
func RenderPositions(p *Printer, rep PositionsReport, meta SnapshotMeta) {
	p.Title("Drift Protocol Position Aggregation")
	if meta.Cached {
		p.Note("(Using cached data from %s)", meta.CapturedAt.Local().Format(time.DateTime))
	}

	p.Section("System Overview")
	p.Linef("Total Unique Authorities: %s", p.Count(rep.UniqueAuthorities))
	p.Linef("Total Sub-Accounts: %s", p.Count(rep.SubAccounts))
	p.Linef("Protected Maker Accounts: %s", p.Count(rep.ProtectedMakers))
	p.Linef("High Leverage Accounts: %s", p.Count(rep.HighLeverage))
	if rep.BeingLiquidated > 0 {
		p.Linef("Being Liquidated / Bankrupt: %s", p.Count(rep.BeingLiquidated))
	}
	p.Linef("Total Deposits: $%s", p.Number(rep.TotalDeposits, 2))
	p.Linef("Total Withdrawals: $%s", p.Number(rep.TotalWithdraws, 2))
	if meta.Slot > 0 {
		p.Linef("Slot: %d", meta.Slot)
	}

	p.Section("Perpetual Markets")
	for _, m := range rep.PerpMarkets {
		p.Linef("\nMarket Index: %d", m.MarketIndex)
		p.Linef("Total Long (base): %s", p.Number(m.LongBase, 4))
		p.Linef("Total Short (base): %s", p.Number(m.ShortBase, 4))
		p.Linef("Net Quote Entry: $%s", p.Number(m.QuoteEntry, 2))
		if m.LpShares.IsPositive() {
			p.Linef("Total LP Shares: %s", p.Number(m.LpShares, 4))
		}
		p.Linef("Unique Users: %s", p.Count(m.Users))
	}

	p.Section("Spot Markets")
	for _, m := range rep.SpotMarkets {
		p.Linef("\nMarket Index: %d", m.MarketIndex)
		p.Linef("Total Deposits (scaled): %s", p.Number(m.Deposits, 4))
		p.Linef("Total Borrows (scaled): %s", p.Number(m.Borrows, 4))
		p.Linef("Unique Users: %s", p.Count(m.Users))
	}
}

// RenderUserPositions prints the open positions of every sub-account of one authority.
// Amounts are raw protocol balances; no oracle prices are applied.
func RenderUserPositions(p *Printer, authority string, users []drift.User, meta SnapshotMeta) {
	p.Title("Positions for Authority: " + authority)
	if meta.Cached {
		p.Note("(Using cached data from %s)", meta.CapturedAt.Local().Format(time.DateTime))
	}
	p.Linef("Number of Sub-Accounts: %s", p.Count(len(users)))

	for _, u := range users {
		title := fmt.Sprintf("Sub-Account %d", u.SubAccountID)
		if u.Name != "" {
			title += " (" + u.Name + ")"
		}
		p.Title(title)
		p.Linef("Address: %s", u.Address)
		p.Linef("Total Deposits: $%s", p.Number(drift.ScaleUint(u.TotalDeposits, drift.QuoteDecimals), 2))
		p.Linef("Total Withdrawals: $%s", p.Number(drift.ScaleUint(u.TotalWithdraws, drift.QuoteDecimals), 2))
		if u.IsBeingLiquidated() {
			p.Linef("Status: being liquidated")
		}

		open := 0
		for _, pos := range u.PerpPositions {
			if pos.IsAvailable() {
				continue
			}
			if open == 0 {
				p.Section("Perpetual Positions")
			}
			open++
			side := "LONG"
			if pos.BaseAssetAmount < 0 {
				side = "SHORT"
			}
			base := drift.BaseAmount(pos.BaseAssetAmount).Abs()
			entry := drift.QuoteAmount(pos.QuoteEntryAmount).Abs()
			p.Linef("\nMarket Index: %d", pos.MarketIndex)
			p.Linef("Type: %s", side)
			p.Linef("Size: %s", p.Number(base, 6))
			if base.IsPositive() {
				p.Linef("Entry Price: $%s", p.Number(entry.Div(base), 4))
			}
			p.Linef("Quote Entry: $%s", p.Number(entry, 2))
			if pos.LpShares > 0 {
				p.Linef("LP Shares: %s", p.Number(drift.ScaleUint(pos.LpShares, drift.AMMReserveDecimals), 4))
			}
		}
		if open == 0 {
			p.Linef("\nNo perpetual positions")
		}

		open = 0
		for _, pos := range u.SpotPositions {
			if pos.IsAvailable() {
				continue
			}
			if open == 0 {
				p.Section("Spot Positions")
			}
			open++
			side := "DEPOSIT"
			if pos.BalanceType == drift.SpotBalanceBorrow {
				side = "BORROW"
			}
			p.Linef("\nMarket Index: %d", pos.MarketIndex)
			p.Linef("Type: %s", side)
			p.Linef("Amount (scaled): %s", p.Number(drift.ScaleUint(pos.ScaledBalance, drift.SpotBalanceDecimals), 6))
		}
		if open == 0 {
			p.Linef("\nNo spot positions")
		}
	}
}
