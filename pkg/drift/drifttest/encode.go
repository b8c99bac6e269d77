// Package drifttest builds raw Drift account bytes for tests.
package drifttest

import (
	"encoding/binary"

	"driftexport/pkg/drift"

	"github.com/gagliardetto/solana-go"
)

type writer struct {
	buf []byte
	off int
}

func newWriter(name drift.AccountName) *writer {
	w := &writer{buf: make([]byte, name.Size())}
	disc := drift.Discriminator(name)
	copy(w.buf, disc[:])
	w.off = len(disc)
	return w
}

func (w *writer) at(off int) *writer { w.off = off; return w }

func (w *writer) u8(v uint8) { w.buf[w.off] = v; w.off++ }

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

func (w *writer) pubkey(s string) {
	if s != "" {
		pk := solana.MustPublicKeyFromBase58(s)
		copy(w.buf[w.off:], pk[:])
	}
	w.off += solana.PublicKeyLength
}

// UserStats encodes s in the on-chain layout.
func UserStats(s drift.UserStats) []byte {
	w := newWriter(drift.AccountUserStats)
	w.pubkey(s.Authority)
	w.pubkey(s.Referrer)
	for _, v := range []uint64{
		s.Fees.TotalFeePaid,
		s.Fees.TotalFeeRebate,
		s.Fees.TotalTokenDiscount,
		s.Fees.TotalRefereeDiscount,
		s.Fees.TotalReferrerReward,
		s.Fees.CurrentEpochReferrerReward,
	} {
		w.u64(v)
	}
	w.i64(s.NextEpochTs)
	w.u64(s.MakerVolume30d)
	w.u64(s.TakerVolume30d)
	w.u64(s.FillerVolume30d)
	w.i64(s.LastMakerVolume30dTs)
	w.i64(s.LastTakerVolume30dTs)
	w.i64(s.LastFillerVolume30dTs)
	w.u64(s.IfStakedQuoteAssetAmount)
	w.u16(s.NumberOfSubAccounts)
	w.u16(s.NumberOfSubAccountsCreated)
	w.u8(s.ReferrerStatus)
	if s.DisableUpdatePerpBidAskTwap {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.u8(0)
	w.u8(s.FuelOverflowStatus)
	w.u32(s.FuelInsurance)
	w.u32(s.FuelDeposits)
	w.u32(s.FuelBorrows)
	w.u32(s.FuelPositions)
	w.u32(s.FuelTaker)
	w.u32(s.FuelMaker)
	w.u64(s.IfStakedGovTokenAmount)
	w.u32(s.LastFuelIfBonusUpdateTs)
	return w.buf
}

// User encodes u in the on-chain layout. Positions fill slots from the front.
func User(u drift.User) []byte {
	w := newWriter(drift.AccountUser)
	w.pubkey(u.Authority)
	w.pubkey(u.Delegate)
	copy(w.buf[w.off:w.off+32], u.Name)
	w.off += 32

	const spotStart, perpStart = 104, 424
	for i, p := range u.SpotPositions {
		w.at(spotStart + i*40)
		w.u64(p.ScaledBalance)
		w.i64(p.OpenBids)
		w.i64(p.OpenAsks)
		w.i64(p.CumulativeDeposits)
		w.u16(p.MarketIndex)
		w.u8(uint8(p.BalanceType))
		w.u8(p.OpenOrders)
	}
	for i, p := range u.PerpPositions {
		w.at(perpStart + i*96)
		w.i64(p.LastCumulativeFundingRate)
		w.i64(p.BaseAssetAmount)
		w.i64(p.QuoteAssetAmount)
		w.i64(p.QuoteBreakEvenAmount)
		w.i64(p.QuoteEntryAmount)
		w.i64(p.OpenBids)
		w.i64(p.OpenAsks)
		w.i64(p.SettledPnl)
		w.u64(p.LpShares)
		w.at(perpStart + i*96 + 92)
		w.u16(p.MarketIndex)
		w.u8(p.OpenOrders)
	}

	w.at(4272)
	w.u64(u.TotalDeposits)
	w.u64(u.TotalWithdraws)
	w.at(4296)
	w.i64(u.SettledPerpPnl)
	w.at(4328)
	w.u64(u.LastActiveSlot)
	w.at(4346)
	w.u16(u.SubAccountID)
	w.u8(uint8(u.Status))
	w.at(4350)
	if u.Idle {
		w.u8(1)
	}
	w.at(4355)
	w.u8(uint8(u.MarginMode))
	w.at(4360)
	w.u32(u.LastFuelBonusUpdateTs)
	return w.buf
}
