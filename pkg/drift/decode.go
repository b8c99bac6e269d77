package drift

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrInvalidAccount is returned when raw bytes do not hold the expected account type.
var ErrInvalidAccount = errors.New("invalid account data")

const (
	spotPositionCount = 8
	spotPositionSize  = 40
	perpPositionCount = 8
	perpPositionSize  = 96
	orderCount        = 32
	orderSize         = 96
)

// reader walks a little-endian buffer front to back.
type reader struct {
	buf []byte
	off int
}

func (r *reader) skip(n int) { r.off += n }

func (r *reader) u8() uint8 {
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) bool() bool { return r.u8() != 0 }

func (r *reader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *reader) i64() int64 { return int64(r.u64()) }

func (r *reader) pubkey() string {
	pk := solana.PublicKeyFromBytes(r.buf[r.off : r.off+solana.PublicKeyLength])
	r.off += solana.PublicKeyLength
	return pk.String()
}

func (r *reader) name() string {
	raw := r.buf[r.off : r.off+32]
	r.off += 32
	return string(bytes.Trim(raw, " \x00"))
}

func checkAccount(name AccountName, data []byte) error {
	size := name.Size()
	if len(data) < size {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidAccount, name, size, len(data))
	}
	disc := Discriminator(name)
	if !bytes.Equal(data[:discriminatorSize], disc[:]) {
		return fmt.Errorf("%w: discriminator mismatch for %s", ErrInvalidAccount, name)
	}
	return nil
}

// DecodeUserStats decodes a raw UserStats account.
func DecodeUserStats(address string, data []byte) (UserStats, error) {
	if err := checkAccount(AccountUserStats, data); err != nil {
		return UserStats{}, err
	}

	r := &reader{buf: data, off: discriminatorSize}
	s := UserStats{Address: address}
	s.Authority = r.pubkey()
	s.Referrer = r.pubkey()
	s.Fees = UserFees{
		TotalFeePaid:               r.u64(),
		TotalFeeRebate:             r.u64(),
		TotalTokenDiscount:         r.u64(),
		TotalRefereeDiscount:       r.u64(),
		TotalReferrerReward:        r.u64(),
		CurrentEpochReferrerReward: r.u64(),
	}
	s.NextEpochTs = r.i64()
	s.MakerVolume30d = r.u64()
	s.TakerVolume30d = r.u64()
	s.FillerVolume30d = r.u64()
	s.LastMakerVolume30dTs = r.i64()
	s.LastTakerVolume30dTs = r.i64()
	s.LastFillerVolume30dTs = r.i64()
	s.IfStakedQuoteAssetAmount = r.u64()
	s.NumberOfSubAccounts = r.u16()
	s.NumberOfSubAccountsCreated = r.u16()
	s.ReferrerStatus = r.u8()
	s.DisableUpdatePerpBidAskTwap = r.bool()
	r.skip(1)
	s.FuelOverflowStatus = r.u8()
	s.FuelInsurance = r.u32()
	s.FuelDeposits = r.u32()
	s.FuelBorrows = r.u32()
	s.FuelPositions = r.u32()
	s.FuelTaker = r.u32()
	s.FuelMaker = r.u32()
	s.IfStakedGovTokenAmount = r.u64()
	s.LastFuelIfBonusUpdateTs = r.u32()
	return s, nil
}

// DecodeUser decodes a raw User account, keeping only occupied position slots.
func DecodeUser(address string, data []byte) (User, error) {
	if err := checkAccount(AccountUser, data); err != nil {
		return User{}, err
	}

	r := &reader{buf: data, off: discriminatorSize}
	u := User{Address: address}
	u.Authority = r.pubkey()
	u.Delegate = r.pubkey()
	u.Name = r.name()

	for i := 0; i < spotPositionCount; i++ {
		p := decodeSpotPosition(&reader{buf: r.buf[r.off : r.off+spotPositionSize]})
		r.skip(spotPositionSize)
		if !p.IsAvailable() {
			u.SpotPositions = append(u.SpotPositions, p)
		}
	}
	for i := 0; i < perpPositionCount; i++ {
		p := decodePerpPosition(&reader{buf: r.buf[r.off : r.off+perpPositionSize]})
		r.skip(perpPositionSize)
		if !p.IsAvailable() {
			u.PerpPositions = append(u.PerpPositions, p)
		}
	}
	r.skip(orderCount * orderSize)

	r.skip(8) // last_add_perp_lp_shares_ts
	u.TotalDeposits = r.u64()
	u.TotalWithdraws = r.u64()
	r.skip(8) // total_social_loss
	u.SettledPerpPnl = r.i64()
	r.skip(8 * 3) // cumulative_spot_fees, cumulative_perp_funding, liquidation_margin_freed
	u.LastActiveSlot = r.u64()
	r.skip(4 + 4 + 2) // next_order_id, max_margin_ratio, next_liquidation_id
	u.SubAccountID = r.u16()
	u.Status = UserStatus(r.u8())
	r.skip(1) // is_margin_trading_enabled
	u.Idle = r.bool()
	r.skip(4) // open_orders, has_open_order, open_auctions, has_open_auction
	u.MarginMode = MarginMode(r.u8())
	r.skip(1 + 3) // pool_id, padding
	u.LastFuelBonusUpdateTs = r.u32()
	return u, nil
}

func decodeSpotPosition(r *reader) SpotPosition {
	p := SpotPosition{
		ScaledBalance:      r.u64(),
		OpenBids:           r.i64(),
		OpenAsks:           r.i64(),
		CumulativeDeposits: r.i64(),
	}
	p.MarketIndex = r.u16()
	p.BalanceType = SpotBalanceType(r.u8())
	p.OpenOrders = r.u8()
	return p
}

func decodePerpPosition(r *reader) PerpPosition {
	p := PerpPosition{
		LastCumulativeFundingRate: r.i64(),
		BaseAssetAmount:           r.i64(),
		QuoteAssetAmount:          r.i64(),
		QuoteBreakEvenAmount:      r.i64(),
		QuoteEntryAmount:          r.i64(),
		OpenBids:                  r.i64(),
		OpenAsks:                  r.i64(),
		SettledPnl:                r.i64(),
		LpShares:                  r.u64(),
	}
	r.skip(8 + 8 + 4) // last_base_asset_amount_per_lp, last_quote_asset_amount_per_lp, remainder_base_asset_amount
	p.MarketIndex = r.u16()
	p.OpenOrders = r.u8()
	return p
}
