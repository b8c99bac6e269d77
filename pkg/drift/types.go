package drift

// UserFees mirrors the fee totals embedded in a UserStats account.
type UserFees struct {
	TotalFeePaid               uint64 `json:"total_fee_paid"`
	TotalFeeRebate             uint64 `json:"total_fee_rebate"`
	TotalTokenDiscount         uint64 `json:"total_token_discount"`
	TotalRefereeDiscount       uint64 `json:"total_referee_discount"`
	TotalReferrerReward        uint64 `json:"total_referrer_reward"`
	CurrentEpochReferrerReward uint64 `json:"current_epoch_referrer_reward"`
}

// ReferrerStatus bit flags.
const (
	ReferrerStatusIsReferrer uint8 = 1 << 0
	ReferrerStatusIsReferred uint8 = 1 << 1
)

// UserStats is a decoded UserStats account. One exists per authority and
// aggregates volume, fees and FUEL across all of its sub-accounts.
type UserStats struct {
	Address   string   `json:"address"`   // UserStats account address
	Authority string   `json:"authority"` // Wallet that owns the account
	Referrer  string   `json:"referrer"`
	Fees      UserFees `json:"fees"`

	NextEpochTs           int64  `json:"next_epoch_ts"`
	MakerVolume30d        uint64 `json:"maker_volume_30d"` // QUOTE_PRECISION
	TakerVolume30d        uint64 `json:"taker_volume_30d"`
	FillerVolume30d       uint64 `json:"filler_volume_30d"`
	LastMakerVolume30dTs  int64  `json:"last_maker_volume_30d_ts"`
	LastTakerVolume30dTs  int64  `json:"last_taker_volume_30d_ts"`
	LastFillerVolume30dTs int64  `json:"last_filler_volume_30d_ts"`

	IfStakedQuoteAssetAmount   uint64 `json:"if_staked_quote_asset_amount"`
	NumberOfSubAccounts        uint16 `json:"number_of_sub_accounts"`
	NumberOfSubAccountsCreated uint16 `json:"number_of_sub_accounts_created"`
	ReferrerStatus             uint8  `json:"referrer_status"`

	DisableUpdatePerpBidAskTwap bool  `json:"disable_update_perp_bid_ask_twap"`
	FuelOverflowStatus          uint8 `json:"fuel_overflow_status"`

	FuelInsurance uint32 `json:"fuel_insurance"`
	FuelDeposits  uint32 `json:"fuel_deposits"`
	FuelBorrows   uint32 `json:"fuel_borrows"`
	FuelPositions uint32 `json:"fuel_positions"`
	FuelTaker     uint32 `json:"fuel_taker"`
	FuelMaker     uint32 `json:"fuel_maker"`

	IfStakedGovTokenAmount  uint64 `json:"if_staked_gov_token_amount"`
	LastFuelIfBonusUpdateTs uint32 `json:"last_fuel_if_bonus_update_ts"`
}

// IsReferrer reports whether the authority is registered as a referrer.
func (s UserStats) IsReferrer() bool {
	return s.ReferrerStatus&ReferrerStatusIsReferrer != 0
}

// Fuel returns the six FUEL counters.
func (s UserStats) Fuel() FuelBreakdown {
	return FuelBreakdown{
		Insurance: uint64(s.FuelInsurance),
		Deposits:  uint64(s.FuelDeposits),
		Borrows:   uint64(s.FuelBorrows),
		Positions: uint64(s.FuelPositions),
		Taker:     uint64(s.FuelTaker),
		Maker:     uint64(s.FuelMaker),
	}
}

// FuelBreakdown holds FUEL points per source.
type FuelBreakdown struct {
	Insurance uint64 `json:"insurance"`
	Deposits  uint64 `json:"deposits"`
	Borrows   uint64 `json:"borrows"`
	Positions uint64 `json:"positions"`
	Taker     uint64 `json:"taker"`
	Maker     uint64 `json:"maker"`
}

// FuelColumns lists the counters in export order.
var FuelColumns = []string{
	"fuel_insurance",
	"fuel_deposits",
	"fuel_borrows",
	"fuel_positions",
	"fuel_taker",
	"fuel_maker",
}

// Values returns the counters in FuelColumns order.
func (f FuelBreakdown) Values() []uint64 {
	return []uint64{f.Insurance, f.Deposits, f.Borrows, f.Positions, f.Taker, f.Maker}
}

func (f FuelBreakdown) Total() uint64 {
	var total uint64
	for _, v := range f.Values() {
		total += v
	}
	return total
}

// IsZero reports whether every counter is zero.
func (f FuelBreakdown) IsZero() bool {
	return f.Total() == 0
}

// Sub returns f - prev per counter as signed deltas.
func (f FuelBreakdown) Sub(prev FuelBreakdown) map[string]int64 {
	cur, old := f.Values(), prev.Values()
	out := make(map[string]int64, len(cur))
	for i, name := range FuelColumns {
		if d := int64(cur[i]) - int64(old[i]); d != 0 {
			out[name] = d
		}
	}
	return out
}

// SpotBalanceType tells whether a spot position is a deposit or a borrow.
type SpotBalanceType uint8

const (
	SpotBalanceDeposit SpotBalanceType = 0
	SpotBalanceBorrow  SpotBalanceType = 1
)

func (t SpotBalanceType) String() string {
	if t == SpotBalanceBorrow {
		return "borrow"
	}
	return "deposit"
}

// SpotPosition is one of the eight spot slots of a User account.
type SpotPosition struct {
	ScaledBalance      uint64          `json:"scaled_balance"` // SPOT_BALANCE_PRECISION
	OpenBids           int64           `json:"open_bids"`
	OpenAsks           int64           `json:"open_asks"`
	CumulativeDeposits int64           `json:"cumulative_deposits"`
	MarketIndex        uint16          `json:"market_index"`
	BalanceType        SpotBalanceType `json:"balance_type"`
	OpenOrders         uint8           `json:"open_orders"`
}

// IsAvailable reports whether the slot is unused.
func (p SpotPosition) IsAvailable() bool {
	return p.ScaledBalance == 0 && p.OpenOrders == 0
}

// PerpPosition is one of the eight perp slots of a User account.
type PerpPosition struct {
	LastCumulativeFundingRate int64  `json:"last_cumulative_funding_rate"`
	BaseAssetAmount           int64  `json:"base_asset_amount"` // BASE_PRECISION, negative when short
	QuoteAssetAmount          int64  `json:"quote_asset_amount"`
	QuoteBreakEvenAmount      int64  `json:"quote_break_even_amount"`
	QuoteEntryAmount          int64  `json:"quote_entry_amount"` // QUOTE_PRECISION
	OpenBids                  int64  `json:"open_bids"`
	OpenAsks                  int64  `json:"open_asks"`
	SettledPnl                int64  `json:"settled_pnl"`
	LpShares                  uint64 `json:"lp_shares"` // AMM_RESERVE_PRECISION
	MarketIndex               uint16 `json:"market_index"`
	OpenOrders                uint8  `json:"open_orders"`
}

// IsAvailable reports whether the slot is unused.
func (p PerpPosition) IsAvailable() bool {
	return p.BaseAssetAmount == 0 && p.QuoteAssetAmount == 0 && p.OpenOrders == 0 && p.LpShares == 0
}

// UserStatus bit flags.
type UserStatus uint8

const (
	UserStatusBeingLiquidated      UserStatus = 1 << 0
	UserStatusBankrupt             UserStatus = 1 << 1
	UserStatusReduceOnly           UserStatus = 1 << 2
	UserStatusAdvancedLp           UserStatus = 1 << 3
	UserStatusProtectedMakerOrders UserStatus = 1 << 4
)

// MarginMode of a User account.
type MarginMode uint8

const (
	MarginModeDefault      MarginMode = 0
	MarginModeHighLeverage MarginMode = 1
)

// User is a decoded User (sub-account). Only occupied position slots are kept.
type User struct {
	Address       string         `json:"address"`
	Authority     string         `json:"authority"`
	Delegate      string         `json:"delegate"`
	Name          string         `json:"name"`
	SubAccountID  uint16         `json:"sub_account_id"`
	Status        UserStatus     `json:"status"`
	Idle          bool           `json:"idle"`
	MarginMode    MarginMode     `json:"margin_mode"`
	SpotPositions []SpotPosition `json:"spot_positions,omitempty"`
	PerpPositions []PerpPosition `json:"perp_positions,omitempty"`

	TotalDeposits         uint64 `json:"total_deposits"`
	TotalWithdraws        uint64 `json:"total_withdraws"`
	SettledPerpPnl        int64  `json:"settled_perp_pnl"`
	LastActiveSlot        uint64 `json:"last_active_slot"`
	LastFuelBonusUpdateTs uint32 `json:"last_fuel_bonus_update_ts"`
}

func (u User) IsProtectedMaker() bool {
	return u.Status&UserStatusProtectedMakerOrders != 0
}

func (u User) IsHighLeverage() bool {
	return u.MarginMode == MarginModeHighLeverage
}

func (u User) IsBeingLiquidated() bool {
	return u.Status&(UserStatusBeingLiquidated|UserStatusBankrupt) != 0
}
