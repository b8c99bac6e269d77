package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserStatsRecord is one observed state of a UserStats account.
type UserStatsRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	UserStatsKey string    `gorm:"type:varchar(44);not null;index:idx_user_stats_key_captured_at,unique"`
	CapturedAt   time.Time `gorm:"not null;index:idx_user_stats_key_captured_at,unique;index:idx_user_stats_captured_at"`

	Authority string `gorm:"type:varchar(44);not null;index:idx_user_stats_authority"`
	Referrer  string `gorm:"type:varchar(44)"`

	TotalFeePaid        decimal.Decimal `gorm:"type:numeric;not null"`
	TotalFeeRebate      decimal.Decimal `gorm:"type:numeric;not null"`
	TotalReferrerReward decimal.Decimal `gorm:"type:numeric;not null"`
	MakerVolume30d      decimal.Decimal `gorm:"type:numeric;not null"`
	TakerVolume30d      decimal.Decimal `gorm:"type:numeric;not null"`
	FillerVolume30d     decimal.Decimal `gorm:"type:numeric;not null"`
	IfStakedQuoteAmount decimal.Decimal `gorm:"type:numeric;not null"`
	IfStakedGovAmount   decimal.Decimal `gorm:"type:numeric;not null"`
	NumberOfSubAccounts int             `gorm:"not null"`
	IsReferrer          bool            `gorm:"not null"`
	FuelOverflowStatus  int             `gorm:"not null"`

	FuelInsurance int64 `gorm:"not null"`
	FuelDeposits  int64 `gorm:"not null"`
	FuelBorrows   int64 `gorm:"not null"`
	FuelPositions int64 `gorm:"not null"`
	FuelTaker     int64 `gorm:"not null"`
	FuelMaker     int64 `gorm:"not null"`
	TotalFuel     int64 `gorm:"not null;index:idx_user_stats_total_fuel"`

	LastFuelIfBonusUpdateTs time.Time

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (UserStatsRecord) TableName() string {
	return "user_stats_record"
}
