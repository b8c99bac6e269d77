package drift

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the Drift v2 program deployed on mainnet-beta.
const DefaultProgramID = "dRiftyHA39MWEi3m9aunc5MzRF1JYuBsbn6VPcn33UH"

// Fixed-point precisions used by the program. Raw on-chain integers are
// divided by these to obtain human units.
const (
	QuotePrecision       = 1_000_000
	PricePrecision       = 1_000_000
	BasePrecision        = 1_000_000_000
	SpotBalancePrecision = 1_000_000_000
	AMMReservePrecision  = 1_000_000_000
)

// Decimal exponents matching the precisions above.
const (
	QuoteDecimals       int32 = 6
	PriceDecimals       int32 = 6
	BaseDecimals        int32 = 9
	SpotBalanceDecimals int32 = 9
	AMMReserveDecimals  int32 = 9
)

// QuoteSpotMarketIndex is USDC.
const QuoteSpotMarketIndex = 0

const discriminatorSize = 8

// AccountName is the Anchor account type name used to build discriminators.
type AccountName string

// AccountMeta holds the on-chain size of an account type, discriminator included.
type AccountMeta struct {
	Name AccountName
	Size int
}

const (
	AccountUserStats AccountName = "UserStats"
	AccountUser      AccountName = "User"
)

var accountLayouts = map[AccountName]AccountMeta{
	AccountUserStats: {Name: AccountUserStats, Size: 240},
	AccountUser:      {Name: AccountUser, Size: 4376},
}

// IsValid checks if the account name is one this package can decode.
func (n AccountName) IsValid() bool {
	_, ok := accountLayouts[n]
	return ok
}

// ParseAccountName parses a string into a known AccountMeta.
func ParseAccountName(s string) (AccountMeta, error) {
	meta, ok := accountLayouts[AccountName(s)]
	if !ok {
		return AccountMeta{}, fmt.Errorf("unknown account type: %s", s)
	}
	return meta, nil
}

// Size returns the account size including the discriminator, or 0 if unknown.
func (n AccountName) Size() int {
	return accountLayouts[n].Size
}

// Discriminator returns the 8-byte Anchor discriminator: sha256("account:<Name>")[:8].
func Discriminator(name AccountName) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + string(name)))
	var d [discriminatorSize]byte
	copy(d[:], sum[:discriminatorSize])
	return d
}

// ParseProgramID parses a base58 program id, falling back to DefaultProgramID when empty.
func ParseProgramID(s string) (solana.PublicKey, error) {
	if s == "" {
		s = DefaultProgramID
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program id %q: %w", s, err)
	}
	return pk, nil
}
