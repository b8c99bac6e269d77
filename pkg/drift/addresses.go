package drift

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// MaxSubAccounts bounds DeriveUserAddresses; the program caps sub-account ids well below this.
const MaxSubAccounts = 1 << 16

// UserStatsAddress derives the UserStats PDA for an authority.
func UserStatsAddress(programID, authority solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("user_stats"),
		authority.Bytes(),
	}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive user stats address: %w", err)
	}
	return addr, nil
}

// UserAddress derives the User PDA for an authority and sub-account id.
func UserAddress(programID, authority solana.PublicKey, subAccountID uint16) (solana.PublicKey, error) {
	sub := make([]byte, 2)
	binary.LittleEndian.PutUint16(sub, subAccountID)

	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("user"),
		authority.Bytes(),
		sub,
	}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive user address (sub %d): %w", subAccountID, err)
	}
	return addr, nil
}

// DeriveUserAddresses returns the User PDAs for sub-accounts 0..count-1.
func DeriveUserAddresses(programID, authority solana.PublicKey, count int) ([]solana.PublicKey, error) {
	if count < 0 || count > MaxSubAccounts {
		return nil, fmt.Errorf("sub-account count out of range: %d", count)
	}
	out := make([]solana.PublicKey, 0, count)
	for i := 0; i < count; i++ {
		addr, err := UserAddress(programID, authority, uint16(i))
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
