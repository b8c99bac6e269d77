package drift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound is returned by GetAccount when the address holds no account.
var ErrAccountNotFound = errors.New("account not found")

// RawAccount is an undecoded account as returned by the RPC node.
type RawAccount struct {
	Address solana.PublicKey
	Data    []byte
}

// AccountBatch is the result of one getMultipleAccounts call.
// Accounts is aligned with the requested keys; missing accounts are nil.
type AccountBatch struct {
	Slot     uint64
	Accounts []*RawAccount
}

// AccountLister lists every account of a given type owned by the program.
type AccountLister interface {
	ListAccountKeys(ctx context.Context, name AccountName) ([]solana.PublicKey, error)
}

// AccountGetter fetches raw accounts by address.
type AccountGetter interface {
	GetAccounts(ctx context.Context, keys []solana.PublicKey) (*AccountBatch, error)
}

type RPCClient struct {
	rpc        *rpc.Client
	programID  solana.PublicKey
	commitment rpc.CommitmentType
	timeout    time.Duration
}

func NewRPCClient(endpoint string, programID solana.PublicKey, commitment string, timeout time.Duration) *RPCClient {
	if commitment == "" {
		commitment = string(rpc.CommitmentConfirmed)
	}
	return &RPCClient{
		rpc:        rpc.New(endpoint),
		programID:  programID,
		commitment: rpc.CommitmentType(commitment),
		timeout:    timeout,
	}
}

func (c *RPCClient) ProgramID() solana.PublicKey {
	return c.programID
}

func (c *RPCClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// ListAccountKeys returns the addresses of every program account whose
// discriminator matches name. Account data is sliced to zero bytes so the
// response stays small even for hundreds of thousands of accounts.
func (c *RPCClient) ListAccountKeys(ctx context.Context, name AccountName) ([]solana.PublicKey, error) {
	if !name.IsValid() {
		return nil, fmt.Errorf("unknown account type: %s", name)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	disc := Discriminator(name)
	zero := uint64(0)
	out, err := c.rpc.GetProgramAccountsWithOpts(ctx, c.programID, &rpc.GetProgramAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
		DataSlice:  &rpc.DataSlice{Offset: &zero, Length: &zero},
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(disc[:])}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getProgramAccounts %s: %w", name, err)
	}

	keys := make([]solana.PublicKey, 0, len(out))
	for _, acc := range out {
		if acc == nil {
			continue
		}
		keys = append(keys, acc.Pubkey)
	}
	return keys, nil
}

// GetAccounts fetches up to 100 accounts in one request.
func (c *RPCClient) GetAccounts(ctx context.Context, keys []solana.PublicKey) (*AccountBatch, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, keys, &rpc.GetMultipleAccountsOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		return nil, fmt.Errorf("getMultipleAccounts (%d keys): %w", len(keys), err)
	}
	if len(res.Value) != len(keys) {
		return nil, fmt.Errorf("getMultipleAccounts returned %d accounts for %d keys", len(res.Value), len(keys))
	}

	batch := &AccountBatch{
		Slot:     res.Context.Slot,
		Accounts: make([]*RawAccount, len(keys)),
	}
	for i, acc := range res.Value {
		if acc == nil || acc.Data == nil {
			continue
		}
		batch.Accounts[i] = &RawAccount{Address: keys[i], Data: acc.Data.GetBinary()}
	}
	return batch, nil
}

// GetAccount fetches a single account.
func (c *RPCClient) GetAccount(ctx context.Context, key solana.PublicKey) (*RawAccount, uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.rpc.GetAccountInfoWithOpts(ctx, key, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, 0, fmt.Errorf("%s: %w", key, ErrAccountNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("getAccountInfo %s: %w", key, err)
	}
	if res.Value == nil || res.Value.Data == nil {
		return nil, 0, fmt.Errorf("%s: %w", key, ErrAccountNotFound)
	}
	return &RawAccount{Address: key, Data: res.Value.Data.GetBinary()}, res.Context.Slot, nil
}

// Slot returns the current slot at the client's commitment.
func (c *RPCClient) Slot(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	slot, err := c.rpc.GetSlot(ctx, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("getSlot: %w", err)
	}
	return slot, nil
}

// Close releases idle connections held by the underlying client.
func (c *RPCClient) Close() error {
	return c.rpc.Close()
}
