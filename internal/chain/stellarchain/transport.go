// Package stellarchain implements the Chain Client contract for the
// Stellar/Soroban side of a swap. It is grounded directly on the
// teacher's stellar-live-source server (cursor-based GetLedgers
// polling, circuit breaker, exponential backoff) generalized from
// "stream raw ledgers" to "stream HTLC contract events with
// gap-fill", per SPEC_FULL.md §4.1.
package stellarchain

import (
	"context"
	"math/big"
	"time"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

// RawContractEvent is what the underlying Soroban RPC would hand back
// for one HTLC contract event. The concrete Horizon/Soroban wire
// format is out of scope per spec §1; this is the seam a real
// implementation would fill in.
type RawContractEvent struct {
	Kind        RawEventKind
	Height      uint64
	TxHash      string
	LogIndex    uint64
	OrderID     string
	ContractID  []byte
	Amount      *big.Int
	Asset       domain.AssetKey
	Hashlock    [32]byte
	Timelock    time.Time
	Preimage    [32]byte
	Revealer    string
}

// RawEventKind discriminates the kinds of on-chain events the
// transport can report.
type RawEventKind string

const (
	RawEscrowCreated  RawEventKind = "created"
	RawEscrowClaimed  RawEventKind = "claimed"
	RawEscrowRefunded RawEventKind = "refunded"
)

// Transport is the injectable seam for the actual Soroban RPC calls.
// Production code would back this with stellar-rpc/client.Client
// (as the teacher does); tests and local runs use an in-memory fake.
type Transport interface {
	Connect(ctx context.Context) error
	LatestLedger(ctx context.Context) (uint64, error)
	// EventsInRange returns every HTLC contract event with height in
	// (fromExclusive, toInclusive], ascending by (height, log index),
	// implementing the gap-fill query from spec §4.1.
	EventsInRange(ctx context.Context, fromExclusive, toInclusive uint64) ([]RawContractEvent, error)

	SubmitCreateEscrow(ctx context.Context, p chain.CreateEscrowParams) (txHash string, err error)
	SubmitClaimEscrow(ctx context.Context, contractID []byte, preimage [32]byte) (txHash string, err error)
	SubmitRefundEscrow(ctx context.Context, contractID []byte) (txHash string, err error)
	GetEscrowState(ctx context.Context, contractID []byte) (chain.EscrowState, error)
}
