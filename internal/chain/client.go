// Package chain defines the abstract Chain Client contract from spec
// §4.1, shared by the evmchain and stellarchain implementations.
package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

// CreateEscrowParams is the input to CreateEscrow, spec §4.1.
type CreateEscrowParams struct {
	OrderID       string
	Receiver      string
	Amount        *big.Int
	SafetyDeposit *big.Int
	Asset         domain.AssetKey
	Hashlock      [32]byte
	Timelock      time.Time
}

// EscrowState is the result of GetEscrowState, spec §4.1.
type EscrowState struct {
	ContractID  []byte
	Status      domain.EscrowStatus
	Amount      *big.Int
	Beneficiary string
	Creator     string
	Timelock    time.Time
}

// Client is the abstract Chain Client contract, spec §4.1. Both
// evmchain.Client and stellarchain.Client implement it. Every method
// may block on network I/O and therefore takes a context.Context,
// matching spec §5's suspension-point list.
type Client interface {
	// Chain identifies which side of the swap this client drives.
	Chain() domain.Chain

	Connect(ctx context.Context) error

	CreateEscrow(ctx context.Context, p CreateEscrowParams) (txHash string, err error)
	ClaimEscrow(ctx context.Context, contractID []byte, preimage [32]byte) (txHash string, err error)
	RefundEscrow(ctx context.Context, contractID []byte) (txHash string, err error)
	GetEscrowState(ctx context.Context, contractID []byte) (EscrowState, error)

	// ValidateOrder performs chain-local sanity checks: address
	// format, asset identifier validity, amount scale.
	ValidateOrder(o *domain.Order) error

	// StartMonitoring begins streaming events on the channel returned
	// by Events(). It captures the current tip as the starting height
	// and logs it; no Ready value is sent to the caller.
	StartMonitoring(ctx context.Context) error
	// StopMonitoring is idempotent.
	StopMonitoring()

	// Events is the channel domain events are published on.
	// StopMonitoring does not close it.
	Events() <-chan domain.Event

	// Connected/Monitoring report the client's current health, feeding
	// the Event Monitor's health snapshot, spec §4.2.
	Connected() bool
	Monitoring() bool
}

// Ready carries the chain height monitoring starts from. It is not a
// domain.Event, and neither chain client constructs or sends it:
// StartMonitoring records the starting height internally and only
// logs it.
type Ready struct {
	FromHeight uint64
}
