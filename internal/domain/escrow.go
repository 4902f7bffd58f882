package domain

import (
	"fmt"
	"math/big"
	"time"
)

// EscrowStatus is the per-chain escrow state, spec §3.
type EscrowStatus string

const (
	EscrowCreated  EscrowStatus = "created"
	EscrowClaimed  EscrowStatus = "claimed"
	EscrowRefunded EscrowStatus = "refunded"
)

// DefaultSafetyMargin is the configurable default from spec §3: the
// destination-chain escrow's timelock must be earlier than the
// source-chain escrow's by at least this much.
const DefaultSafetyMargin = 30 * time.Minute

// Escrow is one per (order, chain), spec §3.
type Escrow struct {
	OrderID string
	Chain   Chain

	ContractID []byte
	Amount     *big.Int
	// SafetyDeposit is the additional balance locked alongside Amount
	// on the resolver's own escrow, spec §9 "Safety deposit semantics".
	SafetyDeposit *big.Int
	Asset         AssetKey
	Hashlock      [32]byte
	Timelock      time.Time
	Creator       string
	Beneficiary   string
	Status        EscrowStatus
	TxHash        string
	Height        uint64
}

// ValidateAgainstOrder enforces the escrow invariants from spec §3:
// the hashlock must equal the order's, and the timelock must not be
// later than the order's. The safety margin between a pair's two
// timelocks is not checked here; CheckTimelockSafety does that.
func (e *Escrow) ValidateAgainstOrder(o *Order) error {
	if e.Hashlock != o.Hashlock {
		return fmt.Errorf("escrow %s/%s: hashlock mismatch with order", e.OrderID, e.Chain)
	}
	if !e.Timelock.Equal(o.Timelock) && e.Timelock.After(o.Timelock) {
		return fmt.Errorf("escrow %s/%s: timelock must not exceed order timelock", e.OrderID, e.Chain)
	}
	return nil
}

// CheckTimelockSafety verifies spec §8 testable property 5: for every
// order with both escrows created, dst.timelock + safety_margin <=
// src.timelock.
func CheckTimelockSafety(src, dst *Escrow, safetyMargin time.Duration) error {
	if !dst.Timelock.Add(safetyMargin).Before(src.Timelock) && !dst.Timelock.Add(safetyMargin).Equal(src.Timelock) {
		return fmt.Errorf("timelock safety violated: dst %s + margin %s > src %s",
			dst.Timelock, safetyMargin, src.Timelock)
	}
	return nil
}

// EscrowKey identifies an escrow for lookup.
type EscrowKey struct {
	OrderID string
	Chain   Chain
}
