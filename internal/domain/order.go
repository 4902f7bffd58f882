package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// Status is the order lifecycle state, see spec §4.3.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAuctionActive  Status = "auction_active"
	StatusEscrowCreated  Status = "escrow_created"
	StatusBothEscrowed   Status = "both_escrowed"
	StatusSecretRevealed Status = "secret_revealed"
	StatusHTLCCreated    Status = "htlc_created"
	StatusFilled         Status = "filled"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
	StatusRefunded       Status = "refunded"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// transitions enumerates every edge permitted by spec §4.3. Anything
// not listed here is rejected by Order.Transition.
//
// filled and htlc_created sit between auction_active and
// escrow_created: the auction fill commits the resolver to the
// price, htlc_created marks that the resolver has commanded escrow
// creation on-chain, and escrow_created marks that the first escrow
// event has actually been observed. The diagram in spec §4.3 collapses
// these into "fill (bid accepted)" -> escrow_created; this
// implementation keeps them distinct because the enumerated status
// list in spec §3 names all of them.
var transitions = map[Status][]Status{
	StatusPending:        {StatusAuctionActive, StatusCancelled},
	StatusAuctionActive:  {StatusCancelled, StatusFilled, StatusExpired},
	StatusFilled:         {StatusHTLCCreated, StatusExpired},
	StatusHTLCCreated:    {StatusEscrowCreated, StatusExpired},
	StatusEscrowCreated:  {StatusBothEscrowed, StatusExpired},
	StatusBothEscrowed:   {StatusSecretRevealed, StatusExpired},
	StatusSecretRevealed: {StatusCompleted, StatusExpired},
	StatusExpired:        {StatusRefunded},
	// terminal states have no outgoing edges
	StatusCompleted: {},
	StatusCancelled: {},
	StatusRefunded:  {},
}

// CanTransition reports whether from->to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// HashAlgorithm selects how a preimage is bound to a hashlock. See
// spec §9 "Hash function ambiguity" — sha256 is canonical; keccak256
// is recognized but never chosen by default. See DESIGN.md.
type HashAlgorithm string

const (
	HashSHA256    HashAlgorithm = "sha256"
	HashKeccak256 HashAlgorithm = "keccak256"
)

// Order is the unit of swap intent, spec §3.
type Order struct {
	OrderID  string
	Maker    string
	Receiver string

	MakerAsset AssetKey
	TakerAsset AssetKey

	MakingAmount *big.Int
	TakingAmount *big.Int

	Hashlock      [32]byte
	HashAlgorithm HashAlgorithm
	Timelock      time.Time

	AuctionStartTime time.Time
	AuctionEndTime   time.Time
	ReservePrice     *big.Rat

	SecretHashes [][32]byte

	Status Status

	CreatedAt      time.Time
	LastTransition time.Time
}

// NewOrderID generates an opaque time-random order id per spec §6:
// order_<timestamp_ms>_<random_hex>.
func NewOrderID(now time.Time) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order id: %w", err)
	}
	return fmt.Sprintf("order_%d_%s", now.UnixMilli(), hex.EncodeToString(buf)), nil
}

// Validate enforces the invariants listed in spec §3.
func (o *Order) Validate() error {
	if o.OrderID == "" {
		return fmt.Errorf("order: order_id required")
	}
	if o.MakingAmount == nil || o.MakingAmount.Sign() <= 0 {
		return fmt.Errorf("order %s: making_amount must be > 0", o.OrderID)
	}
	if o.TakingAmount == nil || o.TakingAmount.Sign() <= 0 {
		return fmt.Errorf("order %s: taking_amount must be > 0", o.OrderID)
	}
	if !o.AuctionStartTime.Before(o.AuctionEndTime) && !o.AuctionStartTime.Equal(o.AuctionEndTime) {
		return fmt.Errorf("order %s: auction_start_time must be <= auction_end_time", o.OrderID)
	}
	if !o.AuctionEndTime.Before(o.Timelock) {
		return fmt.Errorf("order %s: auction_end_time must be < timelock", o.OrderID)
	}
	return nil
}

// Transition moves the order to `to`, rejecting illegal edges. The
// caller is responsible for the per-order serialization guarantee
// described in spec §5; Transition itself is not safe for concurrent
// use against the same Order value.
func (o *Order) Transition(to Status, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("order %s: illegal transition %s -> %s", o.OrderID, o.Status, to)
	}
	o.Status = to
	o.LastTransition = now
	return nil
}
