package domain

import "time"

// EventType is the wire-level discriminator from spec §6.
type EventType string

const (
	EventEscrowCreated  EventType = "escrowCreated"
	EventSecretRevealed EventType = "secretRevealed"
	EventEscrowClaimed  EventType = "escrowClaimed"
	EventEscrowRefunded EventType = "escrowRefunded"
	EventOrderCreated   EventType = "orderCreated"
	EventSwapCompleted  EventType = "swapCompleted"
	EventChainError     EventType = "chainError"
	EventBalanceChanged EventType = "balanceChanged"
	EventLiquidityAlert EventType = "liquidityAlert"
)

// Event is a closed sum type over the domain events named in spec §6.
// It is implemented as tagged variants rather than a dictionary per
// the §9 design note: Type() is the only shared surface, and each
// variant carries its own fixed fields. Unknown fields/variants are
// rejected at the Event Monitor boundary (see internal/eventmonitor).
type Event interface {
	Type() EventType
	OccurredAt() time.Time
}

// EscrowCreatedEvent is emitted when a chain client observes an HTLC
// creation on-chain.
type EscrowCreatedEvent struct {
	At         time.Time
	Chain      Chain
	OrderID    string
	ContractID []byte
	Amount     string
	Asset      AssetKey
	Hashlock   [32]byte
	Timelock   time.Time
	TxHash     string
	LogIndex   uint64
	Height     uint64
}

func (e EscrowCreatedEvent) Type() EventType        { return EventEscrowCreated }
func (e EscrowCreatedEvent) OccurredAt() time.Time { return e.At }

// SecretRevealedEvent is emitted when a claim transaction on one
// chain reveals the preimage.
type SecretRevealedEvent struct {
	At       time.Time
	Chain    Chain
	OrderID  string
	Preimage [32]byte
	TxHash   string
	Revealer string
	LogIndex uint64
	Height   uint64
}

func (e SecretRevealedEvent) Type() EventType        { return EventSecretRevealed }
func (e SecretRevealedEvent) OccurredAt() time.Time { return e.At }

// EscrowClaimedEvent is emitted once a claim transaction's receipt is
// observed.
type EscrowClaimedEvent struct {
	At      time.Time
	Chain   Chain
	OrderID string
	TxHash  string
}

func (e EscrowClaimedEvent) Type() EventType        { return EventEscrowClaimed }
func (e EscrowClaimedEvent) OccurredAt() time.Time { return e.At }

// EscrowRefundedEvent is emitted once a refund transaction's receipt
// is observed.
type EscrowRefundedEvent struct {
	At      time.Time
	Chain   Chain
	OrderID string
	TxHash  string
}

func (e EscrowRefundedEvent) Type() EventType        { return EventEscrowRefunded }
func (e EscrowRefundedEvent) OccurredAt() time.Time { return e.At }

// OrderCreatedEvent is published when a new order is accepted.
type OrderCreatedEvent struct {
	At      time.Time
	OrderID string
}

func (e OrderCreatedEvent) Type() EventType        { return EventOrderCreated }
func (e OrderCreatedEvent) OccurredAt() time.Time { return e.At }

// SwapCompletedEvent is the final event of a successful swap, spec S1.
type SwapCompletedEvent struct {
	At      time.Time
	OrderID string
}

func (e SwapCompletedEvent) Type() EventType        { return EventSwapCompleted }
func (e SwapCompletedEvent) OccurredAt() time.Time { return e.At }

// ErrorKind mirrors the error kinds in spec §7, used here only as the
// payload of a chainError event (the canonical definition lives in
// internal/errs).
type ErrorKind string

// ChainErrorEvent surfaces a Degraded or unrecoverable Transient
// error to subscribers, spec §7.
type ChainErrorEvent struct {
	At      time.Time
	Chain   Chain
	Kind    ErrorKind
	Message string
}

func (e ChainErrorEvent) Type() EventType        { return EventChainError }
func (e ChainErrorEvent) OccurredAt() time.Time { return e.At }

// BalanceChangedEvent is emitted by the Balance Tracker when a
// refreshed balance differs from the cached value, spec §4.7.
type BalanceChangedEvent struct {
	At       time.Time
	Asset    AssetKey
	Previous string
	Current  string
}

func (e BalanceChangedEvent) Type() EventType        { return EventBalanceChanged }
func (e BalanceChangedEvent) OccurredAt() time.Time { return e.At }

// LiquidityAlertEvent is emitted on a threshold crossing or on
// BalanceFetchDegraded, spec §4.7/§7.
type LiquidityAlertEvent struct {
	At     time.Time
	Asset  AssetKey
	Health LiquidityHealth
	Note   string
}

func (e LiquidityAlertEvent) Type() EventType        { return EventLiquidityAlert }
func (e LiquidityAlertEvent) OccurredAt() time.Time { return e.At }
