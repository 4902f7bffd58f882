package stellarchain

import (
	"context"
	"sync"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain"
)

// MemTransport is an in-memory Transport used for local runs and
// tests in place of a real stellar-rpc/client.Client-backed
// implementation, per spec §1's "concrete RPC/Soroban client
// libraries out of scope." It never advances past the ledger height
// it is seeded with until a test pushes more events onto it.
type MemTransport struct {
	mu     sync.Mutex
	ledger uint64
	events []RawContractEvent
}

// NewMemTransport constructs a MemTransport starting at ledger 0.
func NewMemTransport() *MemTransport {
	return &MemTransport{}
}

func (t *MemTransport) Connect(ctx context.Context) error { return nil }

func (t *MemTransport) LatestLedger(ctx context.Context) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger, nil
}

func (t *MemTransport) EventsInRange(ctx context.Context, fromExclusive, toInclusive uint64) ([]RawContractEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []RawContractEvent
	for _, e := range t.events {
		if e.Height > fromExclusive && e.Height <= toInclusive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *MemTransport) SubmitCreateEscrow(ctx context.Context, p chain.CreateEscrowParams) (string, error) {
	return "stub-create-tx", nil
}

func (t *MemTransport) SubmitClaimEscrow(ctx context.Context, contractID []byte, preimage [32]byte) (string, error) {
	return "stub-claim-tx", nil
}

func (t *MemTransport) SubmitRefundEscrow(ctx context.Context, contractID []byte) (string, error) {
	return "stub-refund-tx", nil
}

func (t *MemTransport) GetEscrowState(ctx context.Context, contractID []byte) (chain.EscrowState, error) {
	return chain.EscrowState{}, nil
}

// PushEvent appends an event at the given height and advances the
// tip, for tests exercising the gap-fill path.
func (t *MemTransport) PushEvent(height uint64, ev RawContractEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ev.Height = height
	t.events = append(t.events, ev)
	if height > t.ledger {
		t.ledger = height
	}
}
