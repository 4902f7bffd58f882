package evmchain

import (
	"context"
	"sync"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain"
)

// MemTransport is an in-memory Transport used for local runs and
// tests in place of a real go-ethereum ethclient.Client-backed
// implementation, per spec §1's "concrete RPC client libraries out of
// scope."
type MemTransport struct {
	mu        sync.Mutex
	blockNum  uint64
	logs      []RawLog
}

// NewMemTransport constructs a MemTransport starting at block 0.
func NewMemTransport() *MemTransport {
	return &MemTransport{}
}

func (t *MemTransport) Connect(ctx context.Context) error { return nil }

func (t *MemTransport) BlockNumber(ctx context.Context) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blockNum, nil
}

func (t *MemTransport) LogsInRange(ctx context.Context, fromExclusive, toInclusive uint64) ([]RawLog, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []RawLog
	for _, l := range t.logs {
		if l.BlockNum > fromExclusive && l.BlockNum <= toInclusive {
			out = append(out, l)
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

// PushLog appends a log at the given block and advances the tip, for
// tests exercising the gap-fill path.
func (t *MemTransport) PushLog(blockNum uint64, l RawLog) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.BlockNum = blockNum
	t.logs = append(t.logs, l)
	if blockNum > t.blockNum {
		t.blockNum = blockNum
	}
}
