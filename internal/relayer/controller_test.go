package relayer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/lifecycle"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/orderstore"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/secretmgr"
)

// fakeClient is a minimal chain.Client stand-in for exercising the
// Relayer Controller's claim-propagation and refund-sweep logic
// without a real chain connection.
type fakeClient struct {
	chainID domain.Chain

	mu          sync.Mutex
	claimCalls  int
	refundCalls int
	failClaims  int // number of leading ClaimEscrow calls that return an error
}

func (f *fakeClient) Chain() domain.Chain               { return f.chainID }
func (f *fakeClient) Connect(ctx context.Context) error { return nil }

func (f *fakeClient) CreateEscrow(ctx context.Context, p chain.CreateEscrowParams) (string, error) {
	return "", nil
}

func (f *fakeClient) ClaimEscrow(ctx context.Context, contractID []byte, preimage [32]byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCalls++
	if f.claimCalls <= f.failClaims {
		return "", errors.New("rpc unavailable")
	}
	return "0xclaim", nil
}

func (f *fakeClient) RefundEscrow(ctx context.Context, contractID []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refundCalls++
	return "0xrefund", nil
}

func (f *fakeClient) GetEscrowState(ctx context.Context, contractID []byte) (chain.EscrowState, error) {
	return chain.EscrowState{}, nil
}

func (f *fakeClient) ValidateOrder(o *domain.Order) error          { return nil }
func (f *fakeClient) StartMonitoring(ctx context.Context) error    { return nil }
func (f *fakeClient) StopMonitoring()                              {}
func (f *fakeClient) Events() <-chan domain.Event                  { return nil }
func (f *fakeClient) Connected() bool                               { return true }
func (f *fakeClient) Monitoring() bool                              { return true }

func (f *fakeClient) claimCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimCalls
}

func (f *fakeClient) refundCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refundCalls
}

func swapOrder(now time.Time) *domain.Order {
	return &domain.Order{
		OrderID:          "order_relay",
		Maker:            "maker",
		Receiver:         "receiver",
		MakerAsset:       domain.AssetKey{Chain: domain.ChainEthereum, Symbol: "ETH"},
		TakerAsset:       domain.AssetKey{Chain: domain.ChainStellar, Symbol: "XLM"},
		MakingAmount:     big.NewInt(100),
		TakingAmount:     big.NewInt(200),
		Hashlock:         domain.Hash(domain.HashSHA256, [32]byte{}),
		Timelock:         now.Add(2 * time.Hour),
		AuctionStartTime: now,
		AuctionEndTime:   now.Add(5 * time.Minute),
		Status:           domain.StatusBothEscrowed,
		CreatedAt:        now,
	}
}

func newTestController(t *testing.T, ethereum, stellar *fakeClient) (*Controller, orderstore.Store) {
	t.Helper()
	store := orderstore.NewMemStore()
	secrets := secretmgr.New(store, zap.NewNop())
	lc := lifecycle.New(store, secrets, zap.NewNop(), 30*time.Minute)
	return New(ethereum, stellar, lc, secrets, store, zap.NewNop()), store
}

// TestPropagateClaimSucceeds covers claim propagation to the opposite
// chain once the secret is revealed on one side, spec §4.6.
func TestPropagateClaimSucceeds(t *testing.T) {
	ethereum := &fakeClient{chainID: domain.ChainEthereum}
	stellar := &fakeClient{chainID: domain.ChainStellar}
	c, store := newTestController(t, ethereum, stellar)

	now := time.Now()
	o := swapOrder(now)
	store.PutOrder(o)
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainStellar, ContractID: []byte("dst"),
		Status: domain.EscrowCreated, Timelock: now.Add(time.Hour),
	})

	c.propagateClaim(context.Background(), domain.SecretRevealedEvent{
		At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID, Preimage: [32]byte{},
	})

	assert.Equal(t, 1, stellar.claimCount())
	assert.Equal(t, 0, ethereum.claimCount(), "claim must go to the opposite chain, not the one the secret was revealed on")
}

// TestPropagateClaimRetriesThenSucceeds covers the bounded retry with
// backoff before eventually succeeding.
func TestPropagateClaimRetriesThenSucceeds(t *testing.T) {
	ethereum := &fakeClient{chainID: domain.ChainEthereum}
	stellar := &fakeClient{chainID: domain.ChainStellar, failClaims: 2}
	c, store := newTestController(t, ethereum, stellar)

	now := time.Now()
	o := swapOrder(now)
	store.PutOrder(o)
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainStellar, ContractID: []byte("dst"),
		Status: domain.EscrowCreated, Timelock: now.Add(time.Hour),
	})

	c.propagateClaim(context.Background(), domain.SecretRevealedEvent{
		At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID, Preimage: [32]byte{},
	})

	assert.Equal(t, 3, stellar.claimCount(), "two failures then one success")
}

// TestPropagateClaimSkipsAlreadyClaimedEscrow covers the race guard:
// an escrow already claimed or refunded must not be claimed again.
func TestPropagateClaimSkipsAlreadyClaimedEscrow(t *testing.T) {
	ethereum := &fakeClient{chainID: domain.ChainEthereum}
	stellar := &fakeClient{chainID: domain.ChainStellar}
	c, store := newTestController(t, ethereum, stellar)

	now := time.Now()
	o := swapOrder(now)
	store.PutOrder(o)
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainStellar, ContractID: []byte("dst"),
		Status: domain.EscrowClaimed, Timelock: now.Add(time.Hour),
	})

	c.propagateClaim(context.Background(), domain.SecretRevealedEvent{
		At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID, Preimage: [32]byte{},
	})

	assert.Equal(t, 0, stellar.claimCount())
}

// TestPropagateClaimEscalatesOnImminentTimelock covers the fatal
// escalation path when the opposite escrow's timelock is too close
// to risk the bounded retry.
func TestPropagateClaimEscalatesOnImminentTimelock(t *testing.T) {
	ethereum := &fakeClient{chainID: domain.ChainEthereum}
	stellar := &fakeClient{chainID: domain.ChainStellar}
	c, store := newTestController(t, ethereum, stellar)

	now := time.Now()
	o := swapOrder(now)
	store.PutOrder(o)
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainStellar, ContractID: []byte("dst"),
		Status: domain.EscrowCreated, Timelock: now.Add(10 * time.Second),
	})

	c.propagateClaim(context.Background(), domain.SecretRevealedEvent{
		At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID, Preimage: [32]byte{},
	})

	assert.Equal(t, 0, stellar.claimCount(), "an imminent timelock must escalate instead of attempting the claim")
}

// TestSweepOnceRefundsExpiredEscrows covers the periodic sweep: an
// expired order's still-open escrows get RefundEscrow called.
func TestSweepOnceRefundsExpiredEscrows(t *testing.T) {
	ethereum := &fakeClient{chainID: domain.ChainEthereum}
	stellar := &fakeClient{chainID: domain.ChainStellar}
	c, store := newTestController(t, ethereum, stellar)

	now := time.Now()
	o := swapOrder(now)
	o.Timelock = now.Add(-time.Minute)
	store.PutOrder(o)
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainEthereum, ContractID: []byte("src"),
		Status: domain.EscrowCreated, Timelock: now.Add(-time.Minute),
	})

	c.sweepOnce(context.Background())

	assert.Equal(t, 1, ethereum.refundCount())
	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusRefunded, got.Status, "the order's only escrow refunded, so the order must reach refunded")

	escrow, ok := store.GetEscrow(o.OrderID, domain.ChainEthereum)
	require.True(t, ok)
	assert.Equal(t, domain.EscrowRefunded, escrow.Status)
}

// TestSweepOnceWaitsForBothEscrowsBeforeOrderRefunds covers the
// dual-escrow case: a sweep that only refunds one of the order's two
// escrows (the other's timelock hasn't passed yet) must leave the
// order expired, not refunded, until a later sweep refunds the rest.
func TestSweepOnceWaitsForBothEscrowsBeforeOrderRefunds(t *testing.T) {
	ethereum := &fakeClient{chainID: domain.ChainEthereum}
	stellar := &fakeClient{chainID: domain.ChainStellar}
	c, store := newTestController(t, ethereum, stellar)

	now := time.Now()
	o := swapOrder(now)
	o.Timelock = now.Add(-time.Minute)
	store.PutOrder(o)
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainEthereum, ContractID: []byte("src"),
		Status: domain.EscrowCreated, Timelock: now.Add(-time.Minute),
	})
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainStellar, ContractID: []byte("dst"),
		Status: domain.EscrowCreated, Timelock: now.Add(time.Hour),
	})

	c.sweepOnce(context.Background())

	assert.Equal(t, 1, ethereum.refundCount())
	assert.Equal(t, 0, stellar.refundCount(), "the stellar escrow's timelock hasn't passed yet")
	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusExpired, got.Status, "order must stay expired until both escrows refund")

	stellarEscrow, ok := store.GetEscrow(o.OrderID, domain.ChainStellar)
	require.True(t, ok)
	assert.Equal(t, domain.EscrowCreated, stellarEscrow.Status)

	stellarEscrow.Timelock = now.Add(-time.Second)
	store.PutEscrow(stellarEscrow)
	c.sweepOnce(context.Background())

	assert.Equal(t, 1, stellar.refundCount())
	got, _ = store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusRefunded, got.Status, "both escrows now refunded")
}

// TestPropagateClaimCompletesOrderWhenBothEscrowsClaimed covers spec
// §4.5 step 4: a successful claim on the opposite chain must mark that
// escrow claimed and, once every escrow on the order has claimed,
// advance the order to completed.
func TestPropagateClaimCompletesOrderWhenBothEscrowsClaimed(t *testing.T) {
	ethereum := &fakeClient{chainID: domain.ChainEthereum}
	stellar := &fakeClient{chainID: domain.ChainStellar}
	c, store := newTestController(t, ethereum, stellar)

	now := time.Now()
	o := swapOrder(now)
	o.Status = domain.StatusSecretRevealed
	store.PutOrder(o)
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainEthereum, ContractID: []byte("src"),
		Status: domain.EscrowClaimed, Timelock: now.Add(time.Hour),
	})
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainStellar, ContractID: []byte("dst"),
		Status: domain.EscrowCreated, Timelock: now.Add(time.Hour),
	})

	c.propagateClaim(context.Background(), domain.SecretRevealedEvent{
		At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID, Preimage: [32]byte{},
	})

	assert.Equal(t, 1, stellar.claimCount())
	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	escrow, ok := store.GetEscrow(o.OrderID, domain.ChainStellar)
	require.True(t, ok)
	assert.Equal(t, domain.EscrowClaimed, escrow.Status)
}

// TestSweepOnceSkipsNonExpiredOrders covers that the sweep leaves
// orders whose timelock has not yet passed untouched.
func TestSweepOnceSkipsNonExpiredOrders(t *testing.T) {
	ethereum := &fakeClient{chainID: domain.ChainEthereum}
	stellar := &fakeClient{chainID: domain.ChainStellar}
	c, store := newTestController(t, ethereum, stellar)

	now := time.Now()
	o := swapOrder(now)
	store.PutOrder(o)
	store.PutEscrow(&domain.Escrow{
		OrderID: o.OrderID, Chain: domain.ChainEthereum, ContractID: []byte("src"),
		Status: domain.EscrowCreated, Timelock: now.Add(time.Hour),
	})

	c.sweepOnce(context.Background())

	assert.Equal(t, 0, ethereum.refundCount())
}

func TestStopMakesRunReturn(t *testing.T) {
	ethereum := &fakeClient{chainID: domain.ChainEthereum}
	stellar := &fakeClient{chainID: domain.ChainStellar}
	c, _ := newTestController(t, ethereum, stellar)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan domain.Event)
	done := make(chan struct{})
	go func() {
		c.Run(ctx, events)
		close(done)
	}()

	c.Stop()
	<-done
	require.True(t, true)
}
