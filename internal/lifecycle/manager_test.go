package lifecycle

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/orderstore"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/secretmgr"
)

func seedOrder(t *testing.T, store orderstore.Store, now time.Time) *domain.Order {
	t.Helper()
	var preimage [32]byte
	hashlock := domain.Hash(domain.HashSHA256, preimage)

	o := &domain.Order{
		OrderID:          "order_test",
		Maker:            "maker",
		Receiver:         "receiver",
		MakerAsset:       domain.AssetKey{Chain: domain.ChainEthereum, Symbol: "ETH"},
		TakerAsset:       domain.AssetKey{Chain: domain.ChainStellar, Symbol: "XLM"},
		MakingAmount:     big.NewInt(100),
		TakingAmount:     big.NewInt(200),
		Hashlock:         hashlock,
		Timelock:         now.Add(2 * time.Hour),
		AuctionStartTime: now,
		AuctionEndTime:   now.Add(5 * time.Minute),
		Status:           domain.StatusHTLCCreated,
		CreatedAt:        now,
	}
	require.NoError(t, o.Validate())
	store.PutOrder(o)
	return o
}

func newTestManager() (*Manager, orderstore.Store) {
	store := orderstore.NewMemStore()
	secrets := secretmgr.New(store, zap.NewNop())
	return New(store, secrets, zap.NewNop(), 30*time.Minute), store
}

func TestEscrowCreatedAdvancesOrder(t *testing.T) {
	mgr, store := newTestManager()
	now := time.Now()
	o := seedOrder(t, store, now)

	mgr.Apply(domain.EscrowCreatedEvent{
		At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID,
		ContractID: []byte("src"), Asset: o.MakerAsset, Hashlock: o.Hashlock, Timelock: o.Timelock,
	})

	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusEscrowCreated, got.Status)

	mgr.Apply(domain.EscrowCreatedEvent{
		At: now, Chain: domain.ChainStellar, OrderID: o.OrderID,
		ContractID: []byte("dst"), Asset: o.TakerAsset, Hashlock: o.Hashlock, Timelock: now.Add(30 * time.Minute),
	})

	got, _ = store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusBothEscrowed, got.Status)
}

func TestSecretRevealedRejectedOnMismatch(t *testing.T) {
	mgr, store := newTestManager()
	now := time.Now()
	o := seedOrder(t, store, now)
	o.Status = domain.StatusBothEscrowed
	store.PutOrder(o)

	var wrongPreimage [32]byte
	wrongPreimage[0] = 0xFF

	mgr.Apply(domain.SecretRevealedEvent{At: now, Chain: domain.ChainStellar, OrderID: o.OrderID, Preimage: wrongPreimage})

	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusBothEscrowed, got.Status, "mismatched preimage must not advance the order")
}

func TestDoubleRevealIsIdempotent(t *testing.T) {
	mgr, store := newTestManager()
	now := time.Now()
	o := seedOrder(t, store, now)
	o.Status = domain.StatusBothEscrowed
	store.PutOrder(o)

	var preimage [32]byte // matches the zero-preimage hashlock seedOrder used

	mgr.Apply(domain.SecretRevealedEvent{At: now, Chain: domain.ChainStellar, OrderID: o.OrderID, Preimage: preimage})
	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusSecretRevealed, got.Status)

	mgr.Apply(domain.SecretRevealedEvent{At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID, Preimage: preimage})
	got, _ = store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusSecretRevealed, got.Status, "replaying the reveal must not error or transition further")
}

func TestClaimAfterRefundIsAnomalyNotCrash(t *testing.T) {
	mgr, store := newTestManager()
	now := time.Now()
	o := seedOrder(t, store, now)

	store.PutEscrow(&domain.Escrow{OrderID: o.OrderID, Chain: domain.ChainEthereum, Status: domain.EscrowRefunded})

	mgr.Apply(domain.EscrowClaimedEvent{At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID, TxHash: "late-claim"})

	escrow, ok := store.GetEscrow(o.OrderID, domain.ChainEthereum)
	require.True(t, ok)
	assert.Equal(t, domain.EscrowRefunded, escrow.Status, "a claim racing a refund must not overwrite the refunded status")
}

func TestExpireIfDue(t *testing.T) {
	mgr, store := newTestManager()
	now := time.Now()
	o := seedOrder(t, store, now)
	o.Status = domain.StatusBothEscrowed
	o.Timelock = now.Add(-time.Minute)
	store.PutOrder(o)

	mgr.ExpireIfDue(o.OrderID, now)
	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusExpired, got.Status)
}

// TestBothEscrowsClaimedCompletesOrderAndPublishesSwapCompleted covers
// spec §4.5 step 4: once every escrow for an order has claimed, the
// order moves to completed and a SwapCompletedEvent is published.
func TestBothEscrowsClaimedCompletesOrderAndPublishesSwapCompleted(t *testing.T) {
	mgr, store := newTestManager()
	now := time.Now()
	o := seedOrder(t, store, now)
	o.Status = domain.StatusSecretRevealed
	store.PutOrder(o)

	store.PutEscrow(&domain.Escrow{OrderID: o.OrderID, Chain: domain.ChainEthereum, Status: domain.EscrowCreated})
	store.PutEscrow(&domain.Escrow{OrderID: o.OrderID, Chain: domain.ChainStellar, Status: domain.EscrowCreated})

	mgr.Apply(domain.EscrowClaimedEvent{At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID, TxHash: "claim1"})
	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusSecretRevealed, got.Status, "order must not complete until every escrow has claimed")

	mgr.Apply(domain.EscrowClaimedEvent{At: now, Chain: domain.ChainStellar, OrderID: o.OrderID, TxHash: "claim2"})
	got, _ = store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	select {
	case ev := <-mgr.Events():
		completed, ok := ev.(domain.SwapCompletedEvent)
		require.True(t, ok)
		assert.Equal(t, o.OrderID, completed.OrderID)
	default:
		t.Fatal("expected a SwapCompletedEvent once both escrows claimed")
	}
}

// TestBothEscrowsMustRefundBeforeOrderIsRefunded covers the mirrored
// all-settled check on the refund path: a single escrow refunding on a
// dual-escrow order must not mark the whole order refunded while its
// counterpart is still outstanding.
func TestBothEscrowsMustRefundBeforeOrderIsRefunded(t *testing.T) {
	mgr, store := newTestManager()
	now := time.Now()
	o := seedOrder(t, store, now)
	o.Status = domain.StatusBothEscrowed
	o.Timelock = now.Add(-time.Minute)
	store.PutOrder(o)
	mgr.ExpireIfDue(o.OrderID, now)

	store.PutEscrow(&domain.Escrow{OrderID: o.OrderID, Chain: domain.ChainEthereum, Status: domain.EscrowCreated})
	store.PutEscrow(&domain.Escrow{OrderID: o.OrderID, Chain: domain.ChainStellar, Status: domain.EscrowCreated})

	mgr.Apply(domain.EscrowRefundedEvent{At: now, Chain: domain.ChainEthereum, OrderID: o.OrderID, TxHash: "refund1"})
	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusExpired, got.Status, "order must stay expired until every escrow has refunded")

	mgr.Apply(domain.EscrowRefundedEvent{At: now, Chain: domain.ChainStellar, OrderID: o.OrderID, TxHash: "refund2"})
	got, _ = store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusRefunded, got.Status)
}

func TestCancelRejectsNonCancellableOrder(t *testing.T) {
	mgr, store := newTestManager()
	now := time.Now()
	o := seedOrder(t, store, now)
	o.Status = domain.StatusBothEscrowed
	store.PutOrder(o)

	kindErr := mgr.Cancel(o.OrderID, now)
	require.NotNil(t, kindErr)
	assert.Equal(t, "InvalidInput", string(kindErr.Kind))
}
