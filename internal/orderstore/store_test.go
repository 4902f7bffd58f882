package orderstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

func order(id string, maker string, status domain.Status) *domain.Order {
	return &domain.Order{OrderID: id, Maker: maker, Status: status}
}

func TestPutOrderUpdatesStatusIndex(t *testing.T) {
	s := NewMemStore()
	o := order("o1", "alice", domain.StatusAuctionActive)
	s.PutOrder(o)

	list := s.ListOrders(domain.StatusAuctionActive, "", 0, 0)
	require.Len(t, list, 1)
	assert.Equal(t, "o1", list[0].OrderID)

	o.Status = domain.StatusFilled
	s.PutOrder(o)

	assert.Empty(t, s.ListOrders(domain.StatusAuctionActive, "", 0, 0), "old status bucket must be vacated on re-put")
	filled := s.ListOrders(domain.StatusFilled, "", 0, 0)
	require.Len(t, filled, 1)
	assert.Equal(t, "o1", filled[0].OrderID)
}

func TestListOrdersFiltersByMaker(t *testing.T) {
	s := NewMemStore()
	s.PutOrder(order("o1", "alice", domain.StatusAuctionActive))
	s.PutOrder(order("o2", "bob", domain.StatusAuctionActive))

	got := s.ListOrders(domain.StatusAuctionActive, "alice", 0, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0].OrderID)
}

func TestListOrdersPagination(t *testing.T) {
	s := NewMemStore()
	for _, id := range []string{"o1", "o2", "o3"} {
		s.PutOrder(order(id, "alice", domain.StatusAuctionActive))
	}

	page1 := s.ListOrders(domain.StatusAuctionActive, "", 2, 0)
	assert.Len(t, page1, 2)

	page2 := s.ListOrders(domain.StatusAuctionActive, "", 2, 2)
	assert.Len(t, page2, 1)

	beyond := s.ListOrders(domain.StatusAuctionActive, "", 2, 10)
	assert.Nil(t, beyond)
}

func TestDeleteOrderRemovesFromIndex(t *testing.T) {
	s := NewMemStore()
	s.PutOrder(order("o1", "alice", domain.StatusCompleted))
	s.DeleteOrder("o1")

	_, ok := s.GetOrder("o1")
	assert.False(t, ok)
	assert.Empty(t, s.ListOrders(domain.StatusCompleted, "", 0, 0))
}

func TestEscrowsForOrderPreservesInsertionOrder(t *testing.T) {
	s := NewMemStore()
	s.PutEscrow(&domain.Escrow{OrderID: "o1", Chain: domain.ChainEthereum})
	s.PutEscrow(&domain.Escrow{OrderID: "o1", Chain: domain.ChainStellar})

	escrows := s.EscrowsForOrder("o1")
	require.Len(t, escrows, 2)
	assert.Equal(t, domain.ChainEthereum, escrows[0].Chain)
	assert.Equal(t, domain.ChainStellar, escrows[1].Chain)
}

func TestPutEscrowOverwriteDoesNotDuplicateIndex(t *testing.T) {
	s := NewMemStore()
	s.PutEscrow(&domain.Escrow{OrderID: "o1", Chain: domain.ChainEthereum, Status: domain.EscrowCreated})
	s.PutEscrow(&domain.Escrow{OrderID: "o1", Chain: domain.ChainEthereum, Status: domain.EscrowClaimed})

	escrows := s.EscrowsForOrder("o1")
	require.Len(t, escrows, 1)
	assert.Equal(t, domain.EscrowClaimed, escrows[0].Status)
}

func TestRevelationsForOrderReturnsACopy(t *testing.T) {
	s := NewMemStore()
	s.AppendRevelation(domain.SecretRevelation{OrderID: "o1", TxHash: "tx1"})

	revs := s.RevelationsForOrder("o1")
	revs[0].TxHash = "mutated"

	fresh := s.RevelationsForOrder("o1")
	assert.Equal(t, "tx1", fresh[0].TxHash, "callers must not be able to mutate internal state through the returned slice")
}

func TestStatsBucketsByStatus(t *testing.T) {
	s := NewMemStore()
	s.PutOrder(order("o1", "a", domain.StatusAuctionActive))
	s.PutOrder(order("o2", "a", domain.StatusCompleted))
	s.PutOrder(order("o3", "a", domain.StatusCancelled))
	s.PutOrder(order("o4", "a", domain.StatusExpired))
	s.PutOrder(order("o5", "a", domain.StatusRefunded))

	stats := s.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, 2, stats.Expired, "both Expired and Refunded orders count toward the expired bucket")
}
