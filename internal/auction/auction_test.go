package auction

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/errs"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/assetregistry"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/balance"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/reservation"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/lifecycle"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/orderstore"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/secretmgr"
)

func eth() domain.AssetKey { return domain.AssetKey{Chain: domain.ChainEthereum, Symbol: "ETH"} }
func xlm() domain.AssetKey { return domain.AssetKey{Chain: domain.ChainStellar, Symbol: "XLM"} }

func newTestAuction(t *testing.T, seedBalance int64, safetyDepositBps int64) (*Auction, orderstore.Store) {
	t.Helper()
	store := orderstore.NewMemStore()
	secrets := secretmgr.New(store, zap.NewNop())
	lc := lifecycle.New(store, secrets, zap.NewNop(), 30*time.Minute)

	registry := assetregistry.New()
	require.NoError(t, registry.Register(domain.AssetConfig{AssetKey: xlm(), OnChainIdentifier: "native", Decimals: 7}))

	fetcher := balance.NewMemFetcher()
	fetcher.Set(xlm(), big.NewInt(seedBalance))
	balances := balance.New(fetcher, zap.NewNop(), time.Minute)
	reservations := reservation.New(zap.NewNop())
	lm := liquidity.New(registry, balances, reservations, zap.NewNop(), liquidity.DefaultThresholds)

	return New(store, lm, lc, zap.NewNop(), safetyDepositBps, 5*time.Minute), store
}

func auctionOrder(now time.Time) *domain.Order {
	return &domain.Order{
		OrderID:          "order_auction",
		Maker:            "maker",
		Receiver:         "receiver",
		MakerAsset:       eth(),
		TakerAsset:       xlm(),
		MakingAmount:     big.NewInt(1000),
		TakingAmount:     big.NewInt(2000),
		Hashlock:         domain.Hash(domain.HashSHA256, [32]byte{}),
		Timelock:         now.Add(2 * time.Hour),
		AuctionStartTime: now,
		AuctionEndTime:   now.Add(10 * time.Minute),
		Status:           domain.StatusAuctionActive,
		CreatedAt:        now,
	}
}

func TestCurrentPriceDecaysLinearly(t *testing.T) {
	now := time.Now()
	o := auctionOrder(now)
	o.ReservePrice = big.NewRat(1, 1)

	atStart := currentPrice(o, now)
	assert.Equal(t, 0, big.NewRat(2, 1).Cmp(atStart))

	mid := currentPrice(o, now.Add(5*time.Minute))
	want := big.NewRat(3, 2) // halfway between opening (2/1) and reserve (1/1)
	assert.Equal(t, 0, want.Cmp(mid))

	atEnd := currentPrice(o, now.Add(10*time.Minute))
	assert.Equal(t, 0, o.ReservePrice.Cmp(atEnd))
}

func TestTickSucceedsWithSufficientLiquidity(t *testing.T) {
	a, store := newTestAuction(t, 1_000_000, 100)
	now := time.Now()
	o := auctionOrder(now)
	store.PutOrder(o)

	quote, kindErr := a.Tick(context.Background(), o.OrderID)
	require.Nil(t, kindErr)
	assert.True(t, quote.Participating)

	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusFilled, got.Status)
}

func TestTickFailsWithInsufficientLiquidity(t *testing.T) {
	a, store := newTestAuction(t, 10, 100)
	now := time.Now()
	o := auctionOrder(now)
	store.PutOrder(o)

	quote, kindErr := a.Tick(context.Background(), o.OrderID)
	require.NotNil(t, kindErr)
	assert.Equal(t, errs.InsufficientLiquidity, kindErr.Kind)
	assert.False(t, quote.Participating)

	got, _ := store.GetOrder(o.OrderID)
	assert.Equal(t, domain.StatusAuctionActive, got.Status, "a failed tick must not advance the order")
}

func TestTickRejectsWrongStatus(t *testing.T) {
	a, store := newTestAuction(t, 1_000_000, 100)
	now := time.Now()
	o := auctionOrder(now)
	o.Status = domain.StatusFilled
	store.PutOrder(o)

	_, kindErr := a.Tick(context.Background(), o.OrderID)
	require.NotNil(t, kindErr)
	assert.Equal(t, errs.InvalidInput, kindErr.Kind)
}

func TestTickUnknownOrder(t *testing.T) {
	a, _ := newTestAuction(t, 1_000_000, 100)
	_, kindErr := a.Tick(context.Background(), "nonexistent")
	require.NotNil(t, kindErr)
	assert.Equal(t, errs.OrderNotFound, kindErr.Kind)
}

func TestOnTerminalReleasesReservation(t *testing.T) {
	a, store := newTestAuction(t, 2700, 100)
	now := time.Now()
	o := auctionOrder(now)
	store.PutOrder(o)

	quote, kindErr := a.Tick(context.Background(), o.OrderID)
	require.Nil(t, kindErr)
	require.True(t, quote.Participating)

	health, err := a.liquidity.Health(context.Background(), xlm())
	require.NoError(t, err)
	assert.NotEqual(t, domain.HealthHealthy, health, "the reservation from Tick should have moved health off Healthy")

	a.OnTerminal(o.OrderID)

	health, err = a.liquidity.Health(context.Background(), xlm())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthHealthy, health, "releasing the reservation should restore full liquidity")
}

func TestSafetyDepositForBasisPoints(t *testing.T) {
	assert.Equal(t, 0, big.NewInt(20).Cmp(safetyDepositFor(big.NewInt(2000), 100)))
	assert.Equal(t, 0, big.NewInt(0).Cmp(safetyDepositFor(big.NewInt(2000), 0)))
}

func TestActiveOrdersFCFS(t *testing.T) {
	now := time.Now()
	o1 := auctionOrder(now)
	o1.OrderID = "o1"
	o1.CreatedAt = now.Add(time.Minute)

	o2 := auctionOrder(now)
	o2.OrderID = "o2"
	o2.CreatedAt = now

	o3 := auctionOrder(now)
	o3.OrderID = "o3"
	o3.Status = domain.StatusFilled

	ordered := ActiveOrdersFCFS([]*domain.Order{o1, o2, o3}, xlm())
	require.Len(t, ordered, 2)
	assert.Equal(t, "o2", ordered[0].OrderID, "earlier CreatedAt must come first")
	assert.Equal(t, "o1", ordered[1].OrderID)
}
