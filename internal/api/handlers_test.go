package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/auction"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/eventmonitor"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/lifecycle"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/assetregistry"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/balance"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/reservation"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/orderstore"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/secretmgr"
)

type stubClient struct{ chainID domain.Chain }

func (s *stubClient) Chain() domain.Chain               { return s.chainID }
func (s *stubClient) Connect(ctx context.Context) error { return nil }
func (s *stubClient) CreateEscrow(ctx context.Context, p chain.CreateEscrowParams) (string, error) {
	return "", nil
}
func (s *stubClient) ClaimEscrow(ctx context.Context, contractID []byte, preimage [32]byte) (string, error) {
	return "", nil
}
func (s *stubClient) RefundEscrow(ctx context.Context, contractID []byte) (string, error) {
	return "", nil
}
func (s *stubClient) GetEscrowState(ctx context.Context, contractID []byte) (chain.EscrowState, error) {
	return chain.EscrowState{}, nil
}
func (s *stubClient) ValidateOrder(o *domain.Order) error       { return nil }
func (s *stubClient) StartMonitoring(ctx context.Context) error { return nil }
func (s *stubClient) StopMonitoring()                           {}
func (s *stubClient) Events() <-chan domain.Event               { return make(chan domain.Event) }
func (s *stubClient) Connected() bool                            { return true }
func (s *stubClient) Monitoring() bool                           { return true }

func asset(chainID domain.Chain, symbol string) domain.AssetKey {
	return domain.AssetKey{Chain: chainID, Symbol: symbol}
}

func newTestServer(t *testing.T) (http.Handler, orderstore.Store) {
	t.Helper()
	store := orderstore.NewMemStore()
	secrets := secretmgr.New(store, zap.NewNop())
	lc := lifecycle.New(store, secrets, zap.NewNop(), 30*time.Minute)

	registry := assetregistry.New()
	require.NoError(t, registry.Register(domain.AssetConfig{AssetKey: asset(domain.ChainStellar, "XLM"), OnChainIdentifier: "native", Decimals: 7}))
	require.NoError(t, registry.Register(domain.AssetConfig{AssetKey: asset(domain.ChainEthereum, "ETH"), OnChainIdentifier: "native", Decimals: 18}))

	fetcher := balance.NewMemFetcher()
	fetcher.Set(asset(domain.ChainStellar, "XLM"), big.NewInt(1_000_000_000))
	fetcher.Set(asset(domain.ChainEthereum, "ETH"), big.NewInt(1_000_000_000))
	balances := balance.New(fetcher, zap.NewNop(), time.Minute)
	reservations := reservation.New(zap.NewNop())
	lm := liquidity.New(registry, balances, reservations, zap.NewNop(), liquidity.DefaultThresholds)

	au := auction.New(store, lm, lc, zap.NewNop(), 100, 5*time.Minute)

	ethereum := &stubClient{chainID: domain.ChainEthereum}
	stellar := &stubClient{chainID: domain.ChainStellar}
	mon := eventmonitor.New(ethereum, stellar, zap.NewNop())
	broadcaster := eventmonitor.NewBroadcaster()

	return NewServer(store, lc, lm, au, mon, broadcaster, zap.NewNop()), store
}

func TestHandleCreateOrderSuccess(t *testing.T) {
	srv, store := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"maker":         "maker1",
		"receiver":      "receiver1",
		"maker_asset":   "ethereum:ETH",
		"taker_asset":   "stellar:XLM",
		"making_amount": "1000",
		"taking_amount": "2000",
	})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var got domain.Order
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, domain.StatusAuctionActive, got.Status)

	stored, ok := store.GetOrder(got.OrderID)
	require.True(t, ok)
	assert.Equal(t, "maker1", stored.Maker)
}

func TestHandleCreateOrderRejectsBadAmount(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"maker_asset":   "ethereum:ETH",
		"taker_asset":   "stellar:XLM",
		"making_amount": "not-a-number",
		"taking_amount": "2000",
	})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetOrderNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/orders/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetOrderFound(t *testing.T) {
	srv, store := newTestServer(t)
	store.PutOrder(&domain.Order{OrderID: "order_x", Status: domain.StatusPending})

	req := httptest.NewRequest(http.MethodGet, "/orders/order_x", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleCancelOrder(t *testing.T) {
	srv, store := newTestServer(t)
	store.PutOrder(&domain.Order{OrderID: "order_c", Status: domain.StatusPending})

	req := httptest.NewRequest(http.MethodDelete, "/orders/order_c", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	got, _ := store.GetOrder("order_c")
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

func TestHandleCancelOrderInvalidState(t *testing.T) {
	srv, store := newTestServer(t)
	store.PutOrder(&domain.Order{OrderID: "order_d", Status: domain.StatusCompleted})

	req := httptest.NewRequest(http.MethodDelete, "/orders/order_d", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQuoteUnknownOrder(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"order_id": "nonexistent"})
	req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleQuoteSuccess(t *testing.T) {
	srv, store := newTestServer(t)
	now := time.Now()
	store.PutOrder(&domain.Order{
		OrderID:          "order_q",
		MakerAsset:       asset(domain.ChainEthereum, "ETH"),
		TakerAsset:       asset(domain.ChainStellar, "XLM"),
		MakingAmount:     big.NewInt(1000),
		TakingAmount:     big.NewInt(2000),
		AuctionStartTime: now,
		AuctionEndTime:   now.Add(5 * time.Minute),
		Timelock:         now.Add(time.Hour),
		Status:           domain.StatusAuctionActive,
		CreatedAt:        now,
	})

	body, _ := json.Marshal(map[string]string{"order_id": "order_q"})
	req := httptest.NewRequest(http.MethodPost, "/quote", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleStats(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Contains(t, body, "orders")
	assert.Contains(t, body, "liquidity_status")
	assert.Contains(t, body, "monitoring")
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
