// Package api implements the HTTP/WS surface from spec §6: the
// outside-facing interface the core must support, even though the
// gateway process hosting it is out of scope. Built on gorilla/mux
// and gorilla/websocket per SPEC_FULL.md's domain-stack wiring.
package api

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/auction"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/errs"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/eventmonitor"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/lifecycle"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/orderstore"
)

// Server wires the core's components to HTTP handlers.
type Server struct {
	store       orderstore.Store
	lifecycle   *lifecycle.Manager
	liquidity   *liquidity.Manager
	auction     *auction.Auction
	monitor     *eventmonitor.Monitor
	broadcaster *eventmonitor.Broadcaster
	logger      *zap.Logger

	upgrader websocket.Upgrader
}

// NewServer constructs a Server and registers its routes on a new
// mux.Router. broadcaster is the fan-out point subscribed for each
// WebSocket client; the Relayer Controller consumes its own
// subscription independently.
func NewServer(store orderstore.Store, lc *lifecycle.Manager, lm *liquidity.Manager, au *auction.Auction, mon *eventmonitor.Monitor, broadcaster *eventmonitor.Broadcaster, logger *zap.Logger) *mux.Router {
	s := &Server{
		store:       store,
		lifecycle:   lc,
		liquidity:   lm,
		auction:     au,
		monitor:     mon,
		broadcaster: broadcaster,
		logger:      logger,
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}

	r := mux.NewRouter()
	r.HandleFunc("/orders", s.handleCreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	r.HandleFunc("/orders/{id}", s.handleCancelOrder).Methods(http.MethodDelete)
	r.HandleFunc("/quote", s.handleQuote).Methods(http.MethodPost)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/events", s.handleEventsWS)
	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErr(w http.ResponseWriter, e *errs.Error) {
	status := http.StatusInternalServerError
	switch e.Kind {
	case errs.InvalidInput, errs.InvalidPreimage:
		status = http.StatusBadRequest
	case errs.OrderNotFound:
		status = http.StatusNotFound
	case errs.InsufficientLiquidity:
		status = http.StatusConflict
	case errs.Transient, errs.Degraded:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"kind":    e.Kind,
		"message": e.Message,
		"details": e.Details,
	})
}

// createOrderRequest is spec §6's POST /orders body.
type createOrderRequest struct {
	Maker         string `json:"maker"`
	Receiver      string `json:"receiver"`
	MakerAsset    string `json:"maker_asset"`
	TakerAsset    string `json:"taker_asset"`
	MakingAmount  string `json:"making_amount"`
	TakingAmount  string `json:"taking_amount"`
	Timelock      *int64 `json:"timelock,omitempty"`
	SecretHashes  []string `json:"secret_hashes,omitempty"`
}

func parseAssetKey(s string) domain.AssetKey {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return domain.AssetKey{Chain: domain.Chain(s[:i]), Symbol: s[i+1:]}
		}
	}
	return domain.AssetKey{Symbol: s}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errs.New(errs.InvalidInput, "malformed request body"))
		return
	}

	making, ok := new(big.Int).SetString(req.MakingAmount, 10)
	if !ok {
		writeErr(w, errs.New(errs.InvalidInput, "making_amount must be an integer string"))
		return
	}
	taking, ok := new(big.Int).SetString(req.TakingAmount, 10)
	if !ok {
		writeErr(w, errs.New(errs.InvalidInput, "taking_amount must be an integer string"))
		return
	}

	now := time.Now()
	timelock := now.Add(1 * time.Hour)
	if req.Timelock != nil {
		timelock = time.Unix(*req.Timelock, 0)
	}

	orderID, err := domain.NewOrderID(now)
	if err != nil {
		writeErr(w, errs.Wrap(errs.Fatal, err, "order id generation failed"))
		return
	}

	o := &domain.Order{
		OrderID:          orderID,
		Maker:            req.Maker,
		Receiver:         req.Receiver,
		MakerAsset:       parseAssetKey(req.MakerAsset),
		TakerAsset:       parseAssetKey(req.TakerAsset),
		MakingAmount:     making,
		TakingAmount:     taking,
		Timelock:         timelock,
		AuctionStartTime: now,
		AuctionEndTime:   now.Add(5 * time.Minute),
		Status:           domain.StatusPending,
		CreatedAt:        now,
		LastTransition:   now,
	}
	for _, hexHash := range req.SecretHashes {
		raw, err := hex.DecodeString(trimHexPrefix(hexHash))
		if err != nil || len(raw) != 32 {
			writeErr(w, errs.New(errs.InvalidInput, "secret_hashes entries must be 32-byte hex"))
			return
		}
		var h [32]byte
		copy(h[:], raw)
		o.SecretHashes = append(o.SecretHashes, h)
	}
	if len(o.SecretHashes) > 0 {
		o.Hashlock = o.SecretHashes[0]
	}

	if err := o.Validate(); err != nil {
		writeErr(w, errs.New(errs.InvalidInput, err.Error()))
		return
	}
	if err := o.Transition(domain.StatusAuctionActive, now); err != nil {
		writeErr(w, errs.New(errs.InvalidInput, err.Error()))
		return
	}

	s.store.PutOrder(o)
	s.logger.Info("order created", zap.String("order_id", o.OrderID))
	writeJSON(w, http.StatusCreated, o)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.Status(q.Get("status"))
	maker := q.Get("maker")
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	orders := s.store.ListOrders(status, maker, limit, offset)
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	o, ok := s.store.GetOrder(id)
	if !ok {
		writeErr(w, errs.New(errs.OrderNotFound, "order not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order":   o,
		"escrows": s.store.EscrowsForOrder(id),
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if e := s.lifecycle.Cancel(id, time.Now()); e != nil {
		writeErr(w, e)
		return
	}
	s.auction.OnTerminal(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type quoteRequest struct {
	OrderID string `json:"order_id"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errs.New(errs.InvalidInput, "malformed request body"))
		return
	}
	quote, e := s.auction.Tick(r.Context(), req.OrderID)
	if e != nil && e.Kind != errs.InsufficientLiquidity {
		writeErr(w, e)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	liquidityStatus := s.liquidity.StatusAll(r.Context())
	health := s.monitor.HealthSnapshot()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders":           stats,
		"liquidity_status": liquidityStatus,
		"monitoring":       health,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.monitor.HealthSnapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":            true,
		"chains_connected":   map[string]bool{"ethereum": health.EthereumConnected, "stellar": health.StellarConnected},
		"chains_monitoring":  map[string]bool{"ethereum": health.EthereumMonitoring, "stellar": health.StellarMonitoring},
	})
}

// handleEventsWS streams the domain-event channel to a WebSocket
// client, spec §6's "same shape for inter-process API/WS" note.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("api: websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub)

	for ev := range sub {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
