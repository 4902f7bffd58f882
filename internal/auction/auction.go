// Package auction implements the Dutch Auction from spec §4.6: a
// linearly decaying offer price per order, gated by the Liquidity
// Manager's availability check and reservation.
package auction

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/errs"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/lifecycle"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/orderstore"
)

// Quote is the result of a participation tick, spec §6's "POST
// /quote" response shape.
type Quote struct {
	OrderID       string
	CurrentPrice  *big.Rat
	Participating bool
	Reason        string
}

// Auction computes current prices and runs the participation
// decision against the Liquidity Manager.
type Auction struct {
	store     orderstore.Store
	liquidity *liquidity.Manager
	lifecycle *lifecycle.Manager
	logger    *zap.Logger

	safetyDepositBps  int64         // basis points of taking_amount reserved as safety deposit
	reservationTTL    time.Duration // spec §6 reservation_timeout_seconds

	mu           sync.Mutex
	reservations map[string]string // order_id -> reservation_id
}

// New constructs an Auction. safetyDepositBps and reservationTTL come
// from spec §6's SAFETY_DEPOSIT_BPS and RESERVATION_TIMEOUT_SECONDS.
func New(store orderstore.Store, lm *liquidity.Manager, lc *lifecycle.Manager, logger *zap.Logger, safetyDepositBps int64, reservationTTL time.Duration) *Auction {
	return &Auction{
		store:            store,
		liquidity:        lm,
		lifecycle:        lc,
		logger:           logger,
		safetyDepositBps: safetyDepositBps,
		reservationTTL:   reservationTTL,
		reservations:     make(map[string]string),
	}
}

// currentPrice implements the declining-price formula directly over
// an explicit opening price ratio (taking/making at auction start),
// since spec §4.6 does not separately define "opening" beyond "higher,
// favorable to the resolver" — this core takes it as a per-order
// field supplied at submission time via Order.ReservePrice's
// counterpart, the making/taking ratio at t=auction_start.
func currentPrice(o *domain.Order, now time.Time) *big.Rat {
	opening := new(big.Rat).SetFrac(o.TakingAmount, o.MakingAmount)
	reserve := o.ReservePrice
	if reserve == nil {
		reserve = opening
	}

	if !now.After(o.AuctionStartTime) {
		return opening
	}
	if !now.Before(o.AuctionEndTime) {
		return reserve
	}

	total := o.AuctionEndTime.Sub(o.AuctionStartTime)
	remaining := o.AuctionEndTime.Sub(now)
	if total <= 0 {
		return reserve
	}
	fraction := new(big.Rat).SetFrac64(int64(remaining), int64(total))

	spread := new(big.Rat).Sub(opening, reserve)
	delta := new(big.Rat).Mul(spread, fraction)
	return new(big.Rat).Add(reserve, delta)
}

// Tick runs the participation decision for a single order on an
// external quote-request tick, spec §4.6's numbered steps 1-3.
func (a *Auction) Tick(ctx context.Context, orderID string) (Quote, *errs.Error) {
	o, ok := a.store.GetOrder(orderID)
	if !ok {
		return Quote{}, errs.New(errs.OrderNotFound, "order not found")
	}
	if o.Status != domain.StatusAuctionActive {
		return Quote{OrderID: orderID}, errs.New(errs.InvalidInput, "order is not in auction_active")
	}

	price := currentPrice(o, time.Now())

	safetyDeposit := safetyDepositFor(o.TakingAmount, a.safetyDepositBps)
	ok2, err := a.liquidity.HasLiquidity(ctx, o.TakerAsset, o.TakingAmount, safetyDeposit)
	if err != nil {
		return Quote{OrderID: orderID, CurrentPrice: price}, errs.Wrap(errs.Transient, err, "liquidity check failed")
	}
	if !ok2 {
		return Quote{OrderID: orderID, CurrentPrice: price, Reason: "insufficient liquidity"},
			errs.New(errs.InsufficientLiquidity, "no free balance for taker asset")
	}

	reservationID := uuid.NewString()
	expiresAt := time.Now().Add(a.reservationTTL)
	reserved, err := a.liquidity.Reserve(ctx, reservationID, orderID, o.TakerAsset, o.TakingAmount, safetyDeposit, expiresAt)
	if err != nil {
		return Quote{OrderID: orderID, CurrentPrice: price}, errs.Wrap(errs.Transient, err, "reservation failed")
	}
	if !reserved {
		return Quote{OrderID: orderID, CurrentPrice: price, Reason: "lost reservation race"},
			errs.New(errs.InsufficientLiquidity, "reservation failed, competing order won")
	}

	a.mu.Lock()
	a.reservations[orderID] = reservationID
	a.mu.Unlock()

	if kindErr, _ := a.lifecycle.MarkAuctionFilled(orderID, time.Now()); kindErr != nil {
		a.releaseReservation(orderID, o.TakerAsset, o.TakingAmount)
		return Quote{OrderID: orderID, CurrentPrice: price}, kindErr
	}

	return Quote{OrderID: orderID, CurrentPrice: price, Participating: true}, nil
}

// OnTerminal releases any held reservation when an order reaches
// completed/expired/cancelled, spec §4.6 step 4-5.
func (a *Auction) OnTerminal(orderID string) {
	o, ok := a.store.GetOrder(orderID)
	if !ok {
		return
	}
	a.releaseReservation(orderID, o.TakerAsset, nil)
}

func (a *Auction) releaseReservation(orderID string, asset domain.AssetKey, partialAmount *big.Int) {
	a.mu.Lock()
	reservationID, ok := a.reservations[orderID]
	a.mu.Unlock()
	if !ok {
		return
	}

	if partialAmount != nil {
		a.liquidity.ReleaseByAsset(asset, partialAmount)
		return
	}

	a.liquidity.Release(reservationID)
	a.mu.Lock()
	delete(a.reservations, orderID)
	a.mu.Unlock()
}

func safetyDepositFor(takingAmount *big.Int, bps int64) *big.Int {
	if bps <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(takingAmount, big.NewInt(bps))
	return out.Div(out, big.NewInt(10_000))
}

// ActiveOrdersFCFS returns order_ids currently auction_active for
// asset, ordered by created_at ascending, spec §4.6's "ties broken by
// order creation time" first-come-first-served rule.
func ActiveOrdersFCFS(orders []*domain.Order, asset domain.AssetKey) []*domain.Order {
	var out []*domain.Order
	for _, o := range orders {
		if o.Status == domain.StatusAuctionActive && o.TakerAsset == asset {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
