// Package relayer implements the Relayer Controller from spec §4.6:
// it wires the Event Monitor to the Lifecycle Manager and Secret
// Manager, propagates a revealed secret to the opposite chain's
// escrow, and periodically sweeps expired orders for refund.
package relayer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/errs"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/lifecycle"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/orderstore"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/secretmgr"
)

// claimAttempts/claimInitialBackoff mirror the chain clients' retry
// shape (spec §4.6: up to 5 retries after the first call, 2x backoff
// from 1s).
const (
	claimAttempts       = 5
	claimInitialBackoff = 1 * time.Second
	claimMaxBackoff     = 30 * time.Second

	sweepInterval = 1 * time.Minute
)

// Controller drives cross-chain propagation of revealed secrets and
// the refund sweep.
type Controller struct {
	ethereum chain.Client
	stellar  chain.Client

	lifecycle *lifecycle.Manager
	secrets   *secretmgr.Manager
	store     orderstore.Store
	logger    *zap.Logger

	stopCh chan struct{}
}

// New constructs a Controller. The two chain.Client values are keyed
// by domain.Chain via their Chain() method; which one is "source" vs
// "destination" for a given order depends on that order's asset keys.
func New(ethereum, stellar chain.Client, lc *lifecycle.Manager, secrets *secretmgr.Manager, store orderstore.Store, logger *zap.Logger) *Controller {
	return &Controller{
		ethereum:  ethereum,
		stellar:   stellar,
		lifecycle: lc,
		secrets:   secrets,
		store:     store,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

func (c *Controller) clientFor(ch domain.Chain) chain.Client {
	if ch == domain.ChainEthereum {
		return c.ethereum
	}
	return c.stellar
}

// Run consumes events from the fan-in channel, applies them to the
// Lifecycle Manager, and reacts to SecretRevealed by propagating the
// claim to the opposite chain, spec §4.6. It blocks until ctx is
// cancelled or Stop is called.
func (c *Controller) Run(ctx context.Context, events <-chan domain.Event) {
	go c.sweepLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.lifecycle.Apply(ev)
			if revealed, ok := ev.(domain.SecretRevealedEvent); ok {
				go c.propagateClaim(ctx, revealed)
			}
			// A secret revealed before this escrow existed is replayed
			// from the revelation log now that the escrow is in place.
			if created, ok := ev.(domain.EscrowCreatedEvent); ok {
				if revs := c.store.RevelationsForOrder(created.OrderID); len(revs) > 0 {
					replay := domain.SecretRevealedEvent{
						At: created.At, Chain: revs[0].Chain, OrderID: created.OrderID,
						Preimage: revs[0].Preimage, TxHash: revs[0].TxHash, Revealer: revs[0].Revealer,
					}
					c.lifecycle.Apply(replay)
					go c.propagateClaim(ctx, replay)
				}
			}
		}
	}
}

// Stop halts the sweep loop and makes Run return. It must be called at
// most once.
func (c *Controller) Stop() { close(c.stopCh) }

// propagateClaim commands the opposite chain's escrow to release
// using the now-known preimage, spec §4.6. If the opposite escrow's
// timelock is imminent, it escalates straight to Fatal instead of
// exhausting the bounded retry, since a stuck retry loop could miss
// the window entirely.
func (c *Controller) propagateClaim(ctx context.Context, revealed domain.SecretRevealedEvent) {
	o, ok := c.store.GetOrder(revealed.OrderID)
	if !ok {
		c.logger.Warn("relayer: secret revealed for unknown order", zap.String("order_id", revealed.OrderID))
		return
	}

	var oppositeChain domain.Chain
	switch revealed.Chain {
	case o.MakerAsset.Chain:
		oppositeChain = o.TakerAsset.Chain
	case o.TakerAsset.Chain:
		oppositeChain = o.MakerAsset.Chain
	default:
		return
	}

	escrow, ok := c.store.GetEscrow(revealed.OrderID, oppositeChain)
	if !ok {
		c.logger.Warn("relayer: no opposite escrow to claim", zap.String("order_id", revealed.OrderID))
		return
	}
	if escrow.Status != domain.EscrowCreated {
		return // already claimed or refunded
	}

	if time.Until(escrow.Timelock) < 2*claimMaxBackoff {
		c.logger.Error("relayer: opposite timelock imminent, escalating",
			zap.String("order_id", revealed.OrderID), zap.Time("timelock", escrow.Timelock))
		c.emitFatal(revealed.OrderID, "opposite escrow timelock imminent")
		return
	}

	client := c.clientFor(oppositeChain)
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = claimInitialBackoff
	eb.MaxInterval = claimMaxBackoff
	eb.Multiplier = 2
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, claimAttempts), ctx)

	var txHash string
	err := backoff.Retry(func() error {
		h, err := client.ClaimEscrow(ctx, escrow.ContractID, revealed.Preimage)
		if err != nil {
			return err
		}
		txHash = h
		return nil
	}, policy)
	if err != nil {
		c.logger.Error("relayer: claim propagation exhausted retries",
			zap.String("order_id", revealed.OrderID), zap.Error(err))
		c.emitFatal(revealed.OrderID, "claim propagation failed: "+err.Error())
		return
	}

	// Feed the successful claim back through the Lifecycle Manager the
	// same way a chain client's own claim-receipt event would: marks
	// the opposite escrow claimed and, once every escrow on the order
	// has claimed, advances it to completed and publishes
	// SwapCompletedEvent, spec §4.5 step 4.
	c.lifecycle.Apply(domain.EscrowClaimedEvent{
		At:      time.Now(),
		Chain:   oppositeChain,
		OrderID: revealed.OrderID,
		TxHash:  txHash,
	})
}

func (c *Controller) emitFatal(orderID, message string) {
	c.logger.Error("relayer: fatal condition",
		zap.String("order_id", orderID),
		zap.String("kind", string(errs.Fatal)),
		zap.String("message", message))
}

// sweepLoop periodically calls RefundEscrow for every escrow whose
// order has expired, spec §4.6's "periodic sweep" (every
// sweepInterval, 1 minute).
func (c *Controller) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweepOnce(ctx)
		}
	}
}

func (c *Controller) sweepOnce(ctx context.Context) {
	now := time.Now()
	expired := c.store.ListOrders("", "", 0, 0)
	for _, o := range expired {
		if o.Status.Terminal() || !now.After(o.Timelock) {
			continue
		}
		c.lifecycle.ExpireIfDue(o.OrderID, now)
		for _, escrow := range c.store.EscrowsForOrder(o.OrderID) {
			if escrow.Status != domain.EscrowCreated {
				continue
			}
			if !now.After(escrow.Timelock) {
				continue
			}
			client := c.clientFor(escrow.Chain)
			txHash, err := client.RefundEscrow(ctx, escrow.ContractID)
			if err != nil {
				c.logger.Error("relayer: refund failed",
					zap.String("order_id", o.OrderID), zap.String("chain", string(escrow.Chain)), zap.Error(err))
				continue
			}
			// Mirrors propagateClaim: feed the successful refund back
			// through the Lifecycle Manager, which marks this escrow
			// refunded and, once every escrow on the order has
			// refunded, advances the order from expired to refunded,
			// spec §4.5's periodic-tick paragraph.
			c.lifecycle.Apply(domain.EscrowRefundedEvent{
				At:      time.Now(),
				Chain:   escrow.Chain,
				OrderID: o.OrderID,
				TxHash:  txHash,
			})
		}
	}
}
