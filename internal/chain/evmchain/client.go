package evmchain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff      = 30 * time.Second
	maxRetries      = 5
	pollInterval    = 12 * time.Second // approximate EVM block time
)

// Client implements chain.Client for the EVM side of a swap.
type Client struct {
	transport Transport
	logger    *zap.Logger

	circuitBreaker *chain.CircuitBreaker

	mu                  sync.RWMutex
	connected           bool
	monitoring          bool
	lastProcessedHeight uint64
	seen                map[dedupKey]struct{}
	seenOrder           []dedupKey

	events chan domain.Event
	stopCh chan struct{}
	once   sync.Once
}

// NewClient constructs an evmchain.Client around the given Transport.
func NewClient(transport Transport, logger *zap.Logger) *Client {
	return &Client{
		transport:      transport,
		logger:         logger,
		circuitBreaker: chain.NewCircuitBreaker(5, 30*time.Second),
		seen:           make(map[dedupKey]struct{}),
		events:         make(chan domain.Event, 256),
		stopCh:         make(chan struct{}),
	}
}

func (c *Client) Chain() domain.Chain { return domain.ChainEthereum }

func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		c.circuitBreaker.RecordFailure()
		return fmt.Errorf("evmchain: connect: %w", err)
	}
	c.circuitBreaker.RecordSuccess()
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) CreateEscrow(ctx context.Context, p chain.CreateEscrowParams) (string, error) {
	return c.transport.SubmitCreateEscrow(ctx, p)
}

func (c *Client) ClaimEscrow(ctx context.Context, contractID []byte, preimage [32]byte) (string, error) {
	return c.transport.SubmitClaimEscrow(ctx, contractID, preimage)
}

func (c *Client) RefundEscrow(ctx context.Context, contractID []byte) (string, error) {
	return c.transport.SubmitRefundEscrow(ctx, contractID)
}

func (c *Client) GetEscrowState(ctx context.Context, contractID []byte) (chain.EscrowState, error) {
	return c.transport.GetEscrowState(ctx, contractID)
}

// ValidateOrder performs EVM-local sanity checks: the maker must look
// like a 0x-prefixed 20-byte hex address.
func (c *Client) ValidateOrder(o *domain.Order) error {
	if !strings.HasPrefix(o.Maker, "0x") || len(o.Maker) != 42 {
		return fmt.Errorf("evmchain: maker %q is not a valid EVM address", o.Maker)
	}
	if o.MakerAsset.Symbol == "" {
		return fmt.Errorf("evmchain: maker_asset symbol required")
	}
	return nil
}

func (c *Client) Events() <-chan domain.Event { return c.events }

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) Monitoring() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monitoring
}

// StartMonitoring captures the current block tip then runs the
// polling loop in a background goroutine, mirroring
// stellarchain.Client.StartMonitoring's gap-fill protocol.
func (c *Client) StartMonitoring(ctx context.Context) error {
	tip, err := c.transport.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("evmchain: capture tip: %w", err)
	}

	c.mu.Lock()
	c.lastProcessedHeight = tip
	c.monitoring = true
	c.mu.Unlock()

	c.logger.Info("evm chain client ready", zap.Uint64("from_block", tip))

	go c.pollLoop(ctx)
	return nil
}

// StopMonitoring is idempotent.
func (c *Client) StopMonitoring() {
	c.once.Do(func() {
		close(c.stopCh)
	})
	c.mu.Lock()
	c.monitoring = false
	c.mu.Unlock()
}

func (c *Client) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Client) tick(ctx context.Context) {
	if !c.circuitBreaker.Allow() {
		c.logger.Warn("evmchain: circuit breaker open, skipping tick",
			zap.String("state", string(c.circuitBreaker.State())))
		return
	}

	tip, err := c.withRetryBlock(ctx)
	if err != nil {
		c.circuitBreaker.RecordFailure()
		c.emitError(domain.ErrorKind("Transient"), err)
		return
	}

	c.mu.RLock()
	last := c.lastProcessedHeight
	c.mu.RUnlock()

	if tip <= last {
		c.circuitBreaker.RecordSuccess()
		return
	}

	logs, err := c.withRetryLogs(ctx, last, tip)
	if err != nil {
		c.circuitBreaker.RecordFailure()
		c.emitError(domain.ErrorKind("Transient"), err)
		return
	}
	c.circuitBreaker.RecordSuccess()

	for _, raw := range logs {
		c.dispatch(raw)
	}

	c.mu.Lock()
	c.lastProcessedHeight = tip
	c.mu.Unlock()
}

func (c *Client) withRetryBlock(ctx context.Context) (uint64, error) {
	var result uint64
	err := backoff.Retry(func() error {
		v, err := c.transport.BlockNumber(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, backoffPolicy(ctx))
	return result, err
}

func (c *Client) withRetryLogs(ctx context.Context, from, to uint64) ([]RawLog, error) {
	var result []RawLog
	err := backoff.Retry(func() error {
		logs, err := c.transport.LogsInRange(ctx, from, to)
		if err != nil {
			return err
		}
		result = logs
		return nil
	}, backoffPolicy(ctx))
	return result, err
}

func backoffPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = initialBackoff
	eb.MaxInterval = maxBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.1
	return backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries), ctx)
}

// dedupKey collapses duplicates within the sliding window the client
// can see, per spec §4.1, keyed by (tx_hash, log_index).
type dedupKey struct {
	txHash   string
	logIndex uint64
}

const dedupWindow = 4096

func (c *Client) alreadySeen(key dedupKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[key]; ok {
		return true
	}
	if len(c.seenOrder) >= dedupWindow {
		oldest := c.seenOrder[0]
		c.seenOrder = c.seenOrder[1:]
		delete(c.seen, oldest)
	}
	c.seen[key] = struct{}{}
	c.seenOrder = append(c.seenOrder, key)
	return false
}

func (c *Client) dispatch(raw RawLog) {
	if c.alreadySeen(dedupKey{txHash: raw.TxHash, logIndex: raw.LogIndex}) {
		c.logger.Debug("evmchain: duplicate log collapsed",
			zap.String("tx_hash", raw.TxHash), zap.Uint64("log_index", raw.LogIndex))
		return
	}

	now := time.Now()
	switch raw.Kind {
	case RawEscrowCreated:
		c.events <- domain.EscrowCreatedEvent{
			At:         now,
			Chain:      domain.ChainEthereum,
			OrderID:    raw.OrderID,
			ContractID: raw.ContractID,
			Amount:     raw.Amount.String(),
			Asset:      raw.Asset,
			Hashlock:   raw.Hashlock,
			Timelock:   raw.Timelock,
			TxHash:     raw.TxHash,
			LogIndex:   raw.LogIndex,
			Height:     raw.BlockNum,
		}
	case RawEscrowClaimed:
		c.events <- domain.SecretRevealedEvent{
			At:       now,
			Chain:    domain.ChainEthereum,
			OrderID:  raw.OrderID,
			Preimage: raw.Preimage,
			TxHash:   raw.TxHash,
			Revealer: raw.Revealer,
			LogIndex: raw.LogIndex,
			Height:   raw.BlockNum,
		}
		c.events <- domain.EscrowClaimedEvent{
			At:      now,
			Chain:   domain.ChainEthereum,
			OrderID: raw.OrderID,
			TxHash:  raw.TxHash,
		}
	case RawEscrowRefunded:
		c.events <- domain.EscrowRefundedEvent{
			At:      now,
			Chain:   domain.ChainEthereum,
			OrderID: raw.OrderID,
			TxHash:  raw.TxHash,
		}
	default:
		c.logger.Warn("evmchain: unknown raw log kind", zap.String("kind", string(raw.Kind)))
	}
}

func (c *Client) emitError(kind domain.ErrorKind, err error) {
	c.logger.Error("evmchain: transient error", zap.Error(err))
	select {
	case c.events <- domain.ChainErrorEvent{At: time.Now(), Chain: domain.ChainEthereum, Kind: kind, Message: err.Error()}:
	default:
	}
}
