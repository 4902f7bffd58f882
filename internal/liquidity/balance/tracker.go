// Package balance implements the Balance Tracker from spec §4.7:
// per-(chain, asset) cached balance with TTL, periodic refresh,
// change notifications, and retry with backoff.
package balance

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

// Fetcher queries the real balance for one (chain, asset) pair. A
// production build backs this with the chain clients' RPC
// transports; tests use an in-memory fake.
type Fetcher interface {
	FetchBalance(ctx context.Context, key domain.AssetKey) (*big.Int, error)
}

// Tracker caches balances per spec §4.7, with the retry/backoff
// shape grounded on the teacher's stellar-live-source
// getLedgersWithRetry (initial 1s, factor 2, cap 60s per spec §4.7).
type Tracker struct {
	fetcher Fetcher
	logger  *zap.Logger
	ttl     time.Duration

	// consecutiveFailureThreshold is the count of consecutive refresh
	// failures after which an entry is marked stale, spec §4.7.
	consecutiveFailureThreshold int

	mu      sync.RWMutex
	entries map[domain.AssetKey]*entryState

	events chan domain.Event

	stopCh chan struct{}
	once   sync.Once
}

type entryState struct {
	entry               domain.BalanceCacheEntry
	consecutiveFailures int
}

// New constructs a Tracker. ttl is the freshness window from spec §6
// config cache_ttl_seconds.
func New(fetcher Fetcher, logger *zap.Logger, ttl time.Duration) *Tracker {
	return &Tracker{
		fetcher:                     fetcher,
		logger:                      logger,
		ttl:                         ttl,
		consecutiveFailureThreshold: 3,
		entries:                     make(map[domain.AssetKey]*entryState),
		events:                      make(chan domain.Event, 128),
		stopCh:                      make(chan struct{}),
	}
}

// Events is the channel BalanceChanged/liquidity-degradation signals
// are published on.
func (t *Tracker) Events() <-chan domain.Event { return t.events }

// GetBalance returns the cached entry if fresh; otherwise issues a
// network query, stores the new entry, and fires BalanceChanged if
// the value differs from the previous one, spec §4.7.
func (t *Tracker) GetBalance(ctx context.Context, key domain.AssetKey) (domain.BalanceCacheEntry, error) {
	t.mu.RLock()
	st, ok := t.entries[key]
	t.mu.RUnlock()

	now := time.Now()
	if ok && st.entry.Fresh(now) {
		return st.entry, nil
	}
	return t.refresh(ctx, key)
}

// UpdateBalance forces a refresh, spec §4.7.
func (t *Tracker) UpdateBalance(ctx context.Context, key domain.AssetKey) (domain.BalanceCacheEntry, error) {
	return t.refresh(ctx, key)
}

func (t *Tracker) refresh(ctx context.Context, key domain.AssetKey) (domain.BalanceCacheEntry, error) {
	total, err := t.fetcher.FetchBalance(ctx, key)
	if err != nil {
		return t.recordFailure(key, err)
	}
	return t.recordSuccess(key, total), nil
}

func (t *Tracker) recordSuccess(key domain.AssetKey, total *big.Int) domain.BalanceCacheEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.entries[key]
	var previous *big.Int
	if ok {
		previous = st.entry.Total
	}
	newEntry := domain.BalanceCacheEntry{
		Asset:     key,
		Total:     total,
		FetchedAt: time.Now(),
		TTL:       t.ttl,
		Stale:     false,
	}
	t.entries[key] = &entryState{entry: newEntry}

	if previous == nil || previous.Cmp(total) != 0 {
		prevStr := "0"
		if previous != nil {
			prevStr = previous.String()
		}
		select {
		case t.events <- domain.BalanceChangedEvent{At: time.Now(), Asset: key, Previous: prevStr, Current: total.String()}:
		default:
		}
	}
	return newEntry
}

func (t *Tracker) recordFailure(key domain.AssetKey, err error) (domain.BalanceCacheEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.entries[key]
	if !ok {
		// Never fetched successfully: nothing to serve stale.
		return domain.BalanceCacheEntry{}, err
	}
	st.consecutiveFailures++
	if st.consecutiveFailures >= t.consecutiveFailureThreshold && !st.entry.Stale {
		st.entry.Stale = true
		t.logger.Warn("balance tracker: entry marked stale after repeated failures",
			zap.String("asset", key.String()), zap.Error(err))
		select {
		case t.events <- domain.LiquidityAlertEvent{At: time.Now(), Asset: key, Health: domain.HealthCritical, Note: "BalanceFetchDegraded"}:
		default:
		}
	}
	return st.entry, nil
}

// StartMonitoring schedules refreshes for every asset in keys on the
// given interval, retrying with exponential backoff on failure (spec
// §4.7: initial 1s, factor 2, cap 60s).
func (t *Tracker) StartMonitoring(ctx context.Context, keys []domain.AssetKey, interval time.Duration) {
	for _, key := range keys {
		go t.refreshLoop(ctx, key, interval)
	}
}

func (t *Tracker) refreshLoop(ctx context.Context, key domain.AssetKey, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.refreshWithBackoff(ctx, key)
		}
	}
}

func (t *Tracker) refreshWithBackoff(ctx context.Context, key domain.AssetKey) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 1 * time.Second
	eb.MaxInterval = 60 * time.Second
	eb.Multiplier = 2
	policy := backoff.WithContext(eb, ctx)

	_ = backoff.Retry(func() error {
		total, err := t.fetcher.FetchBalance(ctx, key)
		if err != nil {
			_, _ = t.recordFailure(key, err)
			return err
		}
		t.recordSuccess(key, total)
		return nil
	}, policy)
}

// Stop halts all refresh loops. Idempotent.
func (t *Tracker) Stop() {
	t.once.Do(func() { close(t.stopCh) })
}
