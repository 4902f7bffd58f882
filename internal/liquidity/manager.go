// Package liquidity composes the Asset Registry, Balance Tracker and
// Reservation Tracker into the Liquidity Manager of spec §4.7: the
// single authority the Dutch Auction consults before accepting a
// fill, and whose aggregate health backs GET /stats.
package liquidity

import (
	"context"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/assetregistry"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/balance"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/liquidity/reservation"
)

// Thresholds controls when an asset's LiquidityHealth degrades, as a
// fraction of total balance currently reserved.
type Thresholds struct {
	Degraded float64 // e.g. 0.70
	Critical float64 // e.g. 0.90
}

// DefaultThresholds matches spec §4.7's suggested defaults.
var DefaultThresholds = Thresholds{Degraded: 0.70, Critical: 0.90}

// Manager is the composite Liquidity Manager.
type Manager struct {
	registry     *assetregistry.Registry
	balances     *balance.Tracker
	reservations *reservation.Tracker
	logger       *zap.Logger
	thresholds   Thresholds

	events chan domain.Event
}

// New constructs a Manager over already-constructed sub-components.
func New(registry *assetregistry.Registry, balances *balance.Tracker, reservations *reservation.Tracker, logger *zap.Logger, thresholds Thresholds) *Manager {
	return &Manager{
		registry:     registry,
		balances:     balances,
		reservations: reservations,
		logger:       logger,
		thresholds:   thresholds,
		events:       make(chan domain.Event, 128),
	}
}

// Events is the channel LiquidityAlert transitions are published on.
// The balance and reservation trackers publish on their own channels;
// Manager does not forward them.
func (m *Manager) Events() <-chan domain.Event { return m.events }

// HasLiquidity reports whether amount of asset is available: balance
// minus already-reserved minus safetyDeposit, spec §4.7's supplemented
// safety-deposit accounting.
func (m *Manager) HasLiquidity(ctx context.Context, asset domain.AssetKey, amount, safetyDeposit *big.Int) (bool, error) {
	entry, err := m.balances.GetBalance(ctx, asset)
	if err != nil {
		return false, err
	}
	reserved := m.reservations.Reserved(asset, time.Now())
	needed := new(big.Int).Add(amount, safetyDeposit)
	available := new(big.Int).Sub(entry.Total, reserved)
	return available.Cmp(needed) >= 0, nil
}

// Reserve checks availability and, if sufficient, records a
// reservation, as one atomic operation under the reservation
// tracker's own lock (spec §5) so that two concurrent Reserve calls
// for the same asset cannot both pass the availability check and both
// over-commit the balance. It returns false without reserving if
// liquidity is insufficient.
func (m *Manager) Reserve(ctx context.Context, reservationID, orderID string, asset domain.AssetKey, amount, safetyDeposit *big.Int, expiresAt time.Time) (bool, error) {
	entry, err := m.balances.GetBalance(ctx, asset)
	if err != nil {
		return false, err
	}
	total := new(big.Int).Add(amount, safetyDeposit)
	ok := m.reservations.ReserveIfAvailable(reservationID, orderID, asset, total, entry.Total, time.Now(), expiresAt)
	if !ok {
		return false, nil
	}
	m.checkHealth(asset)
	return true, nil
}

// Release frees a reservation by id, spec §4.7.
func (m *Manager) Release(reservationID string) {
	m.reservations.Release(reservationID)
}

// ReleaseByAsset releases oldest-first reservations for a partial
// fill, spec §4.7's supplemented partial-fill behavior.
func (m *Manager) ReleaseByAsset(asset domain.AssetKey, amount *big.Int) *big.Int {
	released := m.reservations.ReleaseByAsset(asset, amount)
	m.checkHealth(asset)
	return released
}

// CleanupExpired delegates to the reservation tracker's sweep.
func (m *Manager) CleanupExpired(now time.Time) int {
	n := m.reservations.CleanupExpired(now)
	return n
}

// Health computes the current LiquidityHealth of asset from the
// reserved fraction of total balance, spec §4.7.
func (m *Manager) Health(ctx context.Context, asset domain.AssetKey) (domain.LiquidityHealth, error) {
	entry, err := m.balances.GetBalance(ctx, asset)
	if err != nil {
		return domain.HealthCritical, err
	}
	if entry.Stale {
		return domain.HealthWarning, nil
	}
	if entry.Total.Sign() == 0 {
		return domain.HealthCritical, nil
	}
	reserved := m.reservations.Reserved(asset, time.Now())
	fraction := new(big.Rat).SetFrac(reserved, entry.Total)
	f, _ := fraction.Float64()

	switch {
	case f >= m.thresholds.Critical:
		return domain.HealthCritical, nil
	case f >= m.thresholds.Degraded:
		return domain.HealthWarning, nil
	default:
		return domain.HealthHealthy, nil
	}
}

func (m *Manager) checkHealth(asset domain.AssetKey) {
	health, err := m.Health(context.Background(), asset)
	if err != nil {
		return
	}
	if health != domain.HealthHealthy {
		select {
		case m.events <- domain.LiquidityAlertEvent{At: time.Now(), Asset: asset, Health: health, Note: "threshold crossed"}:
		default:
		}
	}
}

// StatusReport is the per-asset summary backing GET /stats's
// "liquidity_status" field, spec §6.
type StatusReport struct {
	Asset     domain.AssetKey
	Total     string
	Reserved  string
	Health    domain.LiquidityHealth
	Stale     bool
	FetchedAt time.Time
}

// StatusAll aggregates a StatusReport for every registered asset,
// spec §4.7's supplemented liquidity-status aggregation endpoint.
func (m *Manager) StatusAll(ctx context.Context) []StatusReport {
	var out []StatusReport
	for _, cfg := range m.registry.All() {
		entry, err := m.balances.GetBalance(ctx, cfg.AssetKey)
		if err != nil {
			continue
		}
		health, _ := m.Health(ctx, cfg.AssetKey)
		reserved := m.reservations.Reserved(cfg.AssetKey, time.Now())

		totalStr, _ := m.registry.ConvertToDecimal(cfg.AssetKey, entry.Total)
		reservedStr, _ := m.registry.ConvertToDecimal(cfg.AssetKey, reserved)

		out = append(out, StatusReport{
			Asset:     cfg.AssetKey,
			Total:     totalStr,
			Reserved:  reservedStr,
			Health:    health,
			Stale:     entry.Stale,
			FetchedAt: entry.FetchedAt,
		})
	}
	return out
}
