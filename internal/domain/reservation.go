package domain

import (
	"math/big"
	"time"
)

// AssetReservation is held by the Reservation Tracker, spec §3.
type AssetReservation struct {
	ID        string
	OrderID   string
	Asset     AssetKey
	Amount    *big.Int
	ReservedAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the reservation is no longer active at now.
func (r AssetReservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// BalanceCacheEntry is (total, fetched_at, ttl_seconds) per
// (chain, asset), spec §3.
type BalanceCacheEntry struct {
	Asset     AssetKey
	Total     *big.Int
	FetchedAt time.Time
	TTL       time.Duration
	Stale     bool
}

// Fresh reports whether the entry is fresh at `now`: now - fetched_at
// < ttl_seconds.
func (e BalanceCacheEntry) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// LiquidityHealth is the per-asset threshold-based health state from
// spec §4.7.
type LiquidityHealth string

const (
	HealthHealthy  LiquidityHealth = "healthy"
	HealthWarning  LiquidityHealth = "warning"
	HealthCritical LiquidityHealth = "critical"
)
