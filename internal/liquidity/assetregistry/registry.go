// Package assetregistry implements the Asset Registry from spec §4.7:
// per-asset configuration and decimal conversion.
package assetregistry

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

// Registry holds every registered AssetConfig, keyed by AssetKey,
// spec §3's invariant: asset_key unique across all networks.
type Registry struct {
	mu     sync.RWMutex
	assets map[domain.AssetKey]domain.AssetConfig
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{assets: make(map[domain.AssetKey]domain.AssetConfig)}
}

// Register adds an AssetConfig, validating its invariants.
func (r *Registry) Register(cfg domain.AssetConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.assets[cfg.AssetKey]; exists {
		return fmt.Errorf("assetregistry: asset %s already registered", cfg.AssetKey)
	}
	r.assets[cfg.AssetKey] = cfg
	return nil
}

// Get looks up a registered asset's configuration.
func (r *Registry) Get(key domain.AssetKey) (domain.AssetConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.assets[key]
	return cfg, ok
}

// All returns every registered asset, for iteration by the balance
// refresher and the liquidity-status aggregator.
func (r *Registry) All() []domain.AssetConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AssetConfig, 0, len(r.assets))
	for _, cfg := range r.assets {
		out = append(out, cfg)
	}
	return out
}

// Keys returns the AssetKey of every registered asset, for the
// Balance Tracker's StartMonitoring call.
func (r *Registry) Keys() []domain.AssetKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AssetKey, 0, len(r.assets))
	for k := range r.assets {
		out = append(out, k)
	}
	return out
}

// ConvertToDecimal interprets a raw integer in native units as a
// decimal string with decimals fractional digits, spec §4.7.
func (r *Registry) ConvertToDecimal(key domain.AssetKey, raw *big.Int) (string, error) {
	cfg, ok := r.Get(key)
	if !ok {
		return "", fmt.Errorf("assetregistry: unknown asset %s", key)
	}
	d := decimal.NewFromBigInt(raw, -cfg.Decimals)
	return d.String(), nil
}

// ConvertFromDecimal is the inverse of ConvertToDecimal; it rejects
// on precision loss (extra fractional digits beyond decimals), spec
// §4.7 and the decimal round-trip testable property in spec §8.
func (r *Registry) ConvertFromDecimal(key domain.AssetKey, dec string) (*big.Int, error) {
	cfg, ok := r.Get(key)
	if !ok {
		return nil, fmt.Errorf("assetregistry: unknown asset %s", key)
	}
	d, err := decimal.NewFromString(dec)
	if err != nil {
		return nil, fmt.Errorf("assetregistry: invalid decimal %q: %w", dec, err)
	}
	if d.Exponent() < -cfg.Decimals {
		return nil, fmt.Errorf("assetregistry: %q has more fractional digits than asset %s allows (%d)", dec, key, cfg.Decimals)
	}
	scaled := d.Shift(cfg.Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("assetregistry: %q loses precision at %d decimals for asset %s", dec, cfg.Decimals, key)
	}
	return scaled.BigInt(), nil
}
