package balance

import (
	"context"
	"math/big"
	"sync"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

// MemFetcher is a Fetcher backed by an in-memory map, standing in for
// the real RPC balance query (eth_getBalance / Soroban contract
// balance call), which is out of scope per spec §1. Operators seed it
// at startup and update it as the resolver's own wallet balances
// change.
type MemFetcher struct {
	mu       sync.RWMutex
	balances map[domain.AssetKey]*big.Int
}

// NewMemFetcher constructs an empty MemFetcher.
func NewMemFetcher() *MemFetcher {
	return &MemFetcher{balances: make(map[domain.AssetKey]*big.Int)}
}

// Set assigns the balance for key, overwriting any prior value.
func (f *MemFetcher) Set(key domain.AssetKey, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[key] = new(big.Int).Set(amount)
}

// FetchBalance implements Fetcher.
func (f *MemFetcher) FetchBalance(ctx context.Context, key domain.AssetKey) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if v, ok := f.balances[key]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}
