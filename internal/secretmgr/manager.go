// Package secretmgr implements the Secret Manager from spec §4.4:
// binds preimages to hashlocks, validates revelations, and caches for
// fast cross-chain propagation.
package secretmgr

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/errs"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/orderstore"
)

// Manager binds preimages to hashlocks and caches revelations for
// fast lookup by the Relayer Controller.
type Manager struct {
	store  orderstore.Store
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string][32]byte // order_id -> preimage
}

// New constructs a Manager backed by the given Order Store.
func New(store orderstore.Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		cache:  make(map[string][32]byte),
	}
}

// Generate produces a new (preimage, hashlock) pair: 32 uniformly
// random bytes, hashlock = sha256(preimage), spec §4.4. sha256 is the
// only algorithm Generate ever produces — see SPEC_FULL.md's Open
// Question decision on hash-function ambiguity.
func Generate() (preimage [32]byte, hashlock [32]byte, err error) {
	if _, err := rand.Read(preimage[:]); err != nil {
		return preimage, hashlock, fmt.Errorf("secretmgr: generate preimage: %w", err)
	}
	hashlock = domain.Hash(domain.HashSHA256, preimage)
	return preimage, hashlock, nil
}

// Store validates preimage against the order's hashlock (using the
// order's chosen HashAlgorithm, defaulting to sha256) and, on success,
// appends to the revelation log and caches order_id -> preimage.
func (m *Manager) Store(o *domain.Order, preimage [32]byte, chain domain.Chain, txHash, revealer string, now time.Time) (*errs.Error, error) {
	algo := o.HashAlgorithm
	if algo == "" {
		algo = domain.HashSHA256
	}
	if !domain.VerifyPreimage(algo, preimage, o.Hashlock) {
		m.logger.Warn("secretmgr: mismatched preimage rejected",
			zap.String("order_id", o.OrderID), zap.String("chain", string(chain)))
		return errs.New(errs.InvalidPreimage, "preimage does not hash to order hashlock"), nil
	}

	rev := domain.SecretRevelation{
		OrderID:   o.OrderID,
		Preimage:  preimage,
		Hashlock:  o.Hashlock,
		Chain:     chain,
		TxHash:    txHash,
		Revealer:  revealer,
		Timestamp: now,
	}
	m.store.AppendRevelation(rev)

	m.mu.Lock()
	m.cache[o.OrderID] = preimage
	m.mu.Unlock()

	return nil, nil
}

// Get is cache-first, then falls back to the revelation log.
func (m *Manager) Get(orderID string) ([32]byte, bool) {
	m.mu.RLock()
	preimage, ok := m.cache[orderID]
	m.mu.RUnlock()
	if ok {
		return preimage, true
	}

	revs := m.store.RevelationsForOrder(orderID)
	if len(revs) == 0 {
		return [32]byte{}, false
	}
	preimage = revs[0].Preimage

	m.mu.Lock()
	m.cache[orderID] = preimage
	m.mu.Unlock()
	return preimage, true
}

// Verify reports whether preimage hashes (under algo) to hashlock.
func Verify(algo domain.HashAlgorithm, preimage, hashlock [32]byte) bool {
	return domain.VerifyPreimage(algo, preimage, hashlock)
}
