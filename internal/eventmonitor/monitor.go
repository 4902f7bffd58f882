// Package eventmonitor implements the pure fan-in component from
// spec §4.2: it subscribes to both chain clients' event channels,
// tags nothing extra (each chain client already stamps its own
// Chain field), and republishes every known domain.Event variant on a
// single domain-event channel; any other variant is logged and
// dropped. It holds no state other than the monitoring health
// snapshot.
package eventmonitor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/chain"
	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

// Health is the monitoring-health snapshot from spec §4.2.
type Health struct {
	EthereumConnected  bool
	StellarConnected   bool
	EthereumMonitoring bool
	StellarMonitoring  bool
}

// Monitor fans two chain.Client event streams into one.
type Monitor struct {
	ethereum chain.Client
	stellar  chain.Client
	logger   *zap.Logger

	out    chan domain.Event
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New constructs a Monitor over the given ethereum-side and
// stellar-side chain clients.
func New(ethereum, stellar chain.Client, logger *zap.Logger) *Monitor {
	return &Monitor{
		ethereum: ethereum,
		stellar:  stellar,
		logger:   logger,
		out:      make(chan domain.Event, 512),
		stopCh:   make(chan struct{}),
	}
}

// Events is the single fan-in domain-event channel.
func (m *Monitor) Events() <-chan domain.Event { return m.out }

// Start begins forwarding both chain clients' events. It assumes both
// clients already had StartMonitoring called on them.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(2)
	go m.forward(ctx, m.ethereum)
	go m.forward(ctx, m.stellar)
}

func (m *Monitor) forward(ctx context.Context, c chain.Client) {
	defer m.wg.Done()
	events := c.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.(type) {
			case domain.EscrowCreatedEvent, domain.SecretRevealedEvent, domain.EscrowClaimedEvent,
				domain.EscrowRefundedEvent, domain.OrderCreatedEvent, domain.SwapCompletedEvent,
				domain.ChainErrorEvent, domain.BalanceChangedEvent, domain.LiquidityAlertEvent:
			default:
				m.logger.Warn("eventmonitor: dropping unknown event variant", zap.String("chain", string(c.Chain())))
				continue
			}
			select {
			case m.out <- ev:
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			}
		}
	}
}

// Stop is idempotent and waits for both forwarding goroutines to
// exit.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

// HealthSnapshot reports the current monitoring health of both chain
// clients.
func (m *Monitor) HealthSnapshot() Health {
	return Health{
		EthereumConnected:  m.ethereum.Connected(),
		StellarConnected:   m.stellar.Connected(),
		EthereumMonitoring: m.ethereum.Monitoring(),
		StellarMonitoring:  m.stellar.Monitoring(),
	}
}
