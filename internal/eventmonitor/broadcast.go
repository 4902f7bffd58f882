package eventmonitor

import (
	"sync"

	"github.com/santhoshkumar0918/crosschain-1inch-sub001/internal/domain"
)

// Broadcaster fans a single event stream out to any number of
// subscribers, so the Relayer Controller and any number of WebSocket
// clients can each consume the full stream independently, spec §6's
// "same shape for inter-process API/WS" note.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan domain.Event]struct{}
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan domain.Event]struct{})}
}

// Subscribe registers a new subscriber channel. The caller must call
// Unsubscribe when done consuming.
func (b *Broadcaster) Subscribe() chan domain.Event {
	ch := make(chan domain.Event, 256)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broadcaster) Unsubscribe(ch chan domain.Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Run reads from in until it closes, republishing each event to every
// current subscriber. A slow subscriber drops events rather than
// blocking the others.
func (b *Broadcaster) Run(in <-chan domain.Event) {
	for ev := range in {
		b.mu.Lock()
		for ch := range b.subs {
			select {
			case ch <- ev:
			default:
			}
		}
		b.mu.Unlock()
	}
}
