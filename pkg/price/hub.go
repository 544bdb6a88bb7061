package price

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ManishgandotraCoder/forkast-sub000/pkg/metrics"
)

// Subscriber receives price snapshots over a buffered channel. The buffer
// holds exactly one snapshot: a subscriber that has not consumed the
// previous delivery gets it replaced by the newer one (drop-to-latest), so
// at most one snapshot is ever in flight per subscriber and broadcasting
// never blocks.
type Subscriber struct {
	id string
	ch chan []Snapshot
}

// Updates is the subscriber's receive side.
func (s *Subscriber) Updates() <-chan []Snapshot { return s.ch }

// ID identifies the subscriber in logs.
func (s *Subscriber) ID() string { return s.id }

// push delivers drop-to-latest without blocking.
func (s *Subscriber) push(snap []Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	// Buffer full: displace the stale snapshot. A concurrent consumer may
	// drain it first, so the final send is best-effort too.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

// Hub manages the live subscriber set for the price channel.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
	last []Snapshot
	log  *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		subs: make(map[*Subscriber]struct{}),
		log:  log,
	}
}

// Subscribe registers a new subscriber and synchronously delivers the
// current snapshot, so clients connecting right after startup see a
// populated table.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan []Snapshot, 1),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	if h.last != nil {
		sub.push(h.last)
	}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
	h.log.Infow("price_subscriber_added", "subscriber", sub.id, "total", n)
	return sub
}

// Unsubscribe removes a subscriber. Disconnect and unsubscribe are
// equivalent; the channel is closed so consumers can range over it.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	if ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		metrics.Subscribers.Set(float64(n))
		h.log.Infow("price_subscriber_removed", "subscriber", sub.id, "total", n)
	}
}

// Broadcast delivers the snapshot to every current subscriber. Slow
// consumers are skipped for this tick; the next tick supersedes anything
// they missed.
func (h *Hub) Broadcast(snap []Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = snap
	for sub := range h.subs {
		sub.push(snap)
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
