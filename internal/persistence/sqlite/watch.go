package sqlite

import (
	"sync"

	"github.com/example/resource-booking/internal/persistence"
)

type watchSubscriber struct {
	resourceType string
	ch           chan []persistence.Reservation
}

// ReservationWatch fans reservation snapshots out to subscribers. Every
// committed mutation pushes the full reservation list, so consumers replace
// their view wholesale instead of applying diffs. Delivery is best effort
// with a latest-wins buffer of one; dropping a stale snapshot is safe because
// the newer one already contains everything it did.
type ReservationWatch struct {
	mu          sync.Mutex
	closed      bool
	nextID      int
	subscribers map[int]*watchSubscriber
}

// NewReservationWatch creates an empty snapshot feed.
func NewReservationWatch() *ReservationWatch {
	return &ReservationWatch{subscribers: make(map[int]*watchSubscriber)}
}

// SubscribeReservations registers interest in reservation snapshots, optionally
// narrowed to one resource type. The returned cancel func releases the
// subscription and closes the channel.
func (w *ReservationWatch) SubscribeReservations(resourceType string) (<-chan []persistence.Reservation, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan []persistence.Reservation, 1)
	if w.closed {
		close(ch)
		return ch, func() {}
	}

	id := w.nextID
	w.nextID++
	w.subscribers[id] = &watchSubscriber{resourceType: resourceType, ch: ch}

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subscribers[id]; ok {
			delete(w.subscribers, id)
			close(sub.ch)
		}
	}
	return ch, cancel
}

// Close drops all subscribers and closes their channels. Further notify calls
// are no-ops.
func (w *ReservationWatch) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	for id, sub := range w.subscribers {
		delete(w.subscribers, id)
		close(sub.ch)
	}
}

func (w *ReservationWatch) hasSubscribers() bool {
	if w == nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && len(w.subscribers) > 0
}

func (w *ReservationWatch) notify(reservations []persistence.Reservation) {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	for _, sub := range w.subscribers {
		snapshot := reservations
		if sub.resourceType != "" {
			snapshot = filterReservationsByType(reservations, sub.resourceType)
		}
		// Latest wins: drain a stale pending snapshot before offering the new one.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snapshot:
		default:
		}
	}
}

func filterReservationsByType(reservations []persistence.Reservation, resourceType string) []persistence.Reservation {
	filtered := make([]persistence.Reservation, 0, len(reservations))
	for _, reservation := range reservations {
		if reservation.ResourceType == resourceType {
			filtered = append(filtered, reservation)
		}
	}
	return filtered
}
