package store

import "sync"

// Subscribers fans snapshots out to the live subscriptions of each room.
// Delivery happens under the registry lock, so a cancel that has returned
// guarantees no further callbacks. Callbacks must not call back into the
// registry and must not block.
type Subscribers struct {
	mu     sync.Mutex
	nextID int
	byRoom map[string]map[int]func(Snapshot)
}

// NewSubscribers builds an empty subscription registry.
func NewSubscribers() *Subscribers {
	return &Subscribers{byRoom: make(map[string]map[int]func(Snapshot))}
}

// Add registers a subscription for a room and returns its cancel func.
// Cancel is idempotent.
func (s *Subscribers) Add(room string, fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	subs, ok := s.byRoom[room]
	if !ok {
		subs = make(map[int]func(Snapshot))
		s.byRoom[room] = subs
	}
	subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byRoom[room], id)
		if len(s.byRoom[room]) == 0 {
			delete(s.byRoom, room)
		}
	}
}

// Publish delivers a snapshot to every live subscription of the room.
func (s *Subscribers) Publish(room string, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fn := range s.byRoom[room] {
		fn(snap)
	}
}
