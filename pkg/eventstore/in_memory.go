package eventstore

import "sync"

type InMemoryEventStore struct {
	mu            sync.RWMutex
	events        map[uint64][]*OrderEvent
	orderByClOrd  map[string]uint64 // ClOrdID -> engine order id
	latestClOrdID map[uint64]string // order id -> current ClOrdID
	clOrdChain    map[string]string // ClOrdID -> OrigClOrdID
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events:        make(map[uint64][]*OrderEvent),
		orderByClOrd:  make(map[string]uint64),
		latestClOrdID: make(map[uint64]string),
		clOrdChain:    make(map[string]string),
	}
}

func (s *InMemoryEventStore) AddEvent(ev *OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.OrderID] = append(s.events[ev.OrderID], ev)
	s.trackLocked(ev.OrderID, ev.ClOrdID, ev.OrigClOrdID)
}

func (s *InMemoryEventStore) TrackClOrdChain(orderID uint64, clOrdID, origClOrdID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackLocked(orderID, clOrdID, origClOrdID)
}

func (s *InMemoryEventStore) trackLocked(orderID uint64, clOrdID, origClOrdID string) {
	if clOrdID == "" {
		return
	}
	s.orderByClOrd[clOrdID] = orderID
	s.latestClOrdID[orderID] = clOrdID
	if origClOrdID != "" {
		s.clOrdChain[clOrdID] = origClOrdID
	}
}

func (s *InMemoryEventStore) GetOrderID(clOrdID string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.orderByClOrd[clOrdID]
	return id, ok
}

func (s *InMemoryEventStore) GetLatestClOrdID(orderID uint64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestClOrdID[orderID]
}

func (s *InMemoryEventStore) GetOrigClOrdID(clOrdID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clOrdChain[clOrdID]
}

// ReconstructChain walks backward to the original ClOrdID.
func (s *InMemoryEventStore) ReconstructChain(clOrdID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orderByClOrd[clOrdID]; !ok {
		return nil
	}

	var chain []string
	curr := clOrdID
	for curr != "" {
		chain = append(chain, curr)
		curr = s.clOrdChain[curr]
	}
	return chain
}

func (s *InMemoryEventStore) Events(orderID uint64) []*OrderEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*OrderEvent, len(s.events[orderID]))
	copy(out, s.events[orderID])
	return out
}
