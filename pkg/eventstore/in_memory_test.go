package eventstore

import (
	"testing"
	"time"
)

func TestClOrdChainTracking(t *testing.T) {
	s := NewInMemoryEventStore()

	s.AddEvent(&OrderEvent{
		EventID:   NewEventID(7, ExecTypeNew),
		OrderID:   7,
		ClOrdID:   "A1",
		ExecType:  ExecTypeNew,
		Timestamp: time.Now(),
	})
	s.AddEvent(&OrderEvent{
		EventID:     NewEventID(7, ExecTypeReplaced),
		OrderID:     7,
		ClOrdID:     "A2",
		OrigClOrdID: "A1",
		ExecType:    ExecTypeReplaced,
		Timestamp:   time.Now(),
	})

	if id, ok := s.GetOrderID("A2"); !ok || id != 7 {
		t.Errorf("GetOrderID(A2) = %d/%v, want 7", id, ok)
	}
	if got := s.GetLatestClOrdID(7); got != "A2" {
		t.Errorf("latest ClOrdID = %q, want A2", got)
	}
	if got := s.GetOrigClOrdID("A2"); got != "A1" {
		t.Errorf("orig ClOrdID = %q, want A1", got)
	}

	chain := s.ReconstructChain("A2")
	if len(chain) != 2 || chain[0] != "A2" || chain[1] != "A1" {
		t.Errorf("chain = %v, want [A2 A1]", chain)
	}
	if got := len(s.Events(7)); got != 2 {
		t.Errorf("events = %d, want 2", got)
	}
}

func TestUnknownClOrdID(t *testing.T) {
	s := NewInMemoryEventStore()
	if _, ok := s.GetOrderID("missing"); ok {
		t.Error("unknown ClOrdID resolved")
	}
	if chain := s.ReconstructChain("missing"); chain != nil {
		t.Errorf("chain for unknown id = %v, want nil", chain)
	}
}
