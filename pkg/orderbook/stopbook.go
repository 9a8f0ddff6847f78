package orderbook

// stopBook holds stop and stop-limit orders that have not triggered yet.
// They sit outside the ladders and do not show in depth or best quotes.
type stopBook struct {
	parked map[uint64]*Order
}

func newStopBook() *stopBook {
	return &stopBook{parked: make(map[uint64]*Order)}
}

func (s *stopBook) park(o *Order) {
	s.parked[o.ID] = o
}

func (s *stopBook) peek(id uint64) *Order {
	return s.parked[id]
}

func (s *stopBook) take(id uint64) *Order {
	o := s.parked[id]
	if o != nil {
		delete(s.parked, id)
	}
	return o
}

func (s *stopBook) count() int {
	return len(s.parked)
}

// nextTriggered removes and returns the earliest-arriving parked order whose
// trigger the last trade price crossed, or nil when none fires.
func (s *stopBook) nextTriggered(lastPrice float64, traded bool) *Order {
	if !traded {
		return nil
	}
	var hit *Order
	for _, o := range s.parked {
		fires := false
		if o.Side == BUY {
			fires = lastPrice >= o.StopPrice
		} else {
			fires = lastPrice <= o.StopPrice
		}
		if !fires {
			continue
		}
		if hit == nil || o.arrivalSeq < hit.arrivalSeq {
			hit = o
		}
	}
	if hit != nil {
		delete(s.parked, hit.ID)
	}
	return hit
}
