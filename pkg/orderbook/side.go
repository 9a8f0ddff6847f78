package orderbook

import (
	"container/heap"

	"github.com/gammazero/deque"
)

// PriceLevel is one aggregated rung of the ladder.
type PriceLevel struct {
	Price    float64
	Quantity int64
}

// bookSide is one price-sorted ladder: FIFO deque per price, heap over the
// prices for O(log P) best-of, and an id index for cancels.
type bookSide struct {
	side   Side
	levels map[float64]*deque.Deque[*Order]
	prices *ladderHeap
	byID   map[uint64]*Order
}

func newBookSide(side Side) *bookSide {
	return &bookSide{
		side:   side,
		levels: make(map[float64]*deque.Deque[*Order]),
		prices: newLadderHeap(side),
		byID:   make(map[uint64]*Order),
	}
}

func (s *bookSide) insert(o *Order) {
	level := s.levels[o.Price]
	if level == nil {
		level = &deque.Deque[*Order]{}
		s.levels[o.Price] = level
		heap.Push(s.prices, o.Price)
	}
	level.PushBack(o)
	s.byID[o.ID] = o
}

// remove drops the order from its level and the index. Rebuilding the level
// deque is acceptable at this depth.
func (s *bookSide) remove(id uint64) bool {
	o, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)

	level := s.levels[o.Price]
	if level == nil {
		return true
	}
	n := level.Len()
	for i := 0; i < n; i++ {
		entry := level.PopFront()
		if entry.ID != id {
			level.PushBack(entry)
		}
	}
	if level.Len() == 0 {
		s.dropLevel(o.Price)
	}
	return true
}

func (s *bookSide) find(id uint64) *Order {
	return s.byID[id]
}

// best returns the first active order at the best price, discarding
// terminal or empty heads as it goes.
func (s *bookSide) best() *Order {
	for {
		price, ok := s.prices.top()
		if !ok {
			return nil
		}
		level := s.levels[price]
		for level != nil && level.Len() > 0 {
			head := level.Front()
			if head.IsActive() && head.Remaining > 0 {
				return head
			}
			level.PopFront()
			delete(s.byID, head.ID)
		}
		s.dropLevel(price)
	}
}

func (s *bookSide) bestPrice() (float64, bool) {
	o := s.best()
	if o == nil {
		return 0, false
	}
	return o.Price, true
}

// depth aggregates up to max levels from the best price inward.
func (s *bookSide) depth(max int) []PriceLevel {
	sorted := make([]float64, len(s.prices.prices))
	copy(sorted, s.prices.prices)
	// heap order is partial; sort by the side's comparator
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && s.prices.better(sorted[j], sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var out []PriceLevel
	for _, price := range sorted {
		if max > 0 && len(out) >= max {
			break
		}
		qty := s.activeQuantityAt(price)
		if qty > 0 {
			out = append(out, PriceLevel{Price: price, Quantity: qty})
		}
	}
	return out
}

func (s *bookSide) activeQuantityAt(price float64) int64 {
	level := s.levels[price]
	if level == nil {
		return 0
	}
	var total int64
	for i := 0; i < level.Len(); i++ {
		o := level.At(i)
		if o.IsActive() {
			total += o.Remaining
		}
	}
	return total
}

// available sums active quantity at prices crossing limit. A zero-limit
// market scan sums the whole side. Used by the FOK pre-scan.
func (s *bookSide) available(limit float64, isMarket bool) int64 {
	var total int64
	for price := range s.levels {
		if !isMarket {
			if s.side == SELL && price > limit {
				continue
			}
			if s.side == BUY && price < limit {
				continue
			}
		}
		total += s.activeQuantityAt(price)
	}
	return total
}

func (s *bookSide) orderCount() int { return len(s.byID) }

func (s *bookSide) dropLevel(price float64) {
	delete(s.levels, price)
	for i, p := range s.prices.prices {
		if p == price {
			heap.Remove(s.prices, i)
			break
		}
	}
}
