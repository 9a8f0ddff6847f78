package orderbook

// ladderHeap keeps one side's distinct prices ordered best-first. It backs
// bookSide through container/heap; Push dedupes through the presence set so
// re-inserting an existing level is a no-op.
type ladderHeap struct {
	prices  []float64
	better  func(a, b float64) bool
	present map[float64]bool
}

func newLadderHeap(side Side) *ladderHeap {
	better := func(a, b float64) bool { return a > b } // bids: highest first
	if side == SELL {
		better = func(a, b float64) bool { return a < b } // asks: lowest first
	}
	return &ladderHeap{better: better, present: make(map[float64]bool)}
}

func (h *ladderHeap) Len() int           { return len(h.prices) }
func (h *ladderHeap) Less(i, j int) bool { return h.better(h.prices[i], h.prices[j]) }
func (h *ladderHeap) Swap(i, j int)      { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *ladderHeap) Push(x any) {
	price := x.(float64)
	if h.present[price] {
		return
	}
	h.present[price] = true
	h.prices = append(h.prices, price)
}

func (h *ladderHeap) Pop() any {
	last := len(h.prices) - 1
	price := h.prices[last]
	h.prices = h.prices[:last]
	delete(h.present, price)
	return price
}

// top reports the best price without popping it.
func (h *ladderHeap) top() (float64, bool) {
	if len(h.prices) == 0 {
		return 0, false
	}
	return h.prices[0], true
}
