package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joripage/fixmatch/pkg/orderbook"
)

// Stats accumulates engine counters. Counters use atomics; the latency
// extrema and traded value share a small mutex since they change together.
type Stats struct {
	ordersProcessed atomic.Int64
	ordersRejected  atomic.Int64
	tradesExecuted  atomic.Int64
	volumeTraded    atomic.Int64

	mu          sync.Mutex
	valueTraded float64
	minLatency  time.Duration
	maxLatency  time.Duration
	sumLatency  time.Duration
	samples     int64
}

type StatsSnapshot struct {
	OrdersProcessed int64
	OrdersRejected  int64
	TradesExecuted  int64
	VolumeTraded    int64
	ValueTraded     float64
	MinLatency      time.Duration
	MaxLatency      time.Duration
	AvgLatency      time.Duration
}

func (s *Stats) recordTrade(t *orderbook.Trade) {
	s.tradesExecuted.Add(1)
	s.volumeTraded.Add(t.Quantity)
	s.mu.Lock()
	s.valueTraded += t.Price * float64(t.Quantity)
	s.mu.Unlock()
}

func (s *Stats) observe(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samples == 0 || d < s.minLatency {
		s.minLatency = d
	}
	if d > s.maxLatency {
		s.maxLatency = d
	}
	s.sumLatency += d
	s.samples++
}

func (s *Stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		OrdersProcessed: s.ordersProcessed.Load(),
		OrdersRejected:  s.ordersRejected.Load(),
		TradesExecuted:  s.tradesExecuted.Load(),
		VolumeTraded:    s.volumeTraded.Load(),
		ValueTraded:     s.valueTraded,
		MinLatency:      s.minLatency,
		MaxLatency:      s.maxLatency,
	}
	if s.samples > 0 {
		snap.AvgLatency = s.sumLatency / time.Duration(s.samples)
	}
	return snap
}
