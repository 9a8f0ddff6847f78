package marketdata

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/joripage/fixmatch/pkg/logging"
	"github.com/joripage/fixmatch/pkg/orderbook"
)

const defaultBuffer = 8192

// TradeTick is the public print of one execution. Order ownership is not
// disclosed on the tape.
type TradeTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// BookSnapshot is a truncated view of one symbol's ladder.
type BookSnapshot struct {
	Symbol    string                 `json:"symbol"`
	Bids      []orderbook.PriceLevel `json:"bids"`
	Asks      []orderbook.PriceLevel `json:"asks"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sink receives published market data. Slow sinks slow the publisher
// worker, never the matching path.
type Sink interface {
	OnTrade(ctx context.Context, tick *TradeTick) error
	OnSnapshot(ctx context.Context, snap *BookSnapshot) error
}

type event struct {
	tick *TradeTick
	snap *BookSnapshot
}

// Publisher decouples the matching path from market data distribution.
// Publish never blocks: when the buffer is full the event is dropped and
// counted.
type Publisher struct {
	log   *logging.Logger
	sinks []Sink

	events  chan event
	dropped atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPublisher(log *logging.Logger, sinks ...Sink) *Publisher {
	return &Publisher{
		log:    log,
		sinks:  sinks,
		events: make(chan event, defaultBuffer),
		stopCh: make(chan struct{}),
	}
}

func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

func (p *Publisher) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

func (p *Publisher) PublishTrade(tick *TradeTick) {
	p.publish(event{tick: tick})
}

func (p *Publisher) PublishSnapshot(snap *BookSnapshot) {
	p.publish(event{snap: snap})
}

func (p *Publisher) publish(ev event) {
	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
	}
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case ev := <-p.events:
			p.dispatch(ctx, ev)
		}
	}
}

func (p *Publisher) dispatch(ctx context.Context, ev event) {
	for _, sink := range p.sinks {
		var err error
		switch {
		case ev.tick != nil:
			err = sink.OnTrade(ctx, ev.tick)
		case ev.snap != nil:
			err = sink.OnSnapshot(ctx, ev.snap)
		}
		if err != nil {
			p.log.Warn(ctx, "market data sink error", zap.Error(err))
		}
	}
}
