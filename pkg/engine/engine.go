package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/joripage/fixmatch/pkg/engine/riskrule"
	"github.com/joripage/fixmatch/pkg/logging"
	"github.com/joripage/fixmatch/pkg/orderbook"
)

// softBudget is the per-request processing target. Requests over it are
// logged, not failed.
const softBudget = time.Millisecond

const defaultQueueSize = 4096

// Execution is one report delivered to the execution callback: a snapshot
// of the order after the event, plus the trade when the event is a fill.
type Execution struct {
	Order orderbook.Order
	Trade *orderbook.Trade
}

type Config struct {
	QueueSize          int
	MaxPrice           float64
	MaxOrderQty        int64
	MaxOrdersPerSymbol int
	Logger             *logging.Logger
}

type ExecutionCallback func(Execution)
type ErrorCallback func(orderID uint64, err error)

type request struct {
	kind   requestKind
	order  *orderbook.Order
	id     uint64
	symbol string
	price  float64
	qty    int64
}

type requestKind int

const (
	reqSubmit requestKind = iota
	reqCancel
	reqModify
)

// Engine owns the books. A single worker goroutine drains the request
// queue and is the only writer, so matching needs no lock beyond the
// books map itself.
type Engine struct {
	cfg   *Config
	log   *logging.Logger
	rules []riskrule.RiskRule

	books   map[string]*orderbook.OrderBook
	booksMu sync.RWMutex

	// order id -> *orderbook.Order, every live order the engine accepted.
	// Entries are dropped once the order is terminal and reported.
	orderStore sync.Map

	requests chan request
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool

	onExecution ExecutionCallback
	onError     ErrorCallback

	stats Stats
}

func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger(logging.INFO)
	}

	e := &Engine{
		cfg:      cfg,
		log:      cfg.Logger,
		books:    make(map[string]*orderbook.OrderBook),
		requests: make(chan request, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
	e.rules = []riskrule.RiskRule{
		&riskrule.MaxPriceRule{Ceiling: cfg.MaxPrice},
		&riskrule.MaxQuantityRule{Max: cfg.MaxOrderQty},
		&riskrule.OpenOrderLimitRule{Max: cfg.MaxOrdersPerSymbol, Count: e.openOrderCount},
	}
	return e
}

func (e *Engine) SetExecutionCallback(cb ExecutionCallback) { e.onExecution = cb }
func (e *Engine) SetErrorCallback(cb ErrorCallback)         { e.onError = cb }

func (e *Engine) Start(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.wg.Add(1)
	go e.worker(ctx)
}

// Stop drains nothing: queued requests past the stop signal are dropped.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopCh)
	e.wg.Wait()
}

// SubmitOrder enqueues the order for the matching worker. It fails fast
// when the engine is stopped or the queue is full.
func (e *Engine) SubmitOrder(o *orderbook.Order) error {
	if !e.running.Load() {
		return ErrEngineStopped
	}
	select {
	case e.requests <- request{kind: reqSubmit, order: o}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (e *Engine) CancelOrder(id uint64) error {
	if !e.running.Load() {
		return ErrEngineStopped
	}
	select {
	case e.requests <- request{kind: reqCancel, id: id}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (e *Engine) ModifyOrder(id uint64, newPrice float64, newQty int64) error {
	if !e.running.Load() {
		return ErrEngineStopped
	}
	select {
	case e.requests <- request{kind: reqModify, id: id, price: newPrice, qty: newQty}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (e *Engine) FindOrder(id uint64) *orderbook.Order {
	if o, ok := e.orderStore.Load(id); ok {
		return o.(*orderbook.Order)
	}
	return nil
}

func (e *Engine) BestBid(symbol string) (float64, bool) {
	if book := e.bookFor(symbol, false); book != nil {
		return book.BestBid()
	}
	return 0, false
}

func (e *Engine) BestAsk(symbol string) (float64, bool) {
	if book := e.bookFor(symbol, false); book != nil {
		return book.BestAsk()
	}
	return 0, false
}

func (e *Engine) Depth(symbol string, levels int) (bids, asks []orderbook.PriceLevel) {
	book := e.bookFor(symbol, false)
	if book == nil {
		return nil, nil
	}
	return book.BidDepth(levels), book.AskDepth(levels)
}

func (e *Engine) LastTrade(symbol string) (price float64, qty int64) {
	if book := e.bookFor(symbol, false); book != nil {
		return book.LastTrade()
	}
	return 0, 0
}

func (e *Engine) Stats() StatsSnapshot { return e.stats.snapshot() }

// ===== worker =====

func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case req := <-e.requests:
			start := time.Now()
			e.process(ctx, req)
			elapsed := time.Since(start)
			e.stats.observe(elapsed)
			metricProcessingSeconds.Observe(elapsed.Seconds())
			if elapsed > softBudget {
				e.log.Warn(ctx, "request over processing budget",
					zap.Duration("elapsed", elapsed))
			}
		}
	}
}

func (e *Engine) process(ctx context.Context, req request) {
	switch req.kind {
	case reqSubmit:
		e.processSubmit(ctx, req.order)
	case reqCancel:
		e.processCancel(req.id)
	case reqModify:
		e.processModify(req.id, req.price, req.qty)
	}
}

func (e *Engine) processSubmit(ctx context.Context, o *orderbook.Order) {
	if err := e.validate(o); err != nil {
		e.reject(o, err)
		return
	}
	for _, rule := range e.rules {
		if err := rule.Check(o); err != nil {
			e.reject(o, err)
			return
		}
	}

	book := e.bookFor(o.Symbol, true)
	e.orderStore.Store(o.ID, o)

	trades := book.AddOrder(o)

	e.stats.ordersProcessed.Add(1)
	metricOrdersTotal.Inc()

	// acknowledge, then fills, then any terminal residual state
	e.emitExecutions(o, trades)
}

// emitExecutions delivers the callback sequence for a submit. The ack is a
// pre-match snapshot, each trade follows with the taker's running fill
// state, and a cancelled or rejected residual comes last. The taker's
// terminal state therefore always arrives on its final report.
func (e *Engine) emitExecutions(o *orderbook.Order, trades []*orderbook.Trade) {
	if o.Status == orderbook.StatusRejected && len(trades) == 0 {
		e.reject(o, nil)
		return
	}

	ack := *o
	ack.Status = orderbook.StatusNew
	for _, trade := range trades {
		if trade.BuyOrderID == o.ID || trade.SellOrderID == o.ID {
			ack.Remaining += trade.Quantity
		}
	}
	e.emit(Execution{Order: ack})

	taker := ack
	for _, trade := range trades {
		e.stats.recordTrade(trade)
		metricTradesTotal.Inc()
		metricVolumeTotal.Add(float64(trade.Quantity))

		for _, id := range []uint64{trade.BuyOrderID, trade.SellOrderID} {
			if id == o.ID {
				taker.Remaining -= trade.Quantity
				if taker.Remaining == 0 {
					taker.Status = orderbook.StatusFilled
				} else {
					taker.Status = orderbook.StatusPartiallyFilled
				}
				e.emit(Execution{Order: taker, Trade: trade})
				continue
			}
			if stored, ok := e.orderStore.Load(id); ok {
				party := stored.(*orderbook.Order)
				e.emit(Execution{Order: *party, Trade: trade})
				if party.IsTerminal() {
					e.orderStore.Delete(id)
				}
			}
		}
	}

	if o.IsTerminal() {
		if o.Status != orderbook.StatusFilled {
			e.emit(Execution{Order: *o})
		}
		e.orderStore.Delete(o.ID)
	}
}

func (e *Engine) processCancel(id uint64) {
	stored, ok := e.orderStore.Load(id)
	if !ok {
		e.fail(id, orderbook.ErrOrderNotFound)
		return
	}
	o := stored.(*orderbook.Order)
	book := e.bookFor(o.Symbol, false)
	if book == nil {
		e.fail(id, orderbook.ErrOrderNotFound)
		return
	}

	if err := book.CancelOrder(id); err != nil {
		e.fail(id, err)
		return
	}
	e.orderStore.Delete(id)
	e.emit(Execution{Order: *o})
}

func (e *Engine) processModify(id uint64, newPrice float64, newQty int64) {
	stored, ok := e.orderStore.Load(id)
	if !ok {
		e.fail(id, orderbook.ErrOrderNotFound)
		return
	}
	book := e.bookFor(stored.(*orderbook.Order).Symbol, false)
	if book == nil {
		e.fail(id, orderbook.ErrOrderNotFound)
		return
	}

	o, trades, err := book.ModifyOrder(id, newPrice, newQty)
	if err != nil {
		e.fail(id, err)
		return
	}
	e.emitExecutions(o, trades)
}

func (e *Engine) validate(o *orderbook.Order) error {
	if o.Symbol == "" {
		return ErrMissingSymbol
	}
	if o.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	switch o.Side {
	case orderbook.BUY, orderbook.SELL:
	default:
		return ErrInvalidSide
	}
	switch o.Type {
	case orderbook.MARKET:
		if o.Price != 0 {
			return ErrInvalidPrice
		}
	case orderbook.LIMIT:
		if o.Price <= 0 {
			return ErrInvalidPrice
		}
	case orderbook.STOP:
		if o.StopPrice <= 0 {
			return ErrInvalidStopPrice
		}
	case orderbook.STOPLIMIT:
		if o.Price <= 0 {
			return ErrInvalidPrice
		}
		if o.StopPrice <= 0 {
			return ErrInvalidStopPrice
		}
	default:
		return ErrInvalidOrderType
	}
	switch o.TimeInForce {
	case "", orderbook.DAY, orderbook.GTC, orderbook.IOC, orderbook.FOK:
	default:
		return ErrInvalidTimeInForce
	}
	return nil
}

func (e *Engine) reject(o *orderbook.Order, err error) {
	o.Status = orderbook.StatusRejected
	if err != nil && o.Text == "" {
		o.Text = err.Error()
	}
	e.stats.ordersRejected.Add(1)
	metricRejectsTotal.Inc()
	e.orderStore.Delete(o.ID)
	e.emit(Execution{Order: *o})
}

func (e *Engine) emit(exec Execution) {
	if e.onExecution != nil {
		e.onExecution(exec)
	}
}

func (e *Engine) fail(id uint64, err error) {
	if e.onError != nil {
		e.onError(id, err)
	}
}

func (e *Engine) bookFor(symbol string, create bool) *orderbook.OrderBook {
	e.booksMu.RLock()
	book := e.books[symbol]
	e.booksMu.RUnlock()
	if book != nil || !create {
		return book
	}

	e.booksMu.Lock()
	defer e.booksMu.Unlock()
	if book = e.books[symbol]; book == nil {
		book = orderbook.NewOrderBook(symbol)
		e.books[symbol] = book
	}
	return book
}

func (e *Engine) openOrderCount(symbol string) int {
	if book := e.bookFor(symbol, false); book != nil {
		return book.OpenOrderCount()
	}
	return 0
}
