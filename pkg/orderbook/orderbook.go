package orderbook

import (
	"sync"
	"time"
)

// Trade is one execution between an aggressor and a resting order. Price is
// always the resting order's price.
type Trade struct {
	BuyOrderID  uint64
	SellOrderID uint64
	Symbol      string
	Price       float64
	Quantity    int64
	Timestamp   time.Time
}

// OrderBook pairs the two ladders for one symbol and runs continuous
// matching. The matching goroutine is the only writer; observers read best
// quotes and depth under the book mutex.
type OrderBook struct {
	symbol string

	bids  *bookSide
	asks  *bookSide
	stops *stopBook

	lastTradePrice float64
	lastTradeQty   int64

	nextArrival uint64

	mu sync.Mutex
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newBookSide(BUY),
		asks:   newBookSide(SELL),
		stops:  newStopBook(),
	}
}

func (b *OrderBook) Symbol() string { return b.symbol }

// AddOrder matches the aggressor against the opposite side and rests any
// non-terminal residual. It returns the trades produced, including those
// from stop orders the executions triggered.
func (b *OrderBook) AddOrder(o *Order) []*Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stamp(o)

	if o.Type == STOP || o.Type == STOPLIMIT {
		if !b.triggered(o) {
			b.stops.park(o)
			return nil
		}
		b.promote(o)
	}

	trades := b.execute(o)
	trades = append(trades, b.releaseTriggeredStops()...)
	return trades
}

// CancelOrder marks an active order cancelled and removes it from its
// ladder or the parked stop set.
func (b *OrderBook) CancelOrder(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if o := b.stops.take(id); o != nil {
		o.Status = StatusCancelled
		o.Text = "cancelled by request"
		return nil
	}

	o := b.findLocked(id)
	if o == nil {
		return ErrOrderNotFound
	}
	if o.IsTerminal() {
		return ErrOrderTerminal
	}

	o.Status = StatusCancelled
	o.Text = "cancelled by request"
	b.sideOf(o.Side).remove(id)
	return nil
}

// ModifyOrder is cancel+new under the same id: the order loses queue
// priority and re-matches at its new terms.
func (b *OrderBook) ModifyOrder(id uint64, newPrice float64, newQty int64) (*Order, []*Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o := b.stops.take(id)
	if o == nil {
		o = b.findLocked(id)
		if o == nil {
			return nil, nil, ErrOrderNotFound
		}
		if o.IsTerminal() {
			return nil, nil, ErrOrderTerminal
		}
		b.sideOf(o.Side).remove(id)
	}

	filled := o.Filled()
	if newQty <= filled {
		return nil, nil, ErrInvalidOrderQty
	}
	o.Price = newPrice
	o.Quantity = newQty
	o.Remaining = newQty - filled
	b.stamp(o) // new arrival, priority lost

	if o.Type == STOP || o.Type == STOPLIMIT {
		if !b.triggered(o) {
			b.stops.park(o)
			return o, nil, nil
		}
		b.promote(o)
	}

	trades := b.execute(o)
	trades = append(trades, b.releaseTriggeredStops()...)
	return o, trades, nil
}

func (b *OrderBook) FindOrder(id uint64) *Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o := b.stops.peek(id); o != nil {
		return o
	}
	return b.findLocked(id)
}

func (b *OrderBook) BestBid() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bids.bestPrice()
}

func (b *OrderBook) BestAsk() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.asks.bestPrice()
}

func (b *OrderBook) BidDepth(levels int) []PriceLevel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bids.depth(levels)
}

func (b *OrderBook) AskDepth(levels int) []PriceLevel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.asks.depth(levels)
}

func (b *OrderBook) LastTrade() (price float64, qty int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTradePrice, b.lastTradeQty
}

func (b *OrderBook) OpenOrderCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bids.orderCount() + b.asks.orderCount() + b.stops.count()
}

// ===== matching =====

func (b *OrderBook) execute(o *Order) []*Trade {
	opp := b.asks
	if o.Side == SELL {
		opp = b.bids
	}

	if o.TimeInForce == FOK {
		if opp.available(o.Price, o.Type == MARKET) < o.Remaining {
			o.Status = StatusRejected
			o.Text = "fok killed"
			return nil
		}
	}

	trades := b.matchAgainst(o, opp)

	switch {
	case o.Remaining == 0:
		// filled in full, nothing to rest
	case o.Type == MARKET:
		// a market residual never rests
		o.Status = StatusRejected
		o.Text = "insufficient liquidity"
	case o.TimeInForce == IOC:
		o.Status = StatusCancelled
		o.Text = "ioc expired"
	default:
		b.sideOf(o.Side).insert(o)
	}
	return trades
}

func (b *OrderBook) matchAgainst(o *Order, opp *bookSide) []*Trade {
	var trades []*Trade
	for o.Remaining > 0 {
		resting := opp.best()
		if resting == nil {
			break
		}
		if o.Type != MARKET && !pricesCross(o, resting) {
			break
		}

		qty := o.Remaining
		if resting.Remaining < qty {
			qty = resting.Remaining
		}

		// price improvement: trade at the resting order's price
		trade := &Trade{
			Symbol:    b.symbol,
			Price:     resting.Price,
			Quantity:  qty,
			Timestamp: time.Now(),
		}
		if o.Side == BUY {
			trade.BuyOrderID, trade.SellOrderID = o.ID, resting.ID
		} else {
			trade.BuyOrderID, trade.SellOrderID = resting.ID, o.ID
		}
		trades = append(trades, trade)

		o.fill(qty)
		resting.fill(qty)
		b.lastTradePrice = trade.Price
		b.lastTradeQty = qty

		if resting.Remaining == 0 {
			opp.remove(resting.ID)
		}
	}
	return trades
}

func pricesCross(a, r *Order) bool {
	if a.Side == BUY {
		return a.Price >= r.Price
	}
	return a.Price <= r.Price
}

// ===== stop orders =====

func (b *OrderBook) triggered(o *Order) bool {
	if b.lastTradeQty == 0 {
		return false
	}
	if o.Side == BUY {
		return b.lastTradePrice >= o.StopPrice
	}
	return b.lastTradePrice <= o.StopPrice
}

func (b *OrderBook) promote(o *Order) {
	if o.Type == STOP {
		o.Type = MARKET
		o.Price = 0
	} else {
		o.Type = LIMIT
	}
}

// releaseTriggeredStops promotes parked stops whose trigger the last trade
// crossed, re-running matching until no further promotion fires.
func (b *OrderBook) releaseTriggeredStops() []*Trade {
	var trades []*Trade
	for {
		o := b.stops.nextTriggered(b.lastTradePrice, b.lastTradeQty > 0)
		if o == nil {
			return trades
		}
		b.promote(o)
		trades = append(trades, b.execute(o)...)
	}
}

func (b *OrderBook) sideOf(side Side) *bookSide {
	if side == BUY {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) findLocked(id uint64) *Order {
	if o := b.bids.find(id); o != nil {
		return o
	}
	return b.asks.find(id)
}

func (b *OrderBook) stamp(o *Order) {
	b.nextArrival++
	o.arrivalSeq = b.nextArrival
	o.ArrivalTime = time.Now()
	if o.Status == "" {
		o.Status = StatusNew
	}
	if o.Remaining == 0 && o.Status == StatusNew {
		o.Remaining = o.Quantity
	}
}
