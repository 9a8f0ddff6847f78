package orderbook

import "testing"

var nextTestID uint64

func newOrder(side Side, typ OrderType, tif TimeInForce, price float64, qty int64) *Order {
	nextTestID++
	return &Order{
		ID:          nextTestID,
		ClientID:    "CLIENT",
		Symbol:      "AAPL",
		Side:        side,
		Type:        typ,
		TimeInForce: tif,
		Price:       price,
		Quantity:    qty,
		Remaining:   qty,
		Status:      StatusNew,
	}
}

func limit(side Side, price float64, qty int64) *Order {
	return newOrder(side, LIMIT, DAY, price, qty)
}

func TestFullFillAtRestingPrice(t *testing.T) {
	b := NewOrderBook("AAPL")
	sell := limit(SELL, 150.00, 100)
	b.AddOrder(sell)

	buy := limit(BUY, 150.50, 100)
	trades := b.AddOrder(buy)

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Price != 150.00 {
		t.Errorf("trade price = %v, want resting price 150.00", trades[0].Price)
	}
	if trades[0].Quantity != 100 {
		t.Errorf("trade qty = %d, want 100", trades[0].Quantity)
	}
	if buy.Status != StatusFilled || sell.Status != StatusFilled {
		t.Errorf("statuses = %s/%s, want FILLED/FILLED", buy.Status, sell.Status)
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("ask side should be empty after full fill")
	}
}

func TestPartialFillRestsResidual(t *testing.T) {
	b := NewOrderBook("AAPL")
	b.AddOrder(limit(SELL, 150.00, 40))

	buy := limit(BUY, 150.00, 100)
	trades := b.AddOrder(buy)

	if len(trades) != 1 || trades[0].Quantity != 40 {
		t.Fatalf("expected one trade of 40, got %+v", trades)
	}
	if buy.Status != StatusPartiallyFilled {
		t.Errorf("buy status = %s, want PARTIALLY_FILLED", buy.Status)
	}
	if buy.Remaining != 60 {
		t.Errorf("buy remaining = %d, want 60", buy.Remaining)
	}
	if best, ok := b.BestBid(); !ok || best != 150.00 {
		t.Errorf("best bid = %v/%v, want 150.00", best, ok)
	}
}

func TestPriceTimePriority(t *testing.T) {
	b := NewOrderBook("AAPL")
	first := limit(SELL, 150.00, 50)
	second := limit(SELL, 150.00, 50)
	b.AddOrder(first)
	b.AddOrder(second)

	trades := b.AddOrder(limit(BUY, 150.00, 60))

	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].SellOrderID != first.ID {
		t.Errorf("first trade against order %d, want earlier order %d", trades[0].SellOrderID, first.ID)
	}
	if first.Status != StatusFilled {
		t.Errorf("earlier order status = %s, want FILLED", first.Status)
	}
	if second.Remaining != 40 {
		t.Errorf("later order remaining = %d, want 40", second.Remaining)
	}
}

func TestMarketSweepsLevels(t *testing.T) {
	b := NewOrderBook("AAPL")
	b.AddOrder(limit(SELL, 150.00, 30))
	b.AddOrder(limit(SELL, 150.50, 30))
	b.AddOrder(limit(SELL, 151.00, 30))

	mkt := newOrder(BUY, MARKET, DAY, 0, 70)
	trades := b.AddOrder(mkt)

	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	want := []float64{150.00, 150.50, 151.00}
	for i, tr := range trades {
		if tr.Price != want[i] {
			t.Errorf("trade %d price = %v, want %v", i, tr.Price, want[i])
		}
	}
	if mkt.Status != StatusFilled {
		t.Errorf("market order status = %s, want FILLED", mkt.Status)
	}
	if best, ok := b.BestAsk(); !ok || best != 151.00 {
		t.Errorf("best ask = %v/%v, want 151.00", best, ok)
	}
}

func TestMarketExhaustsBookRejected(t *testing.T) {
	b := NewOrderBook("AAPL")
	b.AddOrder(limit(SELL, 150.00, 30))

	mkt := newOrder(BUY, MARKET, DAY, 0, 100)
	trades := b.AddOrder(mkt)

	if len(trades) != 1 || trades[0].Quantity != 30 {
		t.Fatalf("expected one trade of 30, got %+v", trades)
	}
	if mkt.Status != StatusRejected {
		t.Errorf("status = %s, want REJECTED", mkt.Status)
	}
	if mkt.Text != "insufficient liquidity" {
		t.Errorf("text = %q, want insufficient liquidity", mkt.Text)
	}
	if _, ok := b.BestBid(); ok {
		t.Error("market residual must not rest on the book")
	}
}

func TestMarketEmptyBookRejected(t *testing.T) {
	b := NewOrderBook("AAPL")
	mkt := newOrder(SELL, MARKET, DAY, 0, 10)
	trades := b.AddOrder(mkt)
	if len(trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(trades))
	}
	if mkt.Status != StatusRejected {
		t.Errorf("status = %s, want REJECTED", mkt.Status)
	}
}

func TestIOCCancelsResidual(t *testing.T) {
	b := NewOrderBook("AAPL")
	b.AddOrder(limit(SELL, 150.00, 40))

	ioc := newOrder(BUY, LIMIT, IOC, 150.00, 100)
	trades := b.AddOrder(ioc)

	if len(trades) != 1 || trades[0].Quantity != 40 {
		t.Fatalf("expected one trade of 40, got %+v", trades)
	}
	if ioc.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", ioc.Status)
	}
	if ioc.Text != "ioc expired" {
		t.Errorf("text = %q, want ioc expired", ioc.Text)
	}
	if _, ok := b.BestBid(); ok {
		t.Error("ioc residual must not rest")
	}
}

func TestFOKKilledWithoutPartialFills(t *testing.T) {
	b := NewOrderBook("AAPL")
	resting := limit(SELL, 150.00, 40)
	b.AddOrder(resting)

	fok := newOrder(BUY, LIMIT, FOK, 150.00, 100)
	trades := b.AddOrder(fok)

	if len(trades) != 0 {
		t.Fatalf("fok must not trade partially, got %d trades", len(trades))
	}
	if fok.Status != StatusRejected {
		t.Errorf("status = %s, want REJECTED", fok.Status)
	}
	if fok.Text != "fok killed" {
		t.Errorf("text = %q, want fok killed", fok.Text)
	}
	if resting.Remaining != 40 {
		t.Errorf("resting order touched by killed fok, remaining = %d", resting.Remaining)
	}
}

func TestFOKFillsWhenLiquiditySuffices(t *testing.T) {
	b := NewOrderBook("AAPL")
	b.AddOrder(limit(SELL, 150.00, 60))
	b.AddOrder(limit(SELL, 150.50, 60))

	fok := newOrder(BUY, LIMIT, FOK, 150.50, 100)
	trades := b.AddOrder(fok)

	var total int64
	for _, tr := range trades {
		total += tr.Quantity
	}
	if total != 100 {
		t.Fatalf("fok filled %d, want 100", total)
	}
	if fok.Status != StatusFilled {
		t.Errorf("status = %s, want FILLED", fok.Status)
	}
}

func TestCancelRestingOrder(t *testing.T) {
	b := NewOrderBook("AAPL")
	o := limit(BUY, 149.00, 10)
	b.AddOrder(o)

	if err := b.CancelOrder(o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if o.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", o.Status)
	}
	if _, ok := b.BestBid(); ok {
		t.Error("cancelled order still on book")
	}
	if err := b.CancelOrder(o.ID); err != ErrOrderNotFound {
		t.Errorf("second cancel err = %v, want ErrOrderNotFound", err)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	b := NewOrderBook("AAPL")
	if err := b.CancelOrder(99999); err != ErrOrderNotFound {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestModifyLosesQueuePriority(t *testing.T) {
	b := NewOrderBook("AAPL")
	first := limit(SELL, 150.00, 50)
	second := limit(SELL, 150.00, 50)
	b.AddOrder(first)
	b.AddOrder(second)

	if _, _, err := b.ModifyOrder(first.ID, 150.00, 80); err != nil {
		t.Fatalf("modify: %v", err)
	}

	trades := b.AddOrder(limit(BUY, 150.00, 50))
	if len(trades) != 1 || trades[0].SellOrderID != second.ID {
		t.Fatalf("expected fill against order %d after modify, got %+v", second.ID, trades)
	}
}

func TestStopPromotesOnLastTrade(t *testing.T) {
	b := NewOrderBook("AAPL")
	b.AddOrder(limit(SELL, 151.00, 100))

	stop := newOrder(BUY, STOP, DAY, 0, 50)
	stop.StopPrice = 150.50
	if trades := b.AddOrder(stop); len(trades) != 0 {
		t.Fatalf("stop must park before trigger, got %d trades", len(trades))
	}
	if b.FindOrder(stop.ID) == nil {
		t.Fatal("parked stop not findable")
	}

	// a trade at 151.00 crosses the 150.50 buy trigger
	trades := b.AddOrder(limit(BUY, 151.00, 10))
	total := 0
	for _, tr := range trades {
		if tr.BuyOrderID == stop.ID {
			total += int(tr.Quantity)
		}
	}
	if total != 50 {
		t.Errorf("triggered stop traded %d, want 50", total)
	}
	if stop.Status != StatusFilled {
		t.Errorf("stop status = %s, want FILLED", stop.Status)
	}
}

func TestStopLimitPromotesToLimit(t *testing.T) {
	b := NewOrderBook("AAPL")
	stop := newOrder(SELL, STOPLIMIT, DAY, 148.00, 30)
	stop.StopPrice = 149.00
	b.AddOrder(stop)

	// trade at 148.50 crosses the 149.00 sell trigger, no crossing bid yet
	b.AddOrder(limit(SELL, 148.50, 10))
	b.AddOrder(limit(BUY, 148.50, 10))

	if stop.Type != LIMIT {
		t.Errorf("stop-limit promoted to %s, want LIMIT", stop.Type)
	}
	if best, ok := b.BestAsk(); !ok || best != 148.00 {
		t.Errorf("best ask = %v/%v, want promoted 148.00", best, ok)
	}
}

func TestCancelParkedStop(t *testing.T) {
	b := NewOrderBook("AAPL")
	stop := newOrder(BUY, STOP, DAY, 0, 10)
	stop.StopPrice = 200.00
	b.AddOrder(stop)

	if err := b.CancelOrder(stop.ID); err != nil {
		t.Fatalf("cancel parked stop: %v", err)
	}
	if stop.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", stop.Status)
	}
}

func TestDepthAggregatesLevels(t *testing.T) {
	b := NewOrderBook("AAPL")
	b.AddOrder(limit(BUY, 149.00, 10))
	b.AddOrder(limit(BUY, 149.00, 20))
	b.AddOrder(limit(BUY, 148.50, 5))
	b.AddOrder(limit(BUY, 148.00, 7))

	depth := b.BidDepth(2)
	if len(depth) != 2 {
		t.Fatalf("depth levels = %d, want 2", len(depth))
	}
	if depth[0].Price != 149.00 || depth[0].Quantity != 30 {
		t.Errorf("level 0 = %+v, want 149.00/30", depth[0])
	}
	if depth[1].Price != 148.50 || depth[1].Quantity != 5 {
		t.Errorf("level 1 = %+v, want 148.50/5", depth[1])
	}
}

func TestLastTradeMemo(t *testing.T) {
	b := NewOrderBook("AAPL")
	b.AddOrder(limit(SELL, 150.25, 40))
	b.AddOrder(limit(BUY, 150.25, 15))

	price, qty := b.LastTrade()
	if price != 150.25 || qty != 15 {
		t.Errorf("last trade = %v/%d, want 150.25/15", price, qty)
	}
}
