package orderbook

import "time"

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

type OrderType string

const (
	LIMIT     OrderType = "LIMIT"
	MARKET    OrderType = "MARKET"
	STOP      OrderType = "STOP"
	STOPLIMIT OrderType = "STOP_LIMIT"
)

type TimeInForce string

const (
	DAY TimeInForce = "DAY"
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

type OrderStatus string

const (
	StatusNew             OrderStatus = "New"
	StatusPartiallyFilled OrderStatus = "PartiallyFilled"
	StatusFilled          OrderStatus = "Filled"
	StatusCancelled       OrderStatus = "Cancelled"
	StatusRejected        OrderStatus = "Rejected"
)

// Order is the application intent plus its residual state. It is created at
// ingestion and mutated only on the matching goroutine.
type Order struct {
	ID          uint64
	ClientID    string
	Symbol      string
	Side        Side
	Type        OrderType
	TimeInForce TimeInForce
	Price       float64
	StopPrice   float64
	Quantity    int64
	Remaining   int64
	Status      OrderStatus
	Text        string

	ArrivalTime time.Time
	arrivalSeq  uint64
}

func (o *Order) Filled() int64 { return o.Quantity - o.Remaining }

func (o *Order) IsActive() bool {
	return o.Status == StatusNew || o.Status == StatusPartiallyFilled
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

func (o *Order) fill(qty int64) {
	o.Remaining -= qty
	if o.Remaining == 0 {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
}
