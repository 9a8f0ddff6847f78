package gateway

import (
	"github.com/quickfixgo/enum"

	"github.com/joripage/fixmatch/pkg/orderbook"
)

var sideFromFIX = map[enum.Side]orderbook.Side{
	enum.Side_BUY:  orderbook.BUY,
	enum.Side_SELL: orderbook.SELL,
}

var sideToFIX = map[orderbook.Side]enum.Side{
	orderbook.BUY:  enum.Side_BUY,
	orderbook.SELL: enum.Side_SELL,
}

var ordTypeFromFIX = map[enum.OrdType]orderbook.OrderType{
	enum.OrdType_MARKET:     orderbook.MARKET,
	enum.OrdType_LIMIT:      orderbook.LIMIT,
	enum.OrdType_STOP:       orderbook.STOP,
	enum.OrdType_STOP_LIMIT: orderbook.STOPLIMIT,
}

var ordTypeToFIX = map[orderbook.OrderType]enum.OrdType{
	orderbook.MARKET:    enum.OrdType_MARKET,
	orderbook.LIMIT:     enum.OrdType_LIMIT,
	orderbook.STOP:      enum.OrdType_STOP,
	orderbook.STOPLIMIT: enum.OrdType_STOP_LIMIT,
}

var tifFromFIX = map[enum.TimeInForce]orderbook.TimeInForce{
	enum.TimeInForce_DAY:                 orderbook.DAY,
	enum.TimeInForce_GOOD_TILL_CANCEL:    orderbook.GTC,
	enum.TimeInForce_IMMEDIATE_OR_CANCEL: orderbook.IOC,
	enum.TimeInForce_FILL_OR_KILL:        orderbook.FOK,
}

var statusToFIX = map[orderbook.OrderStatus]enum.OrdStatus{
	orderbook.StatusNew:             enum.OrdStatus_NEW,
	orderbook.StatusPartiallyFilled: enum.OrdStatus_PARTIALLY_FILLED,
	orderbook.StatusFilled:          enum.OrdStatus_FILLED,
	orderbook.StatusCancelled:       enum.OrdStatus_CANCELED,
	orderbook.StatusRejected:        enum.OrdStatus_REJECTED,
}

var statusToExecType = map[orderbook.OrderStatus]enum.ExecType{
	orderbook.StatusNew:             enum.ExecType_NEW,
	orderbook.StatusPartiallyFilled: enum.ExecType_NEW,
	orderbook.StatusFilled:          enum.ExecType_TRADE,
	orderbook.StatusCancelled:       enum.ExecType_CANCELED,
	orderbook.StatusRejected:        enum.ExecType_REJECTED,
}
