package eventstore

import (
	"fmt"
	"time"
)

type ExecType string

const (
	ExecTypeNew      ExecType = "New"
	ExecTypeTrade    ExecType = "Trade"
	ExecTypeCanceled ExecType = "Canceled"
	ExecTypeReplaced ExecType = "Replaced"
	ExecTypeRejected ExecType = "Rejected"
)

// OrderEvent is one step in an order's lifecycle as the gateway saw it.
// OrderID is the engine-assigned id; ClOrdID and OrigClOrdID carry the
// client-side chain across cancel and replace requests.
type OrderEvent struct {
	EventID     string
	OrderID     uint64
	ClOrdID     string
	OrigClOrdID string
	ClientID    string
	Symbol      string
	ExecType    ExecType
	Qty         int64
	Price       float64
	Timestamp   time.Time
}

func NewEventID(orderID uint64, execType ExecType) string {
	return fmt.Sprintf("%d-%s", orderID, execType)
}

type EventStore interface {
	AddEvent(ev *OrderEvent)
	TrackClOrdChain(orderID uint64, clOrdID, origClOrdID string)
	GetOrderID(clOrdID string) (uint64, bool)
	GetLatestClOrdID(orderID uint64) string
	GetOrigClOrdID(clOrdID string) string
	ReconstructChain(clOrdID string) []string
	Events(orderID uint64) []*OrderEvent
}
