package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joripage/go_util/pkg/shardqueue"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/tag"
	"go.uber.org/zap"

	"github.com/joripage/fixmatch/pkg/engine"
	"github.com/joripage/fixmatch/pkg/eventstore"
	"github.com/joripage/fixmatch/pkg/fixsession"
	"github.com/joripage/fixmatch/pkg/fixwire"
	"github.com/joripage/fixmatch/pkg/logging"
	"github.com/joripage/fixmatch/pkg/orderbook"
)

const (
	numShards = 16
	queueSize = 1_000_000
)

// Gateway translates between session-layer application messages and engine
// requests. Inbound messages are sharded by ClOrdID so one client's order
// flow stays ordered while different orders fan out.
type Gateway struct {
	log    *logging.Logger
	engine *engine.Engine
	store  eventstore.EventStore

	sessions sync.Map // client comp id -> *fixsession.Session
	open     sync.Map // engine order id -> *openOrder

	nextOrderID atomic.Uint64

	queue *shardqueue.Shardqueue

	// optional observer of every execution, for market data fan-out
	execTap func(engine.Execution)
}

type openOrder struct {
	clientID string
	clOrdID  string
	symbol   string
}

type inboundMsg struct {
	clientID string
	msg      *fixwire.Message
}

func NewGateway(log *logging.Logger, eng *engine.Engine, store eventstore.EventStore) *Gateway {
	if store == nil {
		store = eventstore.NewInMemoryEventStore()
	}
	g := &Gateway{
		log:    log,
		engine: eng,
		store:  store,
	}
	return g
}

// SetExecutionTap registers an observer called for every engine execution
// after the gateway's own handling. Set it before Start.
func (g *Gateway) SetExecutionTap(tap func(engine.Execution)) {
	g.execTap = tap
}

func (g *Gateway) Start(ctx context.Context) {
	g.engine.SetExecutionCallback(g.onExecution)
	g.engine.SetErrorCallback(g.onError)

	g.queue = shardqueue.NewShardQueue(numShards, queueSize)
	g.queue.Start(func(msg interface{}) error {
		if v, ok := msg.(*inboundMsg); ok {
			g.handleApp(ctx, v.clientID, v.msg)
		}
		return nil
	})
}

// AttachSession registers a logged-on session and pumps its application
// messages into the shard queue until the context or session dies.
func (g *Gateway) AttachSession(ctx context.Context, s *fixsession.Session) {
	clientID := s.RemoteCompID()
	g.sessions.Store(clientID, s)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-s.AppMessages():
				if !ok {
					return
				}
				// one shard per client keeps its messages in arrival order
				g.queue.Shard(clientID, &inboundMsg{clientID: clientID, msg: msg})
			}
		}
	}()
}

// DetachSession drops the session. Its resting orders stay on the book;
// reports for them are discarded until the client is back.
func (g *Gateway) DetachSession(clientID string) {
	g.sessions.Delete(clientID)
}

// ===== inbound =====

func (g *Gateway) handleApp(ctx context.Context, clientID string, msg *fixwire.Message) {
	switch msg.MsgType() {
	case fixwire.MsgTypeNewOrderSingle:
		g.onNewOrderSingle(ctx, clientID, msg)
	case fixwire.MsgTypeOrderCancelRequest:
		g.onOrderCancelRequest(ctx, clientID, msg)
	case fixwire.MsgTypeCancelReplace:
		g.onCancelReplace(ctx, clientID, msg)
	default:
		g.sendReject(clientID, msg, "unsupported message type")
	}
}

func (g *Gateway) onNewOrderSingle(ctx context.Context, clientID string, msg *fixwire.Message) {
	clOrdID := msg.Get(tag.ClOrdID)
	if clOrdID == "" {
		g.sendReject(clientID, msg, "missing ClOrdID")
		return
	}
	if _, dup := g.store.GetOrderID(clOrdID); dup {
		g.rejectOrder(clientID, clOrdID, msg, "duplicate ClOrdID")
		return
	}

	symbol := msg.Get(tag.Symbol)
	side, okSide := sideFromFIX[enum.Side(msg.Get(tag.Side))]
	ordType, okType := ordTypeFromFIX[enum.OrdType(msg.Get(tag.OrdType))]
	if symbol == "" || !okSide || !okType {
		g.rejectOrder(clientID, clOrdID, msg, "malformed order")
		return
	}

	tif := orderbook.DAY
	if msg.Has(tag.TimeInForce) {
		mapped, ok := tifFromFIX[enum.TimeInForce(msg.Get(tag.TimeInForce))]
		if !ok {
			g.rejectOrder(clientID, clOrdID, msg, "unsupported TimeInForce")
			return
		}
		tif = mapped
	}

	qty, err := msg.GetDecimal(tag.OrderQty)
	if err != nil {
		g.rejectOrder(clientID, clOrdID, msg, "missing OrderQty")
		return
	}
	var price, stopPx float64
	if msg.Has(tag.Price) {
		if d, err := msg.GetDecimal(tag.Price); err == nil {
			price = d.InexactFloat64()
		}
	}
	if msg.Has(tag.StopPx) {
		if d, err := msg.GetDecimal(tag.StopPx); err == nil {
			stopPx = d.InexactFloat64()
		}
	}

	id := g.nextOrderID.Add(1)
	order := &orderbook.Order{
		ID:          id,
		ClientID:    clientID,
		Symbol:      symbol,
		Side:        side,
		Type:        ordType,
		TimeInForce: tif,
		Price:       price,
		StopPrice:   stopPx,
		Quantity:    qty.IntPart(),
		Remaining:   qty.IntPart(),
		Status:      orderbook.StatusNew,
	}

	g.open.Store(id, &openOrder{clientID: clientID, clOrdID: clOrdID, symbol: symbol})
	g.store.TrackClOrdChain(id, clOrdID, "")
	g.store.AddEvent(&eventstore.OrderEvent{
		EventID:   eventstore.NewEventID(id, eventstore.ExecTypeNew),
		OrderID:   id,
		ClOrdID:   clOrdID,
		ClientID:  clientID,
		Symbol:    symbol,
		ExecType:  eventstore.ExecTypeNew,
		Qty:       order.Quantity,
		Price:     price,
		Timestamp: time.Now(),
	})

	if err := g.engine.SubmitOrder(order); err != nil {
		g.open.Delete(id)
		g.rejectOrder(clientID, clOrdID, msg, err.Error())
	}
}

func (g *Gateway) onOrderCancelRequest(ctx context.Context, clientID string, msg *fixwire.Message) {
	clOrdID := msg.Get(tag.ClOrdID)
	origClOrdID := msg.Get(tag.OrigClOrdID)
	id, ok := g.store.GetOrderID(origClOrdID)
	if !ok {
		g.sendCancelReject(clientID, clOrdID, origClOrdID, enum.CxlRejResponseTo_ORDER_CANCEL_REQUEST, "unknown order")
		return
	}

	g.store.TrackClOrdChain(id, clOrdID, origClOrdID)
	g.store.AddEvent(&eventstore.OrderEvent{
		EventID:     eventstore.NewEventID(id, eventstore.ExecTypeCanceled),
		OrderID:     id,
		ClOrdID:     clOrdID,
		OrigClOrdID: origClOrdID,
		ClientID:    clientID,
		ExecType:    eventstore.ExecTypeCanceled,
		Timestamp:   time.Now(),
	})

	if err := g.engine.CancelOrder(id); err != nil {
		g.sendCancelReject(clientID, clOrdID, origClOrdID, enum.CxlRejResponseTo_ORDER_CANCEL_REQUEST, err.Error())
	}
}

func (g *Gateway) onCancelReplace(ctx context.Context, clientID string, msg *fixwire.Message) {
	clOrdID := msg.Get(tag.ClOrdID)
	origClOrdID := msg.Get(tag.OrigClOrdID)
	id, ok := g.store.GetOrderID(origClOrdID)
	if !ok {
		g.sendCancelReject(clientID, clOrdID, origClOrdID, enum.CxlRejResponseTo_ORDER_CANCEL_REPLACE_REQUEST, "unknown order")
		return
	}

	qty, err := msg.GetDecimal(tag.OrderQty)
	if err != nil {
		g.sendCancelReject(clientID, clOrdID, origClOrdID, enum.CxlRejResponseTo_ORDER_CANCEL_REPLACE_REQUEST, "missing OrderQty")
		return
	}
	var price float64
	if d, err := msg.GetDecimal(tag.Price); err == nil {
		price = d.InexactFloat64()
	}

	g.store.TrackClOrdChain(id, clOrdID, origClOrdID)
	g.store.AddEvent(&eventstore.OrderEvent{
		EventID:     eventstore.NewEventID(id, eventstore.ExecTypeReplaced),
		OrderID:     id,
		ClOrdID:     clOrdID,
		OrigClOrdID: origClOrdID,
		ClientID:    clientID,
		ExecType:    eventstore.ExecTypeReplaced,
		Qty:         qty.IntPart(),
		Price:       price,
		Timestamp:   time.Now(),
	})
	if info, ok := g.open.Load(id); ok {
		info.(*openOrder).clOrdID = clOrdID
	}

	if err := g.engine.ModifyOrder(id, price, qty.IntPart()); err != nil {
		g.sendCancelReject(clientID, clOrdID, origClOrdID, enum.CxlRejResponseTo_ORDER_CANCEL_REPLACE_REQUEST, err.Error())
	}
}

// ===== outbound =====

func (g *Gateway) onExecution(exec engine.Execution) {
	if g.execTap != nil {
		defer g.execTap(exec)
	}

	o := exec.Order
	info, ok := g.loadOpen(o.ID)
	if !ok {
		return
	}

	er := fixwire.NewMessage(fixwire.MsgTypeExecutionReport)
	er.Set(tag.OrderID, fmt.Sprintf("%d", o.ID))
	er.Set(tag.ClOrdID, g.store.GetLatestClOrdID(o.ID))
	if orig := g.store.GetOrigClOrdID(g.store.GetLatestClOrdID(o.ID)); orig != "" {
		er.Set(tag.OrigClOrdID, orig)
	}
	er.Set(tag.ExecID, uuid.NewString())
	er.Set(tag.Symbol, o.Symbol)
	er.Set(tag.Side, string(sideToFIX[o.Side]))
	er.Set(tag.OrdType, string(ordTypeToFIX[o.Type]))
	er.SetInt(tag.OrderQty, int(o.Quantity))
	er.Set(tag.OrdStatus, string(statusToFIX[o.Status]))
	er.SetUTCTimestamp(tag.TransactTime, time.Now())

	leaves := o.Remaining
	if o.IsTerminal() && o.Status != orderbook.StatusFilled {
		leaves = 0
	}
	er.SetInt(tag.LeavesQty, int(leaves))
	er.SetInt(tag.CumQty, int(o.Filled()))

	if exec.Trade != nil {
		er.Set(tag.ExecType, string(enum.ExecType_TRADE))
		er.SetInt(tag.LastQty, int(exec.Trade.Quantity))
		er.Set(tag.LastPx, fmt.Sprintf("%g", exec.Trade.Price))
	} else {
		er.Set(tag.ExecType, string(statusToExecType[o.Status]))
	}
	if o.Text != "" {
		er.Set(tag.Text, o.Text)
	}

	g.send(info.clientID, er)

	if o.IsTerminal() {
		g.open.Delete(o.ID)
	}
}

func (g *Gateway) onError(orderID uint64, err error) {
	info, ok := g.loadOpen(orderID)
	if !ok {
		g.log.Warn(context.Background(), "engine error for unknown order",
			zap.Uint64("order_id", orderID), zap.Error(err))
		return
	}
	g.sendCancelReject(info.clientID, g.store.GetLatestClOrdID(orderID), info.clOrdID,
		enum.CxlRejResponseTo_ORDER_CANCEL_REQUEST, err.Error())
}

// rejectOrder reports a rejected order that never reached the engine.
func (g *Gateway) rejectOrder(clientID, clOrdID string, msg *fixwire.Message, reason string) {
	er := fixwire.NewMessage(fixwire.MsgTypeExecutionReport)
	er.Set(tag.ClOrdID, clOrdID)
	er.Set(tag.OrderID, "NONE")
	er.Set(tag.ExecID, uuid.NewString())
	er.Set(tag.ExecType, string(enum.ExecType_REJECTED))
	er.Set(tag.OrdStatus, string(enum.OrdStatus_REJECTED))
	if symbol := msg.Get(tag.Symbol); symbol != "" {
		er.Set(tag.Symbol, symbol)
	}
	if side := msg.Get(tag.Side); side != "" {
		er.Set(tag.Side, side)
	}
	er.SetInt(tag.LeavesQty, 0)
	er.SetInt(tag.CumQty, 0)
	er.Set(tag.Text, reason)
	er.SetUTCTimestamp(tag.TransactTime, time.Now())
	g.send(clientID, er)
}

func (g *Gateway) sendCancelReject(clientID, clOrdID, origClOrdID string, responseTo enum.CxlRejResponseTo, reason string) {
	rej := fixwire.NewMessage(fixwire.MsgTypeOrderCancelReject)
	rej.Set(tag.OrderID, "NONE")
	rej.Set(tag.ClOrdID, clOrdID)
	rej.Set(tag.OrigClOrdID, origClOrdID)
	rej.Set(tag.OrdStatus, string(enum.OrdStatus_REJECTED))
	rej.Set(tag.CxlRejResponseTo, string(responseTo))
	rej.Set(tag.Text, reason)
	g.send(clientID, rej)
}

func (g *Gateway) sendReject(clientID string, ref *fixwire.Message, reason string) {
	rej := fixwire.NewMessage(fixwire.MsgTypeReject)
	if seq, err := ref.MsgSeqNum(); err == nil {
		rej.SetInt(tag.RefSeqNum, seq)
	}
	rej.Set(tag.RefMsgType, ref.MsgType())
	rej.Set(tag.Text, reason)
	g.send(clientID, rej)
}

func (g *Gateway) send(clientID string, msg *fixwire.Message) {
	s, ok := g.sessions.Load(clientID)
	if !ok {
		g.log.Warn(context.Background(), "no session for client",
			zap.String("client_id", clientID), zap.String("msg_type", msg.MsgType()))
		return
	}
	if err := s.(*fixsession.Session).SendApp(msg); err != nil {
		g.log.Error(context.Background(), "send failed",
			zap.String("client_id", clientID), zap.Error(err))
	}
}

func (g *Gateway) loadOpen(orderID uint64) (*openOrder, bool) {
	v, ok := g.open.Load(orderID)
	if !ok {
		return nil, false
	}
	return v.(*openOrder), true
}
