package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/joripage/fixmatch/pkg/eventstore"
)

// OrderEventRecord is the persisted form of an order lifecycle event.
// EventID keeps replayed journal messages idempotent.
type OrderEventRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventID     string    `gorm:"column:event_id;uniqueIndex"`
	OrderID     uint64    `gorm:"column:order_id;index"`
	ClOrdID     string    `gorm:"column:cl_ord_id;index"`
	OrigClOrdID string    `gorm:"column:orig_cl_ord_id"`
	ClientID    string    `gorm:"column:client_id"`
	Symbol      string    `gorm:"column:symbol"`
	ExecType    string    `gorm:"column:exec_type"`
	Qty         int64     `gorm:"column:qty"`
	Price       float64   `gorm:"column:price"`
	Timestamp   time.Time `gorm:"column:ts"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (OrderEventRecord) TableName() string { return "order_events" }

func RecordFromEvent(ev *eventstore.OrderEvent) *OrderEventRecord {
	return &OrderEventRecord{
		EventID:     ev.EventID,
		OrderID:     ev.OrderID,
		ClOrdID:     ev.ClOrdID,
		OrigClOrdID: ev.OrigClOrdID,
		ClientID:    ev.ClientID,
		Symbol:      ev.Symbol,
		ExecType:    string(ev.ExecType),
		Qty:         ev.Qty,
		Price:       ev.Price,
		Timestamp:   ev.Timestamp,
	}
}

type IOrderEvent interface {
	Create(ctx context.Context, record *OrderEventRecord) (*OrderEventRecord, error)
	BulkCreate(ctx context.Context, records []*OrderEventRecord) ([]*OrderEventRecord, error)
	ListByOrderID(ctx context.Context, orderID uint64) ([]*OrderEventRecord, error)
}

type OrderEventSQLRepo struct {
	db *gorm.DB
}

func NewOrderEventSQLRepo(db *gorm.DB) *OrderEventSQLRepo {
	return &OrderEventSQLRepo{db: db}
}

func (r *OrderEventSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *OrderEventSQLRepo) Create(ctx context.Context, record *OrderEventRecord) (*OrderEventRecord, error) {
	err := r.dbWithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(record).Error
	return record, err
}

func (r *OrderEventSQLRepo) BulkCreate(ctx context.Context, records []*OrderEventRecord) ([]*OrderEventRecord, error) {
	if len(records) == 0 {
		return records, nil
	}
	err := r.dbWithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(records).Error
	return records, err
}

func (r *OrderEventSQLRepo) ListByOrderID(ctx context.Context, orderID uint64) ([]*OrderEventRecord, error) {
	var out []*OrderEventRecord
	err := r.dbWithContext(ctx).
		Where("order_id = ?", orderID).
		Order("ts asc").
		Find(&out).Error
	return out, err
}
