package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/joripage/fixmatch/pkg/eventstore"
	"github.com/joripage/fixmatch/pkg/logging"
	"github.com/joripage/fixmatch/pkg/repo"
)

const fetchBatch = 10

// Worker drains the journal stream into the database. It runs beside the
// venue or as its own process; the durable name pins the consumer cursor.
type Worker struct {
	log        *logging.Logger
	orderEvent repo.IOrderEvent
}

func NewWorker(log *logging.Logger, r repo.IRepo) *Worker {
	return &Worker{
		log:        log,
		orderEvent: r.OrderEvent(),
	}
}

func (w *Worker) StartConsumer(ctx context.Context, js nats.JetStreamContext, subject, durable string) error {
	cons, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := cons.Fetch(fetchBatch, nats.MaxWait(time.Second))
		if err != nil {
			if err == nats.ErrTimeout {
				continue
			}
			w.log.Warn(ctx, "journal fetch failed", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var ev eventstore.OrderEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				w.log.Warn(ctx, "journal message malformed", zap.Error(err))
				_ = msg.Ack()
				continue
			}
			if err := w.handleEvent(ctx, &ev); err != nil {
				// no ack, the message redelivers
				w.log.Warn(ctx, "journal persist failed", zap.Error(err))
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (w *Worker) handleEvent(ctx context.Context, ev *eventstore.OrderEvent) error {
	_, err := w.orderEvent.Create(ctx, repo.RecordFromEvent(ev))
	return err
}
