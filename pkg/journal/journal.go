package journal

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/joripage/fixmatch/pkg/eventstore"
)

const (
	DefaultStream  = "ORDER_EVENTS"
	DefaultSubject = "order.events"
)

// Publisher journals order events to a JetStream subject so persistence
// failures never touch the order path.
type Publisher struct {
	js      nats.JetStreamContext
	subject string
}

func NewPublisher(js nats.JetStreamContext, subject string) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if _, err := js.StreamInfo(DefaultStream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     DefaultStream,
			Subjects: []string{subject},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return nil, err
		}
	}
	return &Publisher{js: js, subject: subject}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev *eventstore.OrderEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	// Msg id dedupes redeliveries on the stream side
	_, err = p.js.Publish(p.subject, data, nats.MsgId(ev.EventID), nats.Context(ctx))
	return err
}

// EventStoreBridge forwards every event added to the in-process store out
// to the journal as well.
type EventStoreBridge struct {
	eventstore.EventStore
	pub *Publisher
}

func NewEventStoreBridge(inner eventstore.EventStore, pub *Publisher) *EventStoreBridge {
	return &EventStoreBridge{EventStore: inner, pub: pub}
}

func (b *EventStoreBridge) AddEvent(ev *eventstore.OrderEvent) {
	b.EventStore.AddEvent(ev)
	// fire and forget, the stream retains what the worker has not read
	_ = b.pub.Publish(context.Background(), ev)
}
