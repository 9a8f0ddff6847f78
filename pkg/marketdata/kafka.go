package marketdata

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

type KafkaSinkConfig struct {
	Brokers      []string `yaml:"brokers"`
	TradeTopic   string   `yaml:"trade_topic"`
	BatchSize    int      `yaml:"batch_size"`
	BatchTimeout time.Duration
}

// KafkaSink prints trades onto a Kafka topic keyed by symbol. Snapshots
// are not taped; they go to the cache sink instead.
type KafkaSink struct {
	cfg KafkaSinkConfig
	w   *kafka.Writer
}

func NewKafkaSink(cfg KafkaSinkConfig) *KafkaSink {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireNone,
		Async:                  true,
	}
	return &KafkaSink{cfg: cfg, w: w}
}

func (s *KafkaSink) OnTrade(ctx context.Context, tick *TradeTick) error {
	value, err := json.Marshal(tick)
	if err != nil {
		return err
	}
	return s.w.WriteMessages(ctx, kafka.Message{
		Topic: s.cfg.TradeTopic,
		Key:   []byte(tick.Symbol),
		Value: value,
		Time:  tick.Timestamp,
	})
}

func (s *KafkaSink) OnSnapshot(ctx context.Context, snap *BookSnapshot) error {
	return nil
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}
