package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = time.Minute

// RedisSink caches the latest book snapshot and trade per symbol so query
// services read quotes without touching the engine.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func snapshotKey(symbol string) string { return fmt.Sprintf("md:book:%s", symbol) }
func lastTradeKey(symbol string) string { return fmt.Sprintf("md:trade:%s", symbol) }

func (s *RedisSink) OnTrade(ctx context.Context, tick *TradeTick) error {
	value, err := json.Marshal(tick)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, lastTradeKey(tick.Symbol), value, snapshotTTL).Err()
}

func (s *RedisSink) OnSnapshot(ctx context.Context, snap *BookSnapshot) error {
	value, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, snapshotKey(snap.Symbol), value, snapshotTTL).Err()
}

// LastTrade reads the cached print, if any.
func (s *RedisSink) LastTrade(ctx context.Context, symbol string) (*TradeTick, error) {
	raw, err := s.client.Get(ctx, lastTradeKey(symbol)).Bytes()
	if err != nil {
		return nil, err
	}
	var tick TradeTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return nil, err
	}
	return &tick, nil
}

// Snapshot reads the cached ladder view, if any.
func (s *RedisSink) Snapshot(ctx context.Context, symbol string) (*BookSnapshot, error) {
	raw, err := s.client.Get(ctx, snapshotKey(symbol)).Bytes()
	if err != nil {
		return nil, err
	}
	var snap BookSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
