package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joripage/fixmatch/config"
	"github.com/joripage/fixmatch/pkg/engine"
	"github.com/joripage/fixmatch/pkg/eventstore"
	"github.com/joripage/fixmatch/pkg/fixwire"
	"github.com/joripage/fixmatch/pkg/gateway"
	redis_wrapper "github.com/joripage/fixmatch/pkg/infra/redis"
	"github.com/joripage/fixmatch/pkg/journal"
	"github.com/joripage/fixmatch/pkg/logging"
	"github.com/joripage/fixmatch/pkg/marketdata"
	"github.com/joripage/fixmatch/pkg/transport"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	log := logging.NewLogger(logging.INFO)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		http.ListenAndServe("localhost:6060", nil) // nolint
	}()
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(cfg.MetricsAddr, mux) // nolint
		}()
	}

	eng := engine.NewEngine(&engine.Config{
		MaxPrice:           cfg.Risk.MaxPrice,
		MaxOrderQty:        cfg.Risk.MaxOrderQty,
		MaxOrdersPerSymbol: cfg.Risk.MaxOrdersPerSymbol,
		Logger:             log,
	})
	eng.Start(ctx)
	defer eng.Stop()

	var store eventstore.EventStore = eventstore.NewInMemoryEventStore()
	if cfg.Nats != nil && cfg.Nats.URL != "" {
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			zap.S().Fatalf("connect nats: %v", err)
		}
		defer nc.Close()
		js, err := nc.JetStream()
		if err != nil {
			zap.S().Fatalf("jetstream: %v", err)
		}
		pub, err := journal.NewPublisher(js, cfg.Nats.Subject)
		if err != nil {
			zap.S().Fatalf("journal publisher: %v", err)
		}
		store = journal.NewEventStoreBridge(store, pub)
	}

	var sinks []marketdata.Sink
	if cfg.Kafka != nil && len(cfg.Kafka.Brokers) > 0 {
		kafkaSink := marketdata.NewKafkaSink(marketdata.KafkaSinkConfig{
			Brokers:    cfg.Kafka.Brokers,
			TradeTopic: cfg.Kafka.TradeTopic,
		})
		defer kafkaSink.Close() // nolint
		sinks = append(sinks, kafkaSink)
	}
	if cfg.Redis != nil && cfg.Redis.ConnectionURL != "" {
		client, err := redis_wrapper.InitRedis(cfg.Redis)
		if err != nil {
			zap.S().Fatalf("connect redis: %v", err)
		}
		sinks = append(sinks, marketdata.NewRedisSink(client))
	}

	md := marketdata.NewPublisher(log, sinks...)
	md.Start(ctx)
	defer md.Stop()

	gw := gateway.NewGateway(log, eng, store)
	gw.SetExecutionTap(tapExecutions(eng, md))
	gw.Start(ctx)

	codec := fixwire.NewCodec(cfg.Session.AcceptedVersions...)
	if cfg.Session.TestModeDelimiter {
		codec.TestDelimiter = '|'
	}

	srv := transport.NewServer(&transport.Config{
		ListenAddr:        cfg.Session.ListenAddr,
		SenderCompID:      cfg.Session.SenderCompID,
		HeartbeatInterval: cfg.Session.HeartbeatInterval(),
		Codec:             codec,
	}, log, gw)
	if err := srv.Start(ctx); err != nil {
		zap.S().Fatalf("start server: %v", err)
	}
	defer srv.Stop()

	log.Info(ctx, "venue started", zap.String("listen", cfg.Session.ListenAddr))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info(ctx, "shutting down")
	cancel()
}

// tapExecutions forwards fills to the market data path without getting in
// the way of the gateway's own execution handling.
func tapExecutions(eng *engine.Engine, md *marketdata.Publisher) engine.ExecutionCallback {
	return func(exec engine.Execution) {
		if exec.Trade == nil {
			return
		}
		md.PublishTrade(&marketdata.TradeTick{
			Symbol:    exec.Trade.Symbol,
			Price:     exec.Trade.Price,
			Quantity:  exec.Trade.Quantity,
			Timestamp: exec.Trade.Timestamp,
		})
		bids, asks := eng.Depth(exec.Trade.Symbol, 5)
		md.PublishSnapshot(&marketdata.BookSnapshot{
			Symbol:    exec.Trade.Symbol,
			Bids:      bids,
			Asks:      asks,
			Timestamp: exec.Trade.Timestamp,
		})
	}
}
