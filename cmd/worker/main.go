package main

import (
	"context"
	"flag"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/joripage/fixmatch/config"
	postgres_wrapper "github.com/joripage/fixmatch/pkg/infra/postgres"
	"github.com/joripage/fixmatch/pkg/journal"
	"github.com/joripage/fixmatch/pkg/logging"
	"github.com/joripage/fixmatch/pkg/repo"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}
	if cfg.Nats == nil || cfg.JournalDB == nil {
		zap.S().Fatal("worker needs nats and journal_db configured")
	}

	ctx := context.Background()
	log := logging.NewLogger(logging.INFO)

	nc, err := nats.Connect(cfg.Nats.URL)
	if err != nil {
		zap.S().Fatalf("connect nats: %v", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		zap.S().Fatalf("jetstream: %v", err)
	}

	db, err := postgres_wrapper.InitPostgres(cfg.JournalDB)
	if err != nil {
		zap.S().Fatalf("init db: %v", err)
	}

	w := journal.NewWorker(log, repo.NewRepo(db))

	subject := cfg.Nats.Subject
	if subject == "" {
		subject = journal.DefaultSubject
	}
	durable := cfg.Nats.Durable
	if durable == "" {
		durable = "journal-worker"
	}
	if err := w.StartConsumer(ctx, js, subject, durable); err != nil {
		zap.S().Fatalf("consumer stopped: %v", err)
	}
}
