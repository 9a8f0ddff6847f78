package config

import (
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	postgres_wrapper "github.com/joripage/fixmatch/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/fixmatch/pkg/infra/redis"
)

type SessionConfig struct {
	ListenAddr               string   `yaml:"listen_addr"`
	SenderCompID             string   `yaml:"sender_comp_id"`
	HeartbeatIntervalSeconds int      `yaml:"heartbeat_interval_seconds"`
	AcceptedVersions         []string `yaml:"accepted_versions"`
	TestModeDelimiter        bool     `yaml:"test_mode_delimiter"`
}

func (c *SessionConfig) HeartbeatInterval() time.Duration {
	if c.HeartbeatIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

type RiskConfig struct {
	MaxPrice           float64 `yaml:"max_price"`
	MaxOrderQty        int64   `yaml:"max_order_qty"`
	MaxOrdersPerSymbol int     `yaml:"max_orders_per_symbol"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	TradeTopic string   `yaml:"trade_topic"`
}

type NatsConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Durable string `yaml:"durable"`
}

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	Session     *SessionConfig                   `yaml:"session"`
	Risk        *RiskConfig                      `yaml:"risk"`
	MetricsAddr string                           `yaml:"metrics_addr"`
	Kafka       *KafkaConfig                     `yaml:"kafka"`
	Nats        *NatsConfig                      `yaml:"nats"`
	JournalDB   *postgres_wrapper.PostgresConfig `yaml:"journal_db"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
}

// Load reads config from file with environment variable expansion.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	sugar := zap.S().With("func", "config.Load", "filePath", filePath)
	sugar.Debug("Load config...")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	if cfg.Session == nil {
		cfg.Session = &SessionConfig{}
	}
	if cfg.Session.ListenAddr == "" {
		cfg.Session.ListenAddr = ":5001"
	}
	if cfg.Session.SenderCompID == "" {
		cfg.Session.SenderCompID = "VENUE"
	}
	if cfg.Risk == nil {
		cfg.Risk = &RiskConfig{}
	}

	return cfg, nil
}
