package infra

import (
	"sync"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"gorm.io/gorm"

	postgres_wrapper "github.com/joripage/fixmatch/pkg/infra/postgres"
)

// IMigrateTool applies schema migrations for the journal database.
type IMigrateTool interface {
	// CreateDBAndMigrate connects with retry and migrates, for tests and
	// first boot.
	CreateDBAndMigrate(cfg *postgres_wrapper.PostgresConfig, migrationSource string) *gorm.DB

	// Migrate upgrades the schema to the latest version.
	Migrate(source string, connStr string)
}

type migrateTool struct{}

var once sync.Once
var mutex = &sync.Mutex{}
var singleton IMigrateTool

func GetMigrateTool() IMigrateTool {
	once.Do(func() {
		singleton = &migrateTool{}
	})
	return singleton
}

func (mt *migrateTool) Migrate(source string, connStr string) {
	mutex.Lock()
	defer mutex.Unlock()

	zap.S().Info("migrating schema")

	mg, err := migrate.New(source, connStr)
	if err != nil {
		panic(err)
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil && err != migrate.ErrNilVersion {
		panic(err)
	}
	if dirty {
		mg.Force(int(version) - 1) // nolint
	}

	if err := mg.Up(); err != nil && err != migrate.ErrNoChange {
		panic(err)
	}

	zap.S().Info("migration done")
}

func (mt *migrateTool) CreateDBAndMigrate(cfg *postgres_wrapper.PostgresConfig, migrationSource string) *gorm.DB {
	db := postgres_wrapper.InitPostgresWithBackoff(cfg)
	mt.Migrate(migrationSource, cfg.MigrationConnURL)
	return db
}
