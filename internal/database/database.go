package database

import (
	"fmt"
	"time"

	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	pkgLogger "github.com/sjperalta/fintera-brokerage/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database selected by cfg.DatabaseDriver
func Connect(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Environment != "production" {
		logLevel = logger.Info
	}

	gormLogger := pkgLogger.NewGormLogger(
		logLevel,
		200*time.Millisecond,
	)

	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("driver %q has no SQL database", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.DatabaseDriver == config.DriverSQLite {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// OpenStore returns the record store for cfg together with a function that
// releases it. The memory driver needs no database.
func OpenStore(cfg *config.Config) (repository.Store, func() error, error) {
	if cfg.DatabaseDriver == config.DriverMemory {
		pkgLogger.Warn("Using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), func() error { return nil }, nil
	}

	db, err := Connect(cfg)
	if err != nil {
		return nil, nil, err
	}

	store := repository.NewGormStore(db)
	if err := store.AutoMigrate(); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate records table: %w", err)
	}

	closeFn := func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	pkgLogger.Info("Database connected", "driver", cfg.DatabaseDriver)
	return store, closeFn, nil
}
