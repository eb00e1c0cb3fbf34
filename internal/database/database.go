package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and locates the backing database.
type Config struct {
	Driver string
	// Path is the sqlite file, or ":memory:".
	Path string
	// DSN is the postgres connection string.
	DSN string
}

// Database is the listing store.
type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    func() time.Time
}

// NewDatabase opens the store and migrates the schema. A failure here is the
// one condition the application treats as fatal.
func NewDatabase(cfg Config, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	now := func() time.Time { return time.Now().UTC() }
	gormCfg := &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: now,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	case DriverSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite driver requires a path")
		}
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver != DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	if err := MigrateSchema(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"driver": cfg.Driver,
		"path":   cfg.Path,
	}).Info("Database ready")

	return &Database{db: db, logger: logger, now: now}, nil
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
