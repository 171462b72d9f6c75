package db

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/anniejean/castingdesk/internal/models"
)

// DSNOptions are appended to every database path. WAL gives concurrent
// readers alongside the single writer; foreign keys make child deletion
// cascade to its size rows.
const DSNOptions = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

var conn *gorm.DB

// Init opens the database at path, migrates it and installs it as the
// package connection returned by Conn.
func Init(path string, log *zap.Logger) error {
	gdb, err := Open(path, logger.Warn)
	if err != nil {
		return err
	}
	if err := Migrate(gdb); err != nil {
		return err
	}
	conn = gdb
	log.Info("database ready", zap.String("driver", "sqlite"), zap.String("path", path))
	return nil
}

// Open opens a SQLite database file with the standard DSN options.
func Open(path string, level logger.LogLevel) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path+DSNOptions), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// SQLite works best with a single writer; cap the pool accordingly.
	// services.SizeReconciler.ReconcileTx relies on this to serialize
	// same-child writes.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return gdb, nil
}

// Migrate creates or updates every table plus the indexes GORM can't
// express in struct tags.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Child{},
		&models.ChildSize{},
		&models.Adult{},
		&models.Client{},
		&models.Shoot{},
		&models.ModelApproval{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	stmts := []string{
		// One primary size per child.
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_child_sizes_primary ON child_sizes(child_id) WHERE is_primary = 1",
		"CREATE INDEX IF NOT EXISTS idx_child_sizes_size_child ON child_sizes(size, child_id)",
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func Conn() *gorm.DB {
	return conn
}
