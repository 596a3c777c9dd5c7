// Package datastore opens the relational store and migrates the schema.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/logger"
)

// Manager defines the interface for database lifecycle operations.
type Manager interface {
	// Initialize creates or migrates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location for display.
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Config holds SQLite configuration.
type Config struct {
	// Path is the SQLite database file.
	Path string
	// SlowQueryThreshold logs statements slower than this at WARN. Zero disables.
	SlowQueryThreshold time.Duration
	// Logger receives GORM output. Defaults to the datastore module logger.
	Logger logger.Logger
}

// allModels lists every entity in migration order.
func allModels() []any {
	return []any{
		&entities.Label{},
		&entities.AudioJob{},
		&entities.Segment{},
		&entities.TrainingRun{},
	}
}

func gormConfig(log logger.Logger, slow time.Duration) *gorm.Config {
	if log == nil {
		log = GetLogger()
	}
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, slow),
		TranslateError: true,
	}
}

// SQLiteManager handles the SQLite database.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
}

// NewSQLiteManager opens (creating if needed) the SQLite database at cfg.Path.
func NewSQLiteManager(cfg Config) (*SQLiteManager, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, dbError(err, "create_directory", "path", cfg.Path)
		}
	}

	// WAL for concurrent readers during task writes; foreign keys are off by default in SQLite
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.Path)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cfg.Logger, cfg.SlowQueryThreshold))
	if err != nil {
		return nil, dbError(err, "open_sqlite", "path", cfg.Path)
	}

	// A single writer connection avoids SQLITE_BUSY between task workers
	sqlDB, err := db.DB()
	if err != nil {
		return nil, dbError(err, "get_sql_db")
	}
	sqlDB.SetMaxOpenConns(1)

	return &SQLiteManager{db: db, dbPath: cfg.Path}, nil
}

// Initialize creates the schema.
func (m *SQLiteManager) Initialize() error {
	if err := m.db.AutoMigrate(allModels()...); err != nil {
		return dbError(err, "auto_migrate")
	}
	return m.installTriggers()
}

// installTriggers enforces cascade and SET NULL semantics on databases created
// before the foreign key constraints existed. Both triggers are idempotent.
func (m *SQLiteManager) installTriggers() error {
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS trg_label_delete_set_null
		BEFORE DELETE ON labels
		FOR EACH ROW
		BEGIN
			UPDATE segments SET label_id = NULL WHERE label_id = OLD.id;
		END`,
		`CREATE TRIGGER IF NOT EXISTS trg_audio_job_delete_cascade
		BEFORE DELETE ON audio_jobs
		FOR EACH ROW
		BEGIN
			DELETE FROM segments WHERE job_id = OLD.id;
		END`,
	}
	for _, stmt := range triggers {
		if err := m.db.Exec(stmt).Error; err != nil {
			return dbError(err, "install_trigger")
		}
	}
	return nil
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}
