package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	// Drivers selectable by DATABASE_DRIVER.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/jwebster45206/kode-keras/pkg/conversation"
)

// dialect captures the few statements that differ between drivers.
type dialect struct {
	driverName string
	createSQL  string
	upsertSQL  string
	numbered   bool
}

var dialects = map[string]dialect{
	"sqlite": {
		driverName: "sqlite",
		createSQL: `CREATE TABLE IF NOT EXISTS session_progress (
			store_key TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		upsertSQL: `INSERT INTO session_progress (store_key, data, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(store_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
	},
	"postgres": {
		driverName: "postgres",
		createSQL: `CREATE TABLE IF NOT EXISTS session_progress (
			store_key VARCHAR(255) PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		upsertSQL: `INSERT INTO session_progress (store_key, data, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (store_key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		numbered: true,
	},
	"mysql": {
		driverName: "mysql",
		createSQL: `CREATE TABLE IF NOT EXISTS session_progress (
			store_key VARCHAR(255) PRIMARY KEY,
			data MEDIUMTEXT NOT NULL,
			updated_at DATETIME(6) NOT NULL
		)`,
		upsertSQL: `INSERT INTO session_progress (store_key, data, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`,
	},
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rewrite converts ? placeholders to $1, $2, ... for postgres.
func (d dialect) rewrite(query string) string {
	if !d.numbered {
		return query
	}
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// SQLStorage stores progress in a single session_progress table.
type SQLStorage struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// Ensure SQLStorage implements Storage interface
var _ Storage = (*SQLStorage)(nil)

// NewSQLStorage opens the database and creates the progress table.
func NewSQLStorage(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQLStorage, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// SQLite allows one writer; an in-memory database also lives per connection.
		db.SetMaxOpenConns(1)
	}

	s := &SQLStorage{db: db, dialect: d, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("SQL storage ready", "driver", driver)
	return s, nil
}

func (s *SQLStorage) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createSQL); err != nil {
		return fmt.Errorf("failed to create progress table: %w", err)
	}
	return nil
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func (s *SQLStorage) SaveProgress(ctx context.Context, key string, p *conversation.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.rewrite(s.dialect.upsertSQL), key, string(data), time.Now().UTC()); err != nil {
		s.logger.Error("Failed to save progress", "key", key, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (s *SQLStorage) LoadProgress(ctx context.Context, key string) (*conversation.Progress, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		s.dialect.rewrite(`SELECT data FROM session_progress WHERE store_key = ?`), key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.Error("Failed to load progress", "key", key, "error", err)
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var p conversation.Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (s *SQLStorage) DeleteProgress(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		s.dialect.rewrite(`DELETE FROM session_progress WHERE store_key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}
