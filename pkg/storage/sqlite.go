package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for persistence.
// This backend provides durable storage and is suitable for single-instance
// deployments where usage history must survive restarts.
//
// SQLiteBackend uses a write-ahead log (WAL) for better concurrent
// performance.
type SQLiteBackend struct {
	db        *sql.DB
	dbPath    string
	mu        sync.RWMutex
	closeOnce sync.Once

	insertStmt  *sql.Stmt
	countStmt   *sql.Stmt
	cleanupStmt *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// MaxOpenConns bounds the connection pool.
	// Default: 1 (SQLite only supports a single writer)
	MaxOpenConns int
}

// NewSQLiteBackend creates a new SQLite storage backend with default
// settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a new SQLite backend with custom
// configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:     db,
		dbPath: cfg.DBPath,
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		upstream TEXT NOT NULL,
		model TEXT,
		status TEXT NOT NULL,
		priority TEXT,
		batched INTEGER NOT NULL,
		batch_size INTEGER NOT NULL,
		tokens_used INTEGER NOT NULL,
		duration_us INTEGER NOT NULL,
		queue_wait_us INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_created_at ON usage_records(created_at);
	CREATE INDEX IF NOT EXISTS idx_usage_upstream ON usage_records(upstream);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO usage_records
			(id, upstream, model, status, priority, batched, batch_size, tokens_used, duration_us, queue_wait_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`SELECT COUNT(*) FROM usage_records`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`DELETE FROM usage_records WHERE created_at < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// Insert stores a record, assigning ID and CreatedAt when unset.
func (s *SQLiteBackend) Insert(ctx context.Context, rec *UsageRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.Upstream == "" {
		return fmt.Errorf("upstream cannot be empty")
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	batched := 0
	if rec.Batched {
		batched = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.insertStmt.ExecContext(ctx,
		rec.ID,
		rec.Upstream,
		rec.Model,
		rec.Status,
		rec.Priority,
		batched,
		rec.BatchSize,
		rec.TokensUsed,
		rec.Duration.Microseconds(),
		rec.QueueWait.Microseconds(),
		rec.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// Query returns records matching the filter, newest first.
func (s *SQLiteBackend) Query(ctx context.Context, filter Filter) ([]*UsageRecord, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Upstream != "" {
		conds = append(conds, "upstream = ?")
		args = append(args, filter.Upstream)
	}
	if filter.Model != "" {
		conds = append(conds, "model = ?")
		args = append(args, filter.Model)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since.UnixMicro())
	}

	query := `SELECT id, upstream, model, status, priority, batched, batch_size, tokens_used, duration_us, queue_wait_us, created_at
		FROM usage_records`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*UsageRecord
	for rows.Next() {
		var (
			rec         UsageRecord
			batched     int
			durationUs  int64
			queueWaitUs int64
			createdAt   int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.Upstream, &rec.Model, &rec.Status, &rec.Priority,
			&batched, &rec.BatchSize, &rec.TokensUsed, &durationUs, &queueWaitUs, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Batched = batched != 0
		rec.Duration = time.Duration(durationUs) * time.Microsecond
		rec.QueueWait = time.Duration(queueWaitUs) * time.Microsecond
		rec.CreatedAt = time.UnixMicro(createdAt)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// Summarize aggregates records created at or after since.
func (s *SQLiteBackend) Summarize(ctx context.Context, since time.Time) (map[string]*UsageSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT upstream, COUNT(*), SUM(batched), SUM(tokens_used), AVG(duration_us)
		FROM usage_records
		WHERE created_at >= ?
		GROUP BY upstream
	`, since.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("failed to summarize records: %w", err)
	}
	defer rows.Close()

	summaries := make(map[string]*UsageSummary)
	for rows.Next() {
		var (
			upstream      string
			requests      int64
			batched       int64
			tokens        sql.NullInt64
			avgDurationUs sql.NullFloat64
		)
		if err := rows.Scan(&upstream, &requests, &batched, &tokens, &avgDurationUs); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries[upstream] = &UsageSummary{
			Requests:        requests,
			Batched:         batched,
			Tokens:          tokens.Int64,
			AverageDuration: time.Duration(avgDurationUs.Float64) * time.Microsecond,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return summaries, nil
}

// Count returns the total number of stored records.
func (s *SQLiteBackend) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.countStmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Cleanup removes records created before the cutoff.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		if s.insertStmt != nil {
			s.insertStmt.Close()
		}
		if s.countStmt != nil {
			s.countStmt.Close()
		}
		if s.cleanupStmt != nil {
			s.cleanupStmt.Close()
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}
