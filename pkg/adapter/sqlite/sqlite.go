// Package sqlite implements an adapter that stores every delivered instance
// as a row in a SQLite database.
//
// Rows land in a single table:
//
//	CREATE TABLE invocations (
//	    id         INTEGER PRIMARY KEY AUTOINCREMENT,
//	    handler    TEXT NOT NULL,
//	    instance   TEXT NOT NULL,
//	    template   TEXT NOT NULL,
//	    fields     TEXT NOT NULL,  -- JSON
//	    created_at INTEGER NOT NULL -- unix nanoseconds
//	);
//
// All instances of one action are written in one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/mixer/pkg/adapter"
	"mercator-hq/mixer/pkg/policy/instance"
	"mercator-hq/mixer/pkg/schema"
)

// Name is the adapter name.
const Name = "sqlite"

// Config configures the adapter.
type Config struct {
	// Path is the database file.
	Path string

	// MaxOpenConns bounds the connection pool.
	// Default: 4
	MaxOpenConns int

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Adapter writes instances to SQLite.
type Adapter struct {
	db         *sql.DB
	insertStmt *sql.Stmt
	closeOnce  sync.Once
	now        func() time.Time
}

// New opens the database at cfg.Path and creates the schema if needed.
func New(cfg Config) (*Adapter, error) {
	if cfg.Path == "" {
		return nil, errors.New("db path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	a := &Adapter{db: db, now: time.Now}

	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	a.insertStmt, err = db.Prepare(`
		INSERT INTO invocations (handler, instance, template, fields, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return a, nil
}

func (a *Adapter) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handler TEXT NOT NULL,
		instance TEXT NOT NULL,
		template TEXT NOT NULL,
		fields TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invocations_handler ON invocations(handler);
	CREATE INDEX IF NOT EXISTS idx_invocations_created_at ON invocations(created_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

func (a *Adapter) Name() string { return Name }

// Handle writes one row per instance.
func (a *Adapter) Handle(ctx context.Context, handler *schema.Handler, instances []*instance.Instance) error {
	if len(instances) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, a.insertStmt)
	for _, rec := range adapter.NewRecords(handler, instances, a.now()) {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal instance %s: %w", rec.Instance, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.Handler, rec.Instance, rec.Template, string(fields), rec.Timestamp.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert instance %s: %w", rec.Instance, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Records returns the stored records of handler in insertion order. An
// empty handler returns every record.
func (a *Adapter) Records(ctx context.Context, handler string) ([]adapter.Record, error) {
	query := `SELECT handler, instance, template, fields, created_at FROM invocations`
	args := []interface{}{}
	if handler != "" {
		query += ` WHERE handler = ?`
		args = append(args, handler)
	}
	query += ` ORDER BY id`

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []adapter.Record
	for rows.Next() {
		var rec adapter.Record
		var fields string
		var created int64
		if err := rows.Scan(&rec.Handler, &rec.Instance, &rec.Template, &fields, &created); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", rec.Instance, err)
		}
		rec.Adapter = Name
		rec.Timestamp = time.Unix(0, created).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes records created before cutoff and returns how many were
// removed.
func (a *Adapter) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM invocations WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	return res.RowsAffected()
}

// HealthCheck pings the database.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.insertStmt != nil {
			a.insertStmt.Close()
		}
		err = a.db.Close()
	})
	return err
}
