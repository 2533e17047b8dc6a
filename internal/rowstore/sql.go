package rowstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"persist/internal/record"
)

// sqlStore is the shared implementation for MySQL, Postgres, and SQLite.
type sqlStore struct {
	driver Driver
	db     *sql.DB
}

// newSQLStore opens a database/sql pool for driver.
func newSQLStore(driver Driver, dsn string) (*sqlStore, error) {
	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlStore{driver: driver, db: db}, nil
}

// DB returns the underlying connection pool.
func (s *sqlStore) DB() *sql.DB {
	return s.db
}

func (s *sqlStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Migrate runs schema statements in order. ALTER TABLE statements that fail
// because the column already exists are skipped.
func (s *sqlStore) Migrate(ctx context.Context, statements ...string) error {
	for _, m := range statements {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			if strings.Contains(m, "ALTER TABLE") && strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", abbreviate(m, 40), err)
		}
	}
	return nil
}

func (s *sqlStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin %s: %w", s.driver, err)
	}
	return &sqlTx{driver: s.driver, tx: tx}, nil
}

type sqlTx struct {
	driver Driver
	tx     *sql.Tx

	mu   sync.Mutex
	done bool
}

func (t *sqlTx) Insert(ctx context.Context, table string, rec record.Record, key string) (int64, error) {
	if err := validRecord(table, rec); err != nil {
		return 0, err
	}
	if key != "" {
		if err := validName(key); err != nil {
			return 0, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return 0, ErrTxDone
	}

	cols := rec.Columns()
	query := insertStatement(t.driver, table, cols, key)
	args := rec.Args(cols)

	if t.driver == DriverPostgres && key != "" {
		var id int64
		if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		return id, nil
	}

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	if key == "" {
		return 0, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		log.Printf("[ROWSTORE] %s: no generated key for %s: %v", t.driver, table, err)
		return 0, nil
	}
	return id, nil
}

func (t *sqlTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// insertStatement renders an INSERT for the given columns. Postgres returns
// the generated key through RETURNING since lib/pq has no LastInsertId.
func insertStatement(driver Driver, table string, cols []string, key string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quote(driver, table))

	if len(cols) == 0 {
		if driver == DriverMySQL {
			b.WriteString(" () VALUES ()")
		} else {
			b.WriteString(" DEFAULT VALUES")
		}
	} else {
		b.WriteString(" (")
		for i, c := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quote(driver, c))
		}
		b.WriteString(") VALUES (")
		for i := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(placeholder(driver, i+1))
		}
		b.WriteString(")")
	}

	if driver == DriverPostgres && key != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(quote(driver, key))
	}
	return b.String()
}

func quote(driver Driver, name string) string {
	if driver == DriverMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

func placeholder(driver Driver, n int) string {
	if driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n]
}
