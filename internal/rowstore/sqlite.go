package rowstore

import (
	"fmt"

	_ "modernc.org/sqlite"
)

// newSQLiteStore opens a SQLite file in WAL mode with a busy timeout.
func newSQLiteStore(opts Options) (*sqlStore, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	s, err := newSQLStore(DriverSQLite, opts.Host+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// SQLite only supports one writer; a single connection avoids SQLITE_BUSY
	s.db.SetMaxOpenConns(1)
	return s, nil
}
