package rowstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"persist/internal/record"
)

// Driver names the backing engine of a Store.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
	DriverMongoDB  Driver = "mongodb"
	DriverMemory   Driver = "memory"
)

var (
	ErrTxDone       = errors.New("transaction already committed or rolled back")
	ErrInvalidName  = errors.New("invalid table or column name")
	ErrUnsupported  = errors.New("unsupported driver")
	ErrUnknownTable = errors.New("unknown table")
)

// Store is a row store records are written to.
type Store interface {
	// Begin opens a write transaction.
	Begin(ctx context.Context) (Tx, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Tx writes records atomically: either every insert is committed or none.
type Tx interface {
	// Insert writes rec as a new row of table. When key names the row's
	// identifier column and the store generates it, the generated value is
	// returned; otherwise the result is 0.
	Insert(ctx context.Context, table string, rec record.Record, key string) (int64, error)

	Commit() error
	Rollback() error
}

// Migrator is implemented by stores that accept schema statements.
type Migrator interface {
	Migrate(ctx context.Context, statements ...string) error
}

// Options selects and configures a store.
type Options struct {
	Driver   Driver
	Host     string // hostname, or the file path for sqlite
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// Transactions enables multi-document transactions on MongoDB. They
	// require a replica set; standalone servers insert without one.
	Transactions bool
}

// Open creates the Store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverSQLite:
		return newSQLiteStore(opts)
	case DriverMySQL:
		return newSQLStore(DriverMySQL, buildMySQLDSN(opts))
	case DriverPostgres:
		return newSQLStore(DriverPostgres, buildPostgresDSN(opts))
	case DriverMongoDB:
		return newMongoStore(ctx, opts)
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, opts.Driver)
	}
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func validRecord(table string, rec record.Record) error {
	if err := validName(table); err != nil {
		return err
	}
	for col := range rec {
		if err := validName(col); err != nil {
			return err
		}
	}
	return nil
}
