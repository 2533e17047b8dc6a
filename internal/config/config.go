package config

import (
	"time"

	"persist/internal/rowstore"
)

// Configuration is read from flags, environment and an optional JSON file
// by goconfig.
type Configuration struct {
	Driver            string `usage:"row store driver: sqlite, mysql, postgres, mongodb or memory"`
	Host              string `usage:"database host, or the database file for sqlite"`
	Port              int    `usage:"database port, 0 for the driver default"`
	Database          string `usage:"database name"`
	Username          string `usage:"database user"`
	Password          string `usage:"database password"`
	SSLMode           string `usage:"TLS mode: disable or require"`
	MongoTransactions bool   `usage:"wrap MongoDB writes in a transaction (needs a replica set)"`
	TimeoutSeconds    int    `usage:"upper bound for one persist call, in seconds"`
	Migrate           bool   `usage:"create the demo tables before writing"`
	Version           bool   `usage:"show version and exit"`
	ShowConfig        bool   `usage:"print config"`
}

// Default returns the configuration used when nothing is overridden: a
// local SQLite file.
func Default() Configuration {
	return Configuration{
		Driver:         string(rowstore.DriverSQLite),
		Host:           "data/persist.db",
		SSLMode:        "disable",
		TimeoutSeconds: 30,
		Migrate:        true,
	}
}

// StoreOptions maps the configuration onto rowstore options.
func (c Configuration) StoreOptions() rowstore.Options {
	return rowstore.Options{
		Driver:       rowstore.Driver(c.Driver),
		Host:         c.Host,
		Port:         c.Port,
		Database:     c.Database,
		Username:     c.Username,
		Password:     c.Password,
		SSLMode:      c.SSLMode,
		Transactions: c.MongoTransactions,
	}
}

// Timeout returns TimeoutSeconds as a duration; non-positive values mean
// no timeout.
func (c Configuration) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
