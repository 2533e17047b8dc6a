package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fulldump/goconfig"

	"persist/internal/config"
	"persist/internal/metadata"
	"persist/internal/rowstore"
	"persist/internal/session"
)

var VERSION = "dev"

func main() {

	c := config.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", VERSION)
		return
	}

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, c); err != nil {
		log.Println("ERROR:", err.Error())
		os.Exit(-1)
	}
}

func run(ctx context.Context, c config.Configuration) error {
	opts := c.StoreOptions()
	if opts.Driver == rowstore.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(opts.Host), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	store, err := rowstore.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	if m, ok := store.(rowstore.Migrator); ok && c.Migrate {
		statements, err := schema(opts.Driver)
		if err != nil {
			return err
		}
		if err := m.Migrate(ctx, statements...); err != nil {
			return err
		}
	}

	catalog := metadata.NewCatalog()
	if err := registerModel(catalog); err != nil {
		return fmt.Errorf("register model: %w", err)
	}
	for _, e := range catalog.Entities() {
		log.Printf("[DEMO] registered %s", e)
	}

	s := session.New(catalog, store, session.WithTimeout(c.Timeout()))
	res, err := s.Persist(ctx, sampleGraph()...)
	if errors.Is(err, context.Canceled) {
		log.Println("[DEMO] interrupted, nothing committed")
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("[DEMO] committed %d rows in %s", res.Inserted, res.Duration)
	for table, n := range res.Tables {
		log.Printf("[DEMO]   %s: %d", table, n)
	}
	return nil
}
