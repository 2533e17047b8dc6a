package rowstore

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"persist/internal/record"
)

// mongoStore writes each record as a document of the collection named by
// the table.
type mongoStore struct {
	client       *mongo.Client
	dbName       string
	transactions bool
}

func newMongoStore(ctx context.Context, opts Options) (*mongoStore, error) {
	uri := buildMongoURI(opts)

	dbName := opts.Database
	if dbName == "" {
		dbName = "test"
	}

	// Mask password in URI for logging
	logURI := uri
	if opts.Password != "" {
		logURI = strings.ReplaceAll(logURI, opts.Password, "***")
	}
	log.Printf("[MONGO] Connecting with URI: %s", logURI)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &mongoStore{
		client:       client,
		dbName:       dbName,
		transactions: opts.Transactions,
	}, nil
}

// buildMongoURI uses Host as-is when it is already a connection string,
// otherwise builds one from host, port and credentials.
func buildMongoURI(opts Options) string {
	if strings.HasPrefix(opts.Host, "mongodb+srv://") || strings.HasPrefix(opts.Host, "mongodb://") {
		uri := opts.Host
		if opts.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", opts.Password)
			uri = strings.ReplaceAll(uri, "<db_password>", opts.Password)
		}
		return uri
	}
	port := opts.Port
	if port == 0 {
		port = 27017
	}
	if opts.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", opts.Username, opts.Password, opts.Host, port)
	}
	return fmt.Sprintf("mongodb://%s:%d", opts.Host, port)
}

func (m *mongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Begin returns a transaction that buffers documents until Commit.
func (m *mongoStore) Begin(ctx context.Context) (Tx, error) {
	return &mongoTx{store: m, ctx: ctx}, nil
}

type pendingDoc struct {
	collection string
	doc        bson.D
}

type mongoTx struct {
	store *mongoStore
	ctx   context.Context

	mu      sync.Mutex
	pending []pendingDoc
	done    bool
}

// Insert queues rec. MongoDB assigns ObjectIDs, never integer keys, so the
// result is always 0.
func (t *mongoTx) Insert(_ context.Context, table string, rec record.Record, _ string) (int64, error) {
	if err := validRecord(table, rec); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return 0, ErrTxDone
	}
	t.pending = append(t.pending, pendingDoc{collection: table, doc: toDocument(rec)})
	return 0, nil
}

func (t *mongoTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if len(t.pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(t.ctx, 30*time.Second)
	defer cancel()

	if !t.store.transactions {
		return t.insertAll(ctx)
	}

	sess, err := t.store.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, t.insertAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *mongoTx) insertAll(ctx context.Context) error {
	db := t.store.client.Database(t.store.dbName)
	for i, p := range t.pending {
		if _, err := db.Collection(p.collection).InsertOne(ctx, p.doc); err != nil {
			return fmt.Errorf("insert %d into %s: %w", i, p.collection, err)
		}
	}
	return nil
}

func (t *mongoTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.pending = nil
	return nil
}

// toDocument converts a record into an ordered BSON document.
func toDocument(rec record.Record) bson.D {
	cols := rec.Columns()
	doc := make(bson.D, 0, len(cols))
	for _, c := range cols {
		doc = append(doc, bson.E{Key: c, Value: rec[c].Any()})
	}
	return doc
}
