package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"persist/internal/builder"
	"persist/internal/ident"
	"persist/internal/metadata"
	"persist/internal/rowstore"
	"persist/internal/txcache"
)

// ─────────────────────────────────────────────────────────────
// Session: writes entity graphs to a row store
// ─────────────────────────────────────────────────────────────

var ErrUnitDone = errors.New("unit already committed or rolled back")

// Session persists registered entities. It is safe for concurrent use; each
// Persist call runs in its own store transaction and entity scope.
type Session struct {
	catalog  *metadata.Catalog
	store    rowstore.Store
	resolver *ident.Resolver
	builder  *builder.Builder
	timeout  time.Duration
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	gen     ident.Generator
	timeout time.Duration
	quiet   bool
}

// WithGenerator sets the generator of text identifiers (UUIDs by default).
func WithGenerator(g ident.Generator) Option {
	return func(o *sessionOptions) { o.gen = g }
}

// WithTimeout bounds every Persist call.
func WithTimeout(d time.Duration) Option {
	return func(o *sessionOptions) { o.timeout = d }
}

// Quiet silences the builder's skipped-field log lines.
func Quiet() Option {
	return func(o *sessionOptions) { o.quiet = true }
}

// New creates a Session writing to store with the metadata in catalog.
func New(catalog *metadata.Catalog, store rowstore.Store, opts ...Option) *Session {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}
	resolver := ident.NewResolver(catalog, o.gen)

	var bopts []builder.Option
	if o.quiet {
		bopts = append(bopts, builder.Quiet())
	}
	return &Session{
		catalog:  catalog,
		store:    store,
		resolver: resolver,
		builder:  builder.New(catalog, resolver, bopts...),
		timeout:  o.timeout,
	}
}

// Result summarizes a committed unit.
type Result struct {
	Inserted int            `json:"inserted"`
	Tables   map[string]int `json:"tables"`
	Duration time.Duration  `json:"duration"`
}

// Persist saves entities in order within one transaction. Parents must come
// before the children that reference them. On any failure nothing is
// committed.
func (s *Session) Persist(ctx context.Context, entities ...any) (*Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	u, err := s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if err := u.Save(e); err != nil {
			if rbErr := u.Rollback(); rbErr != nil {
				log.Printf("[SESSION] rollback failed: %v", rbErr)
			}
			return nil, err
		}
	}
	return u.Commit()
}

// Begin opens a unit of work. The caller must Commit or Rollback it.
func (s *Session) Begin(ctx context.Context) (*Unit, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin unit: %w", err)
	}
	return &Unit{
		session: s,
		ctx:     ctx,
		tx:      tx,
		scope:   txcache.New(),
		start:   time.Now(),
		tables:  map[string]int{},
	}, nil
}

// Unit is one transaction: a store transaction plus the entity scope that
// lets children find the parents saved before them. A Unit is used by a
// single goroutine.
type Unit struct {
	session *Session
	ctx     context.Context
	tx      rowstore.Tx
	scope   *txcache.Scope
	start   time.Time

	mu     sync.Mutex
	tables map[string]int
	done   bool

	// entities whose identifier this unit generated
	assigned []any
}

// Bind makes parent the instance every later child of the unit references
// for parent's type, whatever was saved most recently.
func (u *Unit) Bind(parent any) {
	u.scope.Bind(parent)
}

// Save assigns missing identifiers, builds the entity's record, inserts it
// and stages the entity for the children saved after it.
func (u *Unit) Save(entity any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitDone
	}

	s := u.session
	ent, ok := s.catalog.EntityOf(entity)
	if !ok {
		return fmt.Errorf("save %T: %w", entity, ident.ErrUnknownEntity)
	}

	generated, err := s.resolver.AssignText(entity)
	if err != nil && !errors.Is(err, ident.ErrNoIdentifier) {
		return fmt.Errorf("save %s: %w", ent.Name, err)
	}
	if generated {
		u.assigned = append(u.assigned, entity)
	}
	needKey, err := s.resolver.NeedsStoreKey(entity)
	if err != nil {
		return fmt.Errorf("save %s: %w", ent.Name, err)
	}

	rec, err := s.builder.Build(entity, ent, u.scope)
	if err != nil {
		return err
	}

	key := ""
	if needKey {
		f, _, _ := ent.Identifier()
		key = f.Column
		// the store generates the key; a literal 0 would be inserted as-is
		delete(rec, key)
	}

	id, err := u.tx.Insert(u.ctx, ent.Table, rec, key)
	if err != nil {
		return fmt.Errorf("save %s: %w", ent.Name, err)
	}
	if needKey {
		if id == 0 {
			log.Printf("[SESSION] %s: store generated no key for %s", ent.Name, key)
		} else if err := s.resolver.AssignKey(entity, id); err != nil {
			return fmt.Errorf("save %s: %w", ent.Name, err)
		} else {
			u.assigned = append(u.assigned, entity)
		}
	}

	u.scope.Stage(entity)
	u.tables[ent.Table]++
	return nil
}

// Commit commits the store transaction and ends the unit.
func (u *Unit) Commit() (*Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil, ErrUnitDone
	}
	u.done = true
	defer u.scope.Clear()

	if err := u.tx.Commit(); err != nil {
		u.clearAssigned()
		return nil, err
	}

	res := &Result{Tables: u.tables, Duration: time.Since(u.start)}
	for _, n := range u.tables {
		res.Inserted += n
	}
	return res, nil
}

// Rollback discards everything saved in the unit. It is a no-op after
// Commit or a previous Rollback.
func (u *Unit) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	defer u.scope.Clear()
	u.clearAssigned()
	return u.tx.Rollback()
}

// clearAssigned blanks the identifiers generated in the unit, so a retry
// does not insert keys of a transaction that never committed.
func (u *Unit) clearAssigned() {
	for _, e := range u.assigned {
		if err := u.session.resolver.ClearIdentifier(e); err != nil {
			log.Printf("[SESSION] %v", err)
		}
	}
	u.assigned = nil
}
