package builder

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persist/internal/coerce"
	"persist/internal/ident"
	"persist/internal/metadata"
	"persist/internal/record"
	"persist/internal/txcache"
)

type Order struct {
	ID       int64
	PlacedAt *time.Time
	Paid     *bool
}

type Address struct {
	Street string
	Zip    *int
}

type Customer struct {
	ID      string
	Name    string
	Score   float64
	Ratio   float32
	Visits  int16
	Level   int8
	Billing *Address
}

type Item struct {
	SKU      string
	Quantity int
	Photo    []byte
}

type Phone struct{ Number string }

func orderEntity() *metadata.Entity {
	return metadata.Define[Order]("Order", "orders").
		ID("id", "id", metadata.Get(func(o *Order) int64 { return o.ID })).
		Field("placedAt", "placed_at", metadata.Get(func(o *Order) *time.Time { return o.PlacedAt })).
		Field("paid", "paid", metadata.Get(func(o *Order) *bool { return o.Paid })).
		MustBuild()
}

func customerEntity() *metadata.Entity {
	return metadata.Define[Customer]("Customer", "customers").
		ID("id", "id", metadata.Get(func(c *Customer) string { return c.ID })).
		Field("name", "name", metadata.Get(func(c *Customer) string { return c.Name })).
		Field("score", "score", metadata.Get(func(c *Customer) float64 { return c.Score })).
		Field("ratio", "ratio", metadata.Get(func(c *Customer) float32 { return c.Ratio })).
		Field("visits", "visits", metadata.Get(func(c *Customer) int16 { return c.Visits })).
		Field("level", "level", metadata.Get(func(c *Customer) int8 { return c.Level })).
		Embed(metadata.Embedded("billing", func(c *Customer) *Address { return c.Billing }),
			metadata.Col("street", "billing_street", metadata.Get(func(a *Address) string { return a.Street })),
			metadata.Col("zip", "billing_zip", metadata.Get(func(a *Address) *int { return a.Zip })),
		).
		MustBuild()
}

func itemEntity() *metadata.Entity {
	return metadata.Define[Item]("Item", "items").
		Field("sku", "sku", metadata.Get(func(i *Item) string { return i.SKU })).
		Field("quantity", "quantity", metadata.Get(func(i *Item) int { return i.Quantity })).
		MustBuild()
}

type fixture struct {
	catalog *metadata.Catalog
	builder *Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := metadata.NewCatalog()
	require.NoError(t, c.Register(orderEntity(), customerEntity(), itemEntity()))
	require.NoError(t, c.Relate(
		metadata.Relation[Order, Customer]("customer_id"),
		metadata.Relation[Item, Order]("order_id"),
		metadata.Relation[Item, Customer]("customer_id"),
	))
	return &fixture{
		catalog: c,
		builder: New(c, ident.NewResolver(c, nil), Quiet()),
	}
}

func (f *fixture) entity(t *testing.T, obj any) *metadata.Entity {
	t.Helper()
	e, ok := f.catalog.EntityOf(obj)
	require.True(t, ok)
	return e
}

func TestBuild_OrderExample(t *testing.T) {
	f := newFixture(t)
	placed := time.UnixMilli(1000)
	o := &Order{ID: 7, PlacedAt: &placed}

	rec, err := f.builder.Build(o, f.entity(t, o), txcache.New())
	require.NoError(t, err)

	assert.Equal(t, record.Record{
		"id":        record.Int(7),
		"placed_at": record.Int(1000),
		"paid":      record.Int(0),
	}, rec)
}

func TestBuild_OneColumnPerField(t *testing.T) {
	f := newFixture(t)
	zip := 1010
	c := &Customer{
		ID: "c-1", Name: "Ada", Score: 0.1 + 0.2, Ratio: 0.5, Visits: -3, Level: 9,
		Billing: &Address{Street: "Main 1", Zip: &zip},
	}

	rec, err := f.builder.Build(c, f.entity(t, c), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"billing_street", "billing_zip", "id", "level", "name", "ratio", "score", "visits"}, rec.Columns())
	assert.Equal(t, record.String("c-1"), rec["id"])
	assert.Equal(t, record.Float64(0.1+0.2), rec["score"])
	assert.Equal(t, record.Float32(0.5), rec["ratio"])
	assert.Equal(t, record.Int(-3), rec["visits"])
	assert.Equal(t, record.Int(9), rec["level"])
	assert.Equal(t, record.String("Main 1"), rec["billing_street"])
	assert.Equal(t, record.Int(1010), rec["billing_zip"])
}

func TestBuild_UnsetGroupFails(t *testing.T) {
	f := newFixture(t)
	c := &Customer{ID: "c-2"}

	rec, err := f.builder.Build(c, f.entity(t, c), nil)
	assert.Nil(t, rec)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "billing_street", be.Column)
	assert.ErrorIs(t, err, metadata.ErrAccess)
}

func TestBuild_UnsetOptionalGroupIsNull(t *testing.T) {
	f := newFixture(t)
	e := metadata.Define[Customer]("Customer", "customers").
		ID("id", "id", metadata.Get(func(c *Customer) string { return c.ID })).
		Embed(metadata.Embedded("billing", func(c *Customer) *Address { return c.Billing }).Optional(),
			metadata.Col("street", "billing_street", metadata.Get(func(a *Address) string { return a.Street })),
			metadata.Col("zip", "billing_zip", metadata.Get(func(a *Address) *int { return a.Zip })),
		).
		MustBuild()

	rec, err := f.builder.Build(&Customer{ID: "c-2"}, e, nil)
	require.NoError(t, err)

	street, ok := rec.Get("billing_street")
	require.True(t, ok)
	assert.True(t, street.IsNull())
	zip, ok := rec.Get("billing_zip")
	require.True(t, ok)
	assert.True(t, zip.IsNull())
}

func TestBuild_UnresolvableFieldIsOmitted(t *testing.T) {
	f := newFixture(t)
	e := customerEntity()
	e.Fields = append(e.Fields,
		metadata.Field{Name: "number", Declaring: reflect.TypeFor[Phone](), Column: "phone"},
		metadata.Field{Name: "country", Declaring: reflect.TypeFor[Address](), Column: "billing_country"},
	)

	rec, err := f.builder.Build(&Customer{ID: "c-3", Billing: &Address{}}, e, nil)
	require.NoError(t, err)

	_, ok := rec.Get("phone")
	assert.False(t, ok)
	_, ok = rec.Get("billing_country")
	assert.False(t, ok)
	_, ok = rec.Get("billing_street")
	assert.True(t, ok)
}

func TestBuild_InjectsStagedParent(t *testing.T) {
	f := newFixture(t)
	scope := txcache.New()
	scope.Stage(&Customer{ID: "c-9"})
	scope.Stage(&Order{ID: 70})

	item := &Item{SKU: "sku-1", Quantity: 2}
	rec, err := f.builder.Build(item, f.entity(t, item), scope)
	require.NoError(t, err)

	assert.Equal(t, record.Int(70), rec["order_id"])
	assert.Equal(t, record.String("c-9"), rec["customer_id"])
}

func TestBuild_EmptyCacheWritesNoForeignKey(t *testing.T) {
	f := newFixture(t)
	item := &Item{SKU: "sku-1"}

	rec, err := f.builder.Build(item, f.entity(t, item), txcache.New())
	require.NoError(t, err)

	_, ok := rec.Get("order_id")
	assert.False(t, ok)
	_, ok = rec.Get("customer_id")
	assert.False(t, ok)
}

func TestBuild_BoundParentWins(t *testing.T) {
	f := newFixture(t)
	scope := txcache.New()
	scope.Bind(&Order{ID: 1})
	scope.Stage(&Order{ID: 2})

	item := &Item{SKU: "x"}
	rec, err := f.builder.Build(item, f.entity(t, item), scope)
	require.NoError(t, err)
	assert.Equal(t, record.Int(1), rec["order_id"])
}

func TestBuild_FailureReturnsNoRecord(t *testing.T) {
	f := newFixture(t)
	e := metadata.Define[Order]("Order", "orders").
		ID("id", "id", metadata.Get(func(o *Order) int64 { return o.ID })).
		Field("paid", "paid", metadata.Get(func(o *Order) bool { return *o.Paid })).
		MustBuild()

	rec, err := f.builder.Build(&Order{ID: 1}, e, nil)
	assert.Nil(t, rec)
	require.Error(t, err)

	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "Order", be.Entity)
	assert.Equal(t, "paid", be.Column)
	assert.ErrorIs(t, err, metadata.ErrAccess)
}

func TestBuild_ParentWithoutIdentifierFails(t *testing.T) {
	c := metadata.NewCatalog()
	phone := metadata.Define[Phone]("Phone", "phones").
		Field("number", "number", metadata.Get(func(p *Phone) string { return p.Number })).
		MustBuild()
	require.NoError(t, c.Register(phone, itemEntity()))
	require.NoError(t, c.Relate(metadata.Relation[Item, Phone]("phone_id")))
	b := New(c, ident.NewResolver(c, nil), Quiet())

	scope := txcache.New()
	scope.Stage(&Phone{Number: "1"})
	item := &Item{}
	e, _ := c.EntityOf(item)

	rec, err := b.Build(item, e, scope)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ident.ErrNoIdentifier)
}

func TestBuild_RejectsMismatchedObject(t *testing.T) {
	f := newFixture(t)

	_, err := f.builder.Build(&Item{}, orderEntity(), nil)
	assert.ErrorIs(t, err, ErrEntityMismatch)

	var o *Order
	_, err = f.builder.Build(o, orderEntity(), nil)
	assert.ErrorIs(t, err, ErrNilObject)

	_, err = f.builder.Build(nil, orderEntity(), nil)
	assert.ErrorIs(t, err, ErrNilObject)
}

func TestBuild_DescriptorTypeDrivesCoercion(t *testing.T) {
	f := newFixture(t)
	acc, ok := orderEntity().Accessor("paid")
	require.True(t, ok)
	assert.Equal(t, coerce.Bool, acc.Type())

	yes := true
	o := &Order{ID: 3, Paid: &yes}
	rec, err := f.builder.Build(o, f.entity(t, o), nil)
	require.NoError(t, err)
	assert.Equal(t, record.Int(1), rec["paid"])
	assert.True(t, rec["placed_at"].IsNull())
}

func TestBuild_ConcurrentBuildsAreIndependent(t *testing.T) {
	f := newFixture(t)
	scope := txcache.New()
	scope.Stage(&Order{ID: 5})
	e := itemEntity()

	var wg sync.WaitGroup
	recs := make([]record.Record, 32)
	for i := range recs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := f.builder.Build(&Item{Quantity: i}, e, scope)
			assert.NoError(t, err)
			recs[i] = rec
		}(i)
	}
	wg.Wait()

	for i, rec := range recs {
		assert.Equal(t, record.Int(int64(i)), rec["quantity"])
		assert.Equal(t, record.Int(5), rec["order_id"])
	}
}
