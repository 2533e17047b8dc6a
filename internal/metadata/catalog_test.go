package metadata

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persist/internal/coerce"
)

type address struct {
	Street string
	Zip    int
}

type customer struct {
	ID     string
	Name   string
	Home   *address
	Avatar []byte
}

type order struct {
	ID       int64
	PlacedAt time.Time
	Paid     *bool
}

func defineCustomer() *Definition[customer] {
	return Define[customer]("Customer", "customers").
		ID("id", "id", Get(func(c *customer) string { return c.ID }), Set(func(c *customer, id string) { c.ID = id })).
		Field("name", "name", Get(func(c *customer) string { return c.Name })).
		Embed(Embedded("home", func(c *customer) *address { return c.Home }),
			Col("street", "home_street", Get(func(a *address) string { return a.Street })),
			Col("zip", "home_zip", Get(func(a *address) int { return a.Zip })),
		)
}

func TestDefine_FieldsInOrder(t *testing.T) {
	e, err := defineCustomer().Build()
	require.NoError(t, err)

	require.Len(t, e.Fields, 4)
	assert.Equal(t, "Customer", e.Name)
	assert.Equal(t, "customers", e.Table)
	assert.Equal(t, reflect.TypeFor[customer](), e.Type)

	assert.Equal(t, Field{Name: "id", Declaring: reflect.TypeFor[customer](), Column: "id"}, e.Fields[0])
	assert.Equal(t, Field{Name: "street", Declaring: reflect.TypeFor[address](), Column: "home_street"}, e.Fields[2])

	_, ok := e.Accessor("street")
	assert.False(t, ok, "group fields are not direct accessors")

	g, ok := e.Group(reflect.TypeFor[address]())
	require.True(t, ok)
	zip, ok := g.Accessor("zip")
	require.True(t, ok)
	assert.Equal(t, coerce.Int, zip.Type())
}

func TestDefine_Identifier(t *testing.T) {
	e, err := defineCustomer().Build()
	require.NoError(t, err)

	f, acc, ok := e.Identifier()
	require.True(t, ok)
	assert.Equal(t, "id", f.Column)
	assert.Equal(t, coerce.Text, acc.Type())

	set, ok := e.IdentifierSetter()
	require.True(t, ok)
	c := &customer{}
	require.NoError(t, set.Write(c, "c-1"))
	assert.Equal(t, "c-1", c.ID)

	assert.ErrorIs(t, set.Write(c, 12.5), ErrAccess)
}

func TestDefine_RejectsDuplicateColumn(t *testing.T) {
	_, err := Define[order]("Order", "orders").
		Field("id", "id", Get(func(o *order) int64 { return o.ID })).
		Field("placedAt", "id", Get(func(o *order) time.Time { return o.PlacedAt })).
		Build()
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestDefine_RejectsBytes(t *testing.T) {
	_, err := defineCustomer().
		Field("avatar", "avatar", Get(func(c *customer) []byte { return c.Avatar })).
		Build()
	assert.ErrorIs(t, err, coerce.ErrUnsupportedType)
}

func TestDefine_RejectsForeignAccessor(t *testing.T) {
	_, err := Define[order]("Order", "orders").
		Field("name", "name", Get(func(c *customer) string { return c.Name })).
		Build()
	assert.ErrorIs(t, err, ErrOwnerMismatch)
}

func TestAccessor_Read(t *testing.T) {
	paid := true
	acc := Get(func(o *order) *bool { return o.Paid })
	assert.Equal(t, coerce.Bool, acc.Type())

	v, err := acc.Read(&order{Paid: &paid})
	require.NoError(t, err)
	assert.Equal(t, &paid, v)

	_, err = acc.Read(&customer{})
	assert.ErrorIs(t, err, ErrAccess)

	var nilOrder *order
	_, err = acc.Read(nilOrder)
	assert.ErrorIs(t, err, ErrAccess)

	boom := Get(func(o *order) int64 { panic("denied") })
	_, err = boom.Read(&order{})
	assert.True(t, errors.Is(err, ErrAccess))
	assert.Contains(t, err.Error(), "denied")
}

func TestGroup_ReadUnset(t *testing.T) {
	e, err := defineCustomer().Build()
	require.NoError(t, err)
	g, _ := e.Group(reflect.TypeFor[address]())

	_, err = g.Read(&customer{})
	assert.ErrorIs(t, err, ErrAccess)

	v, err := g.Read(&customer{Home: &address{Street: "Main"}})
	require.NoError(t, err)
	assert.Equal(t, &address{Street: "Main"}, v)
}

func TestGroup_ReadUnsetOptional(t *testing.T) {
	e, err := Define[customer]("Customer", "customers").
		Embed(Embedded("home", func(c *customer) *address { return c.Home }).Optional(),
			Col("street", "home_street", Get(func(a *address) string { return a.Street })),
		).
		Build()
	require.NoError(t, err)
	g, _ := e.Group(reflect.TypeFor[address]())

	v, err := g.Read(&customer{})
	require.NoError(t, err)
	assert.Nil(t, v)
}

type account struct {
	Name    string
	Billing *billing
}

type billing struct{ Name string }

func TestDefine_RejectsGroupFieldShadowingDirectField(t *testing.T) {
	_, err := Define[account]("Account", "accounts").
		Field("name", "name", Get(func(a *account) string { return a.Name })).
		Embed(Embedded("billing", func(a *account) *billing { return a.Billing }),
			Col("name", "billing_name", Get(func(b *billing) string { return b.Name })),
		).
		Build()
	assert.ErrorIs(t, err, ErrDuplicateField)
}

func TestDefine_RejectsDirectFieldShadowedByGroup(t *testing.T) {
	_, err := Define[account]("Account", "accounts").
		Embed(Embedded("billing", func(a *account) *billing { return a.Billing }),
			Col("name", "billing_name", Get(func(b *billing) string { return b.Name })),
		).
		Field("name", "name", Get(func(a *account) string { return a.Name })).
		Build()
	assert.ErrorIs(t, err, ErrDuplicateField)
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	cust, err := defineCustomer().Build()
	require.NoError(t, err)
	ord := Define[order]("Order", "orders").
		ID("id", "id", Get(func(o *order) int64 { return o.ID })).
		MustBuild()

	require.NoError(t, c.Register(cust, ord))
	assert.Error(t, c.Register(ord), "types register once")

	e, ok := c.EntityOf(&order{})
	require.True(t, ok)
	assert.Same(t, ord, e)

	_, ok = c.EntityOf(&address{})
	assert.False(t, ok)

	require.NoError(t, c.Relate(Relation[order, customer]("customer_id")))
	err = c.Relate(Relation[order, customer]("buyer_id"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata.order -> metadata.customer")

	rels := c.RelationshipsForChild(reflect.TypeFor[order]())
	require.Len(t, rels, 1)
	assert.Equal(t, "customer_id", rels[0].ForeignKey)
	assert.Equal(t, reflect.TypeFor[customer](), rels[0].Parent)

	assert.Empty(t, c.RelationshipsForChild(reflect.TypeFor[customer]()))

	names := []string{}
	for _, e := range c.Entities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Customer", "Order"}, names)
}
