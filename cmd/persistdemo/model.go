package main

import (
	"fmt"
	"time"

	"persist/internal/metadata"
	"persist/internal/rowstore"
)

type Address struct {
	Street string
	City   string
	Zip    *int
}

type Customer struct {
	ID      string
	Name    string
	Email   string
	VIP     bool
	Billing *Address
}

type Order struct {
	ID       int64
	PlacedAt time.Time
	Total    float64
	Note     *string
}

type OrderLine struct {
	SKU      string
	Quantity int16
	Price    float32
}

func registerModel(c *metadata.Catalog) error {
	customer := metadata.Define[Customer]("Customer", "customers").
		ID("id", "id",
			metadata.Get(func(c *Customer) string { return c.ID }),
			metadata.Set(func(c *Customer, v string) { c.ID = v })).
		Field("name", "name", metadata.Get(func(c *Customer) string { return c.Name })).
		Field("email", "email", metadata.Get(func(c *Customer) string { return c.Email })).
		Field("vip", "vip", metadata.Get(func(c *Customer) bool { return c.VIP })).
		Embed(metadata.Embedded("billing", func(c *Customer) *Address { return c.Billing }).Optional(),
			metadata.Col("street", "billing_street", metadata.Get(func(a *Address) string { return a.Street })),
			metadata.Col("city", "billing_city", metadata.Get(func(a *Address) string { return a.City })),
			metadata.Col("zip", "billing_zip", metadata.Get(func(a *Address) *int { return a.Zip })),
		)

	order := metadata.Define[Order]("Order", "orders").
		ID("id", "id",
			metadata.Get(func(o *Order) int64 { return o.ID }),
			metadata.Set(func(o *Order, v int64) { o.ID = v })).
		Field("placedAt", "placed_at", metadata.Get(func(o *Order) time.Time { return o.PlacedAt })).
		Field("total", "total", metadata.Get(func(o *Order) float64 { return o.Total })).
		Field("note", "note", metadata.Get(func(o *Order) *string { return o.Note }))

	line := metadata.Define[OrderLine]("OrderLine", "order_lines").
		Field("sku", "sku", metadata.Get(func(l *OrderLine) string { return l.SKU })).
		Field("quantity", "quantity", metadata.Get(func(l *OrderLine) int16 { return l.Quantity })).
		Field("price", "price", metadata.Get(func(l *OrderLine) float32 { return l.Price }))

	for _, d := range []interface{ Build() (*metadata.Entity, error) }{customer, order, line} {
		e, err := d.Build()
		if err != nil {
			return err
		}
		if err := c.Register(e); err != nil {
			return err
		}
	}
	return c.Relate(
		metadata.Relation[Order, Customer]("customer_id"),
		metadata.Relation[OrderLine, Order]("order_id"),
	)
}

// schema returns the demo tables in the dialect of driver.
func schema(driver rowstore.Driver) ([]string, error) {
	var serial, text string
	switch driver {
	case rowstore.DriverSQLite:
		serial, text = "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	case rowstore.DriverPostgres:
		serial, text = "BIGSERIAL PRIMARY KEY", "TEXT"
	case rowstore.DriverMySQL:
		serial, text = "BIGINT AUTO_INCREMENT PRIMARY KEY", "VARCHAR(255)"
	default:
		return nil, fmt.Errorf("no schema for %s", driver)
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id ` + text + ` PRIMARY KEY,
			name ` + text + `,
			email ` + text + `,
			vip INTEGER NOT NULL DEFAULT 0,
			billing_street ` + text + `,
			billing_city ` + text + `,
			billing_zip INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id ` + serial + `,
			placed_at BIGINT,
			total DOUBLE PRECISION,
			note ` + text + `,
			customer_id ` + text + `
		)`,
		`CREATE TABLE IF NOT EXISTS order_lines (
			sku ` + text + `,
			quantity INTEGER,
			price REAL,
			order_id BIGINT
		)`,
	}, nil
}

func sampleGraph() []any {
	zip := 28001
	note := "leave at the door"
	return []any{
		&Customer{Name: "Ada Lovelace", Email: "ada@example.com", VIP: true,
			Billing: &Address{Street: "Calle Mayor 1", City: "Madrid", Zip: &zip}},
		&Order{PlacedAt: time.Now(), Total: 42.5, Note: &note},
		&OrderLine{SKU: "book-001", Quantity: 2, Price: 12.5},
		&OrderLine{SKU: "pen-017", Quantity: 5, Price: 3.5},
		&Customer{Name: "Charles Babbage", Email: "charles@example.com"},
		&Order{PlacedAt: time.Now(), Total: 9.99},
		&OrderLine{SKU: "gear-042", Quantity: 1, Price: 9.99},
	}
}
