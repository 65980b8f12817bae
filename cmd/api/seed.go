package main

import (
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
)

// demoCatalog seeds the in-memory store so the API is usable without Postgres.
func demoCatalog(now time.Time) []inventory.Record {
	now = now.UTC()
	return []inventory.Record{
		{ProductID: "ring-gold-solitaire", Name: "Gold Solitaire Ring", StockQuantity: 5, UnitPriceCents: 189900, Available: true, UpdatedAt: now},
		{ProductID: "necklace-pearl-strand", Name: "Pearl Strand Necklace", StockQuantity: 3, UnitPriceCents: 125000, DiscountPercent: 10, Available: true, UpdatedAt: now},
		{ProductID: "earrings-silver-hoop", Name: "Silver Hoop Earrings", StockQuantity: 20, UnitPriceCents: 4500, Available: true, UpdatedAt: now},
		{ProductID: "bracelet-tennis-diamond", Name: "Diamond Tennis Bracelet", StockQuantity: 1, UnitPriceCents: 349900, DiscountPercent: 15, Available: true, UpdatedAt: now},
		{ProductID: "pendant-sapphire", Name: "Sapphire Pendant", StockQuantity: 0, UnitPriceCents: 89900, Available: false, UpdatedAt: now},
	}
}
