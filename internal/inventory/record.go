package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

const MaxDiscountPercent = 90

type Record struct {
	ProductID       string    `json:"product_id"`
	Name            string    `json:"name"`
	StockQuantity   int       `json:"stock_quantity"`
	UnitPriceCents  int64     `json:"unit_price_cents"`
	DiscountPercent int       `json:"discount_percent"`
	Available       bool      `json:"available"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var hundred = decimal.NewFromInt(100)

// FinalPriceCents applies the discount and rounds half-up to the cent.
func (r Record) FinalPriceCents() int64 {
	pct := r.DiscountPercent
	if pct < 0 {
		pct = 0
	}
	if pct > MaxDiscountPercent {
		pct = MaxDiscountPercent
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(pct))).Div(hundred)
	return decimal.NewFromInt(r.UnitPriceCents).Mul(factor).Round(0).IntPart()
}

// Covers reports whether qty units can be sold from this record right now.
func (r Record) Covers(qty int) bool {
	return r.Available && r.StockQuantity >= qty
}

func (r Record) Validate() error {
	switch {
	case r.ProductID == "":
		return ErrInvalidRecord
	case r.StockQuantity < 0, r.UnitPriceCents < 0:
		return ErrInvalidRecord
	case r.DiscountPercent < 0, r.DiscountPercent > MaxDiscountPercent:
		return ErrInvalidRecord
	}
	return nil
}
