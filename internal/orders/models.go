package orders

import "time"

type LineItem struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"` // harga final saat item ditambahkan
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Order struct {
	ID              string     `json:"id"`
	CustomerID      string     `json:"customer_id"`
	Items           []LineItem `json:"items"`
	TotalCents      int64      `json:"total_cents"`
	Status          Status     `json:"status"` // lihat status.go
	PaymentMethod   string     `json:"payment_method,omitempty"`
	ShippingAddress string     `json:"shipping_address,omitempty"`
	ContactEmail    string     `json:"contact_email,omitempty"`
	PaymentRef      string     `json:"payment_ref,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

// CheckoutDetails is captured when a cart is frozen.
type CheckoutDetails struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	ContactEmail    string `json:"contact_email"`
}

// Clone returns a deep copy; stores hand out clones so callers never share line items.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	return &c
}
