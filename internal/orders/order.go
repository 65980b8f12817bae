package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewCart starts an empty cart for an already authenticated customer.
func NewCart(customerID string, now time.Time) (*Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrMissingCustomer
	}
	now = now.UTC()
	return &Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Items:      []LineItem{},
		Status:     StatusCart,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AddItem adds qty units at unitPriceCents; an existing line for the same
// product keeps its original price and grows by qty.
func (o *Order) AddItem(productID string, qty int, unitPriceCents int64, now time.Time) error {
	if err := o.mustBeCart(); err != nil {
		return err
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if i := o.indexOf(productID); i >= 0 {
		o.Items[i].Quantity += qty
	} else {
		o.Items = append(o.Items, LineItem{ProductID: productID, Quantity: qty, UnitPriceCents: unitPriceCents})
	}
	o.recompute(now)
	return nil
}

func (o *Order) UpdateQuantity(productID string, qty int, now time.Time) error {
	if err := o.mustBeCart(); err != nil {
		return err
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	i := o.indexOf(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	o.Items[i].Quantity = qty
	o.recompute(now)
	return nil
}

func (o *Order) RemoveItem(productID string, now time.Time) error {
	if err := o.mustBeCart(); err != nil {
		return err
	}
	i := o.indexOf(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	o.Items = append(o.Items[:i], o.Items[i+1:]...)
	o.recompute(now)
	return nil
}

// Freeze turns the cart into an immutable pending snapshot. exists reports
// whether a product can still be sold at a resolvable price.
func (o *Order) Freeze(d CheckoutDetails, exists func(productID string) bool, now time.Time) error {
	if !CanTransition(o.Status, StatusPending) {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: StatusPending}
	}
	if len(o.Items) == 0 {
		return ErrEmptyCart
	}
	for _, it := range o.Items {
		if !exists(it.ProductID) {
			return &ProductUnavailableError{ProductID: it.ProductID}
		}
	}
	o.ShippingAddress = d.ShippingAddress
	o.PaymentMethod = d.PaymentMethod
	o.ContactEmail = d.ContactEmail
	o.recompute(now)
	o.Status = StatusPending
	return nil
}

// MarkPaid moves pending to paid. A second call on a paid order is a no-op and
// reports changed=false.
func (o *Order) MarkPaid(paymentRef string, now time.Time) (changed bool, err error) {
	if o.Status == StatusPaid {
		return false, nil
	}
	if !CanTransition(o.Status, StatusPaid) {
		return false, &TransitionError{OrderID: o.ID, From: o.Status, To: StatusPaid}
	}
	now = now.UTC()
	o.Status = StatusPaid
	o.PaymentRef = paymentRef
	o.PaidAt = &now
	o.UpdatedAt = now
	return true, nil
}

func (o *Order) MarkUnpaid(reason string, now time.Time) error {
	if !CanTransition(o.Status, StatusUnpaid) {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: StatusUnpaid}
	}
	o.Status = StatusUnpaid
	o.CancelReason = reason
	o.UpdatedAt = now.UTC()
	return nil
}

// SumSubtotals is the value TotalCents must always equal.
func (o *Order) SumSubtotals() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.SubtotalCents
	}
	return sum
}

func (o *Order) mustBeCart() error {
	if o.Status != StatusCart {
		return ErrInvalidState
	}
	return nil
}

func (o *Order) indexOf(productID string) int {
	for i, it := range o.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (o *Order) recompute(now time.Time) {
	for i := range o.Items {
		o.Items[i].SubtotalCents = o.Items[i].UnitPriceCents * int64(o.Items[i].Quantity)
	}
	o.TotalCents = o.SumSubtotals()
	o.UpdatedAt = now.UTC()
}
