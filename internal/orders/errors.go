package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidState       = errors.New("order is not a cart")
	ErrInvalidTransition  = errors.New("order status transition not allowed")
	ErrEmptyCart          = errors.New("cart has no line items")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrItemNotFound       = errors.New("line item not found")
	ErrMissingCustomer    = errors.New("customer id is required")
	ErrProductUnavailable = errors.New("product unavailable")

	// ErrConcurrentUpdate is returned by Repository.Save when the stored status
	// no longer matches the status the caller loaded.
	ErrConcurrentUpdate = errors.New("order changed concurrently")
)

// ProductUnavailableError names the line item that blocked checkout.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product unavailable: %s", e.ProductID)
}

func (e *ProductUnavailableError) Is(target error) bool {
	return target == ErrProductUnavailable
}

// TransitionError carries the statuses of a rejected transition.
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot go from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
