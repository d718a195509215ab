// Package order manages orders, their line items, and the status lifecycle
// from checkout through fulfillment.
package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Order statuses.
const (
	StatusPending           = "pending"
	StatusPaid              = "paid"
	StatusProcessing        = "processing"
	StatusShipped           = "shipped"
	StatusDelivered         = "delivered"
	StatusCancelled         = "cancelled"
	StatusRefunded          = "refunded"
	StatusPartiallyRefunded = "partially_refunded"
)

// validTransitions defines the order lifecycle. Refund statuses are reachable
// from any post-payment state via the refund flow.
var validTransitions = map[string][]string{
	StatusPending:           {StatusPaid, StatusCancelled},
	StatusPaid:              {StatusProcessing, StatusCancelled, StatusRefunded, StatusPartiallyRefunded},
	StatusProcessing:        {StatusShipped, StatusCancelled, StatusRefunded, StatusPartiallyRefunded},
	StatusShipped:           {StatusDelivered, StatusRefunded, StatusPartiallyRefunded},
	StatusDelivered:         {StatusRefunded, StatusPartiallyRefunded},
	StatusPartiallyRefunded: {StatusRefunded, StatusProcessing, StatusShipped, StatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Item struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"order_id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

type Order struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	Status         string     `json:"status"`
	Items          []Item     `json:"items"`
	TotalCents     int64      `json:"total_cents"`
	Currency       string     `json:"currency"`
	// Shipping snapshot, frozen at checkout.
	ShippingAddress string     `json:"shipping_address"`
	ShippingCity    string     `json:"shipping_city"`
	ShippingState   string     `json:"shipping_state"`
	ShippingZip     string     `json:"shipping_zip"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ComputeTotal sums the line items in integer cents.
func (o *Order) ComputeTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.UnitPriceCents * int64(it.Quantity)
	}
	return total
}

func (o *Order) Validate() error {
	if o.PatientID == uuid.Nil {
		return errors.New("patient_id is required")
	}
	if len(o.Items) == 0 {
		return errors.New("at least one line item is required")
	}
	for _, it := range o.Items {
		if it.ProductID == uuid.Nil {
			return errors.New("every item needs a product_id")
		}
		if it.Quantity <= 0 {
			return errors.New("item quantity must be positive")
		}
		if it.UnitPriceCents < 0 {
			return errors.New("item price must not be negative")
		}
	}
	return nil
}
