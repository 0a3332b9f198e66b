package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/northcart/order-system/shared/models"
)

// Pricing rules applied by order validation.
const (
	TaxRate               = 0.08
	FlatShippingFee       = 9.99
	FreeShippingThreshold = 100.00
)

// ErrPaymentDeclined is the business rejection returned by a payment
// gateway. It is never retried.
var ErrPaymentDeclined = errors.New("payment declined by payment provider")

// PaymentMethod describes how an order is paid
type PaymentMethod struct {
	Type      string  `json:"type"`
	CardToken *string `json:"card_token,omitempty"`
}

// Item is one order line
type Item struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// OrderInput is the immutable payload an order saga starts with
type OrderInput struct {
	OrderID       models.ID     `json:"order_id"`
	CustomerID    string        `json:"customer_id"`
	Items         []Item        `json:"items"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

// OrderValidation is the output of the ValidateOrder step
type OrderValidation struct {
	OrderID     models.ID `json:"order_id"`
	CustomerID  string    `json:"customer_id"`
	ItemCount   int       `json:"item_count"`
	Subtotal    float64   `json:"subtotal"`
	Tax         float64   `json:"tax"`
	Shipping    float64   `json:"shipping"`
	Total       float64   `json:"total"`
	ValidatedAt time.Time `json:"validated_at"`
}

// ValidationError carries field-level detail for malformed input. It is
// always a permanent failure.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, ", ")
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// ValidateOrder checks the order payload and computes its totals. It is a
// pure function of its input: replaying it with identical input yields an
// identical result apart from the timestamp.
func ValidateOrder(orderID models.ID, customerID string, items []Item) (OrderValidation, error) {
	var violations []string

	if orderID == "" {
		violations = append(violations, "order id is required")
	}
	if customerID == "" {
		violations = append(violations, "customer id is required")
	}
	if len(items) == 0 {
		violations = append(violations, "order must contain at least one item")
	}

	for i, item := range items {
		if item.ProductID == "" {
			violations = append(violations, fmt.Sprintf("items[%d]: product id is required", i))
		}
		if item.Quantity <= 0 {
			violations = append(violations, fmt.Sprintf("items[%d]: quantity must be positive", i))
		}
		// A zero price is indistinguishable from a missing one.
		if item.Price <= 0 {
			violations = append(violations, fmt.Sprintf("items[%d]: price is required and must be positive", i))
		}
	}

	if len(violations) > 0 {
		return OrderValidation{}, &ValidationError{Violations: violations}
	}

	var subtotal float64
	for _, item := range items {
		subtotal += item.Price * float64(item.Quantity)
	}
	subtotal = Round2(subtotal)

	tax := Round2(subtotal * TaxRate)

	shipping := FlatShippingFee
	if subtotal > FreeShippingThreshold {
		shipping = 0
	}

	return OrderValidation{
		OrderID:     orderID,
		CustomerID:  customerID,
		ItemCount:   len(items),
		Subtotal:    subtotal,
		Tax:         tax,
		Shipping:    shipping,
		Total:       Round2(subtotal + tax + shipping),
		ValidatedAt: time.Now(),
	}, nil
}

// ItemAvailability is the stock position for one requested item
type ItemAvailability struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InventoryReservation is the output of the CheckInventory step. The
// reservation is released if the saga is cancelled before payment.
type InventoryReservation struct {
	ReservationID models.ID          `json:"reservation_id"`
	Items         []ItemAvailability `json:"items"`
	ReservedAt    time.Time          `json:"reserved_at"`
}

// OutOfStockError reports the products whose available quantity is below
// the requested quantity. It is a permanent failure: no retry.
type OutOfStockError struct {
	ProductIDs []string
}

func (e *OutOfStockError) Error() string {
	return "items out of stock: " + strings.Join(e.ProductIDs, ", ")
}

// InventoryService reserves and releases stock for an order
type InventoryService interface {
	Reserve(ctx context.Context, orderID models.ID, items []Item) (InventoryReservation, error)
	Release(ctx context.Context, reservationID models.ID) error
}

// PaymentReceipt is the output of the ProcessPayment step
type PaymentReceipt struct {
	TransactionID string    `json:"transaction_id"`
	OrderID       models.ID `json:"order_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Method        string    `json:"method"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// PaymentGateway charges the customer for an order
type PaymentGateway interface {
	Charge(ctx context.Context, orderID models.ID, amount float64, method PaymentMethod) (PaymentReceipt, error)
}

// Shipment is one allocated shipment record
type Shipment struct {
	TrackingNumber    string    `json:"tracking_number"`
	ProductID         string    `json:"product_id"`
	Quantity          int       `json:"quantity"`
	Carrier           string    `json:"carrier"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
}

// Fulfillment is the output of the FulfillOrder step
type Fulfillment struct {
	OrderID     models.ID  `json:"order_id"`
	Shipments   []Shipment `json:"shipments"`
	FulfilledAt time.Time  `json:"fulfilled_at"`
}

// FulfillmentService allocates shipments for an order
type FulfillmentService interface {
	CreateShipments(ctx context.Context, orderID models.ID, items []Item) (Fulfillment, error)
}

// Confirmation is the output of the SendConfirmation step
type Confirmation struct {
	NotificationID string    `json:"notification_id"`
	Channel        string    `json:"channel"`
	SentAt         time.Time `json:"sent_at"`
}

// NotificationService delivers customer-facing notifications
type NotificationService interface {
	SendOrderConfirmation(ctx context.Context, orderID models.ID, customerID string, shipments []Shipment) (Confirmation, error)
	SendWelcomeEmail(ctx context.Context, userID models.ID, email, name string) (WelcomeEmail, error)
}
